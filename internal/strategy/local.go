package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/warden-auth/warden/internal/account"
	"github.com/warden-auth/warden/internal/authz"
	"github.com/warden-auth/warden/internal/shared"
)

// LocalConfig tunes the local identifier strategy.
type LocalConfig struct {
	// PrimaryIdentifier is the identifier type that establishes identity,
	// e.g. "license".
	PrimaryIdentifier string
	// AutoCreate provisions an account on first successful identification.
	AutoCreate bool
	// DefaultRoleName is the role assigned to provisioned accounts when the
	// store has no default role.
	DefaultRoleName string
}

// Local authenticates by the connection's primary identifier, provisioning
// an account on first sight when auto-create is enabled.
type Local struct {
	accounts account.AccountStore
	roles    account.RoleStore
	cfg      LocalConfig
	logger   *slog.Logger
}

// NewLocal constructs the local strategy.
func NewLocal(accounts account.AccountStore, roles account.RoleStore, cfg LocalConfig, logger *slog.Logger) *Local {
	if cfg.PrimaryIdentifier == "" {
		cfg.PrimaryIdentifier = "license"
	}
	return &Local{accounts: accounts, roles: roles, cfg: cfg, logger: logger}
}

func (s *Local) Authenticate(ctx context.Context, conn Connection, _ Credentials) (*Result, error) {
	primary, ok := conn.Identifier(s.cfg.PrimaryIdentifier)
	if !ok || primary == "" {
		return nil, fmt.Errorf("%w: missing %s identifier", shared.ErrUnauthorized, s.cfg.PrimaryIdentifier)
	}
	ident := account.Identifier{Type: s.cfg.PrimaryIdentifier, Value: primary}

	acct, err := s.accounts.FindByIdentifier(ctx, ident)
	if err != nil {
		return nil, err
	}

	isNew := false
	if acct == nil {
		if !s.cfg.AutoCreate {
			return nil, shared.ErrAccountNotFound
		}
		acct, isNew, err = s.provision(ctx, conn, ident)
		if err != nil {
			return nil, err
		}
	}

	if err := checkBan(ctx, s.accounts, acct); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := s.accounts.TouchLogin(ctx, acct.ID, now); err != nil {
		return nil, err
	}
	acct.LastLoginAt = &now

	conn.Link(acct.LinkedID)
	if s.logger != nil {
		s.logger.Info("local authentication",
			slog.String("linked_id", acct.LinkedID), slog.Bool("new_account", isNew))
	}
	return &Result{Account: acct, LinkedID: acct.LinkedID, IsNewAccount: isNew}, nil
}

// provision creates the account for a first-time identifier. Two
// connections racing on the same identifier both reach Create; the store's
// uniqueness guarantee lets exactly one win, and the loser retries the
// lookup instead of failing.
func (s *Local) provision(ctx context.Context, conn Connection, ident account.Identifier) (*account.Account, bool, error) {
	role, err := defaultRole(ctx, s.roles, s.cfg.DefaultRoleName)
	if err != nil {
		return nil, false, err
	}

	acct := &account.Account{
		LinkedID:    uuid.NewString(),
		Identifiers: conn.Identifiers(),
	}
	if !acct.HasIdentifier(ident) {
		acct.Identifiers = append(acct.Identifiers, ident)
	}
	if role != nil {
		acct.RoleID = &role.ID
	}

	err = s.accounts.Create(ctx, acct)
	if err == nil {
		return acct, true, nil
	}
	if !errors.Is(err, account.ErrDuplicateIdentifier) {
		return nil, false, err
	}

	existing, lookupErr := s.accounts.FindByIdentifier(ctx, ident)
	if lookupErr != nil {
		return nil, false, lookupErr
	}
	if existing == nil {
		return nil, false, err
	}
	return existing, false, nil
}

// checkBan enforces ban policy before linking, lifting expired bans.
func checkBan(ctx context.Context, accounts account.AccountStore, acct *account.Account) error {
	switch authz.EvaluateBan(acct.Banned, acct.BanExpiresAt, time.Now()) {
	case authz.BanActive:
		return &shared.BanError{Reason: acct.BanReason, ExpiresAt: acct.BanExpiresAt}
	case authz.BanExpired:
		if err := accounts.SetBan(ctx, acct.ID, false, "", nil); err != nil {
			return err
		}
		acct.Banned = false
		acct.BanReason = ""
		acct.BanExpiresAt = nil
	}
	return nil
}

// defaultRole resolves the provisioning role: store default first, then
// the configured role name.
func defaultRole(ctx context.Context, roles account.RoleStore, name string) (*account.Role, error) {
	role, err := roles.DefaultRole(ctx)
	if err != nil {
		return nil, err
	}
	if role == nil && name != "" {
		role, err = roles.FindByName(ctx, name)
		if err != nil {
			return nil, err
		}
	}
	return role, nil
}

var _ Strategy = (*Local)(nil)
