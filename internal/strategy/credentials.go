package strategy

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/warden-auth/warden/internal/account"
	"github.com/warden-auth/warden/internal/shared"
)

// CredentialsConfig tunes the username/password strategy.
type CredentialsConfig struct {
	// BcryptCost is the hashing cost factor for registration.
	BcryptCost int
	// DefaultRoleName is the role assigned on registration when the store
	// has no default role.
	DefaultRoleName string
	// MergeIdentifiers appends the connection's identifiers to the account
	// on successful login, so credential accounts also become reachable by
	// identifier lookup.
	MergeIdentifiers bool
}

// CredentialsStrategy authenticates by username and password. It never
// auto-provisions on authenticate; Register is the explicit provisioning
// operation.
type CredentialsStrategy struct {
	accounts account.AccountStore
	roles    account.RoleStore
	cfg      CredentialsConfig
	logger   *slog.Logger
}

// NewCredentials constructs the credentials strategy.
func NewCredentials(accounts account.AccountStore, roles account.RoleStore, cfg CredentialsConfig, logger *slog.Logger) *CredentialsStrategy {
	if cfg.BcryptCost <= 0 {
		cfg.BcryptCost = 10
	}
	return &CredentialsStrategy{accounts: accounts, roles: roles, cfg: cfg, logger: logger}
}

func (s *CredentialsStrategy) Authenticate(ctx context.Context, conn Connection, creds Credentials) (*Result, error) {
	if creds.Username == "" || creds.Password == "" {
		return nil, shared.ErrInvalidCredentials
	}

	acct, err := s.accounts.FindByUsername(ctx, creds.Username)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, shared.ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(creds.Password)) != nil {
		return nil, shared.ErrInvalidCredentials
	}

	if err := checkBan(ctx, s.accounts, acct); err != nil {
		return nil, err
	}

	if s.cfg.MergeIdentifiers {
		if err := s.mergeIdentifiers(ctx, conn, acct); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	if err := s.accounts.TouchLogin(ctx, acct.ID, now); err != nil {
		return nil, err
	}
	acct.LastLoginAt = &now

	conn.Link(acct.LinkedID)
	if s.logger != nil {
		s.logger.Info("credentials authentication", slog.String("linked_id", acct.LinkedID))
	}
	return &Result{Account: acct, LinkedID: acct.LinkedID}, nil
}

// Register provisions a credential account. It fails with ErrUsernameTaken
// when the username exists, including when a concurrent registration wins
// the race at the store.
func (s *CredentialsStrategy) Register(ctx context.Context, conn Connection, creds Credentials) (*Result, error) {
	if creds.Username == "" || creds.Password == "" {
		return nil, shared.ErrInvalidCredentials
	}

	existing, err := s.accounts.FindByUsername(ctx, creds.Username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, shared.ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), s.cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	role, err := defaultRole(ctx, s.roles, s.cfg.DefaultRoleName)
	if err != nil {
		return nil, err
	}

	acct := &account.Account{
		LinkedID:     uuid.NewString(),
		Username:     creds.Username,
		PasswordHash: string(hash),
		Identifiers:  conn.Identifiers(),
	}
	if role != nil {
		acct.RoleID = &role.ID
	}

	if err := s.accounts.Create(ctx, acct); err != nil {
		if errors.Is(err, account.ErrDuplicateUsername) {
			return nil, shared.ErrUsernameTaken
		}
		return nil, err
	}

	conn.Link(acct.LinkedID)
	if s.logger != nil {
		s.logger.Info("credentials registration",
			slog.String("username", creds.Username), slog.String("linked_id", acct.LinkedID))
	}
	return &Result{Account: acct, LinkedID: acct.LinkedID, IsNewAccount: true}, nil
}

func (s *CredentialsStrategy) mergeIdentifiers(ctx context.Context, conn Connection, acct *account.Account) error {
	changed := false
	for _, ident := range conn.Identifiers() {
		if !acct.HasIdentifier(ident) {
			acct.Identifiers = append(acct.Identifiers, ident)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.accounts.Update(ctx, acct)
}

var (
	_ Strategy  = (*CredentialsStrategy)(nil)
	_ Registrar = (*CredentialsStrategy)(nil)
)
