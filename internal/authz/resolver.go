package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/warden-auth/warden/internal/account"
	"github.com/warden-auth/warden/internal/shared"
)

// DefaultCacheTTL bounds how long a resolved principal may be served
// without a fresh store read.
const DefaultCacheTTL = 5 * time.Minute

// Resolver produces the Principal consumed by access-control checks.
type Resolver interface {
	GetPrincipal(ctx context.Context, sess Session) (*Principal, error)
	RefreshPrincipal(ctx context.Context, sess Session) (*Principal, error)
	GetPrincipalByLinkedID(ctx context.Context, linkedID string) (*Principal, error)
}

// LocalResolverConfig tunes the store-backed resolver.
type LocalResolverConfig struct {
	// DefaultRoleName is the fallback when no role is marked default in
	// the store. Empty means only the store default is consulted.
	DefaultRoleName string
	CacheTTL        time.Duration
}

// LocalResolver resolves principals from the account and role stores,
// merging role permissions with account overrides. Resolved principals are
// cached by stable linked ID; concurrent misses for the same account are
// collapsed into a single store read.
type LocalResolver struct {
	accounts account.AccountStore
	roles    account.RoleStore
	cache    PrincipalCache
	cfg      LocalResolverConfig
	logger   *slog.Logger
	group    singleflight.Group
}

// NewLocalResolver constructs a LocalResolver.
func NewLocalResolver(accounts account.AccountStore, roles account.RoleStore, cache PrincipalCache, cfg LocalResolverConfig, logger *slog.Logger) *LocalResolver {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	return &LocalResolver{accounts: accounts, roles: roles, cache: cache, cfg: cfg, logger: logger}
}

// GetPrincipal returns the cached principal for the session's linked
// account, resolving and caching it on a miss.
func (r *LocalResolver) GetPrincipal(ctx context.Context, sess Session) (*Principal, error) {
	linkedID := sess.LinkedID()
	if linkedID == "" {
		return nil, shared.ErrUnauthorized
	}
	return r.resolve(ctx, linkedID)
}

// RefreshPrincipal unconditionally evicts the cached principal and
// re-resolves it from the stores.
func (r *LocalResolver) RefreshPrincipal(ctx context.Context, sess Session) (*Principal, error) {
	linkedID := sess.LinkedID()
	if linkedID == "" {
		return nil, shared.ErrUnauthorized
	}
	r.cache.Delete(ctx, linkedID)
	return r.resolve(ctx, linkedID)
}

// GetPrincipalByLinkedID resolves a principal by stable ID for offline and
// administrative lookups. It returns (nil, nil) when the account or its
// role cannot be resolved; store failures still propagate.
func (r *LocalResolver) GetPrincipalByLinkedID(ctx context.Context, linkedID string) (*Principal, error) {
	if linkedID == "" {
		return nil, nil
	}
	p, err := r.resolve(ctx, linkedID)
	if err != nil {
		if errorsIsAny(err, shared.ErrAccountNotFound, shared.ErrConfiguration) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

func (r *LocalResolver) resolve(ctx context.Context, linkedID string) (*Principal, error) {
	if p, ok := r.cache.Get(ctx, linkedID); ok {
		return p, nil
	}
	result, err, _ := r.group.Do(linkedID, func() (any, error) {
		if p, ok := r.cache.Get(ctx, linkedID); ok {
			return p, nil
		}
		p, err := r.resolveFresh(ctx, linkedID)
		if err != nil {
			return nil, err
		}
		r.cache.Set(ctx, linkedID, p, r.cfg.CacheTTL)
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*Principal), nil
}

func (r *LocalResolver) resolveFresh(ctx context.Context, linkedID string) (*Principal, error) {
	acct, err := r.accounts.FindByLinkedID(ctx, linkedID)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, shared.ErrAccountNotFound
	}

	switch EvaluateBan(acct.Banned, acct.BanExpiresAt, time.Now()) {
	case BanActive:
		return nil, &shared.BanError{Reason: acct.BanReason, ExpiresAt: acct.BanExpiresAt}
	case BanExpired:
		if err := r.accounts.SetBan(ctx, acct.ID, false, "", nil); err != nil {
			return nil, err
		}
		if r.logger != nil {
			r.logger.Info("expired ban lifted", slog.String("linked_id", linkedID))
		}
	}

	role, err := r.roleFor(ctx, acct)
	if err != nil {
		return nil, err
	}

	return &Principal{
		ID:          acct.LinkedID,
		Name:        role.DisplayName,
		Rank:        role.Rank,
		Permissions: Merge(role.Permissions, acct.Overrides),
		Meta: map[string]string{
			"accountId": strconv.FormatInt(acct.ID, 10),
			"roleId":    strconv.FormatInt(role.ID, 10),
			"roleName":  role.Name,
		},
	}, nil
}

// roleFor resolves the account's role: explicit role ID first, then the
// store default, then the configured fallback role name.
func (r *LocalResolver) roleFor(ctx context.Context, acct *account.Account) (*account.Role, error) {
	if acct.RoleID != nil {
		role, err := r.roles.FindByID(ctx, *acct.RoleID)
		if err != nil {
			return nil, err
		}
		if role != nil {
			return role, nil
		}
		if r.logger != nil {
			r.logger.Warn("assigned role missing, falling back to default",
				slog.Int64("role_id", *acct.RoleID), slog.String("linked_id", acct.LinkedID))
		}
	}
	role, err := r.roles.DefaultRole(ctx)
	if err != nil {
		return nil, err
	}
	if role == nil && r.cfg.DefaultRoleName != "" {
		role, err = r.roles.FindByName(ctx, r.cfg.DefaultRoleName)
		if err != nil {
			return nil, err
		}
	}
	if role == nil {
		return nil, fmt.Errorf("%w: no default role configured", shared.ErrConfiguration)
	}
	return role, nil
}

func errorsIsAny(err error, targets ...error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

var _ Resolver = (*LocalResolver)(nil)
