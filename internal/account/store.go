package account

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrDuplicateIdentifier is returned by Create when another account
	// already owns one of the identifiers. Callers racing on provisioning
	// should retry the lookup instead of failing.
	ErrDuplicateIdentifier = errors.New("identifier already registered")
	// ErrDuplicateUsername is returned by Create when the username is taken.
	ErrDuplicateUsername = errors.New("username already registered")
)

// StoreError wraps an I/O or connectivity failure at the persistence
// boundary. Lookup misses are not errors; stores return (nil, nil).
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("store: %s: %v", e.Op, e.Err) }

func (e *StoreError) Unwrap() error { return e.Err }

// AccountStore defines persistence operations for accounts. Implementations
// return (nil, nil) when a lookup matches nothing and *StoreError on failure.
type AccountStore interface {
	FindByIdentifier(ctx context.Context, ident Identifier) (*Account, error)
	FindByID(ctx context.Context, id int64) (*Account, error)
	FindByLinkedID(ctx context.Context, linkedID string) (*Account, error)
	FindByUsername(ctx context.Context, username string) (*Account, error)
	FindBanned(ctx context.Context) ([]Account, error)
	FindByRole(ctx context.Context, roleID int64) ([]Account, error)
	Create(ctx context.Context, acct *Account) error
	Update(ctx context.Context, acct *Account) error
	SetBan(ctx context.Context, id int64, banned bool, reason string, expiresAt *time.Time) error
	TouchLogin(ctx context.Context, id int64, at time.Time) error
}

// RoleStore defines persistence operations for roles.
type RoleStore interface {
	FindByID(ctx context.Context, id int64) (*Role, error)
	FindByName(ctx context.Context, name string) (*Role, error)
	FindByRank(ctx context.Context, rank int) (*Role, error)
	FindByPermission(ctx context.Context, permission string) ([]Role, error)
	FindAll(ctx context.Context) ([]Role, error)
	DefaultRole(ctx context.Context) (*Role, error)
	Create(ctx context.Context, role *Role) error
	Update(ctx context.Context, role *Role) error
	Delete(ctx context.Context, id int64) error
}
