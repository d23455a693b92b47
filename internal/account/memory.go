package account

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrRoleNotFound is returned by MemoryRoleStore mutations addressing a
// role that does not exist.
var ErrRoleNotFound = errors.New("role not found")

// MemoryAccountStore is an in-memory AccountStore. It enforces the same
// identifier and username uniqueness a SQL store enforces by constraint,
// so provisioning races behave identically across backends.
type MemoryAccountStore struct {
	mu       sync.Mutex
	accounts map[int64]*Account
	nextID   int64
}

// NewMemoryAccountStore constructs an empty in-memory account store.
func NewMemoryAccountStore() *MemoryAccountStore {
	return &MemoryAccountStore{accounts: make(map[int64]*Account)}
}

func (s *MemoryAccountStore) FindByIdentifier(ctx context.Context, ident Identifier) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acct := range s.accounts {
		if acct.HasIdentifier(ident) {
			return cloneAccount(acct), nil
		}
	}
	return nil, nil
}

func (s *MemoryAccountStore) FindByID(ctx context.Context, id int64) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acct, ok := s.accounts[id]; ok {
		return cloneAccount(acct), nil
	}
	return nil, nil
}

func (s *MemoryAccountStore) FindByLinkedID(ctx context.Context, linkedID string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acct := range s.accounts {
		if acct.LinkedID == linkedID {
			return cloneAccount(acct), nil
		}
	}
	return nil, nil
}

func (s *MemoryAccountStore) FindByUsername(ctx context.Context, username string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acct := range s.accounts {
		if acct.Username != "" && acct.Username == username {
			return cloneAccount(acct), nil
		}
	}
	return nil, nil
}

func (s *MemoryAccountStore) FindBanned(ctx context.Context) ([]Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var banned []Account
	for _, acct := range s.accounts {
		if acct.Banned {
			banned = append(banned, *cloneAccount(acct))
		}
	}
	return banned, nil
}

func (s *MemoryAccountStore) FindByRole(ctx context.Context, roleID int64) ([]Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []Account
	for _, acct := range s.accounts {
		if acct.RoleID != nil && *acct.RoleID == roleID {
			matched = append(matched, *cloneAccount(acct))
		}
	}
	return matched, nil
}

// Create stores a new account, assigning its ID. Duplicate identifiers or
// usernames fail with ErrDuplicateIdentifier / ErrDuplicateUsername.
func (s *MemoryAccountStore) Create(ctx context.Context, acct *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.accounts {
		for _, ident := range acct.Identifiers {
			if existing.HasIdentifier(ident) {
				return ErrDuplicateIdentifier
			}
		}
		if acct.Username != "" && existing.Username == acct.Username {
			return ErrDuplicateUsername
		}
	}
	s.nextID++
	acct.ID = s.nextID
	now := time.Now().UTC()
	acct.CreatedAt = now
	acct.UpdatedAt = now
	s.accounts[acct.ID] = cloneAccount(acct)
	return nil
}

func (s *MemoryAccountStore) Update(ctx context.Context, acct *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[acct.ID]; !ok {
		return &StoreError{Op: "update", Err: errors.New("no such account")}
	}
	acct.UpdatedAt = time.Now().UTC()
	s.accounts[acct.ID] = cloneAccount(acct)
	return nil
}

func (s *MemoryAccountStore) SetBan(ctx context.Context, id int64, banned bool, reason string, expiresAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[id]
	if !ok {
		return &StoreError{Op: "set ban", Err: errors.New("no such account")}
	}
	acct.Banned = banned
	acct.BanReason = reason
	acct.BanExpiresAt = cloneTime(expiresAt)
	if !banned {
		acct.BanReason = ""
		acct.BanExpiresAt = nil
	}
	acct.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryAccountStore) TouchLogin(ctx context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[id]
	if !ok {
		return &StoreError{Op: "touch login", Err: errors.New("no such account")}
	}
	at = at.UTC()
	acct.LastLoginAt = &at
	return nil
}

// MemoryRoleStore is an in-memory RoleStore.
type MemoryRoleStore struct {
	mu     sync.Mutex
	roles  map[int64]*Role
	nextID int64
}

// NewMemoryRoleStore constructs an empty in-memory role store.
func NewMemoryRoleStore() *MemoryRoleStore {
	return &MemoryRoleStore{roles: make(map[int64]*Role)}
}

func (s *MemoryRoleStore) FindByID(ctx context.Context, id int64) (*Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if role, ok := s.roles[id]; ok {
		return cloneRole(role), nil
	}
	return nil, nil
}

func (s *MemoryRoleStore) FindByName(ctx context.Context, name string) (*Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, role := range s.roles {
		if role.Name == name {
			return cloneRole(role), nil
		}
	}
	return nil, nil
}

func (s *MemoryRoleStore) FindByRank(ctx context.Context, rank int) (*Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, role := range s.roles {
		if role.Rank == rank {
			return cloneRole(role), nil
		}
	}
	return nil, nil
}

func (s *MemoryRoleStore) FindByPermission(ctx context.Context, permission string) ([]Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []Role
	for _, role := range s.roles {
		for _, p := range role.Permissions {
			if p == permission {
				matched = append(matched, *cloneRole(role))
				break
			}
		}
	}
	return matched, nil
}

func (s *MemoryRoleStore) FindAll(ctx context.Context) ([]Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	roles := make([]Role, 0, len(s.roles))
	for _, role := range s.roles {
		roles = append(roles, *cloneRole(role))
	}
	return roles, nil
}

func (s *MemoryRoleStore) DefaultRole(ctx context.Context) (*Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, role := range s.roles {
		if role.IsDefault {
			return cloneRole(role), nil
		}
	}
	return nil, nil
}

// Create stores a new role. A role created as default clears the flag on
// any previous default, keeping at most one default at a time.
func (s *MemoryRoleStore) Create(ctx context.Context, role *Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if role.IsDefault {
		s.clearDefaultLocked()
	}
	s.nextID++
	role.ID = s.nextID
	now := time.Now().UTC()
	role.CreatedAt = now
	role.UpdatedAt = now
	s.roles[role.ID] = cloneRole(role)
	return nil
}

func (s *MemoryRoleStore) Update(ctx context.Context, role *Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[role.ID]; !ok {
		return ErrRoleNotFound
	}
	if role.IsDefault {
		s.clearDefaultLocked()
	}
	role.UpdatedAt = time.Now().UTC()
	s.roles[role.ID] = cloneRole(role)
	return nil
}

func (s *MemoryRoleStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[id]; !ok {
		return ErrRoleNotFound
	}
	delete(s.roles, id)
	return nil
}

func (s *MemoryRoleStore) clearDefaultLocked() {
	for _, role := range s.roles {
		role.IsDefault = false
	}
}

func cloneAccount(acct *Account) *Account {
	clone := *acct
	clone.Identifiers = append([]Identifier(nil), acct.Identifiers...)
	clone.Overrides = append([]Override(nil), acct.Overrides...)
	clone.RoleID = cloneInt64(acct.RoleID)
	clone.BanExpiresAt = cloneTime(acct.BanExpiresAt)
	clone.LastLoginAt = cloneTime(acct.LastLoginAt)
	return &clone
}

func cloneRole(role *Role) *Role {
	clone := *role
	clone.Permissions = append([]string(nil), role.Permissions...)
	return &clone
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

var (
	_ AccountStore = (*MemoryAccountStore)(nil)
	_ RoleStore    = (*MemoryRoleStore)(nil)
)
