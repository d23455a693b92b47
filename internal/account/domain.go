package account

import "time"

// Account represents a durable identity record.
type Account struct {
	ID           int64
	LinkedID     string
	Identifiers  []Identifier
	Username     string
	PasswordHash string
	RoleID       *int64
	Overrides    []Override
	Banned       bool
	BanReason    string
	BanExpiresAt *time.Time
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identifier is a connection identifier used for account lookup,
// e.g. {Type: "license", Value: "abc"}.
type Identifier struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Identifier returns the value of the identifier with the given type.
func (a *Account) Identifier(typ string) (string, bool) {
	for _, id := range a.Identifiers {
		if id.Type == typ {
			return id.Value, true
		}
	}
	return "", false
}

// HasIdentifier reports whether the account already carries the identifier.
func (a *Account) HasIdentifier(ident Identifier) bool {
	for _, id := range a.Identifiers {
		if id == ident {
			return true
		}
	}
	return false
}

// Role represents a named authorization tier.
type Role struct {
	ID          int64
	Name        string
	DisplayName string
	Rank        int
	Permissions []string
	IsDefault   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
