// Package strategy implements the interchangeable authentication
// strategies: local identifier lookup, username/password credentials, and
// delegation to an external HTTP service. Each authentication is a strictly
// sequential identify, provision, ban-check, link pass over one connection.
package strategy

import (
	"context"

	"github.com/warden-auth/warden/internal/account"
)

// Connection is the per-connection session view a strategy operates on.
// *shared.Session satisfies it.
type Connection interface {
	SessionID() string
	LinkedID() string
	Link(linkedID string)
	Identifiers() []account.Identifier
	Identifier(typ string) (string, bool)
}

// Credentials carries optional username/password input. Strategies that do
// not use credentials ignore it.
type Credentials struct {
	Username string
	Password string
}

// Result reports a successful authentication.
type Result struct {
	Account      *account.Account
	LinkedID     string
	IsNewAccount bool
}

// Strategy authenticates a connection and binds the resolved linked
// identifier to it.
type Strategy interface {
	Authenticate(ctx context.Context, conn Connection, creds Credentials) (*Result, error)
}

// Registrar is implemented by strategies supporting explicit registration
// as an operation distinct from authentication.
type Registrar interface {
	Register(ctx context.Context, conn Connection, creds Credentials) (*Result, error)
}
