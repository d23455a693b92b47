package strategy

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/warden-auth/warden/internal/account"
	"github.com/warden-auth/warden/internal/shared"
)

// fakeConn is an in-memory Connection for strategy tests.
type fakeConn struct {
	mu     sync.Mutex
	id     string
	linked string
	idents []account.Identifier
}

func (c *fakeConn) SessionID() string { return c.id }

func (c *fakeConn) LinkedID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.linked
}

func (c *fakeConn) Link(linkedID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.linked = linkedID
}

func (c *fakeConn) Identifiers() []account.Identifier {
	return append([]account.Identifier(nil), c.idents...)
}

func (c *fakeConn) Identifier(typ string) (string, bool) {
	for _, ident := range c.idents {
		if ident.Type == typ {
			return ident.Value, true
		}
	}
	return "", false
}

func newStores(t *testing.T) (*account.MemoryAccountStore, *account.MemoryRoleStore, *account.Role) {
	t.Helper()
	accounts := account.NewMemoryAccountStore()
	roles := account.NewMemoryRoleStore()
	role := &account.Role{Name: "user", DisplayName: "User", Rank: 0, Permissions: []string{"chat.use"}, IsDefault: true}
	require.NoError(t, roles.Create(context.Background(), role))
	return accounts, roles, role
}

func licenseConn(value string) *fakeConn {
	return &fakeConn{
		id:     "conn-" + value,
		idents: []account.Identifier{{Type: "license", Value: value}, {Type: "ip", Value: "10.0.0.1"}},
	}
}

func TestLocalAutoCreatesAccount(t *testing.T) {
	accounts, roles, role := newStores(t)
	strat := NewLocal(accounts, roles, LocalConfig{PrimaryIdentifier: "license", AutoCreate: true}, nil)
	ctx := context.Background()

	conn := licenseConn("abc")
	res, err := strat.Authenticate(ctx, conn, Credentials{})
	require.NoError(t, err)
	require.True(t, res.IsNewAccount)
	require.NotEmpty(t, res.LinkedID)
	require.Equal(t, res.LinkedID, conn.LinkedID())
	require.Equal(t, &role.ID, res.Account.RoleID)
	require.True(t, res.Account.HasIdentifier(account.Identifier{Type: "license", Value: "abc"}))
	require.True(t, res.Account.HasIdentifier(account.Identifier{Type: "ip", Value: "10.0.0.1"}))
	require.NotNil(t, res.Account.LastLoginAt)

	// Same identifier on a later connection resolves to the same account.
	again, err := strat.Authenticate(ctx, licenseConn("abc"), Credentials{})
	require.NoError(t, err)
	require.False(t, again.IsNewAccount)
	require.Equal(t, res.LinkedID, again.LinkedID)
}

func TestLocalMissingPrimaryIdentifier(t *testing.T) {
	accounts, roles, _ := newStores(t)
	strat := NewLocal(accounts, roles, LocalConfig{PrimaryIdentifier: "license", AutoCreate: true}, nil)

	conn := &fakeConn{id: "conn-1", idents: []account.Identifier{{Type: "ip", Value: "10.0.0.1"}}}
	_, err := strat.Authenticate(context.Background(), conn, Credentials{})
	require.ErrorIs(t, err, shared.ErrUnauthorized)
	require.Empty(t, conn.LinkedID())
}

func TestLocalAutoCreateDisabled(t *testing.T) {
	accounts, roles, _ := newStores(t)
	strat := NewLocal(accounts, roles, LocalConfig{PrimaryIdentifier: "license"}, nil)

	_, err := strat.Authenticate(context.Background(), licenseConn("abc"), Credentials{})
	require.ErrorIs(t, err, shared.ErrAccountNotFound)
}

func TestLocalActiveBanBlocksLogin(t *testing.T) {
	accounts, roles, _ := newStores(t)
	strat := NewLocal(accounts, roles, LocalConfig{PrimaryIdentifier: "license", AutoCreate: true}, nil)
	ctx := context.Background()

	res, err := strat.Authenticate(ctx, licenseConn("abc"), Credentials{})
	require.NoError(t, err)

	expires := time.Now().Add(time.Hour)
	require.NoError(t, accounts.SetBan(ctx, res.Account.ID, true, "cheating", &expires))

	conn := licenseConn("abc")
	_, err = strat.Authenticate(ctx, conn, Credentials{})
	require.ErrorIs(t, err, shared.ErrAccountBanned)
	require.Empty(t, conn.LinkedID())

	var banErr *shared.BanError
	require.ErrorAs(t, err, &banErr)
	require.Equal(t, "cheating", banErr.Reason)
}

func TestLocalExpiredBanLifted(t *testing.T) {
	accounts, roles, _ := newStores(t)
	strat := NewLocal(accounts, roles, LocalConfig{PrimaryIdentifier: "license", AutoCreate: true}, nil)
	ctx := context.Background()

	res, err := strat.Authenticate(ctx, licenseConn("abc"), Credentials{})
	require.NoError(t, err)

	expired := time.Now().Add(-time.Minute)
	require.NoError(t, accounts.SetBan(ctx, res.Account.ID, true, "old", &expired))

	again, err := strat.Authenticate(ctx, licenseConn("abc"), Credentials{})
	require.NoError(t, err)
	require.False(t, again.Account.Banned)

	stored, err := accounts.FindByID(ctx, res.Account.ID)
	require.NoError(t, err)
	require.False(t, stored.Banned)
	require.Empty(t, stored.BanReason)
}

func TestLocalPermanentBan(t *testing.T) {
	accounts, roles, _ := newStores(t)
	strat := NewLocal(accounts, roles, LocalConfig{PrimaryIdentifier: "license", AutoCreate: true}, nil)
	ctx := context.Background()

	res, err := strat.Authenticate(ctx, licenseConn("abc"), Credentials{})
	require.NoError(t, err)
	require.NoError(t, accounts.SetBan(ctx, res.Account.ID, true, "forever", nil))

	_, err = strat.Authenticate(ctx, licenseConn("abc"), Credentials{})
	require.ErrorIs(t, err, shared.ErrAccountBanned)
}

func TestLocalProvisionWithoutRoles(t *testing.T) {
	accounts := account.NewMemoryAccountStore()
	roles := account.NewMemoryRoleStore()
	strat := NewLocal(accounts, roles, LocalConfig{PrimaryIdentifier: "license", AutoCreate: true}, nil)

	res, err := strat.Authenticate(context.Background(), licenseConn("abc"), Credentials{})
	require.NoError(t, err)
	require.Nil(t, res.Account.RoleID)
}

func TestLocalConcurrentProvisioningSingleAccount(t *testing.T) {
	accounts, roles, _ := newStores(t)
	strat := NewLocal(accounts, roles, LocalConfig{PrimaryIdentifier: "license", AutoCreate: true}, nil)
	ctx := context.Background()

	const connections = 8
	results := make([]*Result, connections)
	errs := make([]error, connections)

	var wg sync.WaitGroup
	for i := range connections {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = strat.Authenticate(ctx, licenseConn("abc"), Credentials{})
		}()
	}
	wg.Wait()

	newCount := 0
	linked := ""
	for i := range connections {
		require.NoError(t, errs[i])
		if results[i].IsNewAccount {
			newCount++
		}
		if linked == "" {
			linked = results[i].LinkedID
		}
		require.Equal(t, linked, results[i].LinkedID)
	}
	require.Equal(t, 1, newCount)

	all, err := accounts.FindByRole(ctx, *results[0].Account.RoleID)
	require.NoError(t, err)
	require.Len(t, all, 1)
}
