package strategy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/warden-auth/warden/internal/platform/apiclient"
	"github.com/warden-auth/warden/internal/shared"
)

func newAPIFixture(t *testing.T, cfg APIConfig, handler http.HandlerFunc) *API {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewAPI(apiclient.New(srv.URL, time.Second, nil), cfg, nil)
}

func TestAPIAuthenticateEnvelope(t *testing.T) {
	var gotPath string
	var got envelope
	strat := newAPIFixture(t, APIConfig{AuthPath: "/v1/auth"}, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]any{"success": true, "accountId": "remote-77", "isNewAccount": true})
	})

	conn := licenseConn("abc")
	res, err := strat.Authenticate(context.Background(), conn, Credentials{Username: "john", Password: "pw"})
	require.NoError(t, err)
	require.Equal(t, "/v1/auth", gotPath)
	require.Equal(t, "authenticate", got.Action)
	require.Equal(t, "abc", got.PrimaryIdentifier)
	require.Len(t, got.Identifiers, 2)
	require.NotNil(t, got.Credentials)
	require.Equal(t, "john", got.Credentials.Username)

	require.Equal(t, "remote-77", res.LinkedID)
	require.True(t, res.IsNewAccount)
	require.Equal(t, "remote-77", conn.LinkedID())
}

func TestAPIAuthenticateOmitsEmptyCredentials(t *testing.T) {
	var got envelope
	strat := newAPIFixture(t, APIConfig{}, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]any{"success": true, "accountId": "remote-77"})
	})

	_, err := strat.Authenticate(context.Background(), licenseConn("abc"), Credentials{})
	require.NoError(t, err)
	require.Nil(t, got.Credentials)
}

func TestAPIFailureResponse(t *testing.T) {
	strat := newAPIFixture(t, APIConfig{}, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "license revoked"})
	})

	conn := licenseConn("abc")
	_, err := strat.Authenticate(context.Background(), conn, Credentials{})
	require.ErrorIs(t, err, shared.ErrUpstreamFailure)
	require.Empty(t, conn.LinkedID())

	var upstream *shared.UpstreamError
	require.ErrorAs(t, err, &upstream)
	require.Equal(t, "license revoked", upstream.Message)
}

func TestAPISuccessWithoutAccountID(t *testing.T) {
	strat := newAPIFixture(t, APIConfig{}, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": true})
	})

	_, err := strat.Authenticate(context.Background(), licenseConn("abc"), Credentials{})
	require.ErrorIs(t, err, shared.ErrUpstreamFailure)
}

func TestAPITransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()
	strat := NewAPI(apiclient.New(srv.URL, time.Second, nil), APIConfig{}, nil)

	_, err := strat.Authenticate(context.Background(), licenseConn("abc"), Credentials{})
	require.ErrorIs(t, err, shared.ErrUpstreamFailure)
}

func TestAPIRegisterAndSessionPaths(t *testing.T) {
	actions := map[string]string{}
	strat := newAPIFixture(t, APIConfig{}, func(w http.ResponseWriter, r *http.Request) {
		var got envelope
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		actions[r.URL.Path] = got.Action
		json.NewEncoder(w).Encode(map[string]any{"success": true, "accountId": "remote-77"})
	})
	ctx := context.Background()

	_, err := strat.Register(ctx, licenseConn("abc"), Credentials{Username: "john", Password: "pw"})
	require.NoError(t, err)
	_, err = strat.Session(ctx, licenseConn("abc"))
	require.NoError(t, err)
	require.NoError(t, strat.Logout(ctx, licenseConn("abc")))

	require.Equal(t, "register", actions["/register"])
	require.Equal(t, "session", actions["/session"])
	require.Equal(t, "logout", actions["/logout"])
}

func TestAPILogoutFailure(t *testing.T) {
	strat := newAPIFixture(t, APIConfig{}, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "no session"})
	})

	err := strat.Logout(context.Background(), licenseConn("abc"))
	require.ErrorIs(t, err, shared.ErrUpstreamFailure)
}
