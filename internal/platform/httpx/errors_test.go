package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/warden-auth/warden/internal/account"
	"github.com/warden-auth/warden/internal/shared"
)

func respond(t *testing.T, err error) (int, ProblemDetail) {
	t.Helper()
	rec := httptest.NewRecorder()
	RespondError(rec, err)

	var detail ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	return rec.Code, detail
}

func TestRespondErrorTaxonomy(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		reason string
	}{
		{"unauthorized", shared.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{"invalid credentials", shared.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
		{"account not found", shared.ErrAccountNotFound, http.StatusNotFound, "account_not_found"},
		{"username taken", shared.ErrUsernameTaken, http.StatusConflict, "username_taken"},
		{"upstream failure", &shared.UpstreamError{Message: "boom"}, http.StatusBadGateway, "upstream_failure"},
		{"role not found", account.ErrRoleNotFound, http.StatusNotFound, "role_not_found"},
		{"store failure", &account.StoreError{Op: "create", Err: errors.New("conn refused")}, http.StatusInternalServerError, "store_failure"},
		{"wrapped sentinel", fmt.Errorf("login: %w", shared.ErrUnauthorized), http.StatusUnauthorized, "unauthorized"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, detail := respond(t, tc.err)
			require.Equal(t, tc.status, status)
			require.Equal(t, tc.reason, detail.Reason)
		})
	}
}

func TestRespondErrorBanDetails(t *testing.T) {
	expires := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	status, detail := respond(t, &shared.BanError{Reason: "cheating", ExpiresAt: &expires})
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "account_banned", detail.Reason)
	require.Equal(t, "cheating", detail.BanReason)
	require.Equal(t, "2026-09-01T12:00:00Z", detail.BanExpires)

	status, detail = respond(t, &shared.BanError{Reason: "forever"})
	require.Equal(t, http.StatusForbidden, status)
	require.Empty(t, detail.BanExpires)
}

func TestRespondErrorHidesInternals(t *testing.T) {
	_, detail := respond(t, &account.StoreError{Op: "find", Err: errors.New("dsn=postgres://secret")})
	require.NotContains(t, detail.Detail, "secret")

	status, detail := respond(t, errors.New("unexpected"))
	require.Equal(t, http.StatusInternalServerError, status)
	require.Equal(t, "Internal Error", detail.Title)
}
