package roles

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/warden-auth/warden/internal/account"
	"github.com/warden-auth/warden/internal/authz"
	"github.com/warden-auth/warden/internal/shared"
)

type adminResolver struct {
	perms []string
}

func (r adminResolver) GetPrincipal(ctx context.Context, sess authz.Session) (*authz.Principal, error) {
	return &authz.Principal{ID: sess.LinkedID(), Permissions: r.perms}, nil
}

func (r adminResolver) RefreshPrincipal(ctx context.Context, sess authz.Session) (*authz.Principal, error) {
	return r.GetPrincipal(ctx, sess)
}

func (r adminResolver) GetPrincipalByLinkedID(ctx context.Context, linkedID string) (*authz.Principal, error) {
	return &authz.Principal{ID: linkedID, Permissions: r.perms}, nil
}

type rolesFixture struct {
	router chi.Router
}

func newRolesFixture(t *testing.T, perms ...string) *rolesFixture {
	t.Helper()
	store := account.NewMemoryRoleStore()
	logger := slog.New(slog.DiscardHandler)
	handler := NewHandler(logger, store, authz.Middleware{Resolver: adminResolver{perms: perms}, Logger: logger})

	router := chi.NewRouter()
	router.Route("/admin/roles", handler.MountRoutes)
	return &rolesFixture{router: router}
}

func (f *rolesFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	r := httptest.NewRequest(method, path, reader)
	sess := shared.NewSessionManager(nil, "warden_session", time.Hour, false).NewSession()
	sess.Link("admin-1")
	r = r.WithContext(shared.ContextWithSession(r.Context(), sess))

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, r)
	return rec
}

func TestRoleCRUD(t *testing.T) {
	f := newRolesFixture(t, "roles.manage")

	rec := f.do(t, http.MethodPost, "/admin/roles/", map[string]any{
		"name": "moderator", "displayName": "Moderator", "rank": 5,
		"permissions": []string{"chat.use", "chat.moderate"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created roleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotZero(t, created.ID)

	rec = f.do(t, http.MethodGet, "/admin/roles/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []roleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)

	path := "/admin/roles/" + strconv.FormatInt(created.ID, 10)
	rec = f.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPut, path, map[string]any{
		"name": "moderator", "rank": 6, "permissions": []string{"chat.use"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var updated roleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	require.Equal(t, 6, updated.Rank)
	require.Equal(t, "moderator", updated.DisplayName)

	rec = f.do(t, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRoleReadOnlyPermission(t *testing.T) {
	f := newRolesFixture(t, "roles.view")

	rec := f.do(t, http.MethodGet, "/admin/roles/", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/admin/roles/", map[string]any{"name": "sneaky"})
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRoleNoPermission(t *testing.T) {
	f := newRolesFixture(t)

	rec := f.do(t, http.MethodGet, "/admin/roles/", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRoleValidation(t *testing.T) {
	f := newRolesFixture(t, "roles.manage")

	rec := f.do(t, http.MethodPost, "/admin/roles/", map[string]any{"name": "  "})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/admin/roles/abc", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodDelete, "/admin/roles/999", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
