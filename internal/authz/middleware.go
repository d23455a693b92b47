package authz

import (
	"net/http"
	"strings"

	"log/slog"

	"github.com/warden-auth/warden/internal/platform/httpx"
	"github.com/warden-auth/warden/internal/shared"
)

// Middleware wires permission gates for HTTP handlers.
type Middleware struct {
	Resolver Resolver
	Logger   *slog.Logger
}

// RequireAny ensures the current principal holds at least one of the
// required permissions.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	required := normalizePermissions(perms)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(required) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			principal, ok := m.currentPrincipal(w, r)
			if !ok {
				return
			}
			for _, perm := range required {
				if principal.Has(perm) {
					next.ServeHTTP(w, r)
					return
				}
			}
			httpx.Problem(w, httpx.ProblemDetail{Status: http.StatusForbidden, Title: "Forbidden", Reason: "missing_permission"})
		})
	}
}

// RequireAll ensures the current principal holds every required permission.
func (m Middleware) RequireAll(perms ...string) func(http.Handler) http.Handler {
	required := normalizePermissions(perms)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(required) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			principal, ok := m.currentPrincipal(w, r)
			if !ok {
				return
			}
			for _, perm := range required {
				if !principal.Has(perm) {
					httpx.Problem(w, httpx.ProblemDetail{Status: http.StatusForbidden, Title: "Forbidden", Reason: "missing_permission"})
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) currentPrincipal(w http.ResponseWriter, r *http.Request) (*Principal, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.LinkedID() == "" {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return nil, false
	}
	principal, err := m.Resolver.GetPrincipal(r.Context(), sess)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Error("resolve principal", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return nil, false
	}
	return principal, true
}

func normalizePermissions(perms []string) []string {
	seen := make(map[string]struct{}, len(perms))
	normalized := make([]string, 0, len(perms))
	for _, p := range perms {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		normalized = append(normalized, p)
	}
	return normalized
}
