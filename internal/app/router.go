package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/warden-auth/warden/internal/roles"
	"github.com/warden-auth/warden/internal/shared"
	"github.com/warden-auth/warden/internal/strategy"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	AuthHandler    *strategy.Handler
	RolesHandler   *roles.Handler
}

// NewRouter constructs the chi.Router with Warden defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Logger)

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Credential guessing is the hot abuse path; throttle it per client IP.
	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(20, time.Minute))
		params.AuthHandler.Routes(r)
	})

	if params.RolesHandler != nil {
		r.Route("/admin/roles", params.RolesHandler.MountRoutes)
	}

	return r
}
