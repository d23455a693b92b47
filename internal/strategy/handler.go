package strategy

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/warden-auth/warden/internal/account"
	"github.com/warden-auth/warden/internal/authz"
	"github.com/warden-auth/warden/internal/platform/httpx"
	"github.com/warden-auth/warden/internal/shared"
)

// Handler exposes the authentication surface over HTTP. It reads the
// connection session from the request context; the app middleware loads and
// commits it.
type Handler struct {
	strategy  Strategy
	registrar Registrar
	resolver  authz.Resolver
	validate  *validator.Validate
	logger    *slog.Logger
}

// NewHandler constructs the handler. registrar may be nil when the active
// strategy has no explicit registration operation.
func NewHandler(strategy Strategy, registrar Registrar, resolver authz.Resolver, logger *slog.Logger) *Handler {
	return &Handler{
		strategy:  strategy,
		registrar: registrar,
		resolver:  resolver,
		validate:  validator.New(),
		logger:    logger,
	}
}

// Routes registers the authentication endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/auth/login", h.handleLogin)
	r.Post("/auth/register", h.handleRegister)
	r.Post("/auth/logout", h.handleLogout)
	r.Get("/auth/session", h.handleSession)
	r.Get("/principal", h.handlePrincipal)
	r.Post("/principal/refresh", h.handleRefresh)
}

type loginRequest struct {
	Username    string               `json:"username"`
	Password    string               `json:"password"`
	Identifiers []account.Identifier `json:"identifiers"`
}

type registerRequest struct {
	Username    string               `json:"username" validate:"required,min=3,max=64"`
	Password    string               `json:"password" validate:"required,min=8,max=128"`
	Identifiers []account.Identifier `json:"identifiers"`
}

type authResponse struct {
	Success      bool             `json:"success"`
	AccountID    string           `json:"accountId"`
	IsNewAccount bool             `json:"isNewAccount"`
	Principal    *authz.Principal `json:"principal,omitempty"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, httpx.ProblemDetail{Status: http.StatusBadRequest, Title: "Invalid Request", Detail: "malformed JSON body"})
		return
	}
	if len(req.Identifiers) > 0 {
		sess.SetIdentifiers(req.Identifiers)
	}

	result, err := h.strategy.Authenticate(r.Context(), sess, Credentials{Username: req.Username, Password: req.Password})
	if err != nil {
		if h.logger != nil && !expectedAuthFailure(err) {
			h.logger.Error("authenticate", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}

	principal, err := h.resolver.GetPrincipal(r.Context(), sess)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, authResponse{
		Success:      true,
		AccountID:    result.LinkedID,
		IsNewAccount: result.IsNewAccount,
		Principal:    principal,
	})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if h.registrar == nil {
		httpx.Problem(w, httpx.ProblemDetail{Status: http.StatusNotFound, Title: "Not Found", Detail: "registration is not available for the configured auth mode"})
		return
	}

	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, httpx.ProblemDetail{Status: http.StatusBadRequest, Title: "Invalid Request", Detail: "malformed JSON body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, httpx.ProblemDetail{Status: http.StatusBadRequest, Title: "Validation Failed", Detail: err.Error(), Reason: "invalid_credentials"})
		return
	}
	if len(req.Identifiers) > 0 {
		sess.SetIdentifiers(req.Identifiers)
	}

	result, err := h.registrar.Register(r.Context(), sess, Credentials{Username: req.Username, Password: req.Password})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusCreated, authResponse{
		Success:      true,
		AccountID:    result.LinkedID,
		IsNewAccount: true,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	if api, isAPI := h.strategy.(*API); isAPI && sess.LinkedID() != "" {
		if err := api.Logout(r.Context(), sess); err != nil && h.logger != nil {
			h.logger.Warn("api logout", slog.Any("error", err))
		}
	}

	sess.Destroy()
	httpx.JSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if sess.LinkedID() == "" {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"accountId": sess.LinkedID()})
}

func (h *Handler) handlePrincipal(w http.ResponseWriter, r *http.Request) {
	h.respondPrincipal(w, r, false)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	h.respondPrincipal(w, r, true)
}

func (h *Handler) respondPrincipal(w http.ResponseWriter, r *http.Request, refresh bool) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var principal *authz.Principal
	var err error
	if refresh {
		principal, err = h.resolver.RefreshPrincipal(r.Context(), sess)
	} else {
		principal, err = h.resolver.GetPrincipal(r.Context(), sess)
	}
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, principal)
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*shared.Session, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return nil, false
	}
	return sess, true
}

func expectedAuthFailure(err error) bool {
	return errors.Is(err, shared.ErrInvalidCredentials) ||
		errors.Is(err, shared.ErrAccountNotFound) ||
		errors.Is(err, shared.ErrAccountBanned) ||
		errors.Is(err, shared.ErrUnauthorized)
}
