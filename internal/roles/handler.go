// Package roles exposes the administrative role management surface over
// the RoleStore contract.
package roles

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/warden-auth/warden/internal/account"
	"github.com/warden-auth/warden/internal/authz"
	"github.com/warden-auth/warden/internal/platform/httpx"
)

// Handler manages role administration endpoints.
type Handler struct {
	logger *slog.Logger
	store  account.RoleStore
	gate   authz.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, store account.RoleStore, gate authz.Middleware) *Handler {
	return &Handler{logger: logger, store: store, gate: gate}
}

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.gate.RequireAny("roles.view", "roles.manage"))
		r.Get("/", h.listRoles)
		r.Get("/{id}", h.getRole)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.gate.RequireAll("roles.manage"))
		r.Post("/", h.createRole)
		r.Put("/{id}", h.updateRole)
		r.Delete("/{id}", h.deleteRole)
	})
}

type roleRequest struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"displayName"`
	Rank        int      `json:"rank"`
	Permissions []string `json:"permissions"`
	IsDefault   bool     `json:"isDefault"`
}

type roleResponse struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	DisplayName string   `json:"displayName"`
	Rank        int      `json:"rank"`
	Permissions []string `json:"permissions"`
	IsDefault   bool     `json:"isDefault"`
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.store.FindAll(r.Context())
	if err != nil {
		h.logger.Error("list roles", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]roleResponse, len(roles))
	for i, role := range roles {
		out[i] = toResponse(&role)
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	role, err := h.store.FindByID(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if role == nil {
		httpx.RespondError(w, account.ErrRoleNotFound)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(role))
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRole(w, r)
	if !ok {
		return
	}
	role := &account.Role{
		Name:        req.Name,
		DisplayName: req.DisplayName,
		Rank:        req.Rank,
		Permissions: req.Permissions,
		IsDefault:   req.IsDefault,
	}
	if err := h.store.Create(r.Context(), role); err != nil {
		h.logger.Error("create role", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(role))
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	req, ok := decodeRole(w, r)
	if !ok {
		return
	}
	role := &account.Role{
		ID:          id,
		Name:        req.Name,
		DisplayName: req.DisplayName,
		Rank:        req.Rank,
		Permissions: req.Permissions,
		IsDefault:   req.IsDefault,
	}
	if err := h.store.Update(r.Context(), role); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(role))
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.store.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeRole(w http.ResponseWriter, r *http.Request) (roleRequest, bool) {
	var req roleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, httpx.ProblemDetail{Status: http.StatusBadRequest, Title: "Invalid Request", Detail: "malformed JSON body"})
		return req, false
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		httpx.Problem(w, httpx.ProblemDetail{Status: http.StatusBadRequest, Title: "Validation Failed", Detail: "role name required"})
		return req, false
	}
	if req.DisplayName == "" {
		req.DisplayName = req.Name
	}
	return req, true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, httpx.ProblemDetail{Status: http.StatusBadRequest, Title: "Invalid Request", Detail: "invalid role id"})
		return 0, false
	}
	return id, true
}

func toResponse(role *account.Role) roleResponse {
	return roleResponse{
		ID:          role.ID,
		Name:        role.Name,
		DisplayName: role.DisplayName,
		Rank:        role.Rank,
		Permissions: role.Permissions,
		IsDefault:   role.IsDefault,
	}
}
