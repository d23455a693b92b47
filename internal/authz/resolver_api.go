package authz

import (
	"context"
	"log/slog"
	"time"

	"github.com/warden-auth/warden/internal/platform/apiclient"
	"github.com/warden-auth/warden/internal/shared"
)

// APIResolverConfig tunes the API-backed resolver.
type APIResolverConfig struct {
	PrincipalPath string
	CacheTTL      time.Duration
	// AllowFallback downgrades upstream failures to an empty-permission
	// principal instead of an error. It must be chosen explicitly; the
	// strict and degraded behaviors are never silently swapped.
	AllowFallback bool
}

// APIResolver resolves principals from the external principal endpoint,
// with the same cache-first contract as the local resolver.
type APIResolver struct {
	client *apiclient.Client
	cache  PrincipalCache
	cfg    APIResolverConfig
	logger *slog.Logger
}

// NewAPIResolver constructs an APIResolver.
func NewAPIResolver(client *apiclient.Client, cache PrincipalCache, cfg APIResolverConfig, logger *slog.Logger) *APIResolver {
	if cfg.PrincipalPath == "" {
		cfg.PrincipalPath = "/principal"
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	return &APIResolver{client: client, cache: cache, cfg: cfg, logger: logger}
}

type principalRequest struct {
	LinkedID  string `json:"linkedId"`
	AccountID string `json:"accountId,omitempty"`
}

type principalPayload struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Rank        int               `json:"rank"`
	Permissions []string          `json:"permissions"`
	Meta        map[string]string `json:"meta"`
}

// principalResponse accepts both the nested {"principal": {...}} and the
// flattened response shape.
type principalResponse struct {
	principalPayload
	Principal *principalPayload `json:"principal"`
}

func (r *APIResolver) GetPrincipal(ctx context.Context, sess Session) (*Principal, error) {
	linkedID := sess.LinkedID()
	if linkedID == "" {
		return nil, shared.ErrUnauthorized
	}
	if p, ok := r.cache.Get(ctx, linkedID); ok {
		return p, nil
	}
	p, err := r.fetch(ctx, linkedID)
	if err != nil {
		if r.cfg.AllowFallback {
			if r.logger != nil {
				r.logger.Warn("principal endpoint failed, serving fallback principal",
					slog.String("linked_id", linkedID), slog.Any("error", err))
			}
			return &Principal{ID: linkedID, Permissions: []string{}}, nil
		}
		return nil, err
	}
	r.cache.Set(ctx, linkedID, p, r.cfg.CacheTTL)
	return p, nil
}

func (r *APIResolver) RefreshPrincipal(ctx context.Context, sess Session) (*Principal, error) {
	linkedID := sess.LinkedID()
	if linkedID == "" {
		return nil, shared.ErrUnauthorized
	}
	r.cache.Delete(ctx, linkedID)
	return r.GetPrincipal(ctx, sess)
}

// GetPrincipalByLinkedID returns (nil, nil) when the endpoint cannot
// produce a valid principal; fallback mode does not apply to offline
// lookups.
func (r *APIResolver) GetPrincipalByLinkedID(ctx context.Context, linkedID string) (*Principal, error) {
	if linkedID == "" {
		return nil, nil
	}
	if p, ok := r.cache.Get(ctx, linkedID); ok {
		return p, nil
	}
	p, err := r.fetch(ctx, linkedID)
	if err != nil {
		return nil, nil
	}
	r.cache.Set(ctx, linkedID, p, r.cfg.CacheTTL)
	return p, nil
}

func (r *APIResolver) fetch(ctx context.Context, linkedID string) (*Principal, error) {
	var resp principalResponse
	if err := r.client.PostJSON(ctx, r.cfg.PrincipalPath, principalRequest{LinkedID: linkedID}, &resp); err != nil {
		return nil, err
	}
	payload := resp.principalPayload
	if resp.Principal != nil {
		payload = *resp.Principal
	}
	// A response without an id or a permission array is invalid.
	if payload.ID == "" || payload.Permissions == nil {
		return nil, &shared.UpstreamError{Message: "invalid principal response"}
	}
	return &Principal{
		ID:          payload.ID,
		Name:        payload.Name,
		Rank:        payload.Rank,
		Permissions: payload.Permissions,
		Meta:        payload.Meta,
	}, nil
}

var _ Resolver = (*APIResolver)(nil)
