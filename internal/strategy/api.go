package strategy

import (
	"context"
	"log/slog"

	"github.com/warden-auth/warden/internal/account"
	"github.com/warden-auth/warden/internal/platform/apiclient"
	"github.com/warden-auth/warden/internal/shared"
)

// APIConfig tunes the external-service strategy.
type APIConfig struct {
	PrimaryIdentifier string
	AuthPath          string
	RegisterPath      string
	SessionPath       string
	LogoutPath        string
}

// API delegates identification and provisioning to an external service
// over HTTP. Network failures and non-success responses map to failure;
// retries are the caller's responsibility.
type API struct {
	client *apiclient.Client
	cfg    APIConfig
	logger *slog.Logger
}

// NewAPI constructs the API strategy.
func NewAPI(client *apiclient.Client, cfg APIConfig, logger *slog.Logger) *API {
	if cfg.PrimaryIdentifier == "" {
		cfg.PrimaryIdentifier = "license"
	}
	if cfg.AuthPath == "" {
		cfg.AuthPath = "/auth"
	}
	if cfg.RegisterPath == "" {
		cfg.RegisterPath = "/register"
	}
	if cfg.SessionPath == "" {
		cfg.SessionPath = "/session"
	}
	if cfg.LogoutPath == "" {
		cfg.LogoutPath = "/logout"
	}
	return &API{client: client, cfg: cfg, logger: logger}
}

type envelope struct {
	Action            string               `json:"action"`
	AccountID         string               `json:"accountId,omitempty"`
	PrimaryIdentifier string               `json:"primaryIdentifier,omitempty"`
	Identifiers       []account.Identifier `json:"identifiers"`
	Credentials       *envelopeCredentials `json:"credentials,omitempty"`
}

type envelopeCredentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type envelopeResponse struct {
	Success      bool           `json:"success"`
	AccountID    string         `json:"accountId"`
	IsNewAccount bool           `json:"isNewAccount"`
	Account      *remoteAccount `json:"account"`
	Error        string         `json:"error"`
}

type remoteAccount struct {
	Username    string   `json:"username"`
	RoleName    string   `json:"roleName"`
	Permissions []string `json:"permissions"`
}

func (s *API) Authenticate(ctx context.Context, conn Connection, creds Credentials) (*Result, error) {
	return s.call(ctx, s.cfg.AuthPath, "authenticate", conn, creds)
}

// Register delegates explicit registration to the external service.
func (s *API) Register(ctx context.Context, conn Connection, creds Credentials) (*Result, error) {
	return s.call(ctx, s.cfg.RegisterPath, "register", conn, creds)
}

// Session validates an existing remote session for the connection.
func (s *API) Session(ctx context.Context, conn Connection) (*Result, error) {
	return s.call(ctx, s.cfg.SessionPath, "session", conn, Credentials{})
}

// Logout notifies the external service that the connection ended.
func (s *API) Logout(ctx context.Context, conn Connection) error {
	body := s.envelopeFor("logout", conn, Credentials{})
	var resp envelopeResponse
	if err := s.client.PostJSON(ctx, s.cfg.LogoutPath, body, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return &shared.UpstreamError{Message: resp.Error}
	}
	return nil
}

func (s *API) call(ctx context.Context, path, action string, conn Connection, creds Credentials) (*Result, error) {
	body := s.envelopeFor(action, conn, creds)
	var resp envelopeResponse
	if err := s.client.PostJSON(ctx, path, body, &resp); err != nil {
		return nil, err
	}
	if !resp.Success || resp.AccountID == "" {
		return nil, &shared.UpstreamError{Message: resp.Error}
	}

	conn.Link(resp.AccountID)
	if s.logger != nil {
		s.logger.Info("api authentication",
			slog.String("action", action), slog.String("linked_id", resp.AccountID),
			slog.Bool("new_account", resp.IsNewAccount))
	}
	return &Result{LinkedID: resp.AccountID, IsNewAccount: resp.IsNewAccount}, nil
}

func (s *API) envelopeFor(action string, conn Connection, creds Credentials) envelope {
	body := envelope{
		Action:      action,
		AccountID:   conn.LinkedID(),
		Identifiers: conn.Identifiers(),
	}
	if primary, ok := conn.Identifier(s.cfg.PrimaryIdentifier); ok {
		body.PrimaryIdentifier = primary
	}
	if creds.Username != "" || creds.Password != "" {
		body.Credentials = &envelopeCredentials{Username: creds.Username, Password: creds.Password}
	}
	return body
}

var (
	_ Strategy  = (*API)(nil)
	_ Registrar = (*API)(nil)
)
