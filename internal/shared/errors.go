package shared

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnauthorized indicates the connection has no linked account or session.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrAccountNotFound indicates the linked account does not exist and
	// auto-provisioning is disabled.
	ErrAccountNotFound = errors.New("account not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUsernameTaken indicates a registration conflict.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrAccountBanned indicates an active ban. Errors carrying ban details
	// unwrap to this sentinel.
	ErrAccountBanned = errors.New("account banned")
	// ErrUpstreamFailure indicates the external auth/principal service
	// failed or rejected the call.
	ErrUpstreamFailure = errors.New("upstream failure")
	// ErrConfiguration indicates an invalid runtime configuration.
	ErrConfiguration = errors.New("configuration error")
)

// BanError carries the reason and expiry of an active ban so callers can
// present them. A nil ExpiresAt means the ban is permanent.
type BanError struct {
	Reason    string
	ExpiresAt *time.Time
}

func (e *BanError) Error() string {
	if e.ExpiresAt == nil {
		return fmt.Sprintf("account banned permanently: %s", e.Reason)
	}
	return fmt.Sprintf("account banned until %s: %s", e.ExpiresAt.UTC().Format(time.RFC3339), e.Reason)
}

func (e *BanError) Unwrap() error { return ErrAccountBanned }

// UpstreamError describes a failed call to the external auth or principal
// service. Status is zero when the transport itself failed.
type UpstreamError struct {
	Status  int
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("upstream: %s", e.Message)
	case e.Status != 0:
		return fmt.Sprintf("upstream: status %d", e.Status)
	case e.Err != nil:
		return fmt.Sprintf("upstream: %v", e.Err)
	}
	return "upstream failure"
}

func (e *UpstreamError) Unwrap() error { return ErrUpstreamFailure }
