package httpx

import (
	"errors"
	"net/http"
	"time"

	"github.com/warden-auth/warden/internal/account"
	"github.com/warden-auth/warden/internal/shared"
)

// RespondError maps the authentication/authorization error taxonomy to
// RFC7807 responses. Unexpected errors are reported without detail.
func RespondError(w http.ResponseWriter, err error) {
	var banErr *shared.BanError
	var storeErr *account.StoreError
	switch {
	case errors.As(err, &banErr):
		detail := ProblemDetail{
			Status:    http.StatusForbidden,
			Title:     "Account Banned",
			Detail:    banErr.Error(),
			Reason:    "account_banned",
			BanReason: banErr.Reason,
		}
		if banErr.ExpiresAt != nil {
			detail.BanExpires = banErr.ExpiresAt.UTC().Format(time.RFC3339)
		}
		Problem(w, detail)
	case errors.Is(err, shared.ErrAccountBanned):
		Problem(w, ProblemDetail{Status: http.StatusForbidden, Title: "Account Banned", Detail: err.Error(), Reason: "account_banned"})
	case errors.Is(err, shared.ErrUnauthorized):
		Problem(w, ProblemDetail{Status: http.StatusUnauthorized, Title: "Unauthorized", Detail: err.Error(), Reason: "unauthorized"})
	case errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, ProblemDetail{Status: http.StatusUnauthorized, Title: "Invalid Credentials", Detail: err.Error(), Reason: "invalid_credentials"})
	case errors.Is(err, shared.ErrAccountNotFound):
		Problem(w, ProblemDetail{Status: http.StatusNotFound, Title: "Account Not Found", Detail: err.Error(), Reason: "account_not_found"})
	case errors.Is(err, shared.ErrUsernameTaken):
		Problem(w, ProblemDetail{Status: http.StatusConflict, Title: "Username Taken", Detail: err.Error(), Reason: "username_taken"})
	case errors.Is(err, shared.ErrUpstreamFailure):
		Problem(w, ProblemDetail{Status: http.StatusBadGateway, Title: "Upstream Failure", Detail: err.Error(), Reason: "upstream_failure"})
	case errors.Is(err, account.ErrRoleNotFound):
		Problem(w, ProblemDetail{Status: http.StatusNotFound, Title: "Role Not Found", Detail: err.Error(), Reason: "role_not_found"})
	case errors.As(err, &storeErr):
		Problem(w, ProblemDetail{Status: http.StatusInternalServerError, Title: "Store Failure", Reason: "store_failure"})
	default:
		Problem(w, ProblemDetail{Status: http.StatusInternalServerError, Title: "Internal Error"})
	}
}
