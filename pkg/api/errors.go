package api

import (
	"errors"
	"net/http"

	"github.com/manitejabayya/Sports-Ecosystem/pkg/auth"
	"github.com/manitejabayya/Sports-Ecosystem/pkg/httputil"
	"github.com/manitejabayya/Sports-Ecosystem/pkg/middleware"
	"github.com/manitejabayya/Sports-Ecosystem/pkg/observability"
)

// Client-facing messages
const (
	MessageUserExists         = "User already exists"
	MessageInvalidCredentials = "Invalid credentials"
	MessagePasswordIncorrect  = "Password is incorrect"
	MessageUserNotFound       = "User not found"
	MessageRouteNotFound      = "Route not found"
	MessageMethodNotAllowed   = "Method not allowed"
)

// writeServiceError maps service errors to responses. Anything unrecognised
// is logged and answered with a bare 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *auth.ValidationError
	switch {
	case errors.As(err, &validationErr):
		httputil.WriteBadRequest(w, validationErr.Message)
	case errors.Is(err, auth.ErrEmailTaken):
		httputil.WriteBadRequest(w, MessageUserExists)
	case errors.Is(err, auth.ErrInvalidCredentials):
		httputil.WriteUnauthorized(w, MessageInvalidCredentials)
	case errors.Is(err, auth.ErrIncorrectPassword):
		httputil.WriteUnauthorized(w, MessagePasswordIncorrect)
	case errors.Is(err, auth.ErrUserNotFound):
		httputil.WriteNotFound(w, MessageUserNotFound)
	case auth.IsUnauthenticated(err):
		httputil.WriteUnauthorized(w, middleware.MessageNotAuthorized)
	default:
		observability.FromContext(r.Context()).WithError(err).
			WithField("path", r.URL.Path).
			Error("Request failed")
		httputil.WriteInternalError(w)
	}
}
