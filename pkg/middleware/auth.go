package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/manitejabayya/Sports-Ecosystem/pkg/audit"
	"github.com/manitejabayya/Sports-Ecosystem/pkg/auth"
	"github.com/manitejabayya/Sports-Ecosystem/pkg/contextkeys"
	"github.com/manitejabayya/Sports-Ecosystem/pkg/httputil"
	"github.com/manitejabayya/Sports-Ecosystem/pkg/observability"
)

const (
	// TokenCookieName is the cookie carrying the session token
	TokenCookieName = "token"

	// MessageNotAuthorized is the body of every 401 produced by the gate
	MessageNotAuthorized = "Not authorized to access this route"
)

// Authenticator resolves a session token to an active identity
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*auth.User, error)
}

// AuthMiddleware provides authentication middleware
type AuthMiddleware struct {
	authn    Authenticator
	optional bool // If true, anonymous requests continue
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// AuthOption configures AuthMiddleware
type AuthOption func(*AuthMiddleware)

// WithAuthLogger sets the logger used for rejected tokens
func WithAuthLogger(logger *observability.Logger) AuthOption {
	return func(m *AuthMiddleware) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithAuthMetrics sets the metrics sink for token validations
func WithAuthMetrics(metrics *observability.Metrics) AuthOption {
	return func(m *AuthMiddleware) {
		m.metrics = metrics
	}
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(authn Authenticator, optional bool, opts ...AuthOption) *AuthMiddleware {
	m := &AuthMiddleware{
		authn:    authn,
		optional: optional,
		logger:   observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Handler wraps an HTTP handler with authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		token := ExtractToken(r)

		user, err := m.authn.Authenticate(ctx, token)
		m.metrics.RecordTokenValidation(auth.Cause(err))
		if err != nil {
			if !auth.IsUnauthenticated(err) {
				observability.FromContext(ctx).WithError(err).Error("Authentication lookup failed")
				httputil.WriteInternalError(w)
				return
			}
			m.rejected(ctx, err)
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteUnauthorized(w, MessageNotAuthorized)
			return
		}

		ctx = contextkeys.WithAuth(ctx, &auth.AuthContext{User: user})
		ctx = contextkeys.WithUserID(ctx, user.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// rejected records why a token was refused. A missing token on an optional
// route is ordinary traffic and is not recorded.
func (m *AuthMiddleware) rejected(ctx context.Context, err error) {
	cause := auth.Cause(err)
	if cause == "no_token" && m.optional {
		return
	}

	m.logger.WithFields(map[string]interface{}{
		"cause":      cause,
		"optional":   m.optional,
		"request_id": contextkeys.GetRequestID(ctx),
	}).Warn("Request token rejected")

	if cause == "no_token" {
		return
	}
	if auditErr := audit.FromContext(ctx).LogAuthentication(ctx, audit.EventTypeAuthTokenValidateFail,
		"", "", audit.EventStatusFailure, cause); auditErr != nil {
		m.logger.WithError(auditErr).Warn("Failed to write audit event")
	}
}

// ExtractToken returns the bearer token, falling back to the token cookie
func ExtractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, found := strings.Cut(header, " ")
		if found && strings.EqualFold(scheme, "Bearer") {
			if token = strings.TrimSpace(token); token != "" {
				return token
			}
		}
	}
	if cookie, err := r.Cookie(TokenCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// GetAuthContext extracts auth context from request
func GetAuthContext(r *http.Request) *auth.AuthContext {
	authCtx, ok := r.Context().Value(contextkeys.AuthKey).(*auth.AuthContext)
	if !ok || authCtx.User == nil {
		return nil
	}
	return authCtx
}

// CurrentUser returns the authenticated identity, or nil
func CurrentUser(r *http.Request) *auth.User {
	if authCtx := GetAuthContext(r); authCtx != nil {
		return authCtx.User
	}
	return nil
}

// RequireRole creates middleware that admits only the given roles
func RequireRole(metrics *observability.Metrics, roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := GetAuthContext(r)
			if authCtx == nil {
				httputil.WriteUnauthorized(w, MessageNotAuthorized)
				return
			}

			if !authCtx.HasRole(roles...) {
				role := authCtx.User.Role
				metrics.RecordAuthorizationDenied(role.String())

				ctx := r.Context()
				if err := audit.FromContext(ctx).LogAuthorization(ctx, audit.EventTypeAuthzAccessDenied,
					authCtx.User.ID, audit.ResourceTypeRoute, r.URL.Path, audit.EventStatusDenied,
					"role "+role.String()); err != nil {
					observability.FromContext(ctx).WithError(err).Warn("Failed to write audit event")
				}

				httputil.WriteForbidden(w, fmt.Sprintf("User role %s is not authorized to access this route", role))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
