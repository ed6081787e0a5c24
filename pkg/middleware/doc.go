// Package middleware provides the request gate: authentication, role checks
// and per-identity rate limiting.
//
// # Authentication
//
// AuthMiddleware reads the token from "Authorization: Bearer <token>", then
// from the "token" cookie, and resolves it through an Authenticator
// (normally *auth.Service):
//
//	protect := middleware.NewAuthMiddleware(svc, false).Handler
//	optional := middleware.NewAuthMiddleware(svc, true).Handler
//
// Every rejection answers 401 "Not authorized to access this route". The
// cause (no_token, invalid_token, expired_token, user_not_found,
// inactive_account) is only logged, audited and counted. In optional mode a
// rejected token leaves the request anonymous.
//
// # Roles
//
//	router.Handle("/api/admin/...", protect(middleware.RequireRole(metrics, auth.RoleAdmin)(h)))
//
// A role outside the list answers 403; a request with no identity answers 401.
//
// # Rate Limiting
//
// Limiter implementations:
//   - SlidingWindowLimiter: in-process, one window per key
//   - RedisSlidingWindowLimiter: sorted set per key, shared across instances
//
// Both count admitted requests only. UserRateLimit keys by identity id and
// lets anonymous requests through:
//
//	limiter := middleware.NewSlidingWindowLimiter(middleware.SearchRateLimitConfig())
//	search := protect(middleware.UserRateLimit("search", limiter)(h))
//
// A rejected request gets 429 with Retry-After and X-RateLimit-* headers.
// When the limiter itself fails the middleware fails open unless
// WithFailOpen(false) is given, in which case it answers 503.
package middleware
