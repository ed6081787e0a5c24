// Package audit records security-relevant events for the authentication service.
//
// # Overview
//
// Every registration, login attempt, password change, rejected token, denied
// role check, rate-limit rejection and admin status change produces an
// AuditEvent. Events carry the acting identity, the request context captured
// by Middleware (request id, client IP, user agent, method, path) and a
// free-form metadata map.
//
// # Sinks
//
// DBLogger: PostgreSQL table audit_logs, created on startup if missing
// FileLogger: newline-delimited JSON with size-based rotation
// MultiLogger: fan-out to several sinks
//
// When no sink is configured, FromContext returns a no-op logger so callers
// never need a nil check.
//
// # Usage Example
//
//	logger, _ := audit.NewFileLogger(audit.DefaultFileLoggerConfig())
//	router.Use(audit.NewMiddleware(logger, false).Handler)
//
//	logger.LogAuthentication(ctx, audit.EventTypeAuthLoginFailed, "", email,
//		audit.EventStatusFailure, "invalid credentials")
//
// # Related Packages
//
//   - pkg/auth: emits authentication events
//   - pkg/middleware: emits token rejections, access denials and rate-limit events
package audit
