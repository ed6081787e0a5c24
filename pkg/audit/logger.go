package audit

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/manitejabayya/Sports-Ecosystem/pkg/contextkeys"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log logs an audit event
	Log(ctx context.Context, event *AuditEvent) error

	// LogAuthentication logs an authentication event
	LogAuthentication(ctx context.Context, eventType EventType, userID, email string, status EventStatus, message string) error

	// LogAuthorization logs an authorization event
	LogAuthorization(ctx context.Context, eventType EventType, userID string, resourceType ResourceType, resourceID string, status EventStatus, message string) error

	// LogAdminAction logs an admin action against another identity
	LogAdminAction(ctx context.Context, eventType EventType, adminUserID, targetUserID string, message string) error

	// Close closes the logger and flushes any buffered logs
	Close() error
}

// RequestInfo is the request context attached to events
type RequestInfo struct {
	IPAddress string
	UserAgent string
	Method    string
	Path      string
}

// WithLogger adds an audit logger to the context
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, contextkeys.AuditLoggerKey, logger)
}

// FromContext retrieves the audit logger from context
func FromContext(ctx context.Context) Logger {
	if logger, ok := ctx.Value(contextkeys.AuditLoggerKey).(Logger); ok && logger != nil {
		return logger
	}
	return NoOp()
}

// WithRequestInfo stores request metadata for events logged further down.
// The client address is the peer address; see TrustedProxies.
func WithRequestInfo(ctx context.Context, r *http.Request) context.Context {
	return withRequestInfo(ctx, r, ClientIP(r))
}

func withRequestInfo(ctx context.Context, r *http.Request, ip string) context.Context {
	info := RequestInfo{
		IPAddress: ip,
		UserAgent: r.UserAgent(),
		Method:    r.Method,
		Path:      r.URL.Path,
	}
	return context.WithValue(ctx, contextkeys.RequestInfoKey, info)
}

func requestInfo(ctx context.Context) RequestInfo {
	if info, ok := ctx.Value(contextkeys.RequestInfoKey).(RequestInfo); ok {
		return info
	}
	return RequestInfo{}
}

// ClientIP returns the host part of the connection's peer address.
// Forwarding headers are ignored here.
func ClientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// RequestClientIP returns the client address Middleware resolved for r,
// or the peer address when the request did not pass through it
func RequestClientIP(r *http.Request) string {
	if ip := requestInfo(r.Context()).IPAddress; ip != "" {
		return ip
	}
	return ClientIP(r)
}

type noOpLogger struct{}

var noop Logger = noOpLogger{}

// NoOp returns a logger that discards everything
func NoOp() Logger {
	return noop
}

func (noOpLogger) Log(context.Context, *AuditEvent) error { return nil }

func (noOpLogger) LogAuthentication(context.Context, EventType, string, string, EventStatus, string) error {
	return nil
}

func (noOpLogger) LogAuthorization(context.Context, EventType, string, ResourceType, string, EventStatus, string) error {
	return nil
}

func (noOpLogger) LogAdminAction(context.Context, EventType, string, string, string) error {
	return nil
}

func (noOpLogger) Close() error { return nil }

// buildBaseEvent creates an event with request context populated
func buildBaseEvent(ctx context.Context, eventType EventType, status EventStatus) *AuditEvent {
	info := requestInfo(ctx)
	return &AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
		IPAddress: info.IPAddress,
		UserAgent: info.UserAgent,
		Method:    info.Method,
		Path:      info.Path,
		RequestID: contextkeys.GetRequestID(ctx),
		Metadata:  make(map[string]interface{}),
	}
}

func authenticationEvent(ctx context.Context, eventType EventType, userID, email string, status EventStatus, message string) *AuditEvent {
	event := buildBaseEvent(ctx, eventType, status)
	event.UserID = userID
	event.Email = email
	event.ResourceType = ResourceTypeUser
	event.ResourceID = userID
	event.Message = message
	return event
}

func authorizationEvent(ctx context.Context, eventType EventType, userID string, resourceType ResourceType, resourceID string, status EventStatus, message string) *AuditEvent {
	event := buildBaseEvent(ctx, eventType, status)
	event.UserID = userID
	event.ResourceType = resourceType
	event.ResourceID = resourceID
	event.Message = message
	return event
}

func adminEvent(ctx context.Context, eventType EventType, adminUserID, targetUserID, message string) *AuditEvent {
	event := buildBaseEvent(ctx, eventType, EventStatusSuccess)
	event.UserID = adminUserID
	event.ResourceType = ResourceTypeUser
	event.ResourceID = targetUserID
	event.Message = message
	event.Metadata["target_user_id"] = targetUserID
	return event
}
