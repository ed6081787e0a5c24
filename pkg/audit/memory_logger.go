package audit

import (
	"context"
	"sync"
)

// MemoryLogger keeps events in memory. Useful for tests and local runs.
type MemoryLogger struct {
	mu     sync.Mutex
	events []*AuditEvent
}

// NewMemoryLogger creates an empty in-memory audit logger
func NewMemoryLogger() *MemoryLogger {
	return &MemoryLogger{}
}

// Log records the event
func (l *MemoryLogger) Log(ctx context.Context, event *AuditEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	return nil
}

// LogAuthentication logs an authentication event
func (l *MemoryLogger) LogAuthentication(ctx context.Context, eventType EventType, userID, email string, status EventStatus, message string) error {
	return l.Log(ctx, authenticationEvent(ctx, eventType, userID, email, status, message))
}

// LogAuthorization logs an authorization event
func (l *MemoryLogger) LogAuthorization(ctx context.Context, eventType EventType, userID string, resourceType ResourceType, resourceID string, status EventStatus, message string) error {
	return l.Log(ctx, authorizationEvent(ctx, eventType, userID, resourceType, resourceID, status, message))
}

// LogAdminAction logs an admin action event
func (l *MemoryLogger) LogAdminAction(ctx context.Context, eventType EventType, adminUserID, targetUserID string, message string) error {
	return l.Log(ctx, adminEvent(ctx, eventType, adminUserID, targetUserID, message))
}

// Close is a no-op
func (l *MemoryLogger) Close() error {
	return nil
}

// Events returns a snapshot of recorded events
func (l *MemoryLogger) Events() []*AuditEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*AuditEvent, len(l.events))
	copy(out, l.events)
	return out
}

// EventsOfType returns recorded events with the given type
func (l *MemoryLogger) EventsOfType(eventType EventType) []*AuditEvent {
	var out []*AuditEvent
	for _, e := range l.Events() {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}
