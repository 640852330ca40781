// Package observability provides logging, metrics, and tracing.
package observability

import (
	"context"
	"log/slog"
)

// WSLogger provides structured logging for websocket hub events. It logs
// through slog.Default so it shares the request-aware handler installed by
// the middleware package.
type WSLogger struct {
	hubName string
}

// NewWSLogger creates a new WSLogger for the named hub.
func NewWSLogger(hubName string) *WSLogger {
	return &WSLogger{hubName: hubName}
}

// LogConnect logs a websocket connection.
func (l *WSLogger) LogConnect(ctx context.Context, userID uint, total int) {
	slog.Default().InfoContext(ctx, "websocket connected",
		slog.String("hub", l.hubName),
		slog.Uint64("user_id", uint64(userID)),
		slog.Int("connections", total),
	)
}

// LogDisconnect logs a websocket disconnection.
func (l *WSLogger) LogDisconnect(ctx context.Context, userID uint, reason string) {
	slog.Default().InfoContext(ctx, "websocket disconnected",
		slog.String("hub", l.hubName),
		slog.Uint64("user_id", uint64(userID)),
		slog.String("reason", reason),
	)
}

// LogSubscription logs a group join or leave.
func (l *WSLogger) LogSubscription(ctx context.Context, userID uint, group, action string) {
	slog.Default().DebugContext(ctx, "websocket subscription",
		slog.String("hub", l.hubName),
		slog.Uint64("user_id", uint64(userID)),
		slog.String("group", group),
		slog.String("action", action),
	)
}

// LogError logs a websocket error event.
func (l *WSLogger) LogError(ctx context.Context, userID uint, err error, eventType string) {
	slog.Default().ErrorContext(ctx, "websocket error",
		slog.String("hub", l.hubName),
		slog.Uint64("user_id", uint64(userID)),
		slog.String("event_type", eventType),
		slog.String("error", err.Error()),
	)
}

// LogLifecycle logs a hub lifecycle event.
func (l *WSLogger) LogLifecycle(ctx context.Context, event string, attrs ...any) {
	attrs = append([]any{slog.String("hub", l.hubName), slog.String("event", event)}, attrs...)
	slog.Default().InfoContext(ctx, "websocket lifecycle", attrs...)
}

// LogAsyncOperationError logs the failure of a fire-and-forget operation.
func LogAsyncOperationError(ctx context.Context, operation string, err error, attrs ...any) {
	attrs = append([]any{
		slog.String("operation", operation),
		slog.String("type", "async_error"),
		slog.String("error", err.Error()),
	}, attrs...)
	slog.Default().ErrorContext(ctx, "async operation failed", attrs...)
}
