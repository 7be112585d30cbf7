package http

import (
	"context"
	"log/slog"
)

const serviceName = "dbfleet"

// httpLogger derives from the process default so handlers pick up whatever
// sink bootstrap installed.
func httpLogger() *slog.Logger {
	return slog.Default().With(
		"service", serviceName,
		"module", "http",
		"layer", "adapter",
	)
}

// logHTTPOperationError records one failed handler operation. Server faults
// log at error, client faults at warn. When the request carried a valid
// session the principal is attached so audit queries can pivot on it.
func logHTTPOperationError(ctx context.Context, operation string, statusCode int, code, message string, err error) {
	attrs := []any{
		"operation", operation,
		"outcome", "failure",
		"status_code", statusCode,
		"error_code", code,
		"message", message,
		"request_id", requestIDFromContext(ctx),
	}
	if session, ok := sessionFromContext(ctx); ok {
		attrs = append(attrs, "username", session.Username)
	}
	if err != nil {
		attrs = append(attrs, "error", err.Error())
	}

	level := slog.LevelWarn
	if statusCode >= 500 {
		level = slog.LevelError
	}
	httpLogger().Log(ctx, level, "http operation failed", attrs...)
}
