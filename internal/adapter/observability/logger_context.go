package observability

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// loggerContextKey is the private context key used to store a *slog.Logger.
type loggerContextKey struct{}

// operationIDContextKey stores the id minted for one public operation so the
// router and upstream adapters can correlate their logs with it.
type operationIDContextKey struct{}

// ContextWithLogger attaches a non-nil logger to the context.
func ContextWithLogger(ctx context.Context, lg *slog.Logger) context.Context {
	if ctx == nil || lg == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerContextKey{}, lg)
}

// LoggerFromContext returns the logger stored in the context or the default
// slog logger when none is present.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return slog.Default()
	}
	if lg, ok := ctx.Value(loggerContextKey{}).(*slog.Logger); ok && lg != nil {
		return lg
	}
	return slog.Default()
}

// ContextWithOperationID stores a non-empty operation id in the context.
func ContextWithOperationID(ctx context.Context, id string) context.Context {
	if ctx == nil || id == "" {
		return ctx
	}
	return context.WithValue(ctx, operationIDContextKey{}, id)
}

// OperationIDFromContext returns the operation id, or "" when none is set.
func OperationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(operationIDContextKey{}).(string)
	return id
}

// StartOperation mints an operation id, derives a logger tagged with the
// operation name and id from base (or the context logger when base is nil)
// and stores both in the returned context.
func StartOperation(ctx context.Context, base *slog.Logger, operation string) (context.Context, *slog.Logger) {
	if base == nil {
		base = LoggerFromContext(ctx)
	}
	id := uuid.NewString()
	lg := base.With(slog.String("operation", operation), slog.String("op_id", id))
	ctx = ContextWithOperationID(ctx, id)
	return ContextWithLogger(ctx, lg), lg
}
