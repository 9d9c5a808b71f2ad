package logger

import (
	"context"
	"log/slog"

	"finsight/backend/internal/middleware"
)

// ContextHandler decorates every record logged through a context carrying a
// correlation id. Paired with the *Context slog variants it ties HTTP request
// logs and worker logs for the same job together.
type ContextHandler struct {
	slog.Handler
}

func NewContextHandler(h slog.Handler) *ContextHandler {
	return &ContextHandler{Handler: h}
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if id, ok := ctx.Value(middleware.CorrelationKey).(string); ok && id != "" {
		r.AddAttrs(slog.String("correlation_id", id))
	}
	return h.Handler.Handle(ctx, r)
}
