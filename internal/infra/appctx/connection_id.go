package appctx

import (
	"context"
)

type ctxKey string

const connectionIDKey ctxKey = "connectionID"

// WithConnectionID добавляет id соединения в контекст
func WithConnectionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, connectionIDKey, id)
}

// ConnectionID извлекает id соединения из контекста
func ConnectionID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(connectionIDKey).(string)
	return id, ok && id != ""
}
