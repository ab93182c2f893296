package logger

import (
	"context"
	"log/slog"
)

type contextKey string

const TraceIDKey contextKey = "trace_id"
const ExchangeIDKey contextKey = "exchange_id"

func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, TraceIDKey, id)
}

func GetTraceID(ctx context.Context) string {
	if id, ok := ctx.Value(TraceIDKey).(string); ok {
		return id
	}
	return ""
}

func WithExchangeID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ExchangeIDKey, id)
}

func GetExchangeID(ctx context.Context) string {
	if id, ok := ctx.Value(ExchangeIDKey).(string); ok {
		return id
	}
	return ""
}

// Attrs returns the ids stored on ctx as slog key/value pairs.
func Attrs(ctx context.Context) []any {
	var attrs []any
	if id := GetExchangeID(ctx); id != "" {
		attrs = append(attrs, slog.String(string(ExchangeIDKey), id))
	}
	if id := GetTraceID(ctx); id != "" {
		attrs = append(attrs, slog.String(string(TraceIDKey), id))
	}
	return attrs
}
