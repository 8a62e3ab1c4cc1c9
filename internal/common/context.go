package common

import (
	"context"
	"log/slog"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyRequestID  contextKey = "request_id"
	ContextKeyContractID contextKey = "contract_id"
)

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// RequestIDFromContext extracts the request ID from context
func RequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return requestID
	}
	return ""
}

func WithContractID(ctx context.Context, contractID string) context.Context {
	return context.WithValue(ctx, ContextKeyContractID, contractID)
}

func ContractIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ContextKeyContractID).(string); ok {
		return id
	}
	return ""
}

// LogAttrs returns the request/contract identifiers carried by ctx as slog
// attributes, for use with logger.With.
func LogAttrs(ctx context.Context) []any {
	var attrs []any
	if id := RequestIDFromContext(ctx); id != "" {
		attrs = append(attrs, slog.String("request_id", id))
	}
	if id := ContractIDFromContext(ctx); id != "" {
		attrs = append(attrs, slog.String("contract_id", id))
	}
	return attrs
}
