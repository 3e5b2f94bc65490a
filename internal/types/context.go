package types

import "context"

// contextKey is a private type to avoid collisions with other packages'
// context values.
type contextKey string

const requestIDKey contextKey = "request_id"

// WithRequestID returns a child context carrying the request correlation ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID extracts the request correlation ID from the context, or an
// empty string if none was set.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}
