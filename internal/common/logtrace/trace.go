package logtrace

import (
	"context"
)

type requestIdContextKey string

// RequestIdKey is the context key under which the request logger middleware
// stores the request ID.
const RequestIdKey = requestIdContextKey("requestId")

// RequestIdFromContext extracts the request ID from the context.
// Returns an empty string if the context is nil or carries no request ID.
func RequestIdFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	r, ok := ctx.Value(RequestIdKey).(string)
	if !ok {
		return ""
	}
	return r
}

// IsTraceEnabled reports whether route tracing is enabled.
// Currently returns false as tracing is not yet implemented.
func IsTraceEnabled() bool {
	return false
}
