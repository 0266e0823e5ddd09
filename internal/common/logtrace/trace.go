package logtrace

import (
	"context"
	"os"
)

type requestIdContextKey string

// RequestIdKey is the context key under which the request middleware stores
// the request id.
const RequestIdKey = requestIdContextKey("requestId")

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

func WithRequestId(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIdKey, requestID)
}

func IsTraceEnabled() bool {
	return os.Getenv("FLOWERSHOW_TRACE_ROUTES") != ""
}
