package context

import "context"

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	syncRunIDKey ctxKey = "sync_run_id"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}

// WithSyncRunID tags work done on behalf of a snapshot sync run.
func WithSyncRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, syncRunIDKey, runID)
}

func SyncRunIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(syncRunIDKey).(string)
	return v
}
