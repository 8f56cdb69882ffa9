package observability

import (
	"context"
)

// Context keys for observability data.
type contextKey string

const (
	requestIDKey contextKey = "request_id"
	runIDKey     contextKey = "run_id"
	stageKey     contextKey = "stage"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext retrieves the request ID from context.
// Returns empty string if not present.
func RequestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// WithRunID adds a discovery run ID to the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunIDFromContext retrieves the run ID from context.
// Returns empty string if not present.
func RunIDFromContext(ctx context.Context) string {
	if v := ctx.Value(runIDKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// WithStage adds the current pipeline stage name to the context.
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext retrieves the pipeline stage name from context.
// Returns empty string if not present.
func StageFromContext(ctx context.Context) string {
	if v := ctx.Value(stageKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// RunContext contains the identifying fields for a discovery run.
type RunContext struct {
	RequestID string
	RunID     string
	Stage     string
}

// WithRunContext adds all run context fields to the context.
func WithRunContext(ctx context.Context, rc RunContext) context.Context {
	if rc.RequestID != "" {
		ctx = WithRequestID(ctx, rc.RequestID)
	}
	if rc.RunID != "" {
		ctx = WithRunID(ctx, rc.RunID)
	}
	if rc.Stage != "" {
		ctx = WithStage(ctx, rc.Stage)
	}
	return ctx
}

// RunContextFromContext extracts all run context fields from the context.
func RunContextFromContext(ctx context.Context) RunContext {
	return RunContext{
		RequestID: RequestIDFromContext(ctx),
		RunID:     RunIDFromContext(ctx),
		Stage:     StageFromContext(ctx),
	}
}
