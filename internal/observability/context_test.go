package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithRequestID(t *testing.T) {
	ctx := context.Background()
	ctx = WithRequestID(ctx, "req-123")

	assert.Equal(t, "req-123", RequestIDFromContext(ctx))
}

func TestRequestIDFromContextEmpty(t *testing.T) {
	assert.Equal(t, "", RequestIDFromContext(context.Background()))
}

func TestWithRunID(t *testing.T) {
	ctx := context.Background()
	ctx = WithRunID(ctx, "run-456")

	assert.Equal(t, "run-456", RunIDFromContext(ctx))
}

func TestRunIDFromContextEmpty(t *testing.T) {
	assert.Equal(t, "", RunIDFromContext(context.Background()))
}

func TestWithStage(t *testing.T) {
	ctx := context.Background()
	ctx = WithStage(ctx, "relationships")

	assert.Equal(t, "relationships", StageFromContext(ctx))
}

func TestWithRunContext(t *testing.T) {
	ctx := WithRunContext(context.Background(), RunContext{
		RequestID: "req-1",
		RunID:     "run-1",
		Stage:     "graph",
	})

	rc := RunContextFromContext(ctx)
	assert.Equal(t, "req-1", rc.RequestID)
	assert.Equal(t, "run-1", rc.RunID)
	assert.Equal(t, "graph", rc.Stage)
}

func TestWithRunContextPartial(t *testing.T) {
	ctx := WithRunContext(context.Background(), RunContext{RunID: "run-only"})

	rc := RunContextFromContext(ctx)
	assert.Equal(t, "", rc.RequestID)
	assert.Equal(t, "run-only", rc.RunID)
	assert.Equal(t, "", rc.Stage)
}

func TestContextOverwrite(t *testing.T) {
	ctx := WithRunID(context.Background(), "run-old")
	ctx = WithRunID(ctx, "run-new")

	assert.Equal(t, "run-new", RunIDFromContext(ctx))
}
