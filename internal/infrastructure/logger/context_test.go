package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContext(t *testing.T) {
	logger := zap.NewNop()

	ctx := context.Background()
	ctxWithLogger := WithContext(ctx, logger)

	retrievedLogger := FromContext(ctxWithLogger)
	assert.NotNil(t, retrievedLogger)
}

func TestFromContext_NotFound(t *testing.T) {
	ctx := context.Background()
	logger := FromContext(ctx)

	// Should return a no-op logger
	assert.NotNil(t, logger)
}

func TestWithRequestID(t *testing.T) {
	logger := zap.NewNop()

	ctx := context.Background()
	requestID := "req-123"

	newCtx, newLogger := WithRequestID(ctx, logger, requestID)

	assert.NotNil(t, newCtx)
	assert.NotNil(t, newLogger)
	assert.Equal(t, requestID, GetRequestID(newCtx))
}

func TestWithRunID(t *testing.T) {
	logger := zap.NewNop()

	ctx := context.Background()
	runID := "run-456"

	newCtx, newLogger := WithRunID(ctx, logger, runID)

	assert.NotNil(t, newCtx)
	assert.NotNil(t, newLogger)
	assert.Equal(t, runID, GetRunID(newCtx))
}

func TestWithSource(t *testing.T) {
	logger := zap.NewNop()

	ctx := context.Background()
	source := "change_number"

	newCtx, newLogger := WithSource(ctx, logger, source)

	assert.NotNil(t, newCtx)
	assert.NotNil(t, newLogger)
	assert.Equal(t, source, GetSource(newCtx))
}

func TestGetRequestID_NotFound(t *testing.T) {
	ctx := context.Background()
	requestID := GetRequestID(ctx)
	assert.Empty(t, requestID)
}

func TestGetRunID_NotFound(t *testing.T) {
	ctx := context.Background()
	runID := GetRunID(ctx)
	assert.Empty(t, runID)
}

func TestGetSource_NotFound(t *testing.T) {
	ctx := context.Background()
	source := GetSource(ctx)
	assert.Empty(t, source)
}

func TestContextChaining(t *testing.T) {
	logger := zap.NewNop()

	ctx := context.Background()

	// Chain multiple context enrichments
	ctx, logger = WithRequestID(ctx, logger, "req-1")
	ctx, logger = WithRunID(ctx, logger, "run-1")
	ctx, logger = WithSource(ctx, logger, "app_list_check")

	assert.Equal(t, "req-1", GetRequestID(ctx))
	assert.Equal(t, "run-1", GetRunID(ctx))
	assert.Equal(t, "app_list_check", GetSource(ctx))
	assert.NotNil(t, logger)
}

func TestContextKeys(t *testing.T) {
	// Verify context keys are unique
	assert.NotEqual(t, LoggerKey, RequestIDKey)
	assert.NotEqual(t, RequestIDKey, RunIDKey)
	assert.NotEqual(t, RunIDKey, SourceKey)
	assert.NotEqual(t, LoggerKey, SourceKey)
}

func TestFromContext_WrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), LoggerKey, "not a logger")
	logger := FromContext(ctx)

	// Should return a no-op logger when value is wrong type
	assert.NotNil(t, logger)
	// The no-op logger should not panic when used
	logger.Info("test")
}

func TestLoggerFromEnrichedContext(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)

	ctx, _ := WithRequestID(context.Background(), zap.New(core), "req-test")

	// The logger pulled back out of the context carries the request ID.
	FromContext(ctx).Info("from downstream")

	logs := recorded.All()
	require.Len(t, logs, 1)
	require.Len(t, logs[0].Context, 1)
	assert.Equal(t, "request_id", logs[0].Context[0].Key)
	assert.Equal(t, "req-test", logs[0].Context[0].String)
}

func TestMultipleWithRequestID(t *testing.T) {
	logger := zap.NewNop()

	ctx := context.Background()

	// First call
	ctx, _ = WithRequestID(ctx, logger, "first-id")
	assert.Equal(t, "first-id", GetRequestID(ctx))

	// Second call should override
	ctx, _ = WithRequestID(ctx, logger, "second-id")
	assert.Equal(t, "second-id", GetRequestID(ctx))
}

func TestNopLoggerDoesNotPanic(t *testing.T) {
	ctx := context.Background()
	logger := FromContext(ctx)

	// These should not panic
	assert.NotPanics(t, func() {
		logger.Info("test message")
		logger.Debug("debug message")
		logger.Warn("warn message")
		logger.Error("error message")
		logger.With(zap.String("key", "value")).Info("with field")
	})
}
