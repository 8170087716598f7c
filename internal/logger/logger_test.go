package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// observe swaps the global logger for an in-memory one until the test ends.
func observe(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	prev, prevClient := log, sentryClient
	log, sentryClient = zap.New(core), nil
	t.Cleanup(func() { log, sentryClient = prev, prevClient })
	return logs
}

func TestInitializeWithoutDSN(t *testing.T) {
	prev := log
	t.Cleanup(func() { log, sentryClient = prev, nil })

	require.NoError(t, Initialize(Config{Debug: true}))

	assert.NotSame(t, prev, Default())
	assert.Nil(t, sentryClient)
	assert.True(t, Default().Core().Enabled(zapcore.DebugLevel))

	require.NoError(t, Initialize(Config{}))
	assert.False(t, Default().Core().Enabled(zapcore.DebugLevel))
	Sync(10 * time.Millisecond)
}

func TestFromContextFallsBackToGlobal(t *testing.T) {
	logs := observe(t)

	var none context.Context
	assert.Same(t, Default(), FromContext(none))

	InfoCtx(context.Background(), "placed", zap.String("phillboard_id", "a"))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "placed", entry.Message)
	assert.Equal(t, "a", entry.ContextMap()["phillboard_id"])
}

func TestErrorHelpers(t *testing.T) {
	logs := observe(t)

	Error(errors.New("debit failed"))
	Error(nil)
	ErrorCtx(context.Background(), nil)

	msgs := make([]string, 0, logs.Len())
	for _, e := range logs.All() {
		assert.Equal(t, zapcore.ErrorLevel, e.Level)
		msgs = append(msgs, e.Message)
	}
	assert.Equal(t, []string{"debit failed", "error occurred", "error occurred"}, msgs)
}
