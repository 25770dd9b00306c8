package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLoggerProvider_Disabled(t *testing.T) {
	ctx := context.Background()

	lp, err := NewLoggerProvider(ctx, LogsConfig{Enabled: false}, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NotNil(t, lp)

	assert.False(t, lp.IsEnabled())
	assert.NoError(t, lp.ForceFlush(ctx))
	assert.NoError(t, lp.Shutdown(ctx))

	// Disabled export hands out a core that drops everything.
	core := lp.ZapCore(zapcore.InfoLevel)
	require.NotNil(t, core)
	assert.False(t, core.Enabled(zapcore.ErrorLevel))
}

func TestNewLoggerProvider_Enabled(t *testing.T) {
	ctx := context.Background()

	lp, err := NewLoggerProvider(ctx, LogsConfig{
		Enabled:           true,
		CollectorEndpoint: "localhost:14317",
		ServiceName:       "genintake-test",
		Insecure:          true,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.True(t, lp.IsEnabled())

	core := lp.ZapCore(zapcore.InfoLevel)
	require.NotNil(t, core)
	assert.True(t, core.Enabled(zapcore.InfoLevel))
	assert.False(t, core.Enabled(zapcore.DebugLevel))

	// No collector is listening; shutdown just has to return.
	shutdownCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	_ = lp.Shutdown(shutdownCtx)
}

func TestMinLevelCore_Filtering(t *testing.T) {
	observed, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(&minLevelCore{Core: observed, min: zapcore.WarnLevel})

	logger.Debug("dropped")
	logger.Info("dropped too")
	logger.Warn("sweep fell behind")
	logger.Error("analysis failed")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "sweep fell behind", entries[0].Message)
	assert.Equal(t, "analysis failed", entries[1].Message)
}

func TestMinLevelCore_WithPreservesFilter(t *testing.T) {
	observed, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(&minLevelCore{Core: observed, min: zapcore.WarnLevel})

	child := logger.With(zap.String("specialty", "oncology"))
	child.Info("still dropped")
	child.Warn("slow verdict")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "slow verdict", entries[0].Message)
	require.Len(t, entries[0].Context, 1)
	assert.Equal(t, "specialty", entries[0].Context[0].Key)
}

func TestNewBridgedLogger(t *testing.T) {
	baseCore, baseLogs := observer.New(zapcore.DebugLevel)
	collectorCore, collectorLogs := observer.New(zapcore.DebugLevel)

	bridged := NewBridgedLogger(zap.New(baseCore), collectorCore)
	bridged.Info("turn processed", zap.Int("turn_count", 4))

	require.Equal(t, 1, baseLogs.Len())
	require.Equal(t, 1, collectorLogs.Len())

	entry := collectorLogs.All()[0]
	assert.Equal(t, "turn processed", entry.Message)
	assert.True(t, entry.Caller.Defined)
}
