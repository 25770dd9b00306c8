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
	gormlogger "gorm.io/gorm/logger"
)

func newObservedGormLogger(level gormlogger.LogLevel, opts ...GormLoggerOption) (*GormLogger, *observer.ObservedLogs) {
	core, recorded := observer.New(zapcore.DebugLevel)
	return NewGormLogger(zap.New(core), level, opts...), recorded
}

func selectQuery() (string, int64) {
	return "SELECT * FROM interview_sessions WHERE id = $1", 1
}

func TestNewGormLogger_Defaults(t *testing.T) {
	gl, _ := newObservedGormLogger(gormlogger.Info)

	assert.Equal(t, gormlogger.Info, gl.level)
	assert.Equal(t, defaultSlowQueryThreshold, gl.slowThreshold)
	assert.True(t, gl.skipNotFound)
}

func TestNewGormLogger_Options(t *testing.T) {
	gl, _ := newObservedGormLogger(gormlogger.Warn,
		WithSlowThreshold(50*time.Millisecond),
		WithIgnoreRecordNotFoundError(false),
	)

	assert.Equal(t, 50*time.Millisecond, gl.slowThreshold)
	assert.False(t, gl.skipNotFound)
}

func TestGormLogger_LogMode(t *testing.T) {
	gl, _ := newObservedGormLogger(gormlogger.Info)

	quiet := gl.LogMode(gormlogger.Silent)

	require.IsType(t, &GormLogger{}, quiet)
	assert.Equal(t, gormlogger.Silent, quiet.(*GormLogger).level)
	assert.Equal(t, gormlogger.Info, gl.level, "original logger level must not change")
}

func TestGormLogger_LevelGating(t *testing.T) {
	ctx := context.Background()

	t.Run("info emits at info level", func(t *testing.T) {
		gl, logs := newObservedGormLogger(gormlogger.Info)
		gl.Info(ctx, "migrated %d tables", 4)
		assert.Equal(t, 1, logs.Len())
	})

	t.Run("info is suppressed at warn level", func(t *testing.T) {
		gl, logs := newObservedGormLogger(gormlogger.Warn)
		gl.Info(ctx, "migrated %d tables", 4)
		assert.Equal(t, 0, logs.Len())
	})

	t.Run("warn and error pass their gates", func(t *testing.T) {
		gl, logs := newObservedGormLogger(gormlogger.Warn)
		gl.Warn(ctx, "pool nearly exhausted")
		gl.Error(ctx, "connection lost: %v", errors.New("broken pipe"))
		assert.Equal(t, 2, logs.Len())
	})
}

func TestGormLogger_Trace(t *testing.T) {
	ctx := context.Background()

	t.Run("failed query logs SQL Error with the statement", func(t *testing.T) {
		gl, logs := newObservedGormLogger(gormlogger.Error)
		gl.Trace(ctx, time.Now(), selectQuery, errors.New("relation does not exist"))

		entries := logs.FilterMessage("SQL Error").All()
		require.Len(t, entries, 1)
		fields := entries[0].ContextMap()
		assert.Contains(t, fields["sql"], "interview_sessions")
		assert.EqualValues(t, 1, fields["rows"])
	})

	t.Run("record not found is skipped by default", func(t *testing.T) {
		gl, logs := newObservedGormLogger(gormlogger.Error)
		gl.Trace(ctx, time.Now(), selectQuery, gormlogger.ErrRecordNotFound)
		assert.Equal(t, 0, logs.Len())
	})

	t.Run("record not found logs when skipping is disabled", func(t *testing.T) {
		gl, logs := newObservedGormLogger(gormlogger.Error, WithIgnoreRecordNotFoundError(false))
		gl.Trace(ctx, time.Now(), selectQuery, gormlogger.ErrRecordNotFound)
		assert.Equal(t, 1, logs.FilterMessage("SQL Error").Len())
	})

	t.Run("slow query warns with the threshold", func(t *testing.T) {
		gl, logs := newObservedGormLogger(gormlogger.Warn, WithSlowThreshold(10*time.Millisecond))
		gl.Trace(ctx, time.Now().Add(-100*time.Millisecond), selectQuery, nil)

		entries := logs.FilterMessage("Slow SQL").All()
		require.Len(t, entries, 1)
		assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	})

	t.Run("ordinary query logs at debug when level is info", func(t *testing.T) {
		gl, logs := newObservedGormLogger(gormlogger.Info)
		gl.Trace(ctx, time.Now(), selectQuery, nil)

		entries := logs.FilterMessage("SQL Query").All()
		require.Len(t, entries, 1)
		assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	})

	t.Run("ordinary query is silent at warn level", func(t *testing.T) {
		gl, logs := newObservedGormLogger(gormlogger.Warn)
		gl.Trace(ctx, time.Now(), selectQuery, nil)
		assert.Equal(t, 0, logs.Len())
	})

	t.Run("silent level suppresses everything", func(t *testing.T) {
		gl, logs := newObservedGormLogger(gormlogger.Silent)
		gl.Trace(ctx, time.Now(), selectQuery, errors.New("boom"))
		assert.Equal(t, 0, logs.Len())
	})

	t.Run("request id from context is attached", func(t *testing.T) {
		gl, logs := newObservedGormLogger(gormlogger.Info)
		ctx := ContextWithRequestID(context.Background(), "req-789")
		gl.Trace(ctx, time.Now(), selectQuery, nil)

		entries := logs.FilterMessage("SQL Query").All()
		require.Len(t, entries, 1)
		assert.Equal(t, "req-789", entries[0].ContextMap()["request_id"])
	})
}

func TestMapGormLogLevel(t *testing.T) {
	cases := []struct {
		in   string
		want gormlogger.LogLevel
	}{
		{"silent", gormlogger.Silent},
		{"error", gormlogger.Error},
		{"warn", gormlogger.Warn},
		{"info", gormlogger.Info},
		{"debug", gormlogger.Info},
		{"", gormlogger.Warn},
		{"trace", gormlogger.Warn},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, MapGormLogLevel(tc.in), "level %q", tc.in)
	}
}

func TestGormLoggerImplementsInterface(t *testing.T) {
	var _ gormlogger.Interface = (*GormLogger)(nil)
}
