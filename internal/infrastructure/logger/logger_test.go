package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	t.Run("nil config builds a working logger", func(t *testing.T) {
		log, err := New(nil)
		require.NoError(t, err)
		require.NotNil(t, log)
		assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
		assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("debug level enables debug output", func(t *testing.T) {
		log, err := New(&Config{Level: "debug"})
		require.NoError(t, err)
		assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("error level suppresses info", func(t *testing.T) {
		log, err := New(&Config{Level: "error"})
		require.NoError(t, err)
		assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
		assert.True(t, log.Core().Enabled(zapcore.ErrorLevel))
	})

	t.Run("console format is accepted", func(t *testing.T) {
		log, err := New(&Config{Format: "console"})
		require.NoError(t, err)
		require.NotNil(t, log)
	})

	t.Run("unwritable file output is an error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "missing", "nested", "app.log")
		log, err := New(&Config{Output: path})
		assert.Error(t, err)
		assert.Nil(t, log)
		assert.Contains(t, err.Error(), "open log output")
	})
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")

	log, err := New(&Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)

	log.Info("session opened", zap.String("specialty", "hereditary_cancer"))
	require.NoError(t, Sync(log))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(raw, &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "session opened", entry["msg"])
	assert.Equal(t, "hereditary_cancer", entry["specialty"])
	assert.NotEmpty(t, entry["time"])
	assert.NotEmpty(t, entry["caller"])
}

func TestLevelFor(t *testing.T) {
	cases := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"fatal", zapcore.FatalLevel},
		{"ERROR", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"verbose", zapcore.InfoLevel},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, levelFor(tc.in), "level %q", tc.in)
	}
}

func TestOpenSink(t *testing.T) {
	t.Run("empty and stdout map to stdout", func(t *testing.T) {
		for _, out := range []string{"", "stdout", "STDOUT"} {
			sink, err := openSink(out)
			require.NoError(t, err)
			require.NotNil(t, sink)
		}
	})

	t.Run("stderr maps to stderr", func(t *testing.T) {
		sink, err := openSink("stderr")
		require.NoError(t, err)
		require.NotNil(t, sink)
	})

	t.Run("file path appends across opens", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "append.log")

		first, err := openSink(path)
		require.NoError(t, err)
		_, err = first.Write([]byte("one\n"))
		require.NoError(t, err)

		second, err := openSink(path)
		require.NoError(t, err)
		_, err = second.Write([]byte("two\n"))
		require.NoError(t, err)

		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "one\ntwo\n", string(raw))
	})
}
