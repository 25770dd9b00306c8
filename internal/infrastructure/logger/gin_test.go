package logger

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func observedRouter(t *testing.T) (*gin.Engine, *observer.ObservedLogs) {
	t.Helper()
	core, recorded := observer.New(zapcore.InfoLevel)
	router := gin.New()
	router.Use(GinMiddleware(zap.New(core)))
	return router, recorded
}

func requestLine(t *testing.T, logs *observer.ObservedLogs) observer.LoggedEntry {
	t.Helper()
	entries := logs.FilterMessage("HTTP Request").All()
	require.Len(t, entries, 1)
	return entries[0]
}

func TestGinMiddleware(t *testing.T) {
	t.Run("successful request logs at info", func(t *testing.T) {
		router, logs := observedRouter(t)
		router.GET("/sessions", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/sessions", nil))

		entry := requestLine(t, logs)
		assert.Equal(t, zapcore.InfoLevel, entry.Level)

		fields := entry.ContextMap()
		assert.Equal(t, "GET", fields["method"])
		assert.Equal(t, "/sessions", fields["path"])
		assert.EqualValues(t, http.StatusOK, fields["status"])
		assert.Contains(t, fields, "latency")
		assert.Contains(t, fields, "client_ip")
	})

	t.Run("client error logs at warn", func(t *testing.T) {
		router, logs := observedRouter(t)
		router.POST("/sessions", func(c *gin.Context) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("POST", "/sessions", nil))

		assert.Equal(t, zapcore.WarnLevel, requestLine(t, logs).Level)
	})

	t.Run("server error logs at error with gin errors", func(t *testing.T) {
		router, logs := observedRouter(t)
		router.GET("/sessions", func(c *gin.Context) {
			_ = c.Error(errors.New("model gateway unavailable"))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/sessions", nil))

		entry := requestLine(t, logs)
		assert.Equal(t, zapcore.ErrorLevel, entry.Level)
		assert.Contains(t, entry.ContextMap(), "errors")
	})

	t.Run("query string is logged when present", func(t *testing.T) {
		router, logs := observedRouter(t)
		router.GET("/sessions", func(c *gin.Context) {
			c.Status(http.StatusOK)
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/sessions?specialty=hereditary_cancer", nil))

		fields := requestLine(t, logs).ContextMap()
		assert.Equal(t, "/sessions", fields["path"])
		assert.Equal(t, "specialty=hereditary_cancer", fields["query"])
	})

	t.Run("request id from the gin context is attached", func(t *testing.T) {
		core, logs := observer.New(zapcore.InfoLevel)
		router := gin.New()
		router.Use(func(c *gin.Context) {
			c.Set(ginRequestIDKey, "req-123")
			c.Next()
		})
		router.Use(GinMiddleware(zap.New(core)))
		router.GET("/sessions", func(c *gin.Context) {
			c.Status(http.StatusOK)
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/sessions", nil))

		assert.Equal(t, "req-123", requestLine(t, logs).ContextMap()["request_id"])
	})
}

func TestRecovery(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	router := gin.New()
	router.Use(Recovery(zap.New(core)))
	router.GET("/sessions", func(c *gin.Context) {
		panic("turn pipeline blew up")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/sessions", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	entries := logs.FilterMessage("Panic recovered").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "turn pipeline blew up", fields["error"])
	assert.Contains(t, fields, "stacktrace")
}

func TestRequestLogger(t *testing.T) {
	t.Run("enriches with the parked request id", func(t *testing.T) {
		core, logs := observer.New(zapcore.InfoLevel)
		base := zap.New(core)

		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Set(ginRequestIDKey, "req-456")

		RequestLogger(c, base).Info("health check")

		entries := logs.All()
		require.Len(t, entries, 1)
		assert.Equal(t, "req-456", entries[0].ContextMap()["request_id"])
	})

	t.Run("returns base unchanged without an id", func(t *testing.T) {
		base := zap.NewNop()
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		assert.Same(t, base, RequestLogger(c, base))
	})
}
