package middleware

import (
	"net/http"
	"net/http/httptest"
	"runtime/pprof"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genintake/backend/internal/infrastructure/telemetry"
)

// capturedLabels runs a request through the profiling middleware and
// returns the pprof labels visible inside the handler.
func capturedLabels(cfg ProfilingConfig, method, route, path string) map[string]string {
	labels := map[string]string{}

	router := gin.New()
	router.Use(ProfilingWithConfig(cfg))
	router.Handle(method, route, func(c *gin.Context) {
		ctx := c.Request.Context()
		for _, key := range []string{
			telemetry.ProfilingLabelMethod,
			telemetry.ProfilingLabelRoute,
			telemetry.ProfilingLabelController,
		} {
			if v, ok := pprof.Label(ctx, key); ok {
				labels[key] = v
			}
		}
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return labels
}

func TestDefaultProfilingConfig(t *testing.T) {
	cfg := DefaultProfilingConfig()

	assert.True(t, cfg.Enabled)
	assert.ElementsMatch(t, []string{"/health", "/healthz", "/ready", "/metrics"}, cfg.SkipPaths)
	assert.Equal(t, []string{"/debug"}, cfg.SkipPathPrefixes)
}

func TestProfilingWithConfig_LabelsRequest(t *testing.T) {
	labels := capturedLabels(DefaultProfilingConfig(),
		http.MethodPost, "/api/v1/sessions/:id/turns", "/api/v1/sessions/abc/turns")

	require.NotEmpty(t, labels)
	assert.Equal(t, http.MethodPost, labels[telemetry.ProfilingLabelMethod])
	assert.Equal(t, "/api/v1/sessions/:id/turns", labels[telemetry.ProfilingLabelRoute])
	assert.Equal(t, "sessions", labels[telemetry.ProfilingLabelController])
}

func TestProfilingWithConfig_Disabled(t *testing.T) {
	labels := capturedLabels(ProfilingConfig{Enabled: false},
		http.MethodGet, "/api/v1/protocols", "/api/v1/protocols")
	assert.Empty(t, labels)
}

func TestProfilingWithConfig_SkipPaths(t *testing.T) {
	labels := capturedLabels(DefaultProfilingConfig(),
		http.MethodGet, "/healthz", "/healthz")
	assert.Empty(t, labels)
}

func TestProfilingWithConfig_SkipPrefixes(t *testing.T) {
	labels := capturedLabels(DefaultProfilingConfig(),
		http.MethodGet, "/debug/pprof/heap", "/debug/pprof/heap")
	assert.Empty(t, labels)
}

func TestResourceFromRoute(t *testing.T) {
	cases := map[string]string{
		"/api/v1/sessions/:id/turns":      "sessions",
		"/api/v1/sessions/:id/assessment": "sessions",
		"/api/v2/protocols":               "protocols",
		"/V3/assessments":                 "assessments",
		"/healthz":                        "healthz",
		"/api/v1/:id":                     "",
		"":                                "",
	}
	for route, want := range cases {
		assert.Equal(t, want, resourceFromRoute(route), "route %q", route)
	}
}

func TestIsVersionSegment(t *testing.T) {
	for _, segment := range []string{"v1", "v12", "V3"} {
		assert.True(t, isVersionSegment(segment), segment)
	}
	for _, segment := range []string{"v", "vx", "1", "va1", "version"} {
		assert.False(t, isVersionSegment(segment), segment)
	}
}
