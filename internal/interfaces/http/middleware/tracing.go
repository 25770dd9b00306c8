// Package middleware provides HTTP middleware for the assessment API.
package middleware

import (
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Limits on attribute values read from untrusted request input.
const (
	// MaxRequestIDLength caps request IDs read from inbound headers.
	MaxRequestIDLength = 128
	// MaxSessionIDLength caps session IDs taken from the route path.
	MaxSessionIDLength = 64
)

// uuidRegex validates UUID format for session IDs taken from the request path.
var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// TracingConfig holds configuration for the tracing middleware.
type TracingConfig struct {
	// ServiceName is the name of the service for trace identification.
	ServiceName string
	// Enabled controls whether tracing is active.
	Enabled bool
}

// DefaultTracingConfig returns default tracing configuration.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName: "genintake-backend",
		Enabled:     true,
	}
}

// Tracing returns OpenTelemetry tracing middleware with default configuration.
func Tracing() gin.HandlerFunc {
	return TracingWithConfig(DefaultTracingConfig())
}

// TracingWithConfig returns OpenTelemetry tracing middleware with custom configuration.
// The span name follows the format "HTTP METHOD route_pattern"
// (e.g. "POST /api/v1/sessions/:id/turns").
//
// otelgin ends the span when the request completes, so middleware that
// enriches the span (TracingAttributeInjector, SpanErrorMarker) must be
// placed after this one in the chain.
func TracingWithConfig(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}
	return otelgin.Middleware(cfg.ServiceName)
}

// TracingAttributeInjector returns a middleware that injects request and
// session attributes into the current span:
//   - request_id: from the RequestID middleware or X-Request-ID header
//   - session_id: from the :id route parameter, when it is a valid UUID
func TracingAttributeInjector() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if span.IsRecording() {
			enrichSpanWithAttributes(c, span)
		}
		c.Next()
	}
}

// enrichSpanWithAttributes adds custom attributes to the span from the request context.
func enrichSpanWithAttributes(c *gin.Context, span trace.Span) {
	if requestID := getRequestID(c); requestID != "" {
		span.SetAttributes(attribute.String("request_id", requestID))
	}

	if sessionID := getSessionID(c); sessionID != "" {
		span.SetAttributes(attribute.String("session_id", sessionID))
	}
}

// getRequestID retrieves the request ID set by the RequestID middleware,
// falling back to the inbound X-Request-ID header. Header values are
// truncated to MaxRequestIDLength.
func getRequestID(c *gin.Context) string {
	if requestID, exists := c.Get("request_id"); exists {
		if id, ok := requestID.(string); ok && id != "" {
			return id
		}
	}

	headerID := c.GetHeader("X-Request-ID")
	if len(headerID) > MaxRequestIDLength {
		return headerID[:MaxRequestIDLength]
	}
	return headerID
}

// getSessionID retrieves the session ID from the :id route parameter.
// Only UUID-shaped values make it onto the span.
func getSessionID(c *gin.Context) string {
	id := c.Param("id")
	if id != "" && isValidSessionID(id) {
		return id
	}
	return ""
}

// isValidSessionID reports whether id is a well-formed UUID within the
// length limit.
func isValidSessionID(id string) bool {
	if len(id) > MaxSessionIDLength {
		return false
	}
	return uuidRegex.MatchString(id)
}

// SpanErrorMarker returns a middleware that marks the current span with
// error status for 4xx and 5xx responses. It must run after the Tracing
// middleware in the chain.
func SpanErrorMarker() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}

		statusCode := c.Writer.Status()
		if statusCode < http.StatusBadRequest {
			return
		}

		var message string
		switch {
		case statusCode >= http.StatusInternalServerError:
			message = "Internal Server Error"
		case statusCode == http.StatusNotFound:
			message = "Not Found"
		case statusCode == http.StatusConflict:
			message = "Conflict"
		default:
			message = "Client Error"
		}

		span.SetStatus(codes.Error, message)
		span.SetAttributes(attribute.Int("http.status_code", statusCode))
	}
}
