package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/genintake/backend/internal/infrastructure/telemetry"
)

// HTTPMetricsConfig configures request metrics collection.
type HTTPMetricsConfig struct {
	MeterProvider *telemetry.MeterProvider
	ServiceName   string
	Enabled       bool
}

// HTTPMetrics records request count, latency, payload sizes and the
// number of in-flight requests per route. When metrics are disabled
// or the provider is missing it degrades to a pass-through handler.
func HTTPMetrics(cfg HTTPMetricsConfig) gin.HandlerFunc {
	if !cfg.Enabled || cfg.MeterProvider == nil || !cfg.MeterProvider.IsEnabled() {
		return passthrough
	}
	return HTTPMetricsWithMeter(cfg.MeterProvider.Meter("http.server"), true)
}

// HTTPMetricsWithMeter builds the middleware on a caller-supplied
// meter. Instrument registration failures disable collection instead
// of failing the request path.
func HTTPMetricsWithMeter(meter metric.Meter, enabled bool) gin.HandlerFunc {
	if !enabled {
		return passthrough
	}
	ins, err := newRequestInstruments(meter)
	if err != nil {
		return passthrough
	}
	return ins.handler()
}

func passthrough(c *gin.Context) {
	c.Next()
}

type requestInstruments struct {
	total     *telemetry.Counter
	duration  *telemetry.Histogram
	reqBytes  *telemetry.Histogram
	respBytes *telemetry.Histogram
	inFlight  metric.Int64UpDownCounter
}

var payloadSizeBuckets = []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000, 1000000, 5000000}

func newRequestInstruments(meter metric.Meter) (*requestInstruments, error) {
	total, err := telemetry.NewCounter(
		meter,
		"http_server_request_total",
		"Total number of HTTP requests",
		"{request}",
	)
	if err != nil {
		return nil, err
	}

	duration, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "http_server_request_duration_seconds",
		Description: "HTTP request latency distribution in seconds",
		Unit:        "s",
		Boundaries:  telemetry.HTTPDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	reqBytes, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "http_server_request_size_bytes",
		Description: "HTTP request body size distribution in bytes",
		Unit:        "By",
		Boundaries:  payloadSizeBuckets,
	})
	if err != nil {
		return nil, err
	}

	respBytes, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "http_server_response_size_bytes",
		Description: "HTTP response body size distribution in bytes",
		Unit:        "By",
		Boundaries:  payloadSizeBuckets,
	})
	if err != nil {
		return nil, err
	}

	inFlight, err := meter.Int64UpDownCounter(
		"http_server_active_requests",
		metric.WithDescription("Number of currently active HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	return &requestInstruments{
		total:     total,
		duration:  duration,
		reqBytes:  reqBytes,
		respBytes: respBytes,
		inFlight:  inFlight,
	}, nil
}

func (ins *requestInstruments) handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		start := time.Now()

		ins.inFlight.Add(ctx, 1)
		c.Next()
		ins.inFlight.Add(ctx, -1)

		elapsed := time.Since(start)

		// The matched route pattern keeps label cardinality bounded;
		// unmatched requests share a single bucket.
		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		attrs := []attribute.KeyValue{
			telemetry.AttrHTTPMethod.String(c.Request.Method),
			telemetry.AttrHTTPRoute.String(route),
		}

		ins.total.Inc(ctx, append(attrs, telemetry.AttrHTTPStatusCode.Int(c.Writer.Status()))...)
		ins.duration.RecordDuration(ctx, elapsed, attrs...)

		if size := c.Request.ContentLength; size > 0 {
			ins.reqBytes.Record(ctx, float64(size), attrs...)
		}
		if size := c.Writer.Size(); size > 0 {
			ins.respBytes.Record(ctx, float64(size), attrs...)
		}
	}
}
