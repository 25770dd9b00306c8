package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig controls query span enrichment.
type DBTracingConfig struct {
	Enabled          bool
	LogFullSQL       bool          // include full SQL statements in spans, dev only
	SlowQueryThresh  time.Duration // queries above this get a slow_query event and a warning log
	DBSystem         string
	WithoutVariables bool // strip bind variables from recorded statements
}

// DBTracingPlugin layers slow query detection and error marking on top of
// the otelgorm spans.
type DBTracingPlugin struct {
	config DBTracingConfig
	logger *zap.Logger
}

// NewDBTracingPlugin creates a database tracing plugin.
func NewDBTracingPlugin(cfg DBTracingConfig, logger *zap.Logger) *DBTracingPlugin {
	return &DBTracingPlugin{config: cfg, logger: logger}
}

// RegisterOtelGorm installs the otelgorm plugin plus the timing callbacks
// on the given GORM instance. A disabled config registers nothing.
func (p *DBTracingPlugin) RegisterOtelGorm(db *gorm.DB) error {
	if !p.config.Enabled {
		p.logger.Debug("Database tracing disabled, skipping otelgorm registration")
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(p.config.DBSystem)}
	if !p.config.LogFullSQL || p.config.WithoutVariables {
		// Bind variables carry family history details, so spans never
		// record them unless full SQL logging is switched on.
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}

	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return fmt.Errorf("install otelgorm plugin: %w", err)
	}
	if err := p.registerCallbacks(db); err != nil {
		return err
	}

	p.logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", p.config.LogFullSQL),
		zap.Duration("slow_query_threshold", p.config.SlowQueryThresh),
		zap.String("db_system", p.config.DBSystem),
	)
	return nil
}

// gormRegister is the registration point returned by GORM's callback
// chain. Declared here because GORM keeps the concrete type unexported.
type gormRegister interface {
	Register(name string, fn func(*gorm.DB)) error
}

// registerCallbacks hooks markStart before and annotateSpan after every
// statement type GORM dispatches.
func (p *DBTracingPlugin) registerCallbacks(db *gorm.DB) error {
	cb := db.Callback()
	hooks := []struct {
		point gormRegister
		name  string
		fn    func(*gorm.DB)
	}{
		{cb.Create().Before("gorm:create"), "db_tracing:before_create", markStart},
		{cb.Query().Before("gorm:query"), "db_tracing:before_query", markStart},
		{cb.Update().Before("gorm:update"), "db_tracing:before_update", markStart},
		{cb.Delete().Before("gorm:delete"), "db_tracing:before_delete", markStart},
		{cb.Row().Before("gorm:row"), "db_tracing:before_row", markStart},
		{cb.Raw().Before("gorm:raw"), "db_tracing:before_raw", markStart},
		{cb.Create().After("gorm:create"), "db_tracing:after_create", p.annotateSpan},
		{cb.Query().After("gorm:query"), "db_tracing:after_query", p.annotateSpan},
		{cb.Update().After("gorm:update"), "db_tracing:after_update", p.annotateSpan},
		{cb.Delete().After("gorm:delete"), "db_tracing:after_delete", p.annotateSpan},
		{cb.Row().After("gorm:row"), "db_tracing:after_row", p.annotateSpan},
		{cb.Raw().After("gorm:raw"), "db_tracing:after_raw", p.annotateSpan},
	}
	for _, h := range hooks {
		if err := h.point.Register(h.name, h.fn); err != nil {
			return fmt.Errorf("register callback %s: %w", h.name, err)
		}
	}
	return nil
}

type contextKey string

const queryStartKey contextKey = "db_tracing_query_start"

// markStart stamps the statement context so annotateSpan can measure
// elapsed time across the whole callback chain, not just the SQL round
// trip.
func markStart(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, queryStartKey, time.Now())
	}
}

// annotateSpan enriches the active otelgorm span with row counts, the
// table touched, error status and slow query events.
func (p *DBTracingPlugin) annotateSpan(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if span == nil || !span.IsRecording() {
		return
	}

	if db.Statement.RowsAffected >= 0 {
		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	}
	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}

	// A missing record is an answer, not a failure.
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error)
	}

	start, ok := ctx.Value(queryStartKey).(time.Time)
	if !ok {
		return
	}
	if elapsed := time.Since(start); elapsed > p.config.SlowQueryThresh {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
		span.AddEvent("slow_query", trace.WithAttributes(
			attribute.Int64("duration_ms", elapsed.Milliseconds()),
			attribute.Int64("threshold_ms", p.config.SlowQueryThresh.Milliseconds()),
		))
		p.logger.Warn("Slow query detected",
			zap.String("table", db.Statement.Table),
			zap.Duration("elapsed", elapsed),
			zap.Duration("threshold", p.config.SlowQueryThresh),
		)
	}
}
