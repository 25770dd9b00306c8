package telemetry

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBMetricsConfig controls query and pool metrics collection.
type DBMetricsConfig struct {
	Enabled            bool
	SlowQueryThreshold time.Duration // queries above this increment db_slow_query_total
	PoolStatsInterval  time.Duration // pool gauge sampling period
}

// DBMetrics owns the database instruments: per operation query counts
// and latencies plus connection pool gauges.
type DBMetrics struct {
	poolConnections    *Gauge
	poolConnectionsMax *Gauge
	queryTotal         *Counter
	queryDuration      *Histogram
	slowQueryTotal     *Counter

	config   DBMetricsConfig
	logger   *zap.Logger
	sqlDB    *sql.DB
	stopCh   chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewDBMetrics registers the database instruments on the given meter.
func NewDBMetrics(meter metric.Meter, cfg DBMetricsConfig, logger *zap.Logger) (*DBMetrics, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SlowQueryThreshold == 0 {
		cfg.SlowQueryThreshold = 200 * time.Millisecond
	}
	if cfg.PoolStatsInterval == 0 {
		cfg.PoolStatsInterval = 15 * time.Second
	}

	poolConnections, err := NewGauge(meter,
		"db_pool_connections",
		"Number of connections in the pool by state",
		"{connection}",
	)
	if err != nil {
		return nil, err
	}
	poolConnectionsMax, err := NewGauge(meter,
		"db_pool_connections_max",
		"Maximum number of open connections allowed",
		"{connection}",
	)
	if err != nil {
		return nil, err
	}
	queryTotal, err := NewCounter(meter,
		"db_query_total",
		"Total number of database queries by operation",
		"{query}",
	)
	if err != nil {
		return nil, err
	}
	queryDuration, err := NewHistogram(meter, HistogramOpts{
		Name:        "db_query_duration_seconds",
		Description: "Database query latency distribution",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	slowQueryTotal, err := NewCounter(meter,
		"db_slow_query_total",
		"Total number of queries above the slow query threshold",
		"{query}",
	)
	if err != nil {
		return nil, err
	}

	return &DBMetrics{
		poolConnections:    poolConnections,
		poolConnectionsMax: poolConnectionsMax,
		queryTotal:         queryTotal,
		queryDuration:      queryDuration,
		slowQueryTotal:     slowQueryTotal,
		config:             cfg,
		logger:             logger,
		stopCh:             make(chan struct{}),
	}, nil
}

// RecordQuery records count, latency and, past the threshold, a slow
// query increment for one completed statement.
func (m *DBMetrics) RecordQuery(ctx context.Context, operation, table string, duration time.Duration) {
	operation = strings.ToUpper(operation)
	if operation == "" {
		operation = "UNKNOWN"
	}

	m.queryTotal.Inc(ctx, AttrDBOperation.String(operation))
	m.queryDuration.RecordDuration(ctx, duration, AttrDBOperation.String(operation))

	if duration > m.config.SlowQueryThreshold {
		if table == "" {
			table = "unknown"
		}
		m.slowQueryTotal.Inc(ctx, AttrDBTable.String(table))
	}
}

// ObservePool samples connection pool statistics until Stop is called
// or the context ends. No-op when no pool was attached.
func (m *DBMetrics) ObservePool(ctx context.Context) {
	if m.sqlDB == nil {
		m.logger.Warn("Cannot observe pool stats, no sql.DB attached")
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ticker := time.NewTicker(m.config.PoolStatsInterval)
		defer ticker.Stop()

		m.samplePool(ctx)
		for {
			select {
			case <-ticker.C:
				m.samplePool(ctx)
			case <-m.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	m.logger.Info("Started database pool stats collection",
		zap.Duration("interval", m.config.PoolStatsInterval),
	)
}

// samplePool records one snapshot of the pool gauges. WaitCount and
// friends are cumulative, so only the current state counts are gauged.
func (m *DBMetrics) samplePool(ctx context.Context) {
	stats := m.sqlDB.Stats()
	m.poolConnectionsMax.Record(ctx, int64(stats.MaxOpenConnections))
	m.poolConnections.Record(ctx, int64(stats.Idle), AttrDBState.String("idle"))
	m.poolConnections.Record(ctx, int64(stats.InUse), AttrDBState.String("in_use"))
	m.poolConnections.Record(ctx, int64(stats.OpenConnections), AttrDBState.String("open"))
}

// Stop terminates pool sampling. Safe to call more than once.
func (m *DBMetrics) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		m.wg.Wait()
		m.logger.Debug("Database metrics stopped")
	})
}

// DBMetricsPlugin feeds completed GORM statements into DBMetrics.
type DBMetricsPlugin struct {
	metrics *DBMetrics
}

// NewDBMetricsPlugin creates the GORM plugin for query metrics.
func NewDBMetricsPlugin(metrics *DBMetrics) *DBMetricsPlugin {
	return &DBMetricsPlugin{metrics: metrics}
}

// Name implements gorm.Plugin.
func (p *DBMetricsPlugin) Name() string {
	return "db_metrics"
}

// Initialize registers timing and recording callbacks around every
// statement type. Row and Raw statements carry no operation, so theirs
// is parsed out of the SQL text.
func (p *DBMetricsPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	hooks := []struct {
		point gormRegister
		name  string
		fn    func(*gorm.DB)
	}{
		{cb.Create().Before("gorm:create"), "db_metrics:before_create", markStart},
		{cb.Query().Before("gorm:query"), "db_metrics:before_query", markStart},
		{cb.Update().Before("gorm:update"), "db_metrics:before_update", markStart},
		{cb.Delete().Before("gorm:delete"), "db_metrics:before_delete", markStart},
		{cb.Row().Before("gorm:row"), "db_metrics:before_row", markStart},
		{cb.Raw().Before("gorm:raw"), "db_metrics:before_raw", markStart},
		{cb.Create().After("gorm:create"), "db_metrics:after_create", p.after("INSERT")},
		{cb.Query().After("gorm:query"), "db_metrics:after_query", p.after("SELECT")},
		{cb.Update().After("gorm:update"), "db_metrics:after_update", p.after("UPDATE")},
		{cb.Delete().After("gorm:delete"), "db_metrics:after_delete", p.after("DELETE")},
		{cb.Row().After("gorm:row"), "db_metrics:after_row", p.afterRaw},
		{cb.Raw().After("gorm:raw"), "db_metrics:after_raw", p.afterRaw},
	}
	for _, h := range hooks {
		if err := h.point.Register(h.name, h.fn); err != nil {
			return err
		}
	}
	return nil
}

func (p *DBMetricsPlugin) after(operation string) func(*gorm.DB) {
	return func(db *gorm.DB) { p.record(db, operation) }
}

func (p *DBMetricsPlugin) afterRaw(db *gorm.DB) {
	p.record(db, operationFromSQL(db.Statement.SQL.String()))
}

func (p *DBMetricsPlugin) record(db *gorm.DB, operation string) {
	ctx := db.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}

	var elapsed time.Duration
	if start, ok := ctx.Value(queryStartKey).(time.Time); ok {
		elapsed = time.Since(start)
	}
	p.metrics.RecordQuery(ctx, operation, db.Statement.Table, elapsed)
}

// operationFromSQL classifies a raw statement by its leading keyword.
func operationFromSQL(sql string) string {
	sql = strings.TrimSpace(strings.ToUpper(sql))
	switch {
	case strings.HasPrefix(sql, "SELECT"):
		return "SELECT"
	case strings.HasPrefix(sql, "INSERT"):
		return "INSERT"
	case strings.HasPrefix(sql, "UPDATE"):
		return "UPDATE"
	case strings.HasPrefix(sql, "DELETE"):
		return "DELETE"
	default:
		return "OTHER"
	}
}

// RegisterDBMetrics wires query metrics and pool gauges onto a GORM
// instance. Returns nil metrics when collection is disabled or the
// meter provider is inactive; callers start sampling with ObservePool
// and release it with Stop.
func RegisterDBMetrics(db *gorm.DB, meterProvider *MeterProvider, cfg DBMetricsConfig, logger *zap.Logger) (*DBMetrics, error) {
	if !cfg.Enabled || meterProvider == nil || !meterProvider.IsEnabled() {
		logger.Debug("Database metrics disabled, skipping registration")
		return nil, nil
	}

	metrics, err := NewDBMetrics(meterProvider.Meter("db.client"), cfg, logger)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	metrics.sqlDB = sqlDB

	if err := db.Use(NewDBMetricsPlugin(metrics)); err != nil {
		return nil, err
	}

	logger.Info("Database metrics registered",
		zap.Duration("slow_query_threshold", cfg.SlowQueryThreshold),
		zap.Duration("pool_stats_interval", cfg.PoolStatsInterval),
	)
	return metrics, nil
}
