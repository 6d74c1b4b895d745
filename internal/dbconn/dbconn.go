// Package dbconn opens instrumented database handles for the configured
// driver and builds the catalog introspector on top of them.
package dbconn

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/XSAM/otelsql"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/microsoft/go-mssqldb"
	_ "github.com/sijms/go-ora/v2"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"relmap/internal/config"
	"relmap/internal/introspection"
	"relmap/internal/logging"
)

// Instrumentation selects which otelsql features wrap the handle.
type Instrumentation struct {
	Metrics      bool
	Tracing      bool
	SQLCommenter bool
}

// InstrumentationFor reads the instrumentation switches from config.
func InstrumentationFor(cfg *config.Config) Instrumentation {
	return Instrumentation{
		Metrics:      cfg.Observability.MetricsEnabled,
		Tracing:      cfg.Observability.TracingEnabled,
		SQLCommenter: cfg.Observability.SQLCommenterEnabled,
	}
}

// Conn is an open, verified database handle.
type Conn struct {
	DB         *sql.DB
	driver     string
	dbStatsReg interface{ Unregister() error }
	logger     *logging.Logger
}

// opener is swapped in tests.
var opener = func(driver, dsn string, inst Instrumentation, attrs []attribute.KeyValue) (*sql.DB, error) {
	if !inst.Metrics && !inst.Tracing {
		return sql.Open(driver, dsn)
	}
	opts := []otelsql.Option{otelsql.WithAttributes(attrs...)}
	if inst.Tracing {
		opts = append(opts, otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}))
		if inst.SQLCommenter {
			opts = append(opts, otelsql.WithSQLCommenter(true))
		}
	}
	return otelsql.Open(driver, dsn, opts...)
}

// Open connects to the configured database, applies pool settings and waits
// until it answers a ping or the connection timeout elapses.
func Open(ctx context.Context, cfg *config.Config, inst Instrumentation, logger *logging.Logger) (*Conn, error) {
	dbCfg := &cfg.Database
	if err := dbCfg.RegisterTLS(); err != nil {
		return nil, fmt.Errorf("failed to register database TLS config: %w", err)
	}
	dsn, err := dbCfg.DSN()
	if err != nil {
		return nil, fmt.Errorf("failed to build database DSN: %w", err)
	}

	if inst.SQLCommenter && !inst.Tracing {
		logger.Warn("SQLCommenter requires tracing to be enabled - skipping SQLCommenter")
	}

	driver := dbCfg.SQLDriverName()
	attrs := []attribute.KeyValue{systemAttribute(dbCfg.Driver)}
	db, err := opener(driver, dsn, inst, attrs)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", driver, err)
	}

	conn := &Conn{DB: db, driver: dbCfg.Driver, logger: logger}
	if inst.Metrics {
		reg, err := otelsql.RegisterDBStatsMetrics(db, otelsql.WithAttributes(attrs...))
		if err != nil {
			logger.Warn("failed to register DB stats metrics", slog.String("error", err.Error()))
		} else {
			conn.dbStatsReg = reg
		}
	}

	db.SetMaxOpenConns(dbCfg.Pool.MaxOpen)
	db.SetMaxIdleConns(dbCfg.Pool.MaxIdle)
	db.SetConnMaxLifetime(dbCfg.Pool.MaxLifetime)

	if err := waitForDatabase(ctx, db, dbCfg.ConnectionTimeout, dbCfg.ConnectionRetryInterval, logger); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to verify database connection: %w", err)
	}

	logger.Info("connected to database",
		slog.String("driver", dbCfg.Driver),
		slog.String("schema", dbCfg.EffectiveSchema()),
		slog.Bool("dsn_present", dbCfg.ConnectionString != ""),
		slog.Bool("instrumented", inst.Metrics || inst.Tracing),
		slog.Int("pool_max_open", dbCfg.Pool.MaxOpen),
		slog.Int("pool_max_idle", dbCfg.Pool.MaxIdle),
		slog.Duration("pool_max_lifetime", dbCfg.Pool.MaxLifetime),
	)
	return conn, nil
}

// Catalog returns an introspector over the connection for the configured
// driver's dialect and schema.
func (c *Conn) Catalog(dbCfg config.DatabaseConfig) (*introspection.Catalog, error) {
	dialect, err := introspection.DialectFor(c.driver)
	if err != nil {
		return nil, err
	}
	return introspection.NewCatalog(c.DB, dialect,
		introspection.WithSchema(dbCfg.EffectiveSchema()),
		introspection.WithQueryTimeout(dbCfg.QueryTimeout),
	), nil
}

// Ping checks connectivity within timeout.
func (c *Conn) Ping(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return c.DB.PingContext(ctx)
}

// Close unregisters stats metrics and closes the handle.
func (c *Conn) Close() error {
	if c.dbStatsReg != nil {
		if err := c.dbStatsReg.Unregister(); err != nil {
			c.logger.Warn("failed to unregister DB stats metrics", slog.String("error", err.Error()))
		}
		c.dbStatsReg = nil
	}
	return c.DB.Close()
}

func systemAttribute(driver string) attribute.KeyValue {
	switch driver {
	case config.DriverPostgres, config.DriverPgx:
		return semconv.DBSystemPostgreSQL
	case config.DriverSQLServer:
		return semconv.DBSystemMSSQL
	case config.DriverOracle:
		return semconv.DBSystemOracle
	default:
		return semconv.DBSystemMySQL
	}
}

type pinger interface {
	PingContext(ctx context.Context) error
}

// waitForDatabase pings until success. A zero timeout tries exactly once.
func waitForDatabase(ctx context.Context, db pinger, timeout, interval time.Duration, logger *logging.Logger) error {
	if timeout == 0 {
		return db.PingContext(ctx)
	}
	if interval <= 0 {
		interval = time.Second
	}

	deadline := time.Now().Add(timeout)
	attempt := 0
	for {
		attempt++
		err := db.PingContext(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Info("database connection established", slog.Int("attempts", attempt))
			}
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("database not available after %v: %w", timeout, err)
		}

		logger.Warn("database not ready, retrying...",
			slog.Int("attempt", attempt),
			slog.Duration("retry_in", interval),
			slog.String("error", err.Error()),
		)
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
