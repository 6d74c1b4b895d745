package serverapp

import (
	"context"
	"fmt"
	"log/slog"

	"relmap/internal/analyzer"
	"relmap/internal/config"
	"relmap/internal/dbconn"
	"relmap/internal/graph"
	"relmap/internal/introspection"
	"relmap/internal/logging"
	"relmap/internal/naming"
	"relmap/internal/observability"
	"relmap/internal/override"
)

// InitLogger builds the process logger and, when log export is enabled, the
// OTLP logger provider that feeds it.
func InitLogger(cfg *config.Config) (*logging.Logger, *observability.LoggerProvider, error) {
	loggerCfg := logging.Config{
		Level:  cfg.Observability.Logging.Level,
		Format: cfg.Observability.Logging.Format,
	}
	logger := logging.NewLogger(loggerCfg)
	slog.SetDefault(logger.Logger)

	if !cfg.Observability.Logging.ExportsEnabled {
		return logger, nil, nil
	}

	logsConfig := cfg.Observability.GetLogsConfig()
	logger.Info("initializing OpenTelemetry logging",
		slog.String("otlp_endpoint", logsConfig.Endpoint),
		slog.String("otlp_protocol", logsConfig.Protocol),
		slog.Bool("insecure", logsConfig.Insecure),
	)

	loggerProvider, err := observability.InitLoggerProvider(context.Background(), telemetryConfig(cfg, logsConfig))
	if err != nil {
		return nil, nil, err
	}

	loggerCfg.LoggerProvider = loggerProvider.Provider()
	logger = logging.NewLogger(loggerCfg)
	slog.SetDefault(logger.Logger)

	return logger, loggerProvider, nil
}

func telemetryConfig(cfg *config.Config, otlp config.OTLPConfig) observability.Config {
	return observability.Config{
		ServiceName:      cfg.Observability.ServiceName,
		ServiceVersion:   cfg.Observability.ServiceVersion,
		Environment:      cfg.Observability.Environment,
		TraceSampleRatio: cfg.Observability.TraceSampleRatio,
		OTLPConfig: observability.OTLPExporterConfig{
			Endpoint:          otlp.Endpoint,
			Protocol:          otlp.Protocol,
			Insecure:          otlp.Insecure,
			TLSCertFile:       otlp.TLSCertFile,
			TLSClientCertFile: otlp.TLSClientCertFile,
			TLSClientKeyFile:  otlp.TLSClientKeyFile,
			Headers:           otlp.Headers,
			Timeout:           otlp.Timeout,
			Compression:       otlp.Compression,
			RetryEnabled:      otlp.RetryEnabled,
			RetryMaxAttempts:  otlp.RetryMaxAttempts,
		},
	}
}

// Init initializes telemetry, the schema source and the analysis pipeline.
// It is idempotent. On failure every resource acquired so far is released.
func (a *App) Init(ctx context.Context) error {
	a.stateMu.Lock()
	if a.initialized {
		a.stateMu.Unlock()
		return nil
	}
	a.stateMu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}

	cleanup := cleanupStack{}
	success := false
	defer func() {
		if !success {
			_ = cleanup.run(context.Background(), a.logger)
		}
	}()

	if a.loggerProvider != nil {
		cleanup.push("logger provider", func(shutdownCtx context.Context) error {
			return a.loggerProvider.Shutdown(shutdownCtx, a.logger.Logger)
		})
	}

	meterProvider, analysisMetrics, err := initMetrics(a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry metrics: %w", err)
	}
	if meterProvider != nil {
		cleanup.push("meter provider", func(shutdownCtx context.Context) error {
			return meterProvider.Shutdown(shutdownCtx, a.logger.Logger)
		})
	}

	tracerProvider, err := initTracing(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry tracing: %w", err)
	}
	if tracerProvider != nil {
		cleanup.push("tracer provider", func(shutdownCtx context.Context) error {
			return tracerProvider.Shutdown(shutdownCtx, a.logger.Logger)
		})
	}

	intro, conn, err := a.openSource(ctx)
	if err != nil {
		return err
	}
	if conn != nil {
		cleanup.push("database", func(context.Context) error {
			return conn.Close()
		})
	}

	anl, err := buildAnalyzer(a.cfg, a.logger, intro, analysisMetrics)
	if err != nil {
		return err
	}
	builder := graph.NewBuilder(anl,
		graph.WithWorkers(a.cfg.Analysis.Workers),
		graph.WithProgress(a.progress),
		graph.WithMetrics(analysisMetrics),
		graph.WithLogger(a.logger.Logger),
	)

	a.stateMu.Lock()
	a.meterProvider = meterProvider
	a.analysisMetrics = analysisMetrics
	a.tracerProvider = tracerProvider
	a.conn = conn
	a.intro = intro
	a.analyzer = anl
	a.builder = builder
	a.cleanup = cleanup
	a.initialized = true
	a.stateMu.Unlock()

	success = true
	return nil
}

func initMetrics(cfg *config.Config, logger *logging.Logger) (*observability.MeterProvider, *observability.AnalysisMetrics, error) {
	if !cfg.Observability.MetricsEnabled {
		return nil, nil, nil
	}

	meterProvider, err := observability.InitMeterProvider(telemetryConfig(cfg, config.OTLPConfig{}))
	if err != nil {
		return nil, nil, err
	}
	analysisMetrics, err := observability.InitAnalysisMetrics(logger.Logger)
	if err != nil {
		_ = meterProvider.Shutdown(context.Background(), logger.Logger)
		return nil, nil, err
	}
	logger.Info("OpenTelemetry metrics initialized")
	return meterProvider, analysisMetrics, nil
}

func initTracing(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*observability.TracerProvider, error) {
	if !cfg.Observability.TracingEnabled {
		return nil, nil
	}

	tracesConfig := cfg.Observability.GetTracesConfig()
	logger.Info("initializing OpenTelemetry tracing",
		slog.String("otlp_endpoint", tracesConfig.Endpoint),
		slog.String("otlp_protocol", tracesConfig.Protocol),
		slog.Float64("sample_ratio", cfg.Observability.TraceSampleRatio),
	)
	return observability.InitTracerProvider(ctx, telemetryConfig(cfg, tracesConfig))
}

// openSource returns the snapshot introspector when a schema file is set,
// otherwise a catalog over a live connection.
func (a *App) openSource(ctx context.Context) (introspection.Introspector, *dbconn.Conn, error) {
	if a.schemaFile != "" {
		snapshot, err := introspection.LoadSnapshot(a.schemaFile)
		if err != nil {
			return nil, nil, err
		}
		a.logger.Info("using schema snapshot",
			slog.String("path", a.schemaFile),
			slog.Int("tables", len(snapshot.Tables)),
		)
		return introspection.NewStatic(snapshot), nil, nil
	}

	a.logger.Info("connecting to database",
		slog.String("driver", a.cfg.Database.Driver),
		slog.String("host", a.cfg.Database.Host),
		slog.Int("port", a.cfg.Database.EffectivePort()),
		slog.String("schema", a.cfg.Database.EffectiveSchema()),
	)
	conn, err := dbconn.Open(ctx, a.cfg, dbconn.InstrumentationFor(a.cfg), a.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	catalog, err := conn.Catalog(a.cfg.Database)
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("failed to create catalog introspector: %w", err)
	}
	return catalog, conn, nil
}

func buildAnalyzer(cfg *config.Config, logger *logging.Logger, intro introspection.Introspector, metrics *observability.AnalysisMetrics) (*analyzer.Analyzer, error) {
	namer := naming.New(cfg.Naming, logger.Logger)

	overrides, err := override.Build(cfg.Relationships.Overrides, namer)
	if err != nil {
		return nil, fmt.Errorf("failed to load relationship overrides: %w", err)
	}
	cascade := cfg.Relationships.CascadePolicy()
	if err := cascade.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cascade policy: %w", err)
	}

	return analyzer.New(intro, namer, cfg.Analysis.AnalyzerConfig(),
		analyzer.WithFilter(cfg.SchemaFilters.WithDenied(cfg.Analysis.Exclude...)),
		analyzer.WithOverrides(overrides),
		analyzer.WithCascadePolicy(cascade),
		analyzer.WithMetrics(metrics),
		analyzer.WithLogger(logger.Logger),
	), nil
}
