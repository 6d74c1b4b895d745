// Package serverapp owns the runtime lifecycle shared by every relmap command:
// telemetry providers, the schema source, the analyzer and graph builder, and
// for serve, the HTTP server.
package serverapp

import (
	"fmt"
	"net/http"
	"sync"

	"relmap/internal/analyzer"
	"relmap/internal/config"
	"relmap/internal/dbconn"
	"relmap/internal/graph"
	"relmap/internal/introspection"
	"relmap/internal/logging"
	"relmap/internal/observability"
)

// App owns runtime resources for one relmap process.
type App struct {
	cfg    *config.Config
	logger *logging.Logger

	schemaFile string
	progress   graph.ProgressFunc

	loggerProvider  *observability.LoggerProvider
	meterProvider   *observability.MeterProvider
	analysisMetrics *observability.AnalysisMetrics
	tracerProvider  *observability.TracerProvider

	conn     *dbconn.Conn
	intro    introspection.Introspector
	analyzer *analyzer.Analyzer
	builder  *graph.Builder

	serverAddr string
	srv        *http.Server

	cleanup cleanupStack

	stateMu      sync.Mutex
	initialized  bool
	started      bool
	serverErrors chan error

	shutdownOnce sync.Once
	shutdownErr  error
}

// Option configures an App.
type Option func(*App)

// WithSchemaFile reads schema metadata from a snapshot file instead of a
// live database.
func WithSchemaFile(path string) Option {
	return func(a *App) {
		a.schemaFile = path
	}
}

// WithProgress reports per-table graph build progress.
func WithProgress(fn graph.ProgressFunc) Option {
	return func(a *App) {
		a.progress = fn
	}
}

// New creates an App lifecycle wrapper.
func New(cfg *config.Config, logger *logging.Logger, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	a := &App{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// AttachLoggerProvider registers an optional logger provider for shutdown cleanup.
func (a *App) AttachLoggerProvider(provider *observability.LoggerProvider) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	a.loggerProvider = provider
}

// Analyzer returns the initialized analyzer.
func (a *App) Analyzer() *analyzer.Analyzer {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.analyzer
}

// Builder returns the initialized graph builder.
func (a *App) Builder() *graph.Builder {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.builder
}

// Introspector returns the schema source.
func (a *App) Introspector() introspection.Introspector {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.intro
}

// WriteMetrics writes the current metrics to path in the textfile format.
func (a *App) WriteMetrics(path string) error {
	a.stateMu.Lock()
	mp := a.meterProvider
	a.stateMu.Unlock()
	if mp == nil {
		return fmt.Errorf("metrics are disabled")
	}
	return mp.WriteTextfile(path)
}
