package serverapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"relmap/internal/api"
	"relmap/internal/config"
	"relmap/internal/logging"
)

// Start builds the HTTP server on first use and launches it. It requires
// Init to have completed.
func (a *App) Start() (<-chan error, error) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()

	if !a.initialized {
		return nil, fmt.Errorf("app is not initialized")
	}
	if a.started {
		return a.serverErrors, nil
	}

	if a.srv == nil {
		a.serverAddr = fmt.Sprintf(":%d", a.cfg.Server.Port)
		a.srv = buildServer(a.cfg, wrapHTTPHandler(a.cfg, a.logger, a.router()), a.serverAddr)
		srv := a.srv
		a.cleanup.push("HTTP server", func(shutdownCtx context.Context) error {
			return srv.Shutdown(shutdownCtx)
		})
	}

	a.serverErrors = startServer(a.cfg, a.logger, a.srv, a.serverAddr)
	a.started = true
	return a.serverErrors, nil
}

// router must be called with stateMu held.
func (a *App) router() http.Handler {
	opts := api.Options{
		Exclude:       a.cfg.Analysis.Exclude,
		HealthTimeout: a.cfg.Server.HealthCheckTimeout,
		Logger:        a.logger,
		CORS: api.CORSConfig{
			Enabled:          a.cfg.Server.CORSEnabled,
			AllowedOrigins:   a.cfg.Server.CORSAllowedOrigins,
			AllowedMethods:   a.cfg.Server.CORSAllowedMethods,
			AllowedHeaders:   a.cfg.Server.CORSAllowedHeaders,
			AllowCredentials: a.cfg.Server.CORSAllowCredentials,
			MaxAge:           time.Duration(a.cfg.Server.CORSMaxAge) * time.Second,
		},
	}
	if conn := a.conn; conn != nil {
		opts.Health = func(ctx context.Context) error {
			return conn.Ping(ctx, 0)
		}
	}
	if a.meterProvider != nil {
		opts.Metrics = a.meterProvider.Registry()
	}
	return api.NewRouter(a.analyzer, a.builder, opts)
}

func wrapHTTPHandler(cfg *config.Config, logger *logging.Logger, handler http.Handler) http.Handler {
	if !cfg.Observability.MetricsEnabled && !cfg.Observability.TracingEnabled {
		return handler
	}
	logger.Info("HTTP instrumentation enabled")
	return otelhttp.NewHandler(handler, "http.server",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return httpRootSpanName(r)
		}),
		otelhttp.WithMessageEvents(otelhttp.ReadEvents, otelhttp.WriteEvents),
	)
}

func httpRootSpanName(r *http.Request) string {
	if r == nil {
		return "HTTP /*"
	}
	method := strings.TrimSpace(r.Method)
	if method == "" {
		method = "HTTP"
	}
	return method + " " + normalizeHTTPSpanRoute(r.URL.Path)
}

// normalizeHTTPSpanRoute keeps span names low-cardinality by collapsing table
// names and unknown paths.
func normalizeHTTPSpanRoute(rawPath string) string {
	switch rawPath {
	case "/healthz", "/metrics", "/v1/tables", "/v1/graph", "/v1/cycles":
		return rawPath
	}
	if rest, ok := strings.CutPrefix(rawPath, "/v1/tables/"); ok {
		if name, ok := strings.CutSuffix(rest, "/relationships"); ok && name != "" && !strings.Contains(name, "/") {
			return "/v1/tables/:table/relationships"
		}
	}
	return "/*"
}

func buildServer(cfg *config.Config, handler http.Handler, serverAddr string) *http.Server {
	return &http.Server{
		Addr:         serverAddr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
}

func startServer(cfg *config.Config, logger *logging.Logger, srv *http.Server, serverAddr string) chan error {
	serverErrors := make(chan error, 1)
	tlsEnabled := cfg.Server.TLSMode == "file"
	go func() {
		protocol := "http"
		if tlsEnabled {
			protocol = "https"
		}
		logAttrs := []any{
			slog.String("protocol", protocol),
			slog.String("address", serverAddr),
			slog.String("health_endpoint", "/healthz"),
			slog.Bool("tls_enabled", tlsEnabled),
		}
		if cfg.Observability.MetricsEnabled {
			logAttrs = append(logAttrs, slog.String("metrics_endpoint", "/metrics"))
		}
		logger.Info("server starting", logAttrs...)

		var err error
		if tlsEnabled {
			err = srv.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- fmt.Errorf("server failed: %w", err)
		}
	}()
	return serverErrors
}

// WaitForStop waits for either an OS signal or a server error.
func (a *App) WaitForStop(stop <-chan os.Signal, serverErrors <-chan error) (reason string, err error) {
	if serverErrors == nil {
		a.stateMu.Lock()
		serverErrors = a.serverErrors
		a.stateMu.Unlock()
	}

	if stop == nil && serverErrors == nil {
		return "", fmt.Errorf("both stop and serverErrors channels are nil")
	}

	select {
	case err := <-serverErrors:
		if err == nil {
			return "server_error", fmt.Errorf("server stopped unexpectedly")
		}
		return "server_error", fmt.Errorf("server failed: %w", err)
	case sig := <-stop:
		if a.logger != nil {
			a.logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		}
		return "signal", nil
	}
}
