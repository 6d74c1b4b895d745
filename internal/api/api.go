// Package api serves relationship descriptors, graphs and cycles over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"relmap/internal/analyzer"
	"relmap/internal/graph"
	"relmap/internal/introspection"
	"relmap/internal/logging"
	"relmap/internal/render"
)

// HealthFunc reports whether the schema source is reachable.
type HealthFunc func(ctx context.Context) error

// Options configures the router.
type Options struct {
	// Exclude hides tables from every endpoint. Graph builds also honor the
	// request's exclude parameter.
	Exclude       []string
	HealthTimeout time.Duration
	// Health is nil when serving a static snapshot.
	Health HealthFunc
	// Metrics enables GET /metrics when set.
	Metrics *prometheus.Registry
	CORS    CORSConfig
	Logger  *logging.Logger
}

type handler struct {
	analyzer *analyzer.Analyzer
	builder  *graph.Builder
	opts     Options
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(a *analyzer.Analyzer, b *graph.Builder, opts Options) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = logging.FromContext(context.Background())
	}
	if opts.HealthTimeout <= 0 {
		opts.HealthTimeout = 5 * time.Second
	}
	h := &handler{analyzer: a, builder: b, opts: opts}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(opts.Logger))
	if mw := corsMiddleware(opts.CORS); mw != nil {
		router.Use(mw)
		opts.Logger.Info("CORS enabled", slog.Any("origins", opts.CORS.AllowedOrigins))
	}

	router.GET("/healthz", h.health)
	v1 := router.Group("/v1")
	v1.GET("/tables", h.tables)
	v1.GET("/tables/:table/relationships", h.relationships)
	v1.GET("/graph", h.graph)
	v1.GET("/cycles", h.cycles)

	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Metrics, promhttp.HandlerOpts{})))
		opts.Logger.Info("metrics endpoint enabled", slog.String("path", "/metrics"))
	}
	return router
}

func (h *handler) health(c *gin.Context) {
	if h.opts.Health == nil {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "source": "snapshot"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.opts.HealthTimeout)
	defer cancel()
	if err := h.opts.Health(ctx); err != nil {
		logging.FromContext(c.Request.Context()).Error("health check failed",
			slog.String("error", err.Error()),
			slog.String("check", "database"),
		)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "database": "failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "database": "ok"})
}

func (h *handler) tables(c *gin.Context) {
	run, err := h.analyzer.NewRun(c.Request.Context(), h.opts.Exclude...)
	if err != nil {
		h.fail(c, err, "failed to list tables")
		return
	}
	h.respond(c, render.TableList{Tables: run.Tables()})
}

func (h *handler) relationships(c *gin.Context) {
	table := c.Param("table")
	run, err := h.analyzer.NewRun(c.Request.Context(), h.opts.Exclude...)
	if err != nil {
		h.fail(c, err, "failed to analyze table "+table)
		return
	}
	rels, err := run.Analyze(c.Request.Context(), table)
	if err != nil {
		h.fail(c, err, "failed to analyze table "+table)
		return
	}
	h.respond(c, render.NewTableReport(table, rels))
}

func (h *handler) graph(c *gin.Context) {
	g, err := h.builder.Build(c.Request.Context(), h.excluded(c))
	if err != nil {
		h.fail(c, err, "failed to build relationship graph")
		return
	}
	h.respond(c, g)
}

func (h *handler) cycles(c *gin.Context) {
	g, err := h.builder.Build(c.Request.Context(), h.excluded(c))
	if err != nil {
		h.fail(c, err, "failed to build relationship graph")
		return
	}
	h.respond(c, render.NewCycleReport(g))
}

// excluded merges configured globs with the request's exclude parameters,
// which may be repeated or comma separated.
func (h *handler) excluded(c *gin.Context) []string {
	out := append([]string(nil), h.opts.Exclude...)
	for _, raw := range c.QueryArray("exclude") {
		for _, pattern := range strings.Split(raw, ",") {
			if pattern = strings.TrimSpace(pattern); pattern != "" {
				out = append(out, pattern)
			}
		}
	}
	return out
}

// respond writes v in the format chosen by the format query parameter or the
// Accept header. JSON is the default.
func (h *handler) respond(c *gin.Context, v any) {
	raw := c.Query("format")
	if raw == "" && strings.Contains(c.GetHeader("Accept"), "yaml") {
		raw = string(render.YAML)
	}
	format, err := render.ParseFormat(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contentType := "application/json; charset=utf-8"
	if format == render.YAML {
		contentType = "application/yaml; charset=utf-8"
	}
	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)
	if err := render.Write(c.Writer, format, v); err != nil {
		logging.FromContext(c.Request.Context()).Error("failed to write response", slog.String("error", err.Error()))
	}
}

// fail maps introspection errors to HTTP statuses. Server-side failures get a
// generic message so internal details do not leak.
func (h *handler) fail(c *gin.Context, err error, message string) {
	status := statusFor(err)
	logger := logging.FromContext(c.Request.Context())
	if status >= http.StatusInternalServerError {
		logger.Error(message, slog.String("error", err.Error()))
		c.JSON(status, gin.H{"error": message})
		return
	}
	logger.Warn(message, slog.String("error", err.Error()))
	c.JSON(status, gin.H{"error": message, "detail": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, introspection.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, introspection.ErrUnsupported):
		return http.StatusNotImplemented
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, introspection.ErrConnectionFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
