package serverapp

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"relmap/internal/analyzer"
	"relmap/internal/config"
	"relmap/internal/introspection"
	"relmap/internal/logging"
	"relmap/internal/naming"
)

func testLogger() *logging.Logger {
	return logging.NewLogger(logging.Config{Level: "error", Format: "text", Output: io.Discard})
}

func testConfig() *config.Config {
	defaults := analyzer.DefaultConfig()
	return &config.Config{
		Analysis: config.AnalysisConfig{Probe: defaults.Probe, Junction: defaults.Junction, Workers: 2},
		Server: config.ServerConfig{
			TLSMode:            "off",
			ReadTimeout:        time.Second,
			WriteTimeout:       time.Second,
			IdleTimeout:        time.Second,
			HealthCheckTimeout: time.Second,
		},
		Observability: config.ObservabilityConfig{ServiceName: "relmap-test"},
		Naming:        naming.DefaultConfig(),
	}
}

func writeSnapshot(t *testing.T) string {
	t.Helper()
	users := introspection.Table{
		Name:       "users",
		Columns:    introspection.Columns{{Name: "id", DataType: "bigint"}},
		PrimaryKey: []string{"id"},
	}
	posts := introspection.Table{
		Name:       "posts",
		Columns:    introspection.Columns{{Name: "id", DataType: "bigint"}, {Name: "user_id", DataType: "bigint"}},
		PrimaryKey: []string{"id"},
		ForeignKeys: []introspection.ForeignKeyConstraint{{
			Name: "fk_posts_user", Columns: []string{"user_id"},
			ReferencedTable: "users", ReferencedColumns: []string{"id"},
		}},
	}
	path := filepath.Join(t.TempDir(), "schema.yaml")
	if err := introspection.WriteSnapshot(path, &introspection.Snapshot{Tables: []introspection.Table{users, posts}}); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}
	return path
}

func TestWaitForStop_SignalWins(t *testing.T) {
	app := &App{logger: testLogger()}
	stop := make(chan os.Signal, 1)
	serverErrors := make(chan error, 1)

	stop <- syscall.SIGTERM

	reason, err := app.WaitForStop(stop, serverErrors)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reason != "signal" {
		t.Fatalf("expected reason=signal, got %q", reason)
	}
}

func TestWaitForStop_ServerErrorWins(t *testing.T) {
	app := &App{logger: testLogger()}
	serverErrors := make(chan error, 1)
	serverErrors <- errors.New("boom")

	reason, err := app.WaitForStop(nil, serverErrors)
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if reason != "server_error" {
		t.Fatalf("expected reason=server_error, got %q", reason)
	}
}

func TestShutdown_Idempotent(t *testing.T) {
	app := &App{logger: testLogger()}
	var calls int32
	app.cleanup.push("test", func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := app.Shutdown(ctx); err != nil {
		t.Fatalf("first shutdown failed: %v", err)
	}
	if err := app.Shutdown(ctx); err != nil {
		t.Fatalf("second shutdown failed: %v", err)
	}

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected cleanup to run once, ran %d times", got)
	}
}

func TestCleanupRunsInReverseOrder(t *testing.T) {
	var order []string
	stack := cleanupStack{}
	for _, name := range []string{"metrics", "database", "server"} {
		stack.push(name, func(context.Context) error {
			order = append(order, name)
			return nil
		})
	}
	stack.run(context.Background(), testLogger())
	if strings.Join(order, ",") != "server,database,metrics" {
		t.Fatalf("unexpected cleanup order %v", order)
	}
}

func TestShutdown_ReportsEveryCleanupFailure(t *testing.T) {
	app := &App{logger: testLogger()}
	ran := 0
	app.cleanup.push("database", func(context.Context) error {
		ran++
		return errors.New("close failed")
	})
	app.cleanup.push("HTTP server", func(context.Context) error {
		ran++
		return errors.New("listener busy")
	})

	err := app.Shutdown(context.Background())
	if err == nil {
		t.Fatal("expected shutdown error")
	}
	if ran != 2 {
		t.Fatalf("expected both cleanups to run, ran %d", ran)
	}
	for _, want := range []string{"database: close failed", "HTTP server: listener busy"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q missing %q", err, want)
		}
	}
	if again := app.Shutdown(context.Background()); again != err {
		t.Fatalf("second shutdown returned %v, want the first result", again)
	}
}

func TestStart_BeforeInit_Fails(t *testing.T) {
	app := &App{logger: testLogger()}
	if _, err := app.Start(); err == nil {
		t.Fatalf("expected start to fail before init")
	}
}

func TestStartAndShutdown_HappyPath(t *testing.T) {
	app := &App{
		cfg:        testConfig(),
		logger:     testLogger(),
		serverAddr: "127.0.0.1:0",
		srv: &http.Server{
			Addr:    "127.0.0.1:0",
			Handler: http.NewServeMux(),
		},
		initialized: true,
	}
	app.cleanup.push("HTTP server", func(ctx context.Context) error {
		return app.srv.Shutdown(ctx)
	})

	if _, err := app.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := app.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
}

func TestInitFromSnapshot(t *testing.T) {
	cfg := testConfig()
	cfg.Observability.MetricsEnabled = true

	app, err := New(cfg, testLogger(), WithSchemaFile(writeSnapshot(t)))
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}
	if err := app.Init(context.Background()); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	defer func() { _ = app.Shutdown(context.Background()) }()

	rels, err := app.Analyzer().Analyze(context.Background(), "posts")
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	if len(rels) != 1 || rels[0].MethodName != "user" {
		t.Fatalf("unexpected relationships %+v", rels)
	}

	g, err := app.Builder().Build(context.Background(), nil)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if _, ok := g.Lookup("users", "posts"); !ok {
		t.Fatalf("expected users.posts in graph")
	}

	path := filepath.Join(t.TempDir(), "relmap.prom")
	if err := app.WriteMetrics(path); err != nil {
		t.Fatalf("write metrics failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(data), "relmap_graph_build_duration") {
		t.Fatalf("expected graph build metrics, got:\n%s", data)
	}
}

func TestInitAppliesAnalysisExclusions(t *testing.T) {
	cfg := testConfig()
	cfg.Analysis.Exclude = []string{"posts"}

	app, err := New(cfg, testLogger(), WithSchemaFile(writeSnapshot(t)))
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}
	if err := app.Init(context.Background()); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	defer func() { _ = app.Shutdown(context.Background()) }()

	rels, err := app.Analyzer().Analyze(context.Background(), "users")
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	for _, rel := range rels {
		if rel.TargetTable == "posts" {
			t.Fatalf("excluded table posts surfaced as a partner: %+v", rel)
		}
	}

	if _, err := app.Analyzer().Analyze(context.Background(), "posts"); !errors.Is(err, introspection.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for excluded table, got %v", err)
	}
}

func TestWriteMetrics_DisabledFails(t *testing.T) {
	app, err := New(testConfig(), testLogger(), WithSchemaFile(writeSnapshot(t)))
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}
	if err := app.Init(context.Background()); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	defer func() { _ = app.Shutdown(context.Background()) }()

	if err := app.WriteMetrics(filepath.Join(t.TempDir(), "m.prom")); err == nil {
		t.Fatalf("expected error when metrics are disabled")
	}
}

func TestInitFailure_DoesNotMarkInitialized(t *testing.T) {
	cfg := testConfig()
	cfg.Database = config.DatabaseConfig{
		Driver:   config.DriverMySQL,
		Host:     "127.0.0.1",
		Port:     1,
		User:     "root",
		Password: "invalid",
		Database: "test",
		TLS:      config.DatabaseTLSConfig{Mode: "off"},
		Pool: config.PoolConfig{
			MaxOpen:     1,
			MaxIdle:     1,
			MaxLifetime: time.Second,
		},
		ConnectionTimeout:       0,
		ConnectionRetryInterval: 10 * time.Millisecond,
	}

	app, err := New(cfg, testLogger())
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}

	if err := app.Init(context.Background()); err == nil {
		t.Fatalf("expected init to fail with unreachable database")
	}

	app.stateMu.Lock()
	initialized := app.initialized
	app.stateMu.Unlock()
	if initialized {
		t.Fatalf("app should not be marked initialized after failed Init")
	}
}

func TestInitFailure_MissingSnapshot(t *testing.T) {
	app, err := New(testConfig(), testLogger(), WithSchemaFile(filepath.Join(t.TempDir(), "missing.yaml")))
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}
	if err := app.Init(context.Background()); err == nil {
		t.Fatalf("expected init to fail for a missing snapshot")
	}
}
