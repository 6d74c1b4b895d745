package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"relmap/internal/config"
	"relmap/internal/logging"
	"relmap/internal/render"
	"relmap/internal/serverapp"
)

// rootOptions holds the flags shared by every subcommand that are not part
// of the layered configuration.
type rootOptions struct {
	output      string
	schemaFile  string
	metricsFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "relmap",
		Short: "Infer ORM relationships from database schema metadata",
		Long: `relmap reads tables, columns and foreign keys from a live database or a
schema snapshot and reports the ORM relationships they imply: direct
references, inverse collections, many-to-many through junction tables and
polymorphic associations.`,
		Version:       fmt.Sprintf("%s (%s)", Version, Commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("relmap {{.Version}}\n")

	flags := cmd.PersistentFlags()
	config.DefineFlags(flags)
	flags.StringVar(&opts.output, "output", "json", "Output format (json, yaml)")
	flags.StringVar(&opts.schemaFile, "schema-file", "", "Read schema metadata from a snapshot file instead of a database")
	flags.StringVar(&opts.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit (enables metrics)")

	cmd.AddCommand(
		newAnalyzeCmd(opts),
		newGraphCmd(opts),
		newCyclesCmd(opts),
		newSnapshotCmd(opts),
		newServeCmd(opts),
	)
	return cmd
}

// session is an initialized App plus what a subcommand needs to report and
// tear it down.
type session struct {
	cfg         *config.Config
	app         *serverapp.App
	logger      *logging.Logger
	format      render.Format
	metricsFile string
}

// open loads and validates configuration, then initializes an App.
func (o *rootOptions) open(cmd *cobra.Command, appOpts ...serverapp.Option) (*session, error) {
	format, err := render.ParseFormat(o.output)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Observability.ServiceVersion == "" {
		cfg.Observability.ServiceVersion = Version
	}
	if o.metricsFile != "" {
		cfg.Observability.MetricsEnabled = true
	}

	if err := validate(cfg, o.schemaFile != ""); err != nil {
		return nil, err
	}

	logger, loggerProvider, err := serverapp.InitLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	if o.schemaFile != "" {
		appOpts = append(appOpts, serverapp.WithSchemaFile(o.schemaFile))
	}
	app, err := serverapp.New(cfg, logger, appOpts...)
	if err != nil {
		if loggerProvider != nil {
			_ = loggerProvider.Shutdown(context.Background(), logger.Logger)
		}
		return nil, err
	}
	app.AttachLoggerProvider(loggerProvider)

	if err := app.Init(cmd.Context()); err != nil {
		return nil, err
	}

	return &session{
		cfg:         cfg,
		app:         app,
		logger:      logger,
		format:      format,
		metricsFile: o.metricsFile,
	}, nil
}

// close writes the metrics file if requested and releases the App.
func (s *session) close() error {
	var metricsErr error
	if s.metricsFile != "" {
		metricsErr = s.app.WriteMetrics(s.metricsFile)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	return errors.Join(metricsErr, s.app.Shutdown(ctx))
}

// validate logs every configuration issue and fails when any is an error.
// Database settings are irrelevant when reading a snapshot file.
func validate(cfg *config.Config, offline bool) error {
	result := cfg.Validate()
	for _, warn := range result.Warnings {
		slog.Warn("configuration warning",
			slog.String("field", warn.Field),
			slog.String("message", warn.Message),
			slog.String("hint", warn.Hint),
		)
	}

	failed := false
	for _, err := range result.Errors {
		if offline && strings.HasPrefix(err.Field, "database.") {
			continue
		}
		failed = true
		slog.Error("configuration error",
			slog.String("field", err.Field),
			slog.String("message", err.Message),
			slog.String("hint", err.Hint),
		)
	}
	if failed {
		return fmt.Errorf("configuration validation failed")
	}
	return nil
}
