package main

import (
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"relmap/internal/introspection"
	"relmap/internal/render"
	"relmap/internal/serverapp"
)

func newAnalyzeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <table>",
		Short: "Report the relationships of one table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			s, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, s.close()) }()

			rels, err := s.app.Analyzer().Analyze(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return render.Write(cmd.OutOrStdout(), s.format, render.NewTableReport(args[0], rels))
		},
	}
}

func newGraphCmd(opts *rootOptions) *cobra.Command {
	var exclude []string
	var noProgress bool

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Build the relationship graph of the whole schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			bar := newProgressBar(cmd.ErrOrStderr(), !noProgress)
			s, err := opts.open(cmd, serverapp.WithProgress(bar.update))
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, s.close()) }()

			excluded := append(append([]string{}, s.cfg.Analysis.Exclude...), exclude...)
			g, err := s.app.Builder().Build(cmd.Context(), excluded)
			bar.stop()
			if err != nil {
				return err
			}
			return render.Write(cmd.OutOrStdout(), s.format, g)
		},
	}
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "Table globs to leave out (comma-separated or repeated)")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the progress bar")
	return cmd
}

func newCyclesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cycles",
		Short: "List reference cycles between tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			s, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, s.close()) }()

			g, err := s.app.Builder().Build(cmd.Context(), s.cfg.Analysis.Exclude)
			if err != nil {
				return err
			}
			return render.Write(cmd.OutOrStdout(), s.format, render.NewCycleReport(g))
		},
	}
}

func newSnapshotCmd(opts *rootOptions) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Capture schema metadata into a YAML snapshot file",
		Long: `snapshot copies every table's columns, keys and indexes into a file that
--schema-file can read later. With analysis.probe.enabled, distinct values
of polymorphic type columns are sampled too.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			s, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, s.close()) }()

			limit := 0
			if s.cfg.Analysis.Probe.Enabled {
				limit = s.cfg.Analysis.Probe.Limit
			}
			snapshot, err := introspection.Capture(cmd.Context(), s.app.Introspector(), limit)
			if err != nil {
				return err
			}
			if err := introspection.WriteSnapshot(out, snapshot); err != nil {
				return err
			}
			s.logger.Info("schema snapshot written",
				slog.String("path", out),
				slog.Int("tables", len(snapshot.Tables)),
			)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "schema.yaml", "Snapshot file to write")
	return cmd
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve relationship reports over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.open(cmd)
			if err != nil {
				return err
			}

			serverErrors, err := s.app.Start()
			if err != nil {
				return errors.Join(err, s.close())
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(stop)

			_, waitErr := s.app.WaitForStop(stop, serverErrors)

			s.logger.Info("shutting down server gracefully")
			if err := s.close(); err != nil {
				return errors.Join(waitErr, err)
			}
			if waitErr != nil {
				return waitErr
			}
			s.logger.Info("server stopped gracefully")
			return nil
		},
	}
}
