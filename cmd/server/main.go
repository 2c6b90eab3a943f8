// Package main is the entry point for the tempo timer server and its
// maintenance commands.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/nadmax/tempo/internal/api"
	"github.com/nadmax/tempo/internal/config"
	"github.com/nadmax/tempo/internal/middleware"
	"github.com/nadmax/tempo/internal/registry"
	"github.com/nadmax/tempo/internal/report"
	"github.com/nadmax/tempo/internal/store"
	"github.com/nadmax/tempo/internal/timer"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

// version is set at build time using -ldflags.
var version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "tempo",
		Short:         "Countdown timer engine with categories and completion history",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a .toml or .yaml config file")

	// setup loads the configuration and opens the store for a subcommand.
	setup := func(cmd *cobra.Command) (*app, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}

		logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
			Level: cfg.SlogLevel(),
		}))
		slog.SetDefault(logger)

		return newApp(cmd.Context(), cfg, logger)
	}

	root.AddCommand(newServeCommand(setup))
	root.AddCommand(newTimersCommand(setup))
	root.AddCommand(newHistoryCommand(setup))

	return root
}

type setupFunc func(cmd *cobra.Command) (*app, error)

func newServeCommand(setup setupFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the timer engine",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, a)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	if _, err := a.history.Load(ctx); err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	if _, err := a.registry.Load(ctx); err != nil {
		var perr *registry.PersistenceError
		if !errors.As(err, &perr) || perr.Op == "load" {
			return fmt.Errorf("failed to load timers: %w", err)
		}
		a.logger.Warn("timers loaded but repaired list was not saved", "error", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", middleware.MetricsMiddleware(api.NewAPI(a.registry, a.completions, a.logger)))

	srv := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go startMetricsCollector(ctx, a.registry)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server starting", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

func newTimersCommand(setup setupFunc) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "timers",
		Short: "List saved timers grouped by category",
		Long: `List the timers in the configured store, grouped by category.

The saved document is read as is, so timers that a running server is
counting down show the remaining time of their last save.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			var timers []timer.Timer
			if _, err := a.docs.Load(cmd.Context(), store.TimersKey, &timers); err != nil {
				return err
			}
			if category != "" {
				timers = timer.InCategory(timers, category)
			}

			return printTimers(cmd, timers)
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "only show timers in this category")

	return cmd
}

func printTimers(cmd *cobra.Command, timers []timer.Timer) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)

	for _, g := range timer.GroupByCategory(timers) {
		_, _ = fmt.Fprintf(w, "[%s]\n", g.Category)
		for _, t := range g.Timers {
			_, _ = fmt.Fprintf(w, "  %s\t%s\t%s / %s\t%d%%\t%s\n", t.Name, t.Status,
				timer.FormatClock(t.Remaining), timer.FormatClock(t.Duration), t.Percent(), t.ID)
		}
	}

	if len(timers) == 0 {
		_, _ = fmt.Fprintln(w, "No timers.")
	}

	return w.Flush()
}

func newHistoryCommand(setup setupFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect or manage the completion history",
	}

	cmd.AddCommand(newHistoryListCommand(setup))
	cmd.AddCommand(newHistoryClearCommand(setup))
	cmd.AddCommand(newHistoryExportCommand(setup))

	return cmd
}

func newHistoryListCommand(setup setupFunc) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show completed timers, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			entries, err := a.history.Load(cmd.Context())
			if err != nil {
				return err
			}
			if limit > 0 && len(entries) > limit {
				entries = entries[:limit]
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			for _, e := range entries {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", e.CompletedAt.Local().Format(time.DateTime), e.Name, e.Category)
			}
			if len(entries) == 0 {
				_, _ = fmt.Fprintln(w, "No completed timers yet.")
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of entries to show")

	return cmd
}

func newHistoryClearCommand(setup setupFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every history entry",
		Long: `Delete every history entry from the configured store.

A running server keeps its own copy of the history and writes it back on the
next completion; use DELETE /api/history while the server is up.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			if _, err := a.history.Load(cmd.Context()); err != nil {
				return err
			}
			cleared := a.history.Len()

			if err := a.history.Clear(cmd.Context()); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d entries.\n", cleared)
			return nil
		},
	}
}

func newHistoryExportCommand(setup setupFunc) *cobra.Command {
	var format, outputDir string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the history to a CSV or JSON file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			entries, err := a.history.Load(cmd.Context())
			if err != nil {
				return err
			}

			if outputDir == "-" {
				return report.Write(cmd.OutOrStdout(), format, entries)
			}

			path, err := report.SaveFile(outputDir, format, entries)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Exported %d entries to %s\n", len(entries), path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", report.FormatCSV, "output format (csv or json)")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "./reports", `output directory, or "-" for stdout`)

	return cmd
}
