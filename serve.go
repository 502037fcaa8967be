package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tonimelisma/seafile-filelink/internal/host"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the mail client bridge on stdin/stdout",
		Long: `Run the newline-delimited JSON bridge the mail client extension talks to.
Requests are read from stdin and responses written to stdout, one JSON object
per line. Logs go to stderr. The config file is watched and reloaded when it
changes on disk.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().Int("max-line-bytes", host.DefaultMaxLineBytes, "largest accepted request line")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	logger := cc.Logger

	a, err := cc.newApp()
	if err != nil {
		return err
	}

	srv := host.NewServer(a.orchestrator, logger)

	if n, err := cmd.Flags().GetInt("max-line-bytes"); err == nil && n > 0 {
		srv.MaxLineBytes = n
	}

	// Sessions built from a stale account must not outlive an edit on disk.
	a.store.OnReload = func(changed []string) {
		for _, id := range changed {
			a.sessions.Evict(id)
		}
	}

	ctx, stop := shutdownContext(cmd.Context(), logger)
	defer stop()

	// The watcher only lives as long as the bridge.
	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()

	g, gctx := errgroup.WithContext(watchCtx)

	g.Go(func() error {
		if err := a.store.Watch(gctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("config watch stopped", slog.String("error", err.Error()))
		}

		return nil
	})

	g.Go(func() error {
		defer stopWatch()

		return srv.Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
	})

	logger.Info("host bridge started",
		slog.String("version", version),
		slog.String("config", cc.ConfigPath),
	)

	err = g.Wait()

	logger.Info("host bridge stopped")

	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}
