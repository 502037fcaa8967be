package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// exitInterrupted is the shell convention for a process ended by SIGINT.
const exitInterrupted = 130

// shutdownContext derives a context that is canceled by the first SIGINT or
// SIGTERM. A second signal exits the process at once. The returned stop
// releases the signal handler and must be called when the command returns.
func shutdownContext(parent context.Context, logger *slog.Logger) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})

	var once sync.Once

	stop := func() {
		once.Do(func() {
			signal.Stop(sigCh)
			close(done)
			cancel()
		})
	}

	go func() {
		received := 0

		for {
			select {
			case sig := <-sigCh:
				received++

				if received > 1 {
					logger.Warn("second signal, exiting without cleanup",
						slog.String("signal", sig.String()),
					)
					os.Exit(exitInterrupted)
				}

				logger.Info("shutting down, in-flight uploads will be rolled back",
					slog.String("signal", sig.String()),
				)
				cancel()
			case <-done:
				return
			}
		}
	}()

	return ctx, stop
}
