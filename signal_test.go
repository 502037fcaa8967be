package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitDone(t *testing.T, ctx context.Context, what string) {
	t.Helper()

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("context still live 2s after %s", what)
	}
}

func TestShutdownContext_SignalCancels(t *testing.T) {
	ctx, stop := shutdownContext(context.Background(), discardLogger())
	defer stop()

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGTERM))

	waitDone(t, ctx, "SIGTERM")
}

func TestShutdownContext_ParentCancel(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())

	ctx, stop := shutdownContext(parent, discardLogger())
	defer stop()

	cancel()

	waitDone(t, ctx, "parent cancel")
}

func TestShutdownContext_StopIsIdempotent(t *testing.T) {
	ctx, stop := shutdownContext(context.Background(), discardLogger())

	assert.NoError(t, ctx.Err())

	stop()
	stop()

	waitDone(t, ctx, "stop")
}
