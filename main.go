package main

import (
	"context"
	"errors"
	"os"
)

func main() {
	err := newRootCmd().Execute()

	switch {
	case err == nil:
		return
	case errors.Is(err, context.Canceled):
		// Interrupted uploads were already rolled back and reported.
		os.Exit(exitInterrupted)
	default:
		exitOnError(err)
	}
}
