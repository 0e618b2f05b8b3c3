// Command batchsum summarizes batches of documents from the command line or
// serves the summarizer as an MCP tool.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sweetpotato0/batchsum/pkg/logging"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logging.Logger().Error("batchsum failed", "error", err)
		stop()
		os.Exit(1)
	}
}
