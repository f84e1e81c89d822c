// Command mongosrvd runs the MongoDB-wire-protocol-compatible server and,
// when configured, its CDC ingestion pipeline into a ClickHouse-dialect
// destination store.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mongobridge/mongosrv/cli"
	"github.com/mongobridge/mongosrv/internal/logx"
)

// version is overridden at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	logger, logFile, err := logx.New(false, "")
	if err != nil {
		fmt.Fprintln(os.Stderr, "mongosrvd: failed to build logger:", err)
		os.Exit(1)
	}
	if logFile != nil {
		defer func() { _ = logFile.Close() }()
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.Root(logger, version)
	if err := root.ExecuteContext(ctx); err != nil {
		logger.Sugar().Errorf("mongosrvd: %v", err)
		os.Exit(1)
	}
}
