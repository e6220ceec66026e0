package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/arthur-debert/distsync/cmd/distsync"
	"github.com/arthur-debert/distsync/pkg/output"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := distsync.NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		_ = output.NewRenderer(os.Stderr, output.DetectFormat(os.Stderr)).RenderError(err)
		stop()
		os.Exit(1)
	}
}
