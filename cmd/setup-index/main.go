package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mkarpushin/jarvis-rag/internal/bootstrap"
)

func main() {
	app, err := bootstrap.NewApp("jarvis-setup-index", bootstrap.RoleCLI)
	if err != nil {
		panic(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Provision.Ensure(ctx); err != nil {
		app.Log.Error("setup_index_failed", "error", err)
		os.Exit(1)
	}
	app.Log.Info("setup_index_done", "index", app.Cfg.PineconeIndexName)
}
