package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mkarpushin/jarvis-rag/internal/bootstrap"
)

func main() {
	app, err := bootstrap.NewApp("jarvis-api", bootstrap.RoleAPI)
	if err != nil {
		panic(err)
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// With the in-process queue driver the API binary also hosts the
	// ingestion worker pool.
	workersDone := make(chan struct{})
	if app.Cfg.QueueDriver == "inproc" {
		go func() {
			defer close(workersDone)
			if err := app.Queue.SubscribeIngestJobs(ctx, app.Jobs.ProcessByID); err != nil {
				app.Log.Error("worker_pool_stopped", "error", err)
			}
		}()
	} else {
		close(workersDone)
	}

	server := &http.Server{
		Addr:              ":" + app.Cfg.APIPort,
		Handler:           app.Server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		app.Log.Info("http_server_start", "addr", server.Addr)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		app.Log.Info("shutdown_signal_received")
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.Log.Error("http_server_failed", "error", err)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		app.Log.Error("http_server_shutdown", "error", err)
	}
	<-workersDone
	app.Log.Info("http_server_stopped")
}
