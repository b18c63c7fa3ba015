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
	app, err := bootstrap.NewApp("jarvis-worker", bootstrap.RoleWorker)
	if err != nil {
		panic(err)
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", app.IngestMetrics.Handler())
	metricsMux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	metricsServer := &http.Server{
		Addr:              ":" + app.Cfg.WorkerMetricsPort,
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		app.Log.Info("worker_metrics_start", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.Log.Error("worker_metrics_failed", "error", err)
		}
	}()

	app.Log.Info("worker_start", "subject", app.Cfg.NATSSubject)
	if err := app.Queue.SubscribeIngestJobs(ctx, app.Jobs.ProcessByID); err != nil {
		app.Log.Error("worker_stopped", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		app.Log.Error("worker_metrics_shutdown", "error", err)
	}
	app.Log.Info("worker_stopped_clean")
}
