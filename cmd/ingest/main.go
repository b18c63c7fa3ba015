package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mkarpushin/jarvis-rag/internal/bootstrap"
	"github.com/mkarpushin/jarvis-rag/internal/core/domain"
)

func main() {
	var (
		pathFlag     = flag.String("path", "", "comma-separated file paths to ingest; empty scans the docs folder")
		chunkSize    = flag.Int("chunk-size", 0, "chunk size in characters (0 uses the configured default)")
		chunkOverlap = flag.Int("chunk-overlap", -1, "chunk overlap in characters (-1 uses the configured default)")
		clear        = flag.Bool("clear", false, "delete all vectors from the index before ingesting")
	)
	flag.Parse()

	app, err := bootstrap.NewApp("jarvis-ingest", bootstrap.RoleCLI)
	if err != nil {
		panic(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	req := domain.IngestRequest{
		DocsFolder:    app.Cfg.DocsFolder,
		ChunkSize:     *chunkSize,
		ChunkOverlap:  *chunkOverlap,
		ClearExisting: *clear,
	}
	for _, p := range strings.Split(*pathFlag, ",") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			req.Paths = append(req.Paths, trimmed)
		}
	}

	result, err := app.Ingest.Run(ctx, req)
	if err != nil {
		app.Log.Error("ingest_failed", "error", err)
		os.Exit(1)
	}

	app.Log.Info("ingest_done",
		"files", result.Files,
		"chunks", result.Chunks,
		"skipped", len(result.SkippedFiles),
		"latency_ms", result.LatencyMS,
	)
}
