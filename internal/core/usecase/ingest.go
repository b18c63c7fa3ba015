package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mkarpushin/jarvis-rag/internal/core/domain"
	"github.com/mkarpushin/jarvis-rag/internal/core/ports"
)

// IngestUseCase runs one ingestion pass: resolve the file set, load and chunk
// each file, embed the chunk batch and upsert it into the vector index.
// Per-file failures are logged and skipped; remote failures fail the run.
type IngestUseCase struct {
	loader     ports.DocumentLoader
	newChunker ports.ChunkerFactory
	embedder   ports.Embedder
	vectors    ports.VectorStore
	log        *slog.Logger

	defaultChunkSize    int
	defaultChunkOverlap int

	clearWaitTimeout time.Duration
	pollInitial      time.Duration
	pollMax          time.Duration
}

func NewIngestUseCase(
	loader ports.DocumentLoader,
	newChunker ports.ChunkerFactory,
	embedder ports.Embedder,
	vectors ports.VectorStore,
	log *slog.Logger,
	defaultChunkSize, defaultChunkOverlap int,
	clearWaitTimeout time.Duration,
) *IngestUseCase {
	if log == nil {
		log = slog.Default()
	}
	return &IngestUseCase{
		loader:              loader,
		newChunker:          newChunker,
		embedder:            embedder,
		vectors:             vectors,
		log:                 log,
		defaultChunkSize:    defaultChunkSize,
		defaultChunkOverlap: defaultChunkOverlap,
		clearWaitTimeout:    clearWaitTimeout,
		pollInitial:         500 * time.Millisecond,
		pollMax:             5 * time.Second,
	}
}

func (uc *IngestUseCase) Run(ctx context.Context, req domain.IngestRequest) (*domain.IngestResult, error) {
	start := time.Now()

	if req.ClearExisting {
		uc.clearIndex(ctx)
	}

	files, skipped, err := uc.resolveFiles(req)
	if err != nil {
		return nil, err
	}

	chunker := uc.chunkerFor(req)
	chunks := make([]domain.Chunk, 0)
	processed := 0
	for _, path := range files {
		text, sourceType, err := uc.loader.Load(ctx, path)
		if err != nil {
			uc.log.Warn("skip_file", "path", path, "error", err)
			skipped = append(skipped, path)
			continue
		}

		source := filepath.Base(path)
		for _, piece := range chunker.Split(text) {
			chunks = append(chunks, domain.Chunk{
				Text:   piece,
				Source: source,
				Type:   sourceType,
			})
		}
		processed++
	}

	if len(chunks) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ingest", errors.New("no chunks produced"))
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := uc.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(chunks))
	}

	if err := uc.vectors.Upsert(ctx, chunks, vectors); err != nil {
		return nil, fmt.Errorf("upsert chunks: %w", err)
	}

	result := &domain.IngestResult{
		Files:        processed,
		Chunks:       len(chunks),
		SkippedFiles: skipped,
		LatencyMS:    time.Since(start).Milliseconds(),
	}
	uc.log.Info("ingest_complete",
		"files", result.Files,
		"chunks", result.Chunks,
		"skipped", len(result.SkippedFiles),
		"latency_ms", result.LatencyMS,
	)
	return result, nil
}

// clearIndex deletes all vectors, then polls the index stats until the
// deletion has propagated. Failures here are logged and do not abort the run,
// matching the tolerant behavior of the original sync path.
func (uc *IngestUseCase) clearIndex(ctx context.Context) {
	if err := uc.vectors.DeleteAll(ctx); err != nil {
		uc.log.Warn("clear_index_failed", "error", err)
		return
	}

	deadline := time.Now().Add(uc.clearWaitTimeout)
	wait := uc.pollInitial
	for time.Now().Before(deadline) {
		count, err := uc.vectors.VectorCount(ctx)
		if err != nil {
			uc.log.Warn("clear_index_stats_failed", "error", err)
			return
		}
		if count == 0 {
			return
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		wait *= 2
		if wait > uc.pollMax {
			wait = uc.pollMax
		}
	}
	uc.log.Warn("clear_index_propagation_timeout", "timeout", uc.clearWaitTimeout)
}

func (uc *IngestUseCase) resolveFiles(req domain.IngestRequest) ([]string, []string, error) {
	if len(req.Paths) > 0 {
		files := make([]string, 0, len(req.Paths))
		skipped := make([]string, 0)
		for _, p := range req.Paths {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			abs, err := filepath.Abs(p)
			if err != nil {
				abs = p
			}
			if _, err := os.Stat(abs); err != nil {
				uc.log.Warn("skip_missing_path", "path", p)
				skipped = append(skipped, p)
				continue
			}
			files = append(files, abs)
		}
		if len(files) == 0 {
			return nil, nil, domain.WrapError(domain.ErrInvalidInput, "ingest", errors.New("no files to process"))
		}
		return files, skipped, nil
	}

	folder := req.DocsFolder
	if folder == "" {
		folder = "./docs"
	}
	if _, err := os.Stat(folder); err != nil {
		if mkErr := os.MkdirAll(folder, 0o755); mkErr != nil {
			return nil, nil, fmt.Errorf("create docs folder: %w", mkErr)
		}
		return nil, nil, domain.WrapError(domain.ErrInvalidInput, "ingest", errors.New("no files to process"))
	}

	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, nil, fmt.Errorf("scan docs folder: %w", err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".pdf", ".txt":
			files = append(files, filepath.Join(folder, entry.Name()))
		}
	}
	if len(files) == 0 {
		return nil, nil, domain.WrapError(domain.ErrInvalidInput, "ingest", errors.New("no files to process"))
	}
	return files, nil, nil
}

func (uc *IngestUseCase) chunkerFor(req domain.IngestRequest) ports.Chunker {
	size := req.ChunkSize
	if size <= 0 {
		size = uc.defaultChunkSize
	}
	overlap := req.ChunkOverlap
	if overlap < 0 {
		overlap = uc.defaultChunkOverlap
	}
	return uc.newChunker(size, overlap)
}
