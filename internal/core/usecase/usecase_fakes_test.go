package usecase

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/mkarpushin/jarvis-rag/internal/core/domain"
	"github.com/mkarpushin/jarvis-rag/internal/core/ports"
	"github.com/mkarpushin/jarvis-rag/internal/infrastructure/chunking"
)

func testChunkerFactory(size, overlap int) ports.Chunker {
	return chunking.NewSplitter(size, overlap)
}

type fakeLoader struct {
	content string
	failFor map[string]error
}

func (f *fakeLoader) Load(_ context.Context, path string) (string, domain.SourceType, error) {
	if err, ok := f.failFor[filepath.Base(path)]; ok {
		return "", "", err
	}
	content := f.content
	if content == "" {
		content = "plain test content for chunking"
	}
	return content, domain.SourceTXT, nil
}

type fakeEmbedder struct {
	embedCalls int
	queryCalls int
	embedErr   error
	queryErr   error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.embedCalls++
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	f.queryCalls++
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return []float32{1, 0, 0}, nil
}

type fakeVectorStore struct {
	upserted       []domain.Chunk
	upsertErr      error
	queryResult    []domain.RetrievedChunk
	queryErr       error
	deleteAllCalls int
	deleteAllErr   error
	count          int64
	countErr       error
}

func (f *fakeVectorStore) Upsert(_ context.Context, chunks []domain.Chunk, _ [][]float32) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserted = append(f.upserted, chunks...)
	return nil
}

func (f *fakeVectorStore) Query(_ context.Context, _ []float32, _ int) ([]domain.RetrievedChunk, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.queryResult, nil
}

func (f *fakeVectorStore) DeleteAll(_ context.Context) error {
	f.deleteAllCalls++
	return f.deleteAllErr
}

func (f *fakeVectorStore) VectorCount(_ context.Context) (int64, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.count, nil
}

type fakeGenerator struct {
	calls  int
	answer string
	err    error
}

func (f *fakeGenerator) GenerateAnswer(_ context.Context, _, _ string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

type fakeScorer struct {
	score float64
}

func (f *fakeScorer) Score(_, _ string) float64 {
	return f.score
}

type fakeQueue struct {
	published  []string
	publishErr error
	closed     bool
}

func (f *fakeQueue) PublishIngestJob(_ context.Context, jobID string) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, jobID)
	return nil
}

func (f *fakeQueue) SubscribeIngestJobs(ctx context.Context, _ func(context.Context, string) error) error {
	<-ctx.Done()
	return nil
}

func (f *fakeQueue) Close() {
	f.closed = true
}

var errBoom = errors.New("boom")
