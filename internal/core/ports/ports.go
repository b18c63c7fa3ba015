package ports

import (
	"context"

	"github.com/mkarpushin/jarvis-rag/internal/core/domain"
)

// Chunker splits raw text into bounded overlapping chunks.
type Chunker interface {
	Split(text string) []string
}

// ChunkerFactory builds a chunker for per-request chunking parameters.
type ChunkerFactory func(chunkSize, chunkOverlap int) Chunker

// DocumentLoader extracts plain text from a source file on disk.
type DocumentLoader interface {
	Load(ctx context.Context, path string) (string, domain.SourceType, error)
}

// Embedder builds vectors for chunk batches and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorStore is the data plane of the remote vector index.
type VectorStore interface {
	Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error
	Query(ctx context.Context, queryVector []float32, topK int) ([]domain.RetrievedChunk, error)
	DeleteAll(ctx context.Context) error
	VectorCount(ctx context.Context) (int64, error)
}

// IndexAdmin is the control plane of the remote vector index.
type IndexAdmin interface {
	ListIndexes(ctx context.Context) ([]domain.IndexInfo, error)
	DescribeIndex(ctx context.Context, name string) (domain.IndexInfo, error)
	CreateIndex(ctx context.Context, name string, dimension int) error
	DeleteIndex(ctx context.Context, name string) error
}

// AnswerGenerator creates the user-facing answer from retrieved context.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question, context string) (string, error)
}

// SimilarityScorer reports a local diagnostic similarity between a query and
// the retrieved context. Informational only.
type SimilarityScorer interface {
	Score(query, context string) float64
}

// JobStore persists ingestion job records.
type JobStore interface {
	Create(ctx context.Context, job *domain.IngestJob) error
	GetByID(ctx context.Context, id string) (*domain.IngestJob, error)
	MarkRunning(ctx context.Context, id string) error
	MarkDone(ctx context.Context, id string, files, chunks int) error
	MarkFailed(ctx context.Context, id string, errMessage string) error
}

// JobQueue hands ingestion job ids to background workers.
type JobQueue interface {
	PublishIngestJob(ctx context.Context, jobID string) error
	SubscribeIngestJobs(ctx context.Context, handler func(context.Context, string) error) error
	Close()
}
