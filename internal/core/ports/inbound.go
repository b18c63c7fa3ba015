package ports

import (
	"context"

	"github.com/mkarpushin/jarvis-rag/internal/core/domain"
)

// ChatService is the inbound contract for retrieval-augmented answering.
type ChatService interface {
	Answer(ctx context.Context, message string) (*domain.Answer, error)
}

// IngestScheduler is the inbound contract for enqueueing background ingestion.
type IngestScheduler interface {
	Enqueue(ctx context.Context, req domain.IngestRequest) (*domain.IngestJob, error)
}

// JobReader is the inbound read model for ingestion job state.
type JobReader interface {
	GetByID(ctx context.Context, id string) (*domain.IngestJob, error)
}
