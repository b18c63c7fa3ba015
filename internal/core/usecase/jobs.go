package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mkarpushin/jarvis-rag/internal/core/domain"
	"github.com/mkarpushin/jarvis-rag/internal/core/ports"
)

// JobMetrics is the slice of worker instrumentation the job lifecycle needs.
type JobMetrics interface {
	StartJob()
	FinishJob(duration time.Duration, err error)
	ObserveQueueLag(lag time.Duration)
}

// IngestJobUseCase records ingestion jobs and hands their ids to the queue;
// workers call ProcessByID to execute a recorded job.
type IngestJobUseCase struct {
	store    ports.JobStore
	queue    ports.JobQueue
	pipeline *IngestUseCase
	metrics  JobMetrics
}

func NewIngestJobUseCase(
	store ports.JobStore,
	queue ports.JobQueue,
	pipeline *IngestUseCase,
	metrics JobMetrics,
) *IngestJobUseCase {
	return &IngestJobUseCase{
		store:    store,
		queue:    queue,
		pipeline: pipeline,
		metrics:  metrics,
	}
}

func (uc *IngestJobUseCase) Enqueue(ctx context.Context, req domain.IngestRequest) (*domain.IngestJob, error) {
	job := &domain.IngestJob{
		ID:        uuid.NewString(),
		State:     domain.JobPending,
		Request:   req,
		CreatedAt: time.Now().UTC(),
	}

	if err := uc.store.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job record: %w", err)
	}

	if err := uc.queue.PublishIngestJob(ctx, job.ID); err != nil {
		if failErr := uc.store.MarkFailed(ctx, job.ID, err.Error()); failErr != nil {
			return nil, fmt.Errorf("publish ingest job: %w; mark failed: %w", err, failErr)
		}
		return nil, fmt.Errorf("publish ingest job: %w", err)
	}

	return job, nil
}

func (uc *IngestJobUseCase) GetByID(ctx context.Context, id string) (*domain.IngestJob, error) {
	return uc.store.GetByID(ctx, id)
}

func (uc *IngestJobUseCase) ProcessByID(ctx context.Context, jobID string) error {
	job, err := uc.store.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("fetch job by id: %w", err)
	}

	if uc.metrics != nil {
		uc.metrics.ObserveQueueLag(time.Since(job.CreatedAt))
		uc.metrics.StartJob()
	}

	if err := uc.store.MarkRunning(ctx, jobID); err != nil {
		return fmt.Errorf("set state=running: %w", err)
	}

	start := time.Now()
	result, runErr := uc.pipeline.Run(ctx, job.Request)
	if uc.metrics != nil {
		uc.metrics.FinishJob(time.Since(start), runErr)
	}

	if runErr != nil {
		if failErr := uc.store.MarkFailed(ctx, jobID, runErr.Error()); failErr != nil {
			return fmt.Errorf("%w; mark failed state: %w", runErr, failErr)
		}
		return runErr
	}

	if err := uc.store.MarkDone(ctx, jobID, result.Files, result.Chunks); err != nil {
		return fmt.Errorf("set state=done: %w", err)
	}
	return nil
}
