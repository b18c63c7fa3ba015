package inproc

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/mkarpushin/jarvis-rag/internal/core/domain"
)

// Queue is the single-process job queue: a bounded channel drained by a fixed
// pool of workers. A full queue rejects the publish instead of growing
// unboundedly.
type Queue struct {
	jobs    chan string
	workers int

	closeOnce sync.Once
	closed    chan struct{}
}

func New(workers, queueSize int) *Queue {
	if workers <= 0 {
		workers = 2
	}
	if queueSize <= 0 {
		queueSize = 16
	}
	return &Queue{
		jobs:    make(chan string, queueSize),
		workers: workers,
		closed:  make(chan struct{}),
	}
}

func (q *Queue) PublishIngestJob(ctx context.Context, jobID string) error {
	select {
	case <-q.closed:
		return domain.WrapError(domain.ErrTemporary, "enqueue ingest job", errors.New("queue closed"))
	case <-ctx.Done():
		return ctx.Err()
	case q.jobs <- jobID:
		return nil
	default:
		return domain.WrapError(domain.ErrTemporary, "enqueue ingest job", errors.New("ingest queue full"))
	}
}

// SubscribeIngestJobs starts the worker pool and blocks until ctx is done.
// Jobs already queued when ctx ends are abandoned; their records stay pending.
func (q *Queue) SubscribeIngestJobs(ctx context.Context, handler func(context.Context, string) error) error {
	var wg sync.WaitGroup
	for i := 0; i < q.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case jobID := <-q.jobs:
					if err := handler(ctx, jobID); err != nil {
						slog.Error("ingest_job_failed", "job_id", jobID, "error", err)
					}
				}
			}
		}()
	}

	<-ctx.Done()
	wg.Wait()
	return nil
}

func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.closed)
	})
}
