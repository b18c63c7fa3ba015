package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mkarpushin/jarvis-rag/internal/core/domain"
)

// JobStore keeps ingest job records in process memory. State is lost on
// restart; the Postgres store covers deployments that need durable records.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]domain.IngestJob
	now  func() time.Time
}

func NewJobStore() *JobStore {
	return &JobStore{
		jobs: make(map[string]domain.IngestJob),
		now:  time.Now,
	}
}

func (s *JobStore) Create(_ context.Context, job *domain.IngestJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; ok {
		return fmt.Errorf("job already exists: %s", job.ID)
	}
	s.jobs[job.ID] = *job
	return nil
}

func (s *JobStore) GetByID(_ context.Context, id string) (*domain.IngestJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get job", fmt.Errorf("id=%s", id))
	}
	out := job
	return &out, nil
}

func (s *JobStore) MarkRunning(_ context.Context, id string) error {
	return s.update(id, func(job *domain.IngestJob) {
		now := s.now().UTC()
		job.State = domain.JobRunning
		job.StartedAt = &now
	})
}

func (s *JobStore) MarkDone(_ context.Context, id string, files, chunks int) error {
	return s.update(id, func(job *domain.IngestJob) {
		now := s.now().UTC()
		job.State = domain.JobDone
		job.Files = files
		job.Chunks = chunks
		job.Error = ""
		job.FinishedAt = &now
	})
}

func (s *JobStore) MarkFailed(_ context.Context, id string, errMessage string) error {
	return s.update(id, func(job *domain.IngestJob) {
		now := s.now().UTC()
		job.State = domain.JobFailed
		job.Error = errMessage
		job.FinishedAt = &now
	})
}

func (s *JobStore) update(id string, mutate func(*domain.IngestJob)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return domain.WrapError(domain.ErrNotFound, "update job", fmt.Errorf("id=%s", id))
	}
	mutate(&job)
	s.jobs[id] = job
	return nil
}
