package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/mkarpushin/jarvis-rag/internal/core/domain"
	"github.com/mkarpushin/jarvis-rag/internal/infrastructure/repository/memory"
)

func TestEnqueueCreatesPendingJob(t *testing.T) {
	store := memory.NewJobStore()
	queue := &fakeQueue{}
	uc := NewIngestJobUseCase(store, queue, nil, nil)

	job, err := uc.Enqueue(context.Background(), domain.IngestRequest{Paths: []string{"/tmp/a.txt"}})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if job.State != domain.JobPending {
		t.Fatalf("expected pending state, got %q", job.State)
	}
	if len(queue.published) != 1 || queue.published[0] != job.ID {
		t.Fatalf("expected job id on the queue, got %v", queue.published)
	}

	stored, err := store.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("stored job not found: %v", err)
	}
	if len(stored.Request.Paths) != 1 {
		t.Fatal("request payload must be stored with the job")
	}
}

func TestEnqueuePublishFailureMarksJobFailed(t *testing.T) {
	store := memory.NewJobStore()
	uc := NewIngestJobUseCase(store, &fakeQueue{publishErr: errBoom}, nil, nil)

	job, err := uc.Enqueue(context.Background(), domain.IngestRequest{})
	if err == nil {
		t.Fatal("expected publish failure")
	}
	if job != nil {
		t.Fatal("no job should be returned on publish failure")
	}
}

func TestProcessByIDHappyPath(t *testing.T) {
	dir := t.TempDir()
	path := writeTempTxt(t, dir, "doc.txt")

	store := memory.NewJobStore()
	pipeline := newTestIngest(&fakeLoader{}, &fakeEmbedder{}, &fakeVectorStore{})
	uc := NewIngestJobUseCase(store, &fakeQueue{}, pipeline, nil)

	job, err := uc.Enqueue(context.Background(), domain.IngestRequest{Paths: []string{path}})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	if err := uc.ProcessByID(context.Background(), job.ID); err != nil {
		t.Fatalf("process failed: %v", err)
	}

	done, err := store.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if done.State != domain.JobDone {
		t.Fatalf("expected done state, got %q", done.State)
	}
	if done.Files != 1 || done.Chunks == 0 {
		t.Fatalf("expected counts on the record, got files=%d chunks=%d", done.Files, done.Chunks)
	}
	if done.StartedAt == nil || done.FinishedAt == nil {
		t.Fatal("expected start and finish timestamps")
	}
}

func TestProcessByIDFailureMarksJobFailed(t *testing.T) {
	store := memory.NewJobStore()
	pipeline := newTestIngest(&fakeLoader{}, &fakeEmbedder{}, &fakeVectorStore{})
	uc := NewIngestJobUseCase(store, &fakeQueue{}, pipeline, nil)

	job, err := uc.Enqueue(context.Background(), domain.IngestRequest{
		Paths: []string{"/definitely/not/there.txt"},
	})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	if err := uc.ProcessByID(context.Background(), job.ID); err == nil {
		t.Fatal("expected processing failure")
	}

	failed, err := store.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if failed.State != domain.JobFailed {
		t.Fatalf("expected failed state, got %q", failed.State)
	}
	if failed.Error == "" {
		t.Fatal("expected error message on the record")
	}
}

func TestProcessByIDUnknownJob(t *testing.T) {
	uc := NewIngestJobUseCase(memory.NewJobStore(), &fakeQueue{}, nil, nil)
	if err := uc.ProcessByID(context.Background(), "no-such-id"); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

type recordingMetrics struct {
	started  int
	finished int
	lags     []time.Duration
}

func (m *recordingMetrics) StartJob() { m.started++ }
func (m *recordingMetrics) FinishJob(_ time.Duration, _ error) {
	m.finished++
}
func (m *recordingMetrics) ObserveQueueLag(lag time.Duration) {
	m.lags = append(m.lags, lag)
}

func TestProcessByIDReportsMetrics(t *testing.T) {
	dir := t.TempDir()
	path := writeTempTxt(t, dir, "doc.txt")

	store := memory.NewJobStore()
	pipeline := newTestIngest(&fakeLoader{}, &fakeEmbedder{}, &fakeVectorStore{})
	m := &recordingMetrics{}
	uc := NewIngestJobUseCase(store, &fakeQueue{}, pipeline, m)

	job, err := uc.Enqueue(context.Background(), domain.IngestRequest{Paths: []string{path}})
	if err != nil {
		t.Fatal(err)
	}
	if err := uc.ProcessByID(context.Background(), job.ID); err != nil {
		t.Fatal(err)
	}

	if m.started != 1 || m.finished != 1 || len(m.lags) != 1 {
		t.Fatalf("unexpected metrics: started=%d finished=%d lags=%d", m.started, m.finished, len(m.lags))
	}
}
