package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/mkarpushin/jarvis-rag/internal/core/domain"
)

func newMockRepo(t *testing.T) (*JobRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return NewJobRepository(db), mock
}

func TestCreateInsertsJob(t *testing.T) {
	repo, mock := newMockRepo(t)

	job := &domain.IngestJob{
		ID:        "j1",
		State:     domain.JobPending,
		Request:   domain.IngestRequest{Paths: []string{"/tmp/a.txt"}, ChunkSize: 1000},
		CreatedAt: time.Now().UTC(),
	}

	mock.ExpectExec(`INSERT INTO ingest_jobs`).
		WithArgs(job.ID, "pending", sqlmock.AnyArg(), 0, 0, "", job.CreatedAt, nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Create(context.Background(), job); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestGetByIDRoundTrip(t *testing.T) {
	repo, mock := newMockRepo(t)

	request, _ := json.Marshal(domain.IngestRequest{Paths: []string{"/tmp/a.txt"}})
	created := time.Now().UTC()
	started := created.Add(time.Second)

	rows := sqlmock.NewRows([]string{
		"id", "state", "request", "files", "chunks", "error_message",
		"created_at", "started_at", "finished_at",
	}).AddRow("j1", "running", request, 0, 0, nil, created, started, nil)

	mock.ExpectQuery(`SELECT id, state, request, files, chunks, error_message, created_at, started_at, finished_at`).
		WithArgs("j1").
		WillReturnRows(rows)

	job, err := repo.GetByID(context.Background(), "j1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if job.State != domain.JobRunning {
		t.Fatalf("unexpected state %q", job.State)
	}
	if len(job.Request.Paths) != 1 || job.Request.Paths[0] != "/tmp/a.txt" {
		t.Fatalf("request payload lost: %+v", job.Request)
	}
	if job.StartedAt == nil || job.FinishedAt != nil {
		t.Fatalf("timestamps wrong: %+v", job)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT id, state`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "ghost")
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMarkDoneUpdatesCounts(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`UPDATE ingest_jobs`).
		WithArgs("j1", "done", 2, 40, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.MarkDone(context.Background(), "j1", 2, 40); err != nil {
		t.Fatalf("mark done failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestMarkRunningUnknownJobIsNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`UPDATE ingest_jobs`).
		WithArgs("ghost", "running", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkRunning(context.Background(), "ghost")
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found on zero rows, got %v", err)
	}
}

func TestMarkFailedStoresMessage(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`UPDATE ingest_jobs`).
		WithArgs("j1", "failed", "pipeline exploded", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.MarkFailed(context.Background(), "j1", "pipeline exploded"); err != nil {
		t.Fatalf("mark failed errored: %v", err)
	}
}

func TestEnsureSchemaRunsInTransaction(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(`pg_advisory_xact_lock`).
		WithArgs(int64(2026051201)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS ingest_jobs`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensure schema failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
