package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/mkarpushin/jarvis-rag/internal/core/domain"
)

// JobRepository persists ingest job records so a detached worker process can
// pick a job up from its id alone and callers can poll completion.
type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *JobRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026051201)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS ingest_jobs (
	id TEXT PRIMARY KEY,
	state TEXT NOT NULL,
	request JSONB NOT NULL,
	files INTEGER NOT NULL DEFAULT 0,
	chunks INTEGER NOT NULL DEFAULT 0,
	error_message TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	started_at TIMESTAMPTZ,
	finished_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_ingest_jobs_state ON ingest_jobs(state);
CREATE INDEX IF NOT EXISTS idx_ingest_jobs_created_at ON ingest_jobs(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *JobRepository) Create(ctx context.Context, job *domain.IngestJob) error {
	requestJSON, err := json.Marshal(job.Request)
	if err != nil {
		return fmt.Errorf("marshal job request: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO ingest_jobs (id, state, request, files, chunks, error_message, created_at, started_at, finished_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`,
		job.ID, string(job.State), requestJSON, job.Files, job.Chunks, job.Error,
		job.CreatedAt, job.StartedAt, job.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ingest job: %w", err)
	}
	return nil
}

func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.IngestJob, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, state, request, files, chunks, error_message, created_at, started_at, finished_at
FROM ingest_jobs
WHERE id = $1
`, id)

	var job domain.IngestJob
	var requestRaw []byte
	var state string
	var errMessage sql.NullString

	err := row.Scan(
		&job.ID, &state, &requestRaw, &job.Files, &job.Chunks, &errMessage,
		&job.CreatedAt, &job.StartedAt, &job.FinishedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get job", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan ingest job: %w", err)
	}

	if err := json.Unmarshal(requestRaw, &job.Request); err != nil {
		return nil, fmt.Errorf("unmarshal job request: %w", err)
	}
	job.State = domain.JobState(state)
	job.Error = errMessage.String
	return &job, nil
}

func (r *JobRepository) MarkRunning(ctx context.Context, id string) error {
	return r.exec(ctx, "mark job running", `
UPDATE ingest_jobs
SET state = $2, started_at = $3
WHERE id = $1
`, id, string(domain.JobRunning), time.Now().UTC())
}

func (r *JobRepository) MarkDone(ctx context.Context, id string, files, chunks int) error {
	return r.exec(ctx, "mark job done", `
UPDATE ingest_jobs
SET state = $2, files = $3, chunks = $4, error_message = NULL, finished_at = $5
WHERE id = $1
`, id, string(domain.JobDone), files, chunks, time.Now().UTC())
}

func (r *JobRepository) MarkFailed(ctx context.Context, id string, errMessage string) error {
	return r.exec(ctx, "mark job failed", `
UPDATE ingest_jobs
SET state = $2, error_message = $3, finished_at = $4
WHERE id = $1
`, id, string(domain.JobFailed), errMessage, time.Now().UTC())
}

func (r *JobRepository) exec(ctx context.Context, operation, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrNotFound, operation, fmt.Errorf("no rows updated"))
	}
	return nil
}
