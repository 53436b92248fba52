// Package sqlite is the SQLite-backed implementation of interfaces.Store.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/joshgermon/bksd/internal/interfaces"
	"github.com/joshgermon/bksd/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS targets (
	id TEXT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	drive_id TEXT NOT NULL REFERENCES targets(id),
	destination TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS job_status_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id TEXT NOT NULL REFERENCES jobs(id),
	status TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	total_bytes INTEGER,
	duration_secs REAL,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_job_status_log_job_id ON job_status_log(job_id);
`

// Store persists targets, jobs, and their status history to a SQLite
// database file.
type Store struct {
	db *sql.DB
}

// Open creates or migrates the database at path, enabling foreign keys
// for every connection in the pool.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on", path))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// The sqlite3 driver does not share foreign_keys pragma state across
	// pooled connections opened later; keep a single connection so the
	// pragma from the DSN always applies.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) CreateJob(ctx context.Context, job model.Job) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO targets (id) VALUES (?)`, job.DriveID); err != nil {
		return fmt.Errorf("sqlite: upsert target: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO jobs (id, drive_id, destination, created_at) VALUES (?, ?, ?, ?)`,
		job.ID, job.DriveID, job.Destination, job.CreatedAt,
	); err != nil {
		return fmt.Errorf("sqlite: insert job: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO job_status_log (job_id, status, created_at) VALUES (?, ?, ?)`,
		job.ID, model.StatusReady, job.CreatedAt,
	); err != nil {
		return fmt.Errorf("sqlite: insert initial status: %w", err)
	}

	return tx.Commit()
}

func (s *Store) AppendStatus(ctx context.Context, entry model.JobStatusEntry) error {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO job_status_log (job_id, status, description, total_bytes, duration_secs, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		entry.JobID, entry.Status, entry.Description, entry.TotalBytes, entry.DurationSecs, createdAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: append status: %w", err)
	}
	return nil
}

// ListJobs returns jobs newest-first, optionally filtered to jobs whose
// current status (the newest job_status_log entry) matches status, and
// paginated by limit/offset.
func (s *Store) ListJobs(ctx context.Context, limit, offset int, status model.JobStatusTag) ([]model.Job, error) {
	query := `SELECT j.id, j.drive_id, j.destination, j.created_at FROM jobs j`
	args := []any{}
	if status != "" {
		query += ` WHERE (SELECT status FROM job_status_log WHERE job_id = j.id ORDER BY created_at DESC, id DESC LIMIT 1) = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
		if offset > 0 {
			query += ` OFFSET ?`
			args = append(args, offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		var j model.Job
		if err := rows.Scan(&j.ID, &j.DriveID, &j.Destination, &j.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (s *Store) GetWithHistory(ctx context.Context, jobID string) (model.Job, []model.JobStatusEntry, error) {
	var job model.Job
	row := s.db.QueryRowContext(ctx, `SELECT id, drive_id, destination, created_at FROM jobs WHERE id = ?`, jobID)
	if err := row.Scan(&job.ID, &job.DriveID, &job.Destination, &job.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return model.Job{}, nil, fmt.Errorf("sqlite: job %s: not found", jobID)
		}
		return model.Job{}, nil, fmt.Errorf("sqlite: get job: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, job_id, status, description, total_bytes, duration_secs, created_at FROM job_status_log WHERE job_id = ? ORDER BY created_at ASC, id ASC`,
		jobID,
	)
	if err != nil {
		return model.Job{}, nil, fmt.Errorf("sqlite: list status log: %w", err)
	}
	defer rows.Close()

	var history []model.JobStatusEntry
	for rows.Next() {
		var e model.JobStatusEntry
		if err := rows.Scan(&e.ID, &e.JobID, &e.Status, &e.Description, &e.TotalBytes, &e.DurationSecs, &e.CreatedAt); err != nil {
			return model.Job{}, nil, fmt.Errorf("sqlite: scan status entry: %w", err)
		}
		history = append(history, e)
	}
	return job, history, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}

var _ interfaces.Store = (*Store)(nil)
