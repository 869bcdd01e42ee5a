package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/docuflow/engine/internal/common"
	"github.com/docuflow/engine/internal/entity"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS extraction_jobs (
    id            TEXT PRIMARY KEY,
    document_ref  TEXT NOT NULL,
    schema_json   TEXT NOT NULL,
    webhook_url   TEXT NOT NULL DEFAULT '',
    status        TEXT NOT NULL,
    attempts      INTEGER NOT NULL DEFAULT 0,
    confidence    REAL NOT NULL DEFAULT 0,
    engine_used   TEXT NOT NULL DEFAULT '',
    result_json   TEXT,
    error_message TEXT,
    created_at    TIMESTAMP NOT NULL,
    started_at    TIMESTAMP,
    finished_at   TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_extraction_jobs_status ON extraction_jobs (status);
`

// SQLiteJobRepository stores jobs in an embedded SQLite database. It is the
// default backend for single-node deployments and tests.
type SQLiteJobRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteJobRepository(ctx context.Context, dsn string, logger *slog.Logger) (*SQLiteJobRepository, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, common.WrapError(err, "open sqlite")
	}
	// a single writer avoids SQLITE_BUSY under concurrent job updates
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, common.WrapError(err, "enable wal")
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, common.WrapError(err, "apply schema")
	}
	logger.Info("repository.sqlite.ready", "dsn", dsn)
	return &SQLiteJobRepository{db: db, logger: logger}, nil
}

func (r *SQLiteJobRepository) Create(ctx context.Context, job *entity.Job) error {
	row, err := toRow(job)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO extraction_jobs
		    (id, document_ref, schema_json, webhook_url, status, attempts,
		     confidence, engine_used, result_json, error_message,
		     created_at, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.ID, row.DocumentRef, string(row.SchemaJSON), row.WebhookURL, row.Status,
		row.Attempts, row.Confidence, row.EngineUsed, nullableJSON(row.ResultJSON),
		row.ErrorMessage, row.CreatedAt, row.StartedAt, row.FinishedAt,
	)
	if err != nil {
		return common.WrapError(err, "insert job")
	}
	return nil
}

func (r *SQLiteJobRepository) Update(ctx context.Context, job *entity.Job) error {
	row, err := toRow(job)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE extraction_jobs SET
		    status = ?, attempts = ?, confidence = ?, engine_used = ?,
		    result_json = ?, error_message = ?, started_at = ?, finished_at = ?
		WHERE id = ?`,
		row.Status, row.Attempts, row.Confidence, row.EngineUsed,
		nullableJSON(row.ResultJSON), row.ErrorMessage, row.StartedAt, row.FinishedAt,
		row.ID,
	)
	if err != nil {
		return common.WrapError(err, "update job")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *SQLiteJobRepository) Get(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	row, err := scanJob(r.db.QueryRowContext(ctx, `
		SELECT id, document_ref, schema_json, webhook_url, status, attempts,
		       confidence, engine_used, result_json, error_message,
		       created_at, started_at, finished_at
		FROM extraction_jobs WHERE id = ?`, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, common.WrapError(err, "select job")
	}
	return fromRow(row)
}

func (r *SQLiteJobRepository) List(ctx context.Context, limit int) ([]*entity.Job, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, document_ref, schema_json, webhook_url, status, attempts,
		       confidence, engine_used, result_json, error_message,
		       created_at, started_at, finished_at
		FROM extraction_jobs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, common.WrapError(err, "list jobs")
	}
	defer func() { _ = rows.Close() }()

	var jobs []*entity.Job
	for rows.Next() {
		row, err := scanJob(rows)
		if err != nil {
			return nil, common.WrapError(err, "scan job")
		}
		job, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, common.WrapError(err, "iterate jobs")
	}
	return jobs, nil
}

func (r *SQLiteJobRepository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(s rowScanner) (jobRow, error) {
	var row jobRow
	var schemaJSON string
	var resultJSON sql.NullString
	err := s.Scan(
		&row.ID, &row.DocumentRef, &schemaJSON, &row.WebhookURL, &row.Status,
		&row.Attempts, &row.Confidence, &row.EngineUsed, &resultJSON,
		&row.ErrorMessage, &row.CreatedAt, &row.StartedAt, &row.FinishedAt,
	)
	if err != nil {
		return jobRow{}, err
	}
	row.SchemaJSON = []byte(schemaJSON)
	if resultJSON.Valid {
		row.ResultJSON = []byte(resultJSON.String)
	}
	return row, nil
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

var _ JobRepository = (*SQLiteJobRepository)(nil)
