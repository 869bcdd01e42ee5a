package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docuflow/engine/internal/common"
	"github.com/docuflow/engine/internal/entity"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS extraction_jobs (
    id            UUID PRIMARY KEY,
    document_ref  TEXT NOT NULL,
    schema_json   JSONB NOT NULL,
    webhook_url   TEXT NOT NULL DEFAULT '',
    status        TEXT NOT NULL,
    attempts      INT NOT NULL DEFAULT 0,
    confidence    REAL NOT NULL DEFAULT 0,
    engine_used   TEXT NOT NULL DEFAULT '',
    result_json   JSONB,
    error_message TEXT,
    created_at    TIMESTAMPTZ NOT NULL,
    started_at    TIMESTAMPTZ,
    finished_at   TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_extraction_jobs_status ON extraction_jobs (status);
CREATE INDEX IF NOT EXISTS idx_extraction_jobs_created ON extraction_jobs (created_at DESC);
`

// PostgresJobRepository stores jobs in Postgres through a pgx pool.
type PostgresJobRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// PoolOptions mirror the database section of the app config.
type PoolOptions struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

func NewPostgresJobRepository(ctx context.Context, dsn string, opts PoolOptions, logger *slog.Logger) (*PostgresJobRepository, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, common.WrapError(err, "parse database dsn")
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		cfg.MinConns = opts.MinConns
	}
	if opts.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = opts.MaxConnLifetime
	}
	if opts.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = opts.MaxConnIdleTime
	}
	if opts.DialTimeout > 0 {
		cfg.ConnConfig.ConnectTimeout = opts.DialTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, common.WrapError(err, "create connection pool")
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, common.WrapError(err, "apply schema")
	}
	logger.Info("repository.postgres.ready", "max_conns", cfg.MaxConns)
	return &PostgresJobRepository{pool: pool, logger: logger}, nil
}

func (r *PostgresJobRepository) Create(ctx context.Context, job *entity.Job) error {
	row, err := toRow(job)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO extraction_jobs
		    (id, document_ref, schema_json, webhook_url, status, attempts,
		     confidence, engine_used, result_json, error_message,
		     created_at, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		row.ID, row.DocumentRef, row.SchemaJSON, row.WebhookURL, row.Status,
		row.Attempts, row.Confidence, row.EngineUsed, row.ResultJSON,
		row.ErrorMessage, row.CreatedAt, row.StartedAt, row.FinishedAt,
	)
	if err != nil {
		return common.WrapError(err, "insert job")
	}
	return nil
}

func (r *PostgresJobRepository) Update(ctx context.Context, job *entity.Job) error {
	row, err := toRow(job)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE extraction_jobs SET
		    status = $2, attempts = $3, confidence = $4, engine_used = $5,
		    result_json = $6, error_message = $7, started_at = $8, finished_at = $9
		WHERE id = $1`,
		row.ID, row.Status, row.Attempts, row.Confidence, row.EngineUsed,
		row.ResultJSON, row.ErrorMessage, row.StartedAt, row.FinishedAt,
	)
	if err != nil {
		return common.WrapError(err, "update job")
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *PostgresJobRepository) Get(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	var row jobRow
	err := r.pool.QueryRow(ctx, `
		SELECT id, document_ref, schema_json, webhook_url, status, attempts,
		       confidence, engine_used, result_json, error_message,
		       created_at, started_at, finished_at
		FROM extraction_jobs WHERE id = $1`, id.String(),
	).Scan(
		&row.ID, &row.DocumentRef, &row.SchemaJSON, &row.WebhookURL, &row.Status,
		&row.Attempts, &row.Confidence, &row.EngineUsed, &row.ResultJSON,
		&row.ErrorMessage, &row.CreatedAt, &row.StartedAt, &row.FinishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, common.WrapError(err, "select job")
	}
	return fromRow(row)
}

func (r *PostgresJobRepository) List(ctx context.Context, limit int) ([]*entity.Job, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, document_ref, schema_json, webhook_url, status, attempts,
		       confidence, engine_used, result_json, error_message,
		       created_at, started_at, finished_at
		FROM extraction_jobs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, common.WrapError(err, "list jobs")
	}
	defer rows.Close()

	var jobs []*entity.Job
	for rows.Next() {
		var row jobRow
		if err := rows.Scan(
			&row.ID, &row.DocumentRef, &row.SchemaJSON, &row.WebhookURL, &row.Status,
			&row.Attempts, &row.Confidence, &row.EngineUsed, &row.ResultJSON,
			&row.ErrorMessage, &row.CreatedAt, &row.StartedAt, &row.FinishedAt,
		); err != nil {
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

func (r *PostgresJobRepository) Close() error {
	r.pool.Close()
	return nil
}

var _ JobRepository = (*PostgresJobRepository)(nil)
