package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/docuflow/engine/constants"
	"github.com/docuflow/engine/internal/entity"
)

// JobRepository persists extraction jobs. Implementations must tolerate
// concurrent writers; the service updates a job from worker goroutines.
type JobRepository interface {
	Create(ctx context.Context, job *entity.Job) error
	Update(ctx context.Context, job *entity.Job) error
	Get(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	List(ctx context.Context, limit int) ([]*entity.Job, error)
	Close() error
}

// jobRow is the flat persisted shape shared by the SQL backends. Schema and
// result are stored as JSON documents.
type jobRow struct {
	ID           string
	DocumentRef  string
	SchemaJSON   []byte
	WebhookURL   string
	Status       string
	Attempts     int
	Confidence   float32
	EngineUsed   string
	ResultJSON   []byte
	ErrorMessage *string
	CreatedAt    time.Time
	StartedAt    *time.Time
	FinishedAt   *time.Time
}

func toRow(job *entity.Job) (jobRow, error) {
	schemaJSON, err := json.Marshal(job.Schema)
	if err != nil {
		return jobRow{}, fmt.Errorf("marshal schema: %w", err)
	}
	var resultJSON []byte
	if job.Result != nil {
		resultJSON, err = json.Marshal(job.Result)
		if err != nil {
			return jobRow{}, fmt.Errorf("marshal result: %w", err)
		}
	}
	return jobRow{
		ID:           job.ID.String(),
		DocumentRef:  job.DocumentRef,
		SchemaJSON:   schemaJSON,
		WebhookURL:   job.WebhookURL,
		Status:       string(job.Status),
		Attempts:     job.Attempts,
		Confidence:   job.Confidence,
		EngineUsed:   job.EngineUsed,
		ResultJSON:   resultJSON,
		ErrorMessage: job.ErrorMessage,
		CreatedAt:    job.CreatedAt,
		StartedAt:    job.StartedAt,
		FinishedAt:   job.FinishedAt,
	}, nil
}

func fromRow(row jobRow) (*entity.Job, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return nil, fmt.Errorf("parse job id: %w", err)
	}
	job := &entity.Job{
		ID:           id,
		DocumentRef:  row.DocumentRef,
		WebhookURL:   row.WebhookURL,
		Status:       constants.JobStatus(row.Status),
		Attempts:     row.Attempts,
		Confidence:   row.Confidence,
		EngineUsed:   row.EngineUsed,
		ErrorMessage: row.ErrorMessage,
		CreatedAt:    row.CreatedAt,
		StartedAt:    row.StartedAt,
		FinishedAt:   row.FinishedAt,
	}
	if len(row.SchemaJSON) > 0 {
		if err := json.Unmarshal(row.SchemaJSON, &job.Schema); err != nil {
			return nil, fmt.Errorf("unmarshal schema: %w", err)
		}
	}
	if len(row.ResultJSON) > 0 {
		var rec entity.ExtractedRecord
		if err := json.Unmarshal(row.ResultJSON, &rec); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
		job.Result = &rec
	}
	return job, nil
}
