package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/docuflow/engine/constants"
)

// Job represents one extraction request for data transfer between layers.
type Job struct {
	ID          uuid.UUID           `json:"id"`
	DocumentRef string              `json:"document_ref"`
	Schema      []FieldSpec         `json:"schema"`
	WebhookURL  string              `json:"webhook_url,omitempty"`
	Status      constants.JobStatus `json:"status"`

	// Attempts counts validation failures that triggered a re-extraction.
	// It never exceeds the configured maximum.
	Attempts   int     `json:"attempts"`
	Confidence float32 `json:"confidence"`
	EngineUsed string  `json:"engine_used,omitempty"`

	Result       *ExtractedRecord `json:"result,omitempty"`
	ErrorMessage *string          `json:"error_message,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// NewJob builds a queued job for the given document and schema.
func NewJob(documentRef string, schema []FieldSpec, webhookURL string) *Job {
	return &Job{
		ID:          uuid.New(),
		DocumentRef: documentRef,
		Schema:      schema,
		WebhookURL:  webhookURL,
		Status:      constants.JobStatusQueued,
		CreatedAt:   time.Now().UTC(),
	}
}

// MarkProcessing transitions queued -> processing.
func (j *Job) MarkProcessing(now time.Time) error {
	if j.Status.Terminal() {
		return fmt.Errorf("job %s already terminal (%s)", j.ID, j.Status)
	}
	j.Status = constants.JobStatusProcessing
	t := now.UTC()
	j.StartedAt = &t
	return nil
}

// Complete records a terminal successful extraction.
func (j *Job) Complete(rec *ExtractedRecord, engine string, confidence float32, now time.Time) error {
	return j.finish(constants.JobStatusCompleted, rec, engine, confidence, nil, now)
}

// NeedsReview records a terminal best-effort extraction flagged for a human.
func (j *Job) NeedsReview(rec *ExtractedRecord, engine string, confidence float32, now time.Time) error {
	return j.finish(constants.JobStatusNeedsReview, rec, engine, confidence, nil, now)
}

// Fail records a terminal fatal error.
func (j *Job) Fail(cause error, now time.Time) error {
	msg := cause.Error()
	return j.finish(constants.JobStatusFailed, nil, constants.EngineNone, 0, &msg, now)
}

// finish enforces that a job becomes terminal exactly once.
func (j *Job) finish(status constants.JobStatus, rec *ExtractedRecord, engine string, confidence float32, errMsg *string, now time.Time) error {
	if j.Status.Terminal() {
		return fmt.Errorf("job %s already terminal (%s)", j.ID, j.Status)
	}
	j.Status = status
	j.Result = rec
	j.EngineUsed = engine
	j.Confidence = confidence
	j.ErrorMessage = errMsg
	t := now.UTC()
	j.FinishedAt = &t
	return nil
}

// ProcessingSeconds reports wall-clock duration between start and finish.
func (j *Job) ProcessingSeconds() float64 {
	if j.StartedAt == nil || j.FinishedAt == nil {
		return 0
	}
	return j.FinishedAt.Sub(*j.StartedAt).Seconds()
}
