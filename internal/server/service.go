package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/docuflow/engine/internal/async"
	"github.com/docuflow/engine/internal/common"
	"github.com/docuflow/engine/internal/entity"
	"github.com/docuflow/engine/internal/pipeline"
	"github.com/docuflow/engine/internal/repository"
)

// Service wires job intake to the pipeline: persist, enqueue (or run inline
// for synchronous callers), and expose job state.
type Service struct {
	repo         repository.JobRepository
	orchestrator *pipeline.Orchestrator
	queue        async.Queue
	logger       *slog.Logger
}

func NewService(repo repository.JobRepository, orchestrator *pipeline.Orchestrator, queue async.Queue, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, orchestrator: orchestrator, queue: queue, logger: logger}
}

// SetQueue attaches the worker pool after construction. The pool's handler
// is a method on this service, so the two reference each other.
func (s *Service) SetQueue(queue async.Queue) { s.queue = queue }

// SubmitRequest is one extraction submission.
type SubmitRequest struct {
	DocumentRef string             `json:"document_ref"`
	Schema      []entity.FieldSpec `json:"schema"`
	WebhookURL  string             `json:"webhook_url,omitempty"`

	// Sync forces an inline run even when a webhook URL is set. Without a
	// webhook URL the pipeline always runs inline: the caller has no other
	// way to learn the outcome.
	Sync bool `json:"sync,omitempty"`
}

func (r SubmitRequest) inline() bool {
	return r.Sync || r.WebhookURL == ""
}

func (r SubmitRequest) validate() error {
	if r.DocumentRef == "" {
		return common.NewAppError("INVALID_REQUEST", "document_ref is required", common.ErrInvalidInput)
	}
	if len(r.Schema) == 0 {
		return common.NewAppError("INVALID_REQUEST", "schema must have at least one field", common.ErrInvalidInput)
	}
	seen := map[string]bool{}
	for i, f := range r.Schema {
		if f.Name == "" {
			return common.NewAppError("INVALID_REQUEST",
				fmt.Sprintf("schema field %d has no name", i), common.ErrInvalidInput)
		}
		if seen[f.Name] {
			return common.NewAppError("INVALID_REQUEST",
				fmt.Sprintf("duplicate schema field %q", f.Name), common.ErrInvalidInput)
		}
		seen[f.Name] = true
		if !f.Type.Known() {
			return common.NewAppError("INVALID_REQUEST",
				fmt.Sprintf("schema field %q has unknown type %q", f.Name, f.Type), common.ErrInvalidInput)
		}
	}
	return nil
}

// Submit accepts a job. Webhook submissions are queued and return the job
// immediately; the rest run inline and return it terminal.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*entity.Job, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	job := entity.NewJob(req.DocumentRef, req.Schema, req.WebhookURL)
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, err
	}
	s.logger.Info("job.accepted",
		"job_id", job.ID.String(),
		"document_ref", job.DocumentRef,
		"inline", req.inline(),
	)

	if req.inline() {
		// inline: a pipeline failure is already recorded on the job
		_ = s.orchestrator.Process(ctx, job)
		if err := s.repo.Update(ctx, job); err != nil {
			return nil, err
		}
		return job, nil
	}

	if err := s.queue.Enqueue(ctx, async.Task{JobID: job.ID, SubmittedAt: time.Now()}); err != nil {
		// the job stays queued in the store; surface the backpressure
		return nil, err
	}
	return job, nil
}

// HandleTask is the worker-pool entry point: load, process, persist.
func (s *Service) HandleTask(ctx context.Context, task async.Task) error {
	job, err := s.repo.Get(ctx, task.JobID)
	if err != nil {
		return common.WrapError(err, "load job")
	}
	if job.Status.Terminal() {
		return nil
	}

	procErr := s.orchestrator.Process(ctx, job)
	if err := s.repo.Update(ctx, job); err != nil {
		return common.WrapError(err, "persist job")
	}
	if procErr != nil {
		s.logger.Warn("job.pipeline_failed", "job_id", job.ID.String(), "error", procErr)
	}
	return nil
}

// GetJob returns one job by id.
func (s *Service) GetJob(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	return s.repo.Get(ctx, id)
}

// ListJobs returns recent jobs, newest first.
func (s *Service) ListJobs(ctx context.Context, limit int) ([]*entity.Job, error) {
	return s.repo.List(ctx, limit)
}
