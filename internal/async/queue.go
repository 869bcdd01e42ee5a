package async

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Task is the smallest useful unit of queued work: a job id plus submission
// metadata. The worker resolves the id against the store.
type Task struct {
	JobID       uuid.UUID
	SubmittedAt time.Time
}

// Queue accepts tasks for background processing.
type Queue interface {
	Enqueue(ctx context.Context, task Task) error
	Shutdown(ctx context.Context)
}
