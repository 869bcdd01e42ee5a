package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/docuflow/engine/internal/common"
	"github.com/docuflow/engine/internal/entity"
)

// MemoryJobRepository is an in-process store for tests and ephemeral runs.
type MemoryJobRepository struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*entity.Job
}

func NewMemoryJobRepository() *MemoryJobRepository {
	return &MemoryJobRepository{jobs: make(map[uuid.UUID]*entity.Job)}
}

func (r *MemoryJobRepository) Create(_ context.Context, job *entity.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.ID]; exists {
		return common.NewAppError("CONFLICT", "job already exists", common.ErrInvalidInput)
	}
	r.jobs[job.ID] = copyJob(job)
	return nil
}

func (r *MemoryJobRepository) Update(_ context.Context, job *entity.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.ID]; !exists {
		return common.ErrNotFound
	}
	r.jobs[job.ID] = copyJob(job)
	return nil
}

func (r *MemoryJobRepository) Get(_ context.Context, id uuid.UUID) (*entity.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return copyJob(job), nil
}

func (r *MemoryJobRepository) List(_ context.Context, limit int) ([]*entity.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if limit <= 0 {
		limit = 100
	}
	jobs := make([]*entity.Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		jobs = append(jobs, copyJob(job))
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	if len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func (r *MemoryJobRepository) Close() error { return nil }

func copyJob(job *entity.Job) *entity.Job {
	out := *job
	if job.Result != nil {
		rec := job.Result.Clone()
		out.Result = &rec
	}
	return &out
}

var _ JobRepository = (*MemoryJobRepository)(nil)
