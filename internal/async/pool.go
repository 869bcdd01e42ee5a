package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/docuflow/engine/internal/common"
)

// Handler processes one task. Errors are logged, not retried; the pipeline's
// own retry semantics live below this layer.
type Handler func(ctx context.Context, task Task) error

// WorkerPool is a bounded channel-backed Queue. Enqueue rejects when the
// buffer is full rather than blocking request handlers.
type WorkerPool struct {
	tasks   chan Task
	handler Handler
	logger  *slog.Logger

	wg       sync.WaitGroup
	stopOnce sync.Once
	baseCtx  context.Context
	cancel   context.CancelFunc
}

// Option configures a WorkerPool.
type Option func(*poolConfig)

type poolConfig struct {
	workers   int
	queueSize int
}

func WithWorkers(n int) Option {
	return func(c *poolConfig) {
		if n > 0 {
			c.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(c *poolConfig) {
		if n > 0 {
			c.queueSize = n
		}
	}
}

func NewWorkerPool(handler Handler, logger *slog.Logger, opts ...Option) *WorkerPool {
	cfg := poolConfig{workers: 4, queueSize: 64}
	for _, opt := range opts {
		opt(&cfg)
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &WorkerPool{
		tasks:   make(chan Task, cfg.queueSize),
		handler: handler,
		logger:  logger,
		baseCtx: ctx,
		cancel:  cancel,
	}
	for i := 0; i < cfg.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	logger.Info("async.pool.started", "workers", cfg.workers, "queue_size", cfg.queueSize)
	return p
}

// Enqueue hands a task to the pool. It fails fast when the queue is full or
// the pool is shutting down.
func (p *WorkerPool) Enqueue(ctx context.Context, task Task) error {
	select {
	case <-p.baseCtx.Done():
		return common.NewAppError("QUEUE_CLOSED", "worker pool is shut down", common.ErrInternal)
	case <-ctx.Done():
		return ctx.Err()
	case p.tasks <- task:
		return nil
	default:
		return common.NewAppError("QUEUE_FULL", "job queue is full", common.ErrInternal)
	}
}

// Shutdown stops intake and waits for in-flight tasks, up to the context
// deadline. Buffered tasks that never started are dropped.
func (p *WorkerPool) Shutdown(ctx context.Context) {
	p.stopOnce.Do(func() {
		p.cancel()
		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
			p.logger.Info("async.pool.drained")
		case <-ctx.Done():
			p.logger.Warn("async.pool.shutdown_timeout")
		}
	})
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.baseCtx.Done():
			return
		case task := <-p.tasks:
			start := time.Now()
			if err := p.handler(context.WithoutCancel(p.baseCtx), task); err != nil {
				p.logger.Error("async.task.failed",
					"worker", id,
					"job_id", task.JobID.String(),
					"error", err,
					"elapsed_ms", time.Since(start).Milliseconds(),
				)
				continue
			}
			p.logger.Debug("async.task.done",
				"worker", id,
				"job_id", task.JobID.String(),
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
		}
	}
}

var _ Queue = (*WorkerPool)(nil)
