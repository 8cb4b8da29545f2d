package plagiarism

import (
	"context"

	"github.com/RishiKendai/aegis-local/internal/models"
)

// PoolQueue runs checks in-process on the worker pool
type PoolQueue struct {
	pool    *WorkerPool
	checker *Checker
}

func NewPoolQueue(pool *WorkerPool, checker *Checker) *PoolQueue {
	return &PoolQueue{
		pool:    pool,
		checker: checker,
	}
}

func (q *PoolQueue) Enqueue(ctx context.Context, submission *models.Submission) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return q.pool.Submit(q.checker.NewJob(submission))
}
