package repository

import (
	"context"
	"sync"

	"prodsync/internal/models"
)

// MemoryProgressStore holds the SyncJob in process memory. Used in tests
// and as the failover fallback when Redis is unavailable.
type MemoryProgressStore struct {
	mu  sync.Mutex
	job models.SyncJob
	set bool
}

func NewMemoryProgressStore() *MemoryProgressStore {
	return &MemoryProgressStore{}
}

func (r *MemoryProgressStore) Read(ctx context.Context) (models.SyncJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.set {
		return models.NewIdleJob(), nil
	}
	return r.job.Clone(), nil
}

func (r *MemoryProgressStore) Merge(ctx context.Context, update models.JobUpdate) (models.SyncJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.set {
		r.job = models.NewIdleJob()
		r.set = true
	}
	r.job.Apply(update)
	return r.job.Clone(), nil
}
