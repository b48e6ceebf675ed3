package repository

import (
	"context"
	"sync/atomic"
	"time"

	"prodsync/internal/domain"
	"prodsync/internal/models"

	"github.com/rs/zerolog"
)

// FailoverProgressStore serves from the primary store and falls back to
// the secondary when the primary errors, probing for recovery after a
// minute. Progress written to the fallback is lost on restart, which the
// engine tolerates: a lost cursor restarts the job from scratch.
type FailoverProgressStore struct {
	primary   domain.ProgressStore
	fallback  domain.ProgressStore
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

func NewFailoverProgressStore(primary, fallback domain.ProgressStore, logger *zerolog.Logger) *FailoverProgressStore {
	return &FailoverProgressStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverProgressStore) Read(ctx context.Context) (models.SyncJob, error) {
	if !r.isDown.Load() {
		job, err := r.primary.Read(ctx)
		if err == nil {
			return job, nil
		}
		r.markDown(err)
	}

	if r.shouldProbe() {
		job, err := r.primary.Read(ctx)
		if err == nil {
			r.isDown.Store(false)
			return job, nil
		}
		r.lastCheck.Store(time.Now().UnixNano())
	}

	return r.fallback.Read(ctx)
}

func (r *FailoverProgressStore) Merge(ctx context.Context, update models.JobUpdate) (models.SyncJob, error) {
	if !r.isDown.Load() {
		job, err := r.primary.Merge(ctx, update)
		if err == nil {
			return job, nil
		}
		r.markDown(err)
	}

	return r.fallback.Merge(ctx, update)
}

func (r *FailoverProgressStore) markDown(err error) {
	r.logger.Error().Err(err).Msg("primary progress store failed, falling back to memory")
	r.isDown.Store(true)
	r.lastCheck.Store(time.Now().UnixNano())
}

func (r *FailoverProgressStore) shouldProbe() bool {
	return r.isDown.Load() && time.Since(time.Unix(0, r.lastCheck.Load())) > time.Minute
}
