package worker

import (
	"context"
	"time"

	"prodsync/internal/models"

	"github.com/rs/zerolog"
)

// ChunkRunner is the slice of the engine the timer drives.
type ChunkRunner interface {
	RunChunk(ctx context.Context) (models.ChunkResult, error)
}

// Timer is the background trigger: on every tick it processes one chunk
// of whatever job is active. Against an idle job a tick is a no-op, so
// the timer can run unconditionally.
type Timer struct {
	engine   ChunkRunner
	interval time.Duration
	logger   *zerolog.Logger
}

func NewTimer(engine ChunkRunner, interval time.Duration, logger *zerolog.Logger) *Timer {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Timer{
		engine:   engine,
		interval: interval,
		logger:   logger,
	}
}

// Start runs the tick loop until ctx is done.
func (t *Timer) Start(ctx context.Context) {
	t.logger.Info().Dur("interval", t.interval).Msg("sync timer started")
	defer t.logger.Info().Msg("sync timer stopped")

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.tick(ctx)
		}
	}
}

func (t *Timer) tick(ctx context.Context) {
	result, err := t.engine.RunChunk(ctx)
	if err != nil {
		// Cursor did not advance; the next tick retries the same page.
		t.logger.Error().Err(err).Msg("timer chunk failed, will retry next tick")
		return
	}

	switch result.Status {
	case models.JobIdle:
		t.logger.Debug().Msg("timer tick: no sync in progress")
	case models.JobCompleted:
		t.logger.Info().Int("total_processed", result.TotalProcessed).Msg("timer tick: sync completed")
	default:
		t.logger.Info().Int("synced", result.Synced).Int("remaining", result.Remaining).Msg("timer tick: chunk processed")
	}
}
