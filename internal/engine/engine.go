package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"prodsync/internal/domain"
	"prodsync/internal/events"
	"prodsync/internal/metrics"
	"prodsync/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrJobAlreadyRunning is returned by Start without force while a job
	// is still processing.
	ErrJobAlreadyRunning = errors.New("a sync job is already running")

	// ErrNoActiveJob is returned where a processing job is required.
	ErrNoActiveJob = errors.New("no sync in progress")
)

// Engine is the job controller and batch processor: it owns the SyncJob
// state machine and executes one chunk per RunChunk call. Chunk execution
// is serialized by an internal mutex, making the progress store's
// single-writer assumption hold within the process.
type Engine struct {
	records    domain.RecordStore
	progress   domain.ProgressStore
	replicator domain.Replicator
	master     string
	targets    []string
	batchSize  int
	bus        *events.EventBus
	logger     *zerolog.Logger

	chunkMu sync.Mutex
	now     func() time.Time
}

// New builds an engine. bus may be nil; lifecycle events are then dropped.
func New(records domain.RecordStore, progress domain.ProgressStore, repl domain.Replicator, master string, targets []string, batchSize int, bus *events.EventBus, logger *zerolog.Logger) *Engine {
	if batchSize <= 0 {
		batchSize = models.DefaultBatchSize
	}
	return &Engine{
		records:    records,
		progress:   progress,
		replicator: repl,
		master:     master,
		targets:    targets,
		batchSize:  batchSize,
		bus:        bus,
		logger:     logger,
		now:        time.Now,
	}
}

func (e *Engine) publish(eventType string, job models.SyncJob) {
	_ = e.bus.PublishJSON(eventType, events.JobEventPayload{
		JobID:     job.ID,
		Status:    string(job.Status),
		Total:     job.Total,
		Processed: job.Processed,
		Errors:    len(job.Errors),
		StartTime: job.StartTime,
	})
}

// Start snapshots the number of published master products and resets the
// job to Processing. While a job is already processing it fails with
// ErrJobAlreadyRunning unless force is set; force overwrites the running
// job's progress. A positive limit caps the snapshot for test runs.
func (e *Engine) Start(ctx context.Context, limit int, force bool) (models.SyncJob, error) {
	current, err := e.progress.Read(ctx)
	if err != nil {
		return models.SyncJob{}, err
	}
	if current.Status == models.JobProcessing && !force {
		return current, ErrJobAlreadyRunning
	}

	total, err := e.records.CountPublished(ctx, e.master)
	if err != nil {
		return models.SyncJob{}, fmt.Errorf("count source products: %w", err)
	}
	if limit > 0 && limit < total {
		total = limit
	}

	id := uuid.NewString()
	status := models.JobProcessing
	zero := 0
	noErrors := []models.SyncError{}
	startTime := e.now()

	job, err := e.progress.Merge(ctx, models.JobUpdate{
		ID:        &id,
		Status:    &status,
		Total:     &total,
		Processed: &zero,
		Cursor:    &zero,
		Errors:    &noErrors,
		StartTime: &startTime,
	})
	if err != nil {
		return models.SyncJob{}, err
	}

	e.logger.Info().
		Str("job_id", id).
		Int("total", total).
		Int("targets", len(e.targets)).
		Msg("sync job started")
	e.publish(events.EventJobStarted, job)

	return job, nil
}

// Cancel marks the job cancelled. It does not roll back anything already
// replicated and does not interrupt a chunk in flight; the next RunChunk
// becomes a no-op.
func (e *Engine) Cancel(ctx context.Context) (models.SyncJob, error) {
	status := models.JobCancelled
	job, err := e.progress.Merge(ctx, models.JobUpdate{Status: &status})
	if err != nil {
		return models.SyncJob{}, err
	}
	e.logger.Info().Str("job_id", job.ID).Msg("sync job cancelled")
	e.publish(events.EventJobCancelled, job)
	return job, nil
}

// Status returns the job with derived progress fields.
func (e *Engine) Status(ctx context.Context) (models.Progress, error) {
	job, err := e.progress.Read(ctx)
	if err != nil {
		return models.Progress{}, err
	}

	var elapsed int64
	if !job.StartTime.IsZero() {
		elapsed = int64(e.now().Sub(job.StartTime).Seconds())
	}

	percentage := 0
	if job.Total > 0 {
		percentage = int(math.Round(float64(job.Processed) / float64(job.Total) * 100))
	}

	var estimated int64
	if job.Processed > 0 {
		estimated = int64(math.Round(float64(elapsed) / float64(job.Processed) * float64(job.Total)))
	}

	return models.Progress{
		Status:     job.Status,
		Current:    job.Cursor,
		Total:      job.Total,
		Processed:  job.Processed,
		Percentage: percentage,
		Errors:     job.Errors,
		Elapsed:    elapsed,
		Estimated:  estimated,
	}, nil
}

// RunChunk processes the next page of up to batchSize products against
// every target tenant and advances the cursor. Against a non-processing
// job it is a pure no-op. Storage errors while fetching the page
// propagate without advancing the cursor, so a retry resumes cleanly.
func (e *Engine) RunChunk(ctx context.Context) (models.ChunkResult, error) {
	e.chunkMu.Lock()
	defer e.chunkMu.Unlock()

	started := e.now()

	job, err := e.progress.Read(ctx)
	if err != nil {
		return models.ChunkResult{}, err
	}
	if job.Status != models.JobProcessing {
		return models.ChunkResult{Status: models.JobIdle, Message: "no sync in progress"}, nil
	}

	limit := e.batchSize
	if remaining := job.Total - job.Cursor; remaining < limit {
		limit = remaining
	}
	if limit <= 0 {
		return e.complete(ctx, started, 0, job.Processed)
	}

	page, err := e.records.ListPublished(ctx, e.master, job.Cursor, limit)
	if err != nil {
		return models.ChunkResult{}, fmt.Errorf("fetch product page: %w", err)
	}
	if len(page) == 0 {
		return e.complete(ctx, started, 0, job.Processed)
	}

	errs := append([]models.SyncError(nil), job.Errors...)
	synced := 0
	for _, product := range page {
		for _, tenant := range e.targets {
			_, err := e.replicator.Replicate(ctx, product, tenant)
			metrics.IncReplication(tenant, err)
			if err != nil {
				e.logger.Warn().
					Int64("product_id", product.ID).
					Str("tenant", tenant).
					Err(err).
					Msg("replication failed")
				errs = append(errs, models.SyncError{
					ProductID: product.ID,
					Tenant:    tenant,
					Message:   err.Error(),
					Time:      e.now(),
				})
			}
		}
		// Attempted against every target counts as processed, failures
		// included.
		synced++
	}

	newProcessed := job.Processed + synced
	newCursor := job.Cursor + len(page)
	merged, err := e.progress.Merge(ctx, models.JobUpdate{
		Processed: &newProcessed,
		Cursor:    &newCursor,
		Errors:    &errs,
	})
	if err != nil {
		return models.ChunkResult{}, err
	}

	if newCursor >= merged.Total {
		return e.complete(ctx, started, synced, merged.Total)
	}

	metrics.ObserveChunk(string(models.JobProcessing), e.now().Sub(started))
	e.publish(events.EventChunkProcessed, merged)
	return models.ChunkResult{
		Status:    models.JobProcessing,
		Message:   fmt.Sprintf("processed %d products", synced),
		Synced:    synced,
		Remaining: merged.Total - newCursor,
	}, nil
}

func (e *Engine) complete(ctx context.Context, started time.Time, synced, totalProcessed int) (models.ChunkResult, error) {
	status := models.JobCompleted
	job, err := e.progress.Merge(ctx, models.JobUpdate{
		Status:    &status,
		Processed: &totalProcessed,
	})
	if err != nil {
		return models.ChunkResult{}, err
	}

	e.logger.Info().
		Str("job_id", job.ID).
		Int("processed", job.Processed).
		Int("errors", len(job.Errors)).
		Msg("sync job completed")

	metrics.ObserveChunk(string(models.JobCompleted), e.now().Sub(started))
	e.publish(events.EventJobCompleted, job)
	return models.ChunkResult{
		Status:         models.JobCompleted,
		Message:        "sync completed successfully",
		Synced:         synced,
		TotalProcessed: totalProcessed,
	}, nil
}
