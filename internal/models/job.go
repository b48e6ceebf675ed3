package models

import "time"

type JobStatus string

const (
	JobIdle       JobStatus = "idle"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobCancelled  JobStatus = "cancelled"
)

const (
	// DefaultBatchSize products per chunk
	DefaultBatchSize = 10

	// MaxJobErrors newest entries kept in the job error log
	MaxJobErrors = 50
)

// SyncError is one failed (product, tenant) replication attempt.
type SyncError struct {
	ProductID int64     `json:"product_id"`
	Tenant    string    `json:"tenant"`
	Message   string    `json:"message"`
	Time      time.Time `json:"time"`
}

// SyncJob is the single process-wide replication job record.
type SyncJob struct {
	ID        string      `json:"id"`
	Status    JobStatus   `json:"status"`
	Total     int         `json:"total"`
	Processed int         `json:"processed"`
	Cursor    int         `json:"cursor"`
	Errors    []SyncError `json:"errors"`
	StartTime time.Time   `json:"start_time"`
}

// NewIdleJob returns the reset value used before any sync has run.
func NewIdleJob() SyncJob {
	return SyncJob{
		Status: JobIdle,
		Errors: []SyncError{},
	}
}

// Clone returns a deep copy; the error slice is never shared.
func (j SyncJob) Clone() SyncJob {
	out := j
	out.Errors = append([]SyncError(nil), j.Errors...)
	return out
}

// JobUpdate is a partial SyncJob; nil fields are left untouched by Apply.
type JobUpdate struct {
	ID        *string
	Status    *JobStatus
	Total     *int
	Processed *int
	Cursor    *int
	Errors    *[]SyncError
	StartTime *time.Time
}

// Apply merges non-nil update fields into the job. The error log is capped
// at MaxJobErrors, dropping the oldest entries.
func (j *SyncJob) Apply(u JobUpdate) {
	if u.ID != nil {
		j.ID = *u.ID
	}
	if u.Status != nil {
		j.Status = *u.Status
	}
	if u.Total != nil {
		j.Total = *u.Total
	}
	if u.Processed != nil {
		j.Processed = *u.Processed
	}
	if u.Cursor != nil {
		j.Cursor = *u.Cursor
	}
	if u.Errors != nil {
		errs := *u.Errors
		if len(errs) > MaxJobErrors {
			errs = errs[len(errs)-MaxJobErrors:]
		}
		j.Errors = errs
	}
	if u.StartTime != nil {
		j.StartTime = *u.StartTime
	}
}

// ChunkResult is what one RunChunk invocation reports back to its caller.
type ChunkResult struct {
	Status         JobStatus `json:"status"`
	Message        string    `json:"message"`
	Synced         int       `json:"synced"`
	Remaining      int       `json:"remaining,omitempty"`
	TotalProcessed int       `json:"total_processed,omitempty"`
}

// Progress is the derived read-only view served to pollers.
type Progress struct {
	Status     JobStatus   `json:"status"`
	Current    int         `json:"current"`
	Total      int         `json:"total"`
	Processed  int         `json:"processed"`
	Percentage int         `json:"percentage"`
	Errors     []SyncError `json:"errors"`
	Elapsed    int64       `json:"elapsed"`
	Estimated  int64       `json:"estimated"`
}
