package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type runIDKey struct{}

// NewRunID returns a fresh identifier for one invocation.
func NewRunID() string {
	return uuid.NewString()
}

// WithRunID returns a context carrying runID.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFrom returns the run id carried by ctx, or "" when there is none.
func RunIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(runIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WatermarkRecord is the persisted progress of one job.
type WatermarkRecord struct {
	JobType    string
	JobName    string
	LastFolder string
	RunID      string
	UpdatedAt  time.Time
}

// RunReport summarizes one invocation of the ingestion driver.
type RunReport struct {
	RunID          string    `json:"run_id"`
	JobID          string    `json:"job_id"`
	StagingPath    string    `json:"staging_path"`
	TablePath      string    `json:"table_path"`
	WritePolicy    string    `json:"write_type"`
	Watermark      string    `json:"watermark"`
	FinalWatermark string    `json:"final_watermark"`
	Candidates     int       `json:"candidates"`
	Pending        []string  `json:"pending"`
	Processed      []string  `json:"processed"`
	Skipped        []string  `json:"skipped,omitempty"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	Error          string    `json:"error,omitempty"`
}

// Duration returns the wall time of the run.
func (r *RunReport) Duration() time.Duration {
	if r.EndTime.IsZero() {
		return 0
	}
	return r.EndTime.Sub(r.StartTime)
}

// Succeeded reports whether every pending folder was processed.
func (r *RunReport) Succeeded() bool {
	return r.Error == ""
}
