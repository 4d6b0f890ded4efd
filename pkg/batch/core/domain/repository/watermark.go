// Package repository defines the persistence contracts of the loader.
package repository

import (
	"context"

	"github.com/tigerroll/deltaloader/pkg/batch/core/domain/model"
)

// WatermarkStore persists the last fully processed staging folder of each job.
//
// Implementations perform exactly one read or one unconditional write per call; there is no
// optimistic concurrency check, so callers must run at most one instance per job id.
// Every failure is returned as a StoreAccessError.
type WatermarkStore interface {
	// Get returns the stored watermark for jobID. found is false (and err nil) when no record exists.
	Get(ctx context.Context, jobID string) (folder string, found bool, err error)

	// Put overwrites the watermark for jobID with folder.
	Put(ctx context.Context, jobID, folder string) error
}

// WatermarkInspector is implemented by stores that can return the full persisted record.
type WatermarkInspector interface {
	// GetRecord returns the record for jobID, or nil when it does not exist.
	GetRecord(ctx context.Context, jobID string) (*model.WatermarkRecord, error)
}
