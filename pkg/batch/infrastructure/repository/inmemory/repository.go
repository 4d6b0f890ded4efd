// Package inmemory provides a process-local implementation of the WatermarkStore interface,
// suitable for tests and dry runs where persistence is not required.
package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/tigerroll/deltaloader/pkg/batch/core/domain/model"
	"github.com/tigerroll/deltaloader/pkg/batch/core/domain/repository"
)

// InMemoryWatermarkStore holds watermark records in a map keyed by job name.
type InMemoryWatermarkStore struct {
	jobType string
	records map[string]*model.WatermarkRecord
	mu      sync.RWMutex // Mutex to protect concurrent access to the map.

	// now is replaced in tests.
	now func() time.Time
}

var (
	_ repository.WatermarkStore     = (*InMemoryWatermarkStore)(nil)
	_ repository.WatermarkInspector = (*InMemoryWatermarkStore)(nil)
)

// NewInMemoryWatermarkStore creates an empty store for jobType.
func NewInMemoryWatermarkStore(jobType string) *InMemoryWatermarkStore {
	if jobType == "" {
		jobType = model.DefaultJobType
	}
	return &InMemoryWatermarkStore{
		jobType: jobType,
		records: make(map[string]*model.WatermarkRecord),
		now:     time.Now,
	}
}

// Get implements repository.WatermarkStore.
func (s *InMemoryWatermarkStore) Get(ctx context.Context, jobID string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[jobID]
	if !ok {
		return "", false, nil
	}
	return rec.LastFolder, true, nil
}

// Put implements repository.WatermarkStore.
func (s *InMemoryWatermarkStore) Put(ctx context.Context, jobID, folder string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[jobID] = &model.WatermarkRecord{
		JobType:    s.jobType,
		JobName:    jobID,
		LastFolder: folder,
		RunID:      model.RunIDFrom(ctx),
		UpdatedAt:  s.now().UTC(),
	}
	return nil
}

// GetRecord implements repository.WatermarkInspector.
func (s *InMemoryWatermarkStore) GetRecord(ctx context.Context, jobID string) (*model.WatermarkRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[jobID]
	if !ok {
		return nil, nil
	}
	// Copy to prevent external modification of internal state.
	cloned := *rec
	return &cloned, nil
}

// Close releases resources used by the store. It holds none.
func (s *InMemoryWatermarkStore) Close() error {
	return nil
}
