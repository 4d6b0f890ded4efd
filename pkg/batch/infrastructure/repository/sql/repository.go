// Package sql implements the WatermarkStore on a relational database through the gorm adapter.
package sql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tigerroll/deltaloader/pkg/batch/adapter/database"
	coreAdapter "github.com/tigerroll/deltaloader/pkg/batch/core/adapter"
	"github.com/tigerroll/deltaloader/pkg/batch/core/domain/model"
	"github.com/tigerroll/deltaloader/pkg/batch/core/domain/repository"
	"github.com/tigerroll/deltaloader/pkg/batch/support/util/exception"
)

const phase = "watermark"

// SQLWatermarkStore implements repository.WatermarkStore over the job_watermarks table.
type SQLWatermarkStore struct {
	dbResolver coreAdapter.ResourceConnectionResolver // Expected to resolve to a database.DBConnection.
	// dbName is the name of the database connection under adapter.database (e.g., "watermark").
	dbName    string
	tableName string
	jobType   string

	now func() time.Time
}

var (
	_ repository.WatermarkStore     = (*SQLWatermarkStore)(nil)
	_ repository.WatermarkInspector = (*SQLWatermarkStore)(nil)
)

// NewSQLWatermarkStore creates a store reading and writing tableName on the connection dbName.
// An empty tableName selects DefaultTableName and an empty jobType selects model.DefaultJobType.
func NewSQLWatermarkStore(dbResolver coreAdapter.ResourceConnectionResolver, dbName, tableName, jobType string) *SQLWatermarkStore {
	if tableName == "" {
		tableName = DefaultTableName
	}
	if jobType == "" {
		jobType = model.DefaultJobType
	}
	return &SQLWatermarkStore{
		dbResolver: dbResolver,
		dbName:     dbName,
		tableName:  tableName,
		jobType:    jobType,
		now:        time.Now,
	}
}

// getDBConnection resolves the latest DBConnection for every call so reconnects are picked up.
func (s *SQLWatermarkStore) getDBConnection(ctx context.Context) (database.DBConnection, error) {
	connAsResource, err := s.dbResolver.ResolveConnection(ctx, s.dbName)
	if err != nil {
		return nil, exception.NewStoreAccessError(phase, fmt.Sprintf("failed to resolve DB connection '%s'", s.dbName), err)
	}
	conn, ok := connAsResource.(database.DBConnection)
	if !ok {
		return nil, exception.NewStoreAccessError(phase, fmt.Sprintf("resolved connection '%s' is not a database.DBConnection", s.dbName), nil)
	}
	return conn, nil
}

// GetRecord implements repository.WatermarkInspector.
func (s *SQLWatermarkStore) GetRecord(ctx context.Context, jobID string) (*model.WatermarkRecord, error) {
	conn, err := s.getDBConnection(ctx)
	if err != nil {
		return nil, err
	}

	var entity WatermarkEntity
	err = conn.ExecuteQueryFirst(ctx, &entity, s.tableName, map[string]interface{}{
		"job_type": s.jobType,
		"job_name": jobID,
	})
	if err != nil {
		if errors.Is(err, database.ErrRecordNotFound) {
			return nil, nil
		}
		if conn.IsTableNotExistError(err) {
			return nil, exception.NewStoreAccessError(phase,
				fmt.Sprintf("watermark table '%s' does not exist; enable watermark.auto_migrate or run the migrations", s.tableName), err).WithJob(jobID)
		}
		return nil, exception.NewStoreAccessError(phase, "failed to read watermark", err).WithJob(jobID)
	}
	return toDomainWatermark(&entity), nil
}

// Get implements repository.WatermarkStore.
func (s *SQLWatermarkStore) Get(ctx context.Context, jobID string) (string, bool, error) {
	rec, err := s.GetRecord(ctx, jobID)
	if err != nil {
		return "", false, err
	}
	if rec == nil {
		return "", false, nil
	}
	return rec.LastFolder, true, nil
}

// Put implements repository.WatermarkStore with an upsert on (job_type, job_name).
func (s *SQLWatermarkStore) Put(ctx context.Context, jobID, folder string) error {
	conn, err := s.getDBConnection(ctx)
	if err != nil {
		return err
	}

	entity := fromDomainWatermark(&model.WatermarkRecord{
		JobType:    s.jobType,
		JobName:    jobID,
		LastFolder: folder,
		RunID:      model.RunIDFrom(ctx),
		UpdatedAt:  s.now().UTC(),
	})
	_, err = conn.ExecuteUpsert(ctx, entity, s.tableName,
		[]string{"job_type", "job_name"},
		[]string{"last_folder", "run_id", "updated_at"},
	)
	if err != nil {
		return exception.NewStoreAccessError(phase, "failed to write watermark", err).WithJob(jobID).WithFolder(folder)
	}
	return nil
}
