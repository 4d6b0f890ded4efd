// Package table applies staged folders to the destination table under a write policy and
// keeps the table's external manifest current.
package table

import (
	"context"

	"github.com/tigerroll/deltaloader/pkg/batch/core/domain/model"
)

// ApplyRequest describes one staged folder and where it goes.
type ApplyRequest struct {
	Staging    model.Location
	Table      model.Location
	Format     model.StagingFormat
	Policy     model.WritePolicy
	PrimaryKey string
}

// Engine is the table-format collaborator. Each write is expected to be a single
// transaction in the table's log. Errors are returned as-is; the Writer classifies them.
type Engine interface {
	// TableExists reports whether a table exists at table.
	TableExists(ctx context.Context, table model.Location) (bool, error)
	// Create creates the table from the staged records.
	Create(ctx context.Context, req ApplyRequest) error
	// Append adds the staged records to the table.
	Append(ctx context.Context, req ApplyRequest) error
	// Overwrite replaces the whole content of the table with the staged records.
	Overwrite(ctx context.Context, req ApplyRequest) error
	// Merge upserts the staged records by equality on req.PrimaryKey.
	Merge(ctx context.Context, req ApplyRequest) error
	// GenerateManifest regenerates the list of data files readers without transaction
	// log support use.
	GenerateManifest(ctx context.Context, table model.Location) error
}

// KeyProbe checks that staged data carries a column before a merge depends on it.
type KeyProbe interface {
	HasColumn(ctx context.Context, staging model.Location, format model.StagingFormat, column string) (bool, error)
}
