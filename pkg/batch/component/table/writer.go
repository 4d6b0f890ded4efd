package table

import (
	"context"
	"fmt"

	"github.com/tigerroll/deltaloader/pkg/batch/core/domain/model"
	"github.com/tigerroll/deltaloader/pkg/batch/support/util/exception"
	"github.com/tigerroll/deltaloader/pkg/batch/support/util/logger"
)

// Action is what Apply did to the table.
type Action string

const (
	ActionCreate    Action = "create"
	ActionAppend    Action = "append"
	ActionOverwrite Action = "overwrite"
	ActionMerge     Action = "merge"
)

const (
	writePhase    = "write"
	manifestPhase = "manifest"
	probePhase    = "probe"
)

// Writer applies staged folders to a table through an Engine.
type Writer struct {
	engine Engine
	probe  KeyProbe // nil disables the merge key check
}

// NewWriter creates a Writer. probe may be nil.
func NewWriter(engine Engine, probe KeyProbe) *Writer {
	return &Writer{engine: engine, probe: probe}
}

// Apply writes one staged folder.
//
// A missing table is created from the batch whatever the policy; otherwise the policy
// decides between append, overwrite and merge. The manifest is regenerated after every
// successful write, and a manifest failure fails the batch. An invalid policy or a merge
// without a key is rejected before the engine is called.
func (w *Writer) Apply(ctx context.Context, req ApplyRequest) (Action, error) {
	if err := req.Policy.Validate(); err != nil {
		return "", err
	}
	if req.Policy == model.PolicyMerge && req.PrimaryKey == "" {
		return "", exception.NewConfigurationError(writePhase, "merge requires a primary key", nil)
	}
	folder := req.Staging.Key

	exists, err := w.engine.TableExists(ctx, req.Table)
	if err != nil {
		return "", exception.NewWriteError(writePhase, fmt.Sprintf("failed to check table %s", req.Table), err).WithFolder(folder)
	}

	var action Action
	if !exists {
		action = ActionCreate
		logger.Infof("Table %s does not exist; creating it from %s.", req.Table, req.Staging)
		err = w.engine.Create(ctx, req)
	} else {
		switch req.Policy {
		case model.PolicyAppend:
			action = ActionAppend
			err = w.engine.Append(ctx, req)
		case model.PolicyOverwrite:
			action = ActionOverwrite
			err = w.engine.Overwrite(ctx, req)
		case model.PolicyMerge:
			action = ActionMerge
			if err = w.checkKey(ctx, req); err != nil {
				return "", err
			}
			err = w.engine.Merge(ctx, req)
		}
	}
	if err != nil {
		return "", exception.NewWriteError(writePhase, fmt.Sprintf("%s of %s into %s failed", action, req.Staging, req.Table), err).WithFolder(folder)
	}
	logger.Infof("Applied %s to %s (%s).", req.Staging, req.Table, action)

	if err := w.engine.GenerateManifest(ctx, req.Table); err != nil {
		return "", exception.NewWriteError(manifestPhase, fmt.Sprintf("manifest regeneration for %s failed", req.Table), err).WithFolder(folder)
	}
	logger.Debugf("Manifest of %s regenerated.", req.Table)
	return action, nil
}

func (w *Writer) checkKey(ctx context.Context, req ApplyRequest) error {
	if w.probe == nil {
		return nil
	}
	ok, err := w.probe.HasColumn(ctx, req.Staging, req.Format, req.PrimaryKey)
	if err != nil {
		return exception.NewWriteError(probePhase, fmt.Sprintf("failed to inspect staged schema of %s", req.Staging), err).WithFolder(req.Staging.Key)
	}
	if !ok {
		return exception.NewWriteError(probePhase, fmt.Sprintf("staged data in %s has no column %q to merge on", req.Staging, req.PrimaryKey), nil).WithFolder(req.Staging.Key)
	}
	return nil
}
