package sql

import (
	"github.com/tigerroll/deltaloader/pkg/batch/core/domain/model"
)

func fromDomainWatermark(r *model.WatermarkRecord) *WatermarkEntity {
	if r == nil {
		return nil
	}
	return &WatermarkEntity{
		JobType:    r.JobType,
		JobName:    r.JobName,
		LastFolder: r.LastFolder,
		RunID:      r.RunID,
		UpdatedAt:  r.UpdatedAt,
	}
}

func toDomainWatermark(entity *WatermarkEntity) *model.WatermarkRecord {
	if entity == nil {
		return nil
	}
	return &model.WatermarkRecord{
		JobType:    entity.JobType,
		JobName:    entity.JobName,
		LastFolder: entity.LastFolder,
		RunID:      entity.RunID,
		UpdatedAt:  entity.UpdatedAt,
	}
}
