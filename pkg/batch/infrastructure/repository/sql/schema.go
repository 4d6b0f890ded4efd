package sql

import (
	"time"
)

// DefaultTableName is the table created by the embedded migrations.
const DefaultTableName = "job_watermarks"

// WatermarkEntity is the schema model used for persistence.
type WatermarkEntity struct {
	JobType    string    `gorm:"column:job_type;primaryKey"`
	JobName    string    `gorm:"column:job_name;primaryKey"`
	LastFolder string    `gorm:"column:last_folder"`
	RunID      string    `gorm:"column:run_id"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime:false"`
}

func (WatermarkEntity) TableName() string {
	return DefaultTableName
}
