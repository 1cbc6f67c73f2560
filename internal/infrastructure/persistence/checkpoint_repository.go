package persistence

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CheckpointModel is the GORM model for per-source watermarks
type CheckpointModel struct {
	Source    string    `gorm:"primaryKey"`
	Watermark string    `gorm:"not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the table name for the model
func (CheckpointModel) TableName() string {
	return "sync_checkpoints"
}

// CheckpointRepository implements the sync.CheckpointStore interface
type CheckpointRepository struct {
	db *gorm.DB
}

// NewCheckpointRepository creates a new checkpoint repository
func NewCheckpointRepository(db *gorm.DB) *CheckpointRepository {
	return &CheckpointRepository{db: db}
}

// LastCheck returns the stored watermark for a source, or the empty string
// when the source has never completed a run.
func (r *CheckpointRepository) LastCheck(ctx context.Context, source string) (string, error) {
	var model CheckpointModel
	err := r.db.WithContext(ctx).
		Where("source = ?", source).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return model.Watermark, nil
}

// UpdateLastCheck overwrites the watermark for a source. The write is a
// true upsert keyed by source name, so a failed update can never leave two
// conflicting watermark rows behind.
func (r *CheckpointRepository) UpdateLastCheck(ctx context.Context, source, watermark string) error {
	model := CheckpointModel{
		Source:    source,
		Watermark: watermark,
		UpdatedAt: time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source"}},
		DoUpdates: clause.AssignmentColumns([]string{"watermark", "updated_at"}),
	}).Create(&model).Error
}
