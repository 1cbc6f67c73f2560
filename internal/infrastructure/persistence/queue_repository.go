package persistence

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QueueEntryModel is the GORM model for the per-entity refresh backlog
type QueueEntryModel struct {
	AppID      int64     `gorm:"primaryKey;autoIncrement:false"`
	EnqueuedAt time.Time `gorm:"not null;index"`
}

// TableName returns the table name for the model
func (QueueEntryModel) TableName() string {
	return "refresh_queue"
}

// QueueRepository implements the sync.WorkQueue interface
type QueueRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewQueueRepository creates a new queue repository
func NewQueueRepository(db *gorm.DB, logger *zap.Logger) *QueueRepository {
	return &QueueRepository{db: db, logger: logger}
}

// Enqueue adds identifiers to the backlog. Duplicates, whether within the
// call or against rows already queued, collapse to a single entry, so a
// noisy discovery source cannot drive double refreshes. No-op on empty input.
func (r *QueueRepository) Enqueue(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	now := time.Now().UTC()
	entries := make([]QueueEntryModel, 0, len(ids))
	within := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := within[id]; dup {
			continue
		}
		within[id] = struct{}{}
		entries = append(entries, QueueEntryModel{AppID: id, EnqueuedAt: now})
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "app_id"}},
		DoNothing: true,
	}).CreateInBatches(&entries, 1000).Error
}

// Dequeue removes and returns up to count oldest entries. Any backing
// failure yields an empty batch, logged rather than returned, because
// queue starvation must never crash the orchestrator.
func (r *QueueRepository) Dequeue(ctx context.Context, count int) []int64 {
	if count <= 0 {
		return nil
	}

	var ids []int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entries []QueueEntryModel
		if err := tx.
			Order("enqueued_at ASC, app_id ASC").
			Limit(count).
			Find(&entries).Error; err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}

		ids = make([]int64, len(entries))
		for i, e := range entries {
			ids[i] = e.AppID
		}
		return tx.Where("app_id IN ?", ids).Delete(&QueueEntryModel{}).Error
	})
	if err != nil {
		r.logger.Error("Dequeue failed, returning empty batch", zap.Error(err))
		return []int64{}
	}
	return ids
}
