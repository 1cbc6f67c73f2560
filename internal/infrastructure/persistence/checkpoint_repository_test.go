package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	syncdomain "github.com/tradeshelf/backend/internal/domain/sync"
)

func createCheckpointTable(t *testing.T, db *gorm.DB) {
	t.Helper()
	require.NoError(t, db.Exec(`CREATE TABLE sync_checkpoints (
		source TEXT PRIMARY KEY,
		watermark TEXT NOT NULL,
		updated_at DATETIME
	)`).Error)
}

func TestCheckpointRepository(t *testing.T) {
	t.Run("missing source yields empty watermark", func(t *testing.T) {
		db := newTestDB(t)
		createCheckpointTable(t, db)
		repo := NewCheckpointRepository(db)

		watermark, err := repo.LastCheck(context.Background(), syncdomain.SourceNames)
		require.NoError(t, err)
		assert.Empty(t, watermark)
	})

	t.Run("update overwrites without duplicating rows", func(t *testing.T) {
		db := newTestDB(t)
		createCheckpointTable(t, db)
		repo := NewCheckpointRepository(db)
		ctx := context.Background()

		require.NoError(t, repo.UpdateLastCheck(ctx, syncdomain.SourceChanges, "100"))
		require.NoError(t, repo.UpdateLastCheck(ctx, syncdomain.SourceChanges, "250"))

		watermark, err := repo.LastCheck(ctx, syncdomain.SourceChanges)
		require.NoError(t, err)
		assert.Equal(t, "250", watermark)

		var count int64
		require.NoError(t, db.Table("sync_checkpoints").Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})

	t.Run("sources are independent", func(t *testing.T) {
		db := newTestDB(t)
		createCheckpointTable(t, db)
		repo := NewCheckpointRepository(db)
		ctx := context.Background()

		require.NoError(t, repo.UpdateLastCheck(ctx, syncdomain.SourceCards, "2024-01-01T00:00:00Z"))

		watermark, err := repo.LastCheck(ctx, syncdomain.SourcePrices)
		require.NoError(t, err)
		assert.Empty(t, watermark)
	})
}
