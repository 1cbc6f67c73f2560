package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tradeshelf/backend/internal/domain/catalog"
	syncdomain "github.com/tradeshelf/backend/internal/domain/sync"
)

// newTestDB opens an isolated in-memory database limited to a single
// connection so every statement sees the same schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	return db
}

func createAppsTable(t *testing.T, db *gorm.DB) {
	t.Helper()
	require.NoError(t, db.Exec(`CREATE TABLE apps (
		id INTEGER PRIMARY KEY CHECK (id > 0),
		title TEXT,
		type TEXT,
		market_price TEXT,
		cards INTEGER,
		parent_id INTEGER
	)`).Error)
}

func noSleep(context.Context, time.Duration) error { return nil }

func TestUpsertEngine_FieldSignatureIsolation(t *testing.T) {
	db := newTestDB(t)
	createAppsTable(t, db)
	engine := NewUpsertEngine(db, zap.NewNop(), WithSleep(noSleep))

	first := engine.Upsert(context.Background(), catalog.AppTable,
		[]catalog.Record{catalog.NewAppRecord(1).Set(catalog.FieldTitle, "A")},
		[]string{catalog.FieldID})
	require.True(t, first.OK())

	second := engine.Upsert(context.Background(), catalog.AppTable,
		[]catalog.Record{catalog.NewAppRecord(1).Set(catalog.FieldMarketPrice, "10")},
		[]string{catalog.FieldID})
	require.True(t, second.OK())

	var row struct {
		Title       string
		MarketPrice string
	}
	require.NoError(t, db.Table("apps").Where("id = ?", 1).Take(&row).Error)
	assert.Equal(t, "A", row.Title)
	assert.Equal(t, "10", row.MarketPrice)
}

func TestUpsertEngine_Idempotent(t *testing.T) {
	db := newTestDB(t)
	createAppsTable(t, db)
	engine := NewUpsertEngine(db, zap.NewNop(), WithSleep(noSleep))

	batch := []catalog.Record{
		catalog.NewAppRecord(1).Set(catalog.FieldTitle, "A"),
		catalog.NewAppRecord(2).Set(catalog.FieldTitle, "B"),
	}

	for i := 0; i < 2; i++ {
		result := engine.Upsert(context.Background(), catalog.AppTable, batch, []string{catalog.FieldID})
		require.True(t, result.OK())
		assert.Len(t, result.Successful, 2)
	}

	var count int64
	require.NoError(t, db.Table("apps").Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestUpsertEngine_DedupeKeepsFirstOccurrence(t *testing.T) {
	db := newTestDB(t)
	createAppsTable(t, db)
	engine := NewUpsertEngine(db, zap.NewNop(), WithSleep(noSleep))

	result := engine.Upsert(context.Background(), catalog.AppTable, []catalog.Record{
		catalog.NewAppRecord(1).Set(catalog.FieldTitle, "first"),
		catalog.NewAppRecord(1).Set(catalog.FieldTitle, "second"),
	}, []string{catalog.FieldID})
	require.True(t, result.OK())
	assert.Len(t, result.Successful, 1)

	var titles []string
	require.NoError(t, db.Table("apps").Where("id = ?", 1).Pluck("title", &titles).Error)
	assert.Equal(t, []string{"first"}, titles)
}

func TestUpsertEngine_PartialBatchResilience(t *testing.T) {
	db := newTestDB(t)
	createAppsTable(t, db)
	engine := NewUpsertEngine(db, zap.NewNop(),
		WithBatchSize(1),
		WithMaxRetries(1),
		WithSleep(noSleep),
	)

	// id -7 violates the check constraint, so its single-record batch
	// exhausts retries while siblings in the same signature group proceed.
	result := engine.Upsert(context.Background(), catalog.AppTable, []catalog.Record{
		catalog.NewAppRecord(1).Set(catalog.FieldTitle, "A"),
		catalog.NewAppRecord(-7).Set(catalog.FieldTitle, "bad"),
		catalog.NewAppRecord(2).Set(catalog.FieldTitle, "B"),
	}, []string{catalog.FieldID})

	assert.Len(t, result.Successful, 2)
	assert.Len(t, result.Failed, 1)
	require.Len(t, result.Errors, 1)
	assert.ErrorIs(t, result.Errors[0], syncdomain.ErrWriteExhausted)
	assert.Equal(t, int64(-7), result.Failed[0].AppID())
}

func TestUpsertEngine_RetriesWithBackoff(t *testing.T) {
	db := newTestDB(t)
	// Table deliberately missing: the first attempt fails, the sleep hook
	// creates the schema, the retry succeeds.
	sleeps := 0
	engine := NewUpsertEngine(db, zap.NewNop(),
		WithMaxRetries(3),
		WithSleep(func(context.Context, time.Duration) error {
			if sleeps == 0 {
				createAppsTable(t, db)
			}
			sleeps++
			return nil
		}),
	)

	result := engine.Upsert(context.Background(), catalog.AppTable,
		[]catalog.Record{catalog.NewAppRecord(1).Set(catalog.FieldTitle, "A")},
		[]string{catalog.FieldID})

	require.True(t, result.OK())
	assert.Len(t, result.Successful, 1)
	assert.Equal(t, 1, sleeps)
}

func TestUpsertEngine_CompositeConflictKeys(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Exec(`CREATE TABLE collection_apps (
		collection_id TEXT,
		app_id INTEGER,
		source TEXT,
		PRIMARY KEY (collection_id, app_id)
	)`).Error)
	engine := NewUpsertEngine(db, zap.NewNop(), WithSleep(noSleep))

	rows := []catalog.Record{
		{
			catalog.CollectionAppFieldCollectionID: "c1",
			catalog.CollectionAppFieldAppID:        int64(7),
			catalog.CollectionAppFieldSource:       catalog.CollectionSourceSync,
		},
		{
			catalog.CollectionAppFieldCollectionID: "c1",
			catalog.CollectionAppFieldAppID:        int64(7),
			catalog.CollectionAppFieldSource:       catalog.CollectionSourceSync,
		},
	}

	keys := []string{catalog.CollectionAppFieldCollectionID, catalog.CollectionAppFieldAppID}
	result := engine.Upsert(context.Background(), catalog.CollectionAppTable, rows, keys)
	require.True(t, result.OK())
	assert.Len(t, result.Successful, 1)

	var count int64
	require.NoError(t, db.Table("collection_apps").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestUpsertEngine_EmptyInput(t *testing.T) {
	engine := NewUpsertEngine(newTestDB(t), zap.NewNop(), WithSleep(noSleep))
	result := engine.Upsert(context.Background(), catalog.AppTable, nil, []string{catalog.FieldID})
	assert.True(t, result.OK())
	assert.Empty(t, result.Successful)
	assert.Empty(t, result.Failed)
}
