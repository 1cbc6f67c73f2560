package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	syncapp "github.com/tradeshelf/backend/internal/application/sync"
)

func TestInMemoryReportCache(t *testing.T) {
	cache := NewInMemoryReportCache()
	ctx := context.Background()

	t.Run("empty cache returns nil without error", func(t *testing.T) {
		report, err := cache.LatestReport(ctx, ReportKindSweep)
		require.NoError(t, err)
		assert.Nil(t, report)
	})

	t.Run("stores the latest report per kind", func(t *testing.T) {
		first := &syncapp.RunReport{Success: false, Message: "first", Timestamp: time.Now().UTC()}
		second := &syncapp.RunReport{Success: true, Message: "second", Timestamp: time.Now().UTC()}

		require.NoError(t, cache.StoreReport(ctx, ReportKindSweep, first))
		require.NoError(t, cache.StoreReport(ctx, ReportKindSweep, second))
		require.NoError(t, cache.StoreReport(ctx, ReportKindRefresh, first))

		report, err := cache.LatestReport(ctx, ReportKindSweep)
		require.NoError(t, err)
		assert.Equal(t, "second", report.Message)

		report, err = cache.LatestReport(ctx, ReportKindRefresh)
		require.NoError(t, err)
		assert.Equal(t, "first", report.Message)

		assert.Equal(t, 2, cache.Size())
	})
}
