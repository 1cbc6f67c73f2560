package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func positions(records []Record) map[int64]int {
	pos := make(map[int64]int, len(records))
	for i, r := range records {
		pos[r.AppID()] = i
	}
	return pos
}

func TestSortParentFirst(t *testing.T) {
	t.Run("places parents before children", func(t *testing.T) {
		records := []Record{
			NewAppRecord(2).Set(FieldParentID, int64(1)),
			NewAppRecord(1),
			NewAppRecord(3).Set(FieldParentID, int64(2)),
		}

		sorted := SortParentFirst(records)
		require.Len(t, sorted, 3)

		pos := positions(sorted)
		assert.Less(t, pos[1], pos[2])
		assert.Less(t, pos[2], pos[3])
	})

	t.Run("ignores parents outside the set", func(t *testing.T) {
		records := []Record{
			NewAppRecord(10).Set(FieldParentID, int64(999)),
			NewAppRecord(11),
		}

		sorted := SortParentFirst(records)
		require.Len(t, sorted, 2)
	})

	t.Run("tolerates cycles without looping", func(t *testing.T) {
		records := []Record{
			NewAppRecord(1).Set(FieldParentID, int64(2)),
			NewAppRecord(2).Set(FieldParentID, int64(1)),
		}

		sorted := SortParentFirst(records)
		require.Len(t, sorted, 2)

		pos := positions(sorted)
		assert.Contains(t, pos, int64(1))
		assert.Contains(t, pos, int64(2))
	})

	t.Run("handles mixed forest with cycle", func(t *testing.T) {
		records := []Record{
			NewAppRecord(5).Set(FieldParentID, int64(4)),
			NewAppRecord(4),
			NewAppRecord(7).Set(FieldParentID, int64(8)),
			NewAppRecord(8).Set(FieldParentID, int64(7)),
			NewAppRecord(6).Set(FieldParentID, int64(5)),
		}

		sorted := SortParentFirst(records)
		require.Len(t, sorted, 5)

		pos := positions(sorted)
		assert.Less(t, pos[4], pos[5])
		assert.Less(t, pos[5], pos[6])
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, SortParentFirst(nil))
	})
}
