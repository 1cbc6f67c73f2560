package sync

import (
	"context"
	"errors"
	"time"

	"github.com/tradeshelf/backend/internal/domain/catalog"
	syncdomain "github.com/tradeshelf/backend/internal/domain/sync"
	"github.com/tradeshelf/backend/internal/infrastructure/sources"
)

// upsertCall captures one engine invocation.
type upsertCall struct {
	table        string
	records      []catalog.Record
	conflictKeys []string
}

// fakeUpserter records every call and reports all records as written.
// Tables listed in failTables sink their records instead.
type fakeUpserter struct {
	calls      []upsertCall
	failTables map[string]bool
}

func (f *fakeUpserter) Upsert(_ context.Context, table string, records []catalog.Record, conflictKeys []string) syncdomain.Result {
	f.calls = append(f.calls, upsertCall{table: table, records: records, conflictKeys: conflictKeys})
	if f.failTables[table] {
		return syncdomain.Failure(errors.New("write failed: "+table), records)
	}
	return syncdomain.Result{Successful: records}
}

// recordsFor collects all records written to a table across calls.
func (f *fakeUpserter) recordsFor(table string) []catalog.Record {
	var out []catalog.Record
	for _, call := range f.calls {
		if call.table == table {
			out = append(out, call.records...)
		}
	}
	return out
}

type fakeCheckpoints struct {
	watermarks map[string]string
	readErr    error
	writeErr   error
}

func newFakeCheckpoints() *fakeCheckpoints {
	return &fakeCheckpoints{watermarks: make(map[string]string)}
}

func (f *fakeCheckpoints) LastCheck(_ context.Context, source string) (string, error) {
	if f.readErr != nil {
		return "", f.readErr
	}
	return f.watermarks[source], nil
}

func (f *fakeCheckpoints) UpdateLastCheck(_ context.Context, source, watermark string) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.watermarks[source] = watermark
	return nil
}

type fakeQueue struct {
	entries  []int64
	enqueued [][]int64
}

func (f *fakeQueue) Enqueue(_ context.Context, ids []int64) error {
	f.enqueued = append(f.enqueued, ids)
	f.entries = append(f.entries, ids...)
	return nil
}

func (f *fakeQueue) Dequeue(_ context.Context, count int) []int64 {
	if count > len(f.entries) {
		count = len(f.entries)
	}
	out := f.entries[:count]
	f.entries = f.entries[count:]
	return out
}

type fakeHub struct {
	names    map[int64]string
	namesErr error

	types map[int64]string

	feed    *sources.ChangeFeed
	feedErr error

	infos     map[int64]sources.ProductInfo
	infosErr  func(ids []int64) error
	infoCalls [][]int64
}

func (f *fakeHub) AppNames(context.Context, time.Time) (map[int64]string, error) {
	return f.names, f.namesErr
}

func (f *fakeHub) AppTypes(context.Context, time.Time) (map[int64]string, error) {
	return f.types, nil
}

func (f *fakeHub) Changes(context.Context, int64) (*sources.ChangeFeed, error) {
	return f.feed, f.feedErr
}

func (f *fakeHub) ProductInfos(_ context.Context, ids []int64) ([]sources.ProductInfo, error) {
	f.infoCalls = append(f.infoCalls, ids)
	if f.infosErr != nil {
		if err := f.infosErr(ids); err != nil {
			return nil, err
		}
	}
	out := make([]sources.ProductInfo, 0, len(ids))
	for _, id := range ids {
		if info, ok := f.infos[id]; ok {
			out = append(out, info)
		}
	}
	return out, nil
}

type fakeStore struct {
	hasKey   bool
	pages    []*sources.AppListPage
	pageErr  error
	details  map[int64]*sources.StoreDetails
	reviews  map[int64]*sources.ReviewSummary
	pageCall int
}

func (f *fakeStore) HasAPIKey() bool { return f.hasKey }

func (f *fakeStore) AppList(context.Context, time.Time, int64) (*sources.AppListPage, error) {
	if f.pageErr != nil {
		return nil, f.pageErr
	}
	page := f.pages[f.pageCall]
	f.pageCall++
	return page, nil
}

func (f *fakeStore) AppDetails(_ context.Context, appID int64) (*sources.StoreDetails, error) {
	details, ok := f.details[appID]
	if !ok {
		return nil, errors.New("no details")
	}
	return details, nil
}

func (f *fakeStore) Reviews(_ context.Context, appID int64) (*sources.ReviewSummary, error) {
	summary, ok := f.reviews[appID]
	if !ok {
		return nil, errors.New("no reviews")
	}
	return summary, nil
}

type fakeDeals struct {
	hasKey  bool
	games   map[string]sources.DealsGame
	bundles []sources.DealsBundle
	apps    map[string]*sources.DealsApp
	err     error
}

func (f *fakeDeals) HasAPIKey() bool { return f.hasKey }

func (f *fakeDeals) RecentlyChangedDeals(context.Context, time.Time) (map[string]sources.DealsGame, error) {
	return f.games, f.err
}

func (f *fakeDeals) BundleIndex(context.Context, time.Time) ([]sources.DealsBundle, error) {
	return f.bundles, f.err
}

func (f *fakeDeals) ByAppIDs(context.Context, []int64) (map[string]*sources.DealsApp, error) {
	return f.apps, f.err
}

type fakeTracker struct {
	removed []sources.RemovedApp
	err     error
}

func (f *fakeTracker) RemovedApps(context.Context) ([]sources.RemovedApp, error) {
	return f.removed, f.err
}

type fakeBarter struct {
	ids []int64
	err error
}

func (f *fakeBarter) PlusOneAppIDs(context.Context) ([]int64, error) {
	return f.ids, f.err
}

type fakeCards struct {
	sets []sources.CardSet
	err  error
}

func (f *fakeCards) SetData(context.Context) ([]sources.CardSet, error) {
	return f.sets, f.err
}

// fixedClock pins a processor's watermark generation.
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
