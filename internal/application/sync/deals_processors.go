package sync

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tradeshelf/backend/internal/domain/catalog"
	syncdomain "github.com/tradeshelf/backend/internal/domain/sync"
	"github.com/tradeshelf/backend/internal/infrastructure/sources"
)

// BundlesProcessor sweeps the aggregator's bundle index. Each bundle
// becomes a collection; multi-tier bundles additionally get one child
// collection per tier, linked through the relation table both to the
// bundle and to every later tier that contains them.
type BundlesProcessor struct {
	deals  DealsAPI
	engine syncdomain.Upserter
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

// NewBundlesProcessor creates the bundles processor.
func NewBundlesProcessor(deals DealsAPI, engine syncdomain.Upserter, logger *zap.Logger) *BundlesProcessor {
	return &BundlesProcessor{deals: deals, engine: engine, logger: logger, now: time.Now, newID: catalog.NewCollectionID}
}

// Source implements DeltaProcessor
func (p *BundlesProcessor) Source() string { return syncdomain.SourceBundles }

// Process implements DeltaProcessor
func (p *BundlesProcessor) Process(ctx context.Context, lastCheck string) (syncdomain.Result, string) {
	if p.deals == nil || !p.deals.HasAPIKey() {
		return syncdomain.Failure(fmt.Errorf("bundles: %w", syncdomain.ErrMissingConfig), nil), ""
	}
	next := formatTimeWatermark(p.now())

	bundles, err := p.deals.BundleIndex(ctx, parseTimeWatermark(lastCheck))
	if err != nil {
		return syncdomain.Failure(fmt.Errorf("bundles: %w: %w", syncdomain.ErrFetchFailed, err), nil), ""
	}

	var appRecords, collectionRecords, relationRecords, membershipRecords []catalog.Record
	for _, bundle := range bundles {
		bundleID := p.newID()
		base := p.collectionRecord(bundleID, bundle.Title, bundle)

		if len(bundle.Tiers) == 1 {
			tier := bundle.Tiers[0]
			if price := string(tier.Price); price != "" {
				base.Set(catalog.CollectionFieldTitle, fmt.Sprintf("%s ($%s)", bundle.Title, price))
			}
			base.Set(catalog.CollectionFieldDescription, tierDescription("Bundle", tier.Games))
			collectionRecords = append(collectionRecords, base)
			appRecords, membershipRecords = appendTierApps(appRecords, membershipRecords, bundleID, tier.Games)
			continue
		}

		base.Set(catalog.CollectionFieldDescription, fmt.Sprintf("Bundle with %d tiers", len(bundle.Tiers)))
		collectionRecords = append(collectionRecords, base)

		var tierIDs []string
		for i, tier := range bundle.Tiers {
			tierID := p.newID()
			title := fmt.Sprintf("%s - Tier %d", bundle.Title, i+1)
			if price := string(tier.Price); price != "" {
				title = fmt.Sprintf("%s ($%s)", title, price)
			}
			record := p.collectionRecord(tierID, title, bundle)
			record.Set(catalog.CollectionFieldDescription, tierDescription("Tier", tier.Games))
			collectionRecords = append(collectionRecords, record)

			relationRecords = append(relationRecords, tierRelation(tierID, bundleID))
			// Every earlier tier is contained by the tier above it.
			for _, prevID := range tierIDs {
				relationRecords = append(relationRecords, tierRelation(prevID, tierID))
			}
			tierIDs = append(tierIDs, tierID)

			appRecords, membershipRecords = appendTierApps(appRecords, membershipRecords, tierID, tier.Games)
		}
	}

	var result syncdomain.Result
	result.Merge(p.engine.Upsert(ctx, catalog.AppTable, appRecords, []string{catalog.FieldID}))
	result.Merge(p.engine.Upsert(ctx, catalog.CollectionTable, collectionRecords, []string{catalog.CollectionFieldID}))
	result.Merge(p.engine.Upsert(ctx, catalog.CollectionRelationTable, relationRecords,
		[]string{catalog.CollectionRelationFieldCollectionID, catalog.CollectionRelationFieldParentID}))
	result.Merge(p.engine.Upsert(ctx, catalog.CollectionAppTable, membershipRecords,
		[]string{catalog.CollectionAppFieldCollectionID, catalog.CollectionAppFieldAppID}))

	p.logger.Debug("bundles swept",
		zap.Int("bundles", len(bundles)),
		zap.Int("memberships", len(membershipRecords)))
	return result, next
}

func (p *BundlesProcessor) collectionRecord(id, title string, bundle sources.DealsBundle) catalog.Record {
	record := catalog.Record{
		catalog.CollectionFieldID:      id,
		catalog.CollectionFieldType:    catalog.CollectionTypeBundle,
		catalog.CollectionFieldPrivate: false,
	}
	if title != "" {
		record.Set(catalog.CollectionFieldTitle, title)
	}
	if bundle.URL != "" {
		record.Set(catalog.CollectionFieldLinks, []catalog.CollectionLink{{
			Title: "GG Deals",
			Icon:  "icon-ggdeals",
			URL:   bundle.URL,
		}})
	}
	if startsAt, ok := parseDealsTime(bundle.DateFrom); ok {
		record.Set(catalog.CollectionFieldStartsAt, startsAt)
	}
	if endsAt, ok := parseDealsTime(bundle.DateTo); ok {
		record.Set(catalog.CollectionFieldEndsAt, endsAt)
	}
	return record
}

// tierDescription summarizes a tier's contents the way the store displays
// them: the app count plus the comma-joined titles.
func tierDescription(kind string, games []sources.DealsBundleGame) string {
	titles := make([]string, 0, len(games))
	for _, game := range games {
		titles = append(titles, game.Title)
	}
	return fmt.Sprintf("%s with %d apps: %s", kind, len(games), strings.Join(titles, ", "))
}

func tierRelation(collectionID, parentID string) catalog.Record {
	return catalog.Record{
		catalog.CollectionRelationFieldCollectionID: collectionID,
		catalog.CollectionRelationFieldParentID:     parentID,
	}
}

// appendTierApps emits the app stubs and membership rows for one tier's
// games, skipping absent identifiers.
func appendTierApps(apps, memberships []catalog.Record, collectionID string, games []sources.DealsBundleGame) ([]catalog.Record, []catalog.Record) {
	for _, game := range games {
		for _, steamID := range game.SteamIDs {
			if steamID == 0 {
				continue
			}
			record := catalog.NewAppRecord(steamID)
			if game.Title != "" {
				record.Set(catalog.FieldTitle, game.Title)
			}
			apps = append(apps, record)
			memberships = append(memberships, catalog.Record{
				catalog.CollectionAppFieldCollectionID: collectionID,
				catalog.CollectionAppFieldAppID:        steamID,
				catalog.CollectionAppFieldSource:       catalog.CollectionSourceSync,
			})
		}
	}
	return apps, memberships
}

func parseDealsTime(value string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// PricesProcessor sweeps the aggregator's recently-changed-deals feed and
// stores the cheaper of the retail and keyshop prices per app. Prices
// that fail to parse are treated as absent.
type PricesProcessor struct {
	deals  DealsAPI
	engine syncdomain.Upserter
	logger *zap.Logger
	now    func() time.Time
}

// NewPricesProcessor creates the prices processor.
func NewPricesProcessor(deals DealsAPI, engine syncdomain.Upserter, logger *zap.Logger) *PricesProcessor {
	return &PricesProcessor{deals: deals, engine: engine, logger: logger, now: time.Now}
}

// Source implements DeltaProcessor
func (p *PricesProcessor) Source() string { return syncdomain.SourcePrices }

// Process implements DeltaProcessor
func (p *PricesProcessor) Process(ctx context.Context, lastCheck string) (syncdomain.Result, string) {
	if p.deals == nil || !p.deals.HasAPIKey() {
		return syncdomain.Failure(fmt.Errorf("prices: %w", syncdomain.ErrMissingConfig), nil), ""
	}
	next := formatTimeWatermark(p.now())

	games, err := p.deals.RecentlyChangedDeals(ctx, parseTimeWatermark(lastCheck))
	if err != nil {
		return syncdomain.Failure(fmt.Errorf("prices: %w: %w", syncdomain.ErrFetchFailed, err), nil), ""
	}

	keys := make([]string, 0, len(games))
	for key := range games {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var records []catalog.Record
	for _, key := range keys {
		game := games[key]
		for _, steamID := range game.SteamIDs {
			if steamID == 0 {
				continue
			}
			if record, ok := priceRecord(steamID, game.Prices); ok {
				records = append(records, record)
			}
		}
	}

	return p.engine.Upsert(ctx, catalog.AppTable, records, []string{catalog.FieldID}), next
}

// priceRecord builds an app record from the aggregator's price block,
// reporting false when no variant parses.
func priceRecord(appID int64, prices sources.DealsPrices) (catalog.Record, bool) {
	record := catalog.NewAppRecord(appID)
	if current, ok := catalog.MinPrice(string(prices.CurrentRetail), string(prices.CurrentKeyshops)); ok {
		record.Set(catalog.FieldMarketPrice, current)
	}
	if low, ok := catalog.MinPrice(string(prices.HistoricalRetail), string(prices.HistoricalKeyshops)); ok {
		record.Set(catalog.FieldHistoricalLow, low)
	}
	if !record.Has(catalog.FieldMarketPrice) && !record.Has(catalog.FieldHistoricalLow) {
		return nil, false
	}
	return record, true
}

// DealsDetailsProcessor pulls aggregator detail per app. Null entries
// mean the aggregator does not track the app and are skipped without
// counting as failures.
type DealsDetailsProcessor struct {
	deals  DealsAPI
	engine syncdomain.Upserter
	logger *zap.Logger
}

// NewDealsDetailsProcessor creates the deals-details processor.
func NewDealsDetailsProcessor(deals DealsAPI, engine syncdomain.Upserter, logger *zap.Logger) *DealsDetailsProcessor {
	return &DealsDetailsProcessor{deals: deals, engine: engine, logger: logger}
}

// Name implements PullProcessor
func (p *DealsDetailsProcessor) Name() string { return "deals-details" }

// Process implements PullProcessor
func (p *DealsDetailsProcessor) Process(ctx context.Context, ids []int64) syncdomain.Result {
	if p.deals == nil || !p.deals.HasAPIKey() {
		return syncdomain.Failure(fmt.Errorf("deals details: %w", syncdomain.ErrMissingConfig), syncdomain.FailedStubs(ids))
	}

	var result syncdomain.Result
	for _, chunk := range chunkIDs(ids, 100) {
		apps, err := p.deals.ByAppIDs(ctx, chunk)
		if err != nil {
			result.Merge(syncdomain.Failure(
				fmt.Errorf("deals details: %w: %w", syncdomain.ErrFetchFailed, err),
				syncdomain.FailedStubs(chunk)))
			continue
		}

		records := make([]catalog.Record, 0, len(apps))
		for _, key := range sortedStringKeys(apps) {
			app := apps[key]
			if app == nil {
				continue
			}
			appID, err := strconv.ParseInt(key, 10, 64)
			if err != nil || appID == 0 {
				continue
			}
			record, ok := priceRecord(appID, app.Prices)
			if !ok {
				record = catalog.NewAppRecord(appID)
			}
			if app.Title != "" {
				record.Set(catalog.FieldTitle, app.Title)
			}
			if len(record) > 1 {
				records = append(records, record)
			}
		}

		result.Merge(p.engine.Upsert(ctx, catalog.AppTable, records, []string{catalog.FieldID}))
	}
	return result
}

func sortedStringKeys(m map[string]*sources.DealsApp) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
