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

// NamesProcessor sweeps titles changed since the last run from the hub's
// name map.
type NamesProcessor struct {
	hub    HubAPI
	engine syncdomain.Upserter
	logger *zap.Logger
	now    func() time.Time
}

// NewNamesProcessor creates the names processor.
func NewNamesProcessor(hub HubAPI, engine syncdomain.Upserter, logger *zap.Logger) *NamesProcessor {
	return &NamesProcessor{hub: hub, engine: engine, logger: logger, now: time.Now}
}

// Source implements DeltaProcessor
func (p *NamesProcessor) Source() string { return syncdomain.SourceNames }

// Process implements DeltaProcessor
func (p *NamesProcessor) Process(ctx context.Context, lastCheck string) (syncdomain.Result, string) {
	if p.hub == nil {
		return syncdomain.Failure(fmt.Errorf("names: %w", syncdomain.ErrMissingConfig), nil), ""
	}
	next := formatTimeWatermark(p.now())

	names, err := p.hub.AppNames(ctx, parseTimeWatermark(lastCheck))
	if err != nil {
		return syncdomain.Failure(fmt.Errorf("names: %w: %w", syncdomain.ErrFetchFailed, err), nil), ""
	}

	records := make([]catalog.Record, 0, len(names))
	for _, id := range sortedKeys(names) {
		records = append(records, catalog.NewAppRecord(id).Set(catalog.FieldTitle, names[id]))
	}

	p.logger.Debug("names sweep fetched", zap.Int("records", len(records)))
	return p.engine.Upsert(ctx, catalog.AppTable, records, []string{catalog.FieldID}), next
}

// TypesProcessor sweeps app types changed since the last run.
type TypesProcessor struct {
	hub    HubAPI
	engine syncdomain.Upserter
	logger *zap.Logger
	now    func() time.Time
}

// NewTypesProcessor creates the types processor.
func NewTypesProcessor(hub HubAPI, engine syncdomain.Upserter, logger *zap.Logger) *TypesProcessor {
	return &TypesProcessor{hub: hub, engine: engine, logger: logger, now: time.Now}
}

// Source implements DeltaProcessor
func (p *TypesProcessor) Source() string { return syncdomain.SourceTypes }

// Process implements DeltaProcessor
func (p *TypesProcessor) Process(ctx context.Context, lastCheck string) (syncdomain.Result, string) {
	if p.hub == nil {
		return syncdomain.Failure(fmt.Errorf("types: %w", syncdomain.ErrMissingConfig), nil), ""
	}
	next := formatTimeWatermark(p.now())

	types, err := p.hub.AppTypes(ctx, parseTimeWatermark(lastCheck))
	if err != nil {
		return syncdomain.Failure(fmt.Errorf("types: %w: %w", syncdomain.ErrFetchFailed, err), nil), ""
	}

	records := make([]catalog.Record, 0, len(types))
	for _, id := range sortedKeys(types) {
		appType := strings.ToLower(strings.TrimSpace(types[id]))
		if appType == "" {
			continue
		}
		records = append(records, catalog.NewAppRecord(id).Set(catalog.FieldType, appType))
	}

	return p.engine.Upsert(ctx, catalog.AppTable, records, []string{catalog.FieldID}), next
}

// ProductInfoProcessor pulls the hub's full product-info documents for
// explicit app ids, maps them to catalog records, and writes them
// parent-first so self-referencing rows land after their parents.
type ProductInfoProcessor struct {
	hub        HubAPI
	engine     syncdomain.Upserter
	logger     *zap.Logger
	categories map[int64]string
	tags       map[int64]string
}

// NewProductInfoProcessor creates the product-info processor. The
// translation tables turn numeric category and tag ids into display names.
func NewProductInfoProcessor(hub HubAPI, engine syncdomain.Upserter, categories, tags map[int64]string, logger *zap.Logger) *ProductInfoProcessor {
	return &ProductInfoProcessor{hub: hub, engine: engine, categories: categories, tags: tags, logger: logger}
}

// Name implements PullProcessor
func (p *ProductInfoProcessor) Name() string { return "product-info" }

// Process implements PullProcessor
func (p *ProductInfoProcessor) Process(ctx context.Context, ids []int64) syncdomain.Result {
	if p.hub == nil {
		return syncdomain.Failure(fmt.Errorf("product info: %w", syncdomain.ErrMissingConfig), syncdomain.FailedStubs(ids))
	}

	var result syncdomain.Result
	for _, chunk := range chunkIDs(ids, 100) {
		infos, err := p.hub.ProductInfos(ctx, chunk)
		if err != nil {
			result.Merge(syncdomain.Failure(
				fmt.Errorf("product info: %w: %w", syncdomain.ErrFetchFailed, err),
				syncdomain.FailedStubs(chunk)))
			continue
		}

		records := make([]catalog.Record, 0, len(infos))
		for _, info := range infos {
			records = p.appendRecords(records, info)
		}
		records = catalog.SortParentFirst(records)

		result.Merge(p.engine.Upsert(ctx, catalog.AppTable, records, []string{catalog.FieldID}))
	}
	return result
}

// appendRecords maps one product-info document to its app record plus any
// DLC link stubs.
func (p *ProductInfoProcessor) appendRecords(records []catalog.Record, info sources.ProductInfo) []catalog.Record {
	record := catalog.NewAppRecord(info.AppID).
		Set(catalog.FieldChangeNumber, info.ChangeNumber).
		Set(catalog.FieldExcludedFromLib, info.ExcludedFromLib).
		Set(catalog.FieldFree, info.Free)

	if t := strings.ToLower(strings.TrimSpace(info.Type)); t != "" {
		record.Set(catalog.FieldType, t)
	}
	if info.Name != "" {
		record.Set(catalog.FieldTitle, info.Name)
	}
	if info.ReleaseDate > 0 {
		record.Set(catalog.FieldReleasedAt, time.Unix(info.ReleaseDate, 0).UTC())
	}
	if names := catalog.DedupeNames(info.Developers); len(names) > 0 {
		record.Set(catalog.FieldDevelopers, names)
	}
	if names := catalog.DedupeNames(info.Publishers); len(names) > 0 {
		record.Set(catalog.FieldPublishers, names)
	}
	if terms := p.translate(info.CategoryIDs, p.categories); len(terms) > 0 {
		record.Set(catalog.FieldCategories, terms)
	}
	if terms := p.translate(info.TagIDs, p.tags); len(terms) > 0 {
		record.Set(catalog.FieldTags, terms)
	}
	if terms := catalog.NormalizeTerms(info.Languages); len(terms) > 0 {
		record.Set(catalog.FieldLanguages, terms)
	}
	if info.OSList != "" {
		record.Set(catalog.FieldPlatforms, catalog.NormalizeTerms(strings.Split(info.OSList, ",")))
	}
	if info.DeckCompat != "" {
		record.Set(catalog.FieldDeckCompat, info.DeckCompat)
	}
	if info.ParentAppID > 0 {
		record.Set(catalog.FieldParentID, info.ParentAppID)
	}
	if info.Homepage != "" {
		record.Set(catalog.FieldWebsite, info.Homepage)
	}

	records = append(records, record)
	for _, dlcID := range info.DLCAppIDs {
		records = catalog.LinkChild(records, dlcID, info.AppID, catalog.TypeDLC)
	}
	return records
}

func (p *ProductInfoProcessor) translate(ids []int64, table map[int64]string) []string {
	terms := make([]string, 0, len(ids))
	for _, id := range ids {
		if name, ok := table[id]; ok {
			terms = append(terms, name)
		}
	}
	return catalog.NormalizeTerms(terms)
}

// ChangesProcessor follows the hub's monotonic change feed: it resolves
// which apps changed since the stored change number and hands them to the
// product-info processor. The checkpoint advances to the feed's current
// change number, so a clean empty run still moves the watermark.
type ChangesProcessor struct {
	hub      HubAPI
	products *ProductInfoProcessor
	logger   *zap.Logger
}

// NewChangesProcessor creates the changes processor.
func NewChangesProcessor(hub HubAPI, products *ProductInfoProcessor, logger *zap.Logger) *ChangesProcessor {
	return &ChangesProcessor{hub: hub, products: products, logger: logger}
}

// Source implements DeltaProcessor
func (p *ChangesProcessor) Source() string { return syncdomain.SourceChanges }

// Process implements DeltaProcessor
func (p *ChangesProcessor) Process(ctx context.Context, lastCheck string) (syncdomain.Result, string) {
	if p.hub == nil {
		return syncdomain.Failure(fmt.Errorf("changes: %w", syncdomain.ErrMissingConfig), nil), ""
	}

	feed, err := p.hub.Changes(ctx, parseChangeNumber(lastCheck))
	if err != nil {
		return syncdomain.Failure(fmt.Errorf("changes: %w: %w", syncdomain.ErrFetchFailed, err), nil), ""
	}
	next := strconv.FormatInt(feed.CurrentChangeNumber, 10)

	ids := make([]int64, 0, len(feed.Apps))
	for _, change := range feed.Apps {
		if change.NeedsToken {
			continue
		}
		ids = append(ids, change.AppID)
	}
	if len(ids) == 0 {
		p.logger.Debug("change feed empty", zap.String("next", next))
		return syncdomain.Result{}, next
	}

	return p.products.Process(ctx, ids), next
}

func sortedKeys(m map[int64]string) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
