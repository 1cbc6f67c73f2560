package sync

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradeshelf/backend/internal/domain/catalog"
	syncdomain "github.com/tradeshelf/backend/internal/domain/sync"
	"github.com/tradeshelf/backend/internal/infrastructure/sources"
)

// detailFetchWorkers bounds concurrent storefront lookups per batch.
const detailFetchWorkers = 8

// StoreListProcessor sweeps the storefront's cursor-paged app list for
// titles modified since the last run. It is the discovery source: the
// orchestrator enqueues every id it returns for a full refresh.
type StoreListProcessor struct {
	store  StoreAPI
	engine syncdomain.Upserter
	logger *zap.Logger
	now    func() time.Time
}

// NewStoreListProcessor creates the store-list processor.
func NewStoreListProcessor(store StoreAPI, engine syncdomain.Upserter, logger *zap.Logger) *StoreListProcessor {
	return &StoreListProcessor{store: store, engine: engine, logger: logger, now: time.Now}
}

// Source implements DeltaProcessor
func (p *StoreListProcessor) Source() string { return syncdomain.SourceStoreList }

// Process implements DeltaProcessor
func (p *StoreListProcessor) Process(ctx context.Context, lastCheck string) (syncdomain.Result, string) {
	if p.store == nil || !p.store.HasAPIKey() {
		return syncdomain.Failure(fmt.Errorf("store list: %w", syncdomain.ErrMissingConfig), nil), ""
	}
	next := formatTimeWatermark(p.now())
	since := parseTimeWatermark(lastCheck)

	var records []catalog.Record
	var lastAppID int64
	for {
		page, err := p.store.AppList(ctx, since, lastAppID)
		if err != nil {
			return syncdomain.Failure(fmt.Errorf("store list: %w: %w", syncdomain.ErrFetchFailed, err), nil), ""
		}
		for _, entry := range page.Apps {
			if entry.AppID == 0 {
				continue
			}
			record := catalog.NewAppRecord(entry.AppID)
			if entry.Name != "" {
				record.Set(catalog.FieldTitle, entry.Name)
			}
			records = append(records, record)
		}
		if !page.HaveMore {
			break
		}
		lastAppID = page.LastAppID
	}

	p.logger.Debug("store list swept", zap.Int("records", len(records)))
	return p.engine.Upsert(ctx, catalog.AppTable, records, []string{catalog.FieldID}), next
}

// StoreDetailsProcessor pulls the storefront detail document per app.
// Lookups run concurrently; one id's failure never fails its siblings.
// Besides the apps row it derives package collections and their
// memberships from the purchase options.
type StoreDetailsProcessor struct {
	store         StoreAPI
	engine        syncdomain.Upserter
	logger        *zap.Logger
	storefrontURL string
}

// NewStoreDetailsProcessor creates the store-details processor.
// storefrontURL is the public base used for collection links.
func NewStoreDetailsProcessor(store StoreAPI, engine syncdomain.Upserter, storefrontURL string, logger *zap.Logger) *StoreDetailsProcessor {
	if storefrontURL == "" {
		storefrontURL = "https://store.steampowered.com"
	}
	return &StoreDetailsProcessor{store: store, engine: engine, storefrontURL: strings.TrimRight(storefrontURL, "/"), logger: logger}
}

// Name implements PullProcessor
func (p *StoreDetailsProcessor) Name() string { return "store-details" }

type detailFetch struct {
	id      int64
	details *sources.StoreDetails
	err     error
}

// Process implements PullProcessor
func (p *StoreDetailsProcessor) Process(ctx context.Context, ids []int64) syncdomain.Result {
	if p.store == nil {
		return syncdomain.Failure(fmt.Errorf("store details: %w", syncdomain.ErrMissingConfig), syncdomain.FailedStubs(ids))
	}

	fetches := p.fetchAll(ctx, ids)

	var result syncdomain.Result
	var appRecords []catalog.Record
	var collectionRecords []catalog.Record
	var membershipRecords []catalog.Record

	for _, fetch := range fetches {
		if fetch.err != nil {
			result.Fail(fmt.Errorf("store details %d: %w: %w", fetch.id, syncdomain.ErrFetchFailed, fetch.err),
				catalog.NewAppRecord(fetch.id))
			continue
		}
		appRecords = append(appRecords, p.appRecord(fetch.id, fetch.details))
		for _, demo := range fetch.details.Demos {
			if demo.AppID > 0 {
				appRecords = catalog.LinkChild(appRecords, demo.AppID, fetch.id, catalog.TypeDemo)
			}
		}
		collections, memberships := p.packageRecords(fetch.id, fetch.details)
		collectionRecords = append(collectionRecords, collections...)
		membershipRecords = append(membershipRecords, memberships...)
	}

	result.Merge(p.engine.Upsert(ctx, catalog.AppTable, catalog.SortParentFirst(appRecords), []string{catalog.FieldID}))
	if len(collectionRecords) > 0 {
		result.Merge(p.engine.Upsert(ctx, catalog.CollectionTable, collectionRecords, []string{catalog.CollectionFieldID}))
	}
	if len(membershipRecords) > 0 {
		result.Merge(p.engine.Upsert(ctx, catalog.CollectionAppTable, membershipRecords,
			[]string{catalog.CollectionAppFieldCollectionID, catalog.CollectionAppFieldAppID}))
	}
	return result
}

func (p *StoreDetailsProcessor) fetchAll(ctx context.Context, ids []int64) []detailFetch {
	fetches := make([]detailFetch, len(ids))
	sem := make(chan struct{}, detailFetchWorkers)
	var wg sync.WaitGroup

	for i, id := range ids {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, id int64) {
			defer wg.Done()
			defer func() { <-sem }()
			details, err := p.store.AppDetails(ctx, id)
			fetches[i] = detailFetch{id: id, details: details, err: err}
		}(i, id)
	}
	wg.Wait()
	return fetches
}

func (p *StoreDetailsProcessor) appRecord(id int64, details *sources.StoreDetails) catalog.Record {
	record := catalog.NewAppRecord(id).
		Set(catalog.FieldFree, details.IsFree)

	if t := strings.ToLower(strings.TrimSpace(details.Type)); t != "" {
		record.Set(catalog.FieldType, t)
	}
	if details.Name != "" {
		record.Set(catalog.FieldTitle, details.Name)
	}
	if details.ShortDescription != "" {
		record.Set(catalog.FieldDescription, details.ShortDescription)
	}
	if names := catalog.DedupeNames(details.Developers); len(names) > 0 {
		record.Set(catalog.FieldDevelopers, names)
	}
	if names := catalog.DedupeNames(details.Publishers); len(names) > 0 {
		record.Set(catalog.FieldPublishers, names)
	}
	if details.Website != "" {
		record.Set(catalog.FieldWebsite, details.Website)
	}
	if terms := descriptionTerms(details.Categories); len(terms) > 0 {
		record.Set(catalog.FieldCategories, terms)
	}
	if terms := descriptionTerms(details.Genres); len(terms) > 0 {
		record.Set(catalog.FieldTags, terms)
	}
	if terms := supportedLanguages(details.SupportedLangs); len(terms) > 0 {
		record.Set(catalog.FieldLanguages, terms)
	}
	if terms := platformTerms(details.Platforms); len(terms) > 0 {
		record.Set(catalog.FieldPlatforms, terms)
	}
	if details.HeaderImage != "" {
		record.Set(catalog.FieldHeader, details.HeaderImage)
	}
	if urls := screenshotURLs(details.Screenshots); len(urls) > 0 {
		record.Set(catalog.FieldScreenshots, urls)
	}
	if urls := movieURLs(details.Movies); len(urls) > 0 {
		record.Set(catalog.FieldVideos, urls)
	}
	if details.Achievements != nil {
		record.Set(catalog.FieldAchievements, details.Achievements.Total)
	}
	if details.PriceOverview != nil {
		record.Set(catalog.FieldRetailPrice, decimal.New(details.PriceOverview.Initial, -2))
		record.Set(catalog.FieldDiscountedPrice, decimal.New(details.PriceOverview.Final, -2))
	}
	if details.ReleaseDate != nil {
		if released, ok := parseStoreDate(details.ReleaseDate.Date); ok {
			record.Set(catalog.FieldReleasedAt, released)
		}
	}
	if details.FullgameReference != nil && details.FullgameReference.AppID > 0 {
		record.Set(catalog.FieldParentID, details.FullgameReference.AppID)
	}
	return record
}

// packageRecords turns the purchase options into steam-package
// collections. Package ids are stable, so repeated refreshes converge on
// the same rows.
func (p *StoreDetailsProcessor) packageRecords(appID int64, details *sources.StoreDetails) (collections, memberships []catalog.Record) {
	seen := make(map[int64]bool)
	for _, group := range details.PackageGroups {
		for _, sub := range group.Subs {
			if sub.PackageID == 0 || seen[sub.PackageID] {
				continue
			}
			seen[sub.PackageID] = true

			collectionID := catalog.PackageCollectionID(sub.PackageID)
			collection := catalog.Record{
				catalog.CollectionFieldID:    collectionID,
				catalog.CollectionFieldType:  catalog.CollectionTypePackage,
				catalog.CollectionFieldLinks: []catalog.CollectionLink{{
					Title: "Storefront",
					Icon:  "storefront",
					URL:   fmt.Sprintf("%s/sub/%d/", p.storefrontURL, sub.PackageID),
				}},
			}
			if title := packageTitle(sub.OptionText); title != "" {
				collection.Set(catalog.CollectionFieldTitle, title)
			}
			collections = append(collections, collection)

			memberships = append(memberships, catalog.Record{
				catalog.CollectionAppFieldCollectionID: collectionID,
				catalog.CollectionAppFieldAppID:        appID,
				catalog.CollectionAppFieldSource:       catalog.CollectionSourceSync,
			})
		}
	}
	return collections, memberships
}

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// packageTitle strips the markup and trailing price from a purchase
// option label.
func packageTitle(optionText string) string {
	title := htmlTagPattern.ReplaceAllString(optionText, "")
	if idx := strings.LastIndex(title, " - "); idx > 0 {
		title = title[:idx]
	}
	return strings.TrimSpace(title)
}

func descriptionTerms(items []sources.DescriptionItem) []string {
	terms := make([]string, 0, len(items))
	for _, item := range items {
		terms = append(terms, item.Description)
	}
	return catalog.NormalizeTerms(terms)
}

// supportedLanguages parses the storefront's annotated language string,
// e.g. "English<strong>*</strong>, French<br>* full audio".
func supportedLanguages(raw string) []string {
	if raw == "" {
		return nil
	}
	raw, _, _ = strings.Cut(raw, "<br>")
	raw = htmlTagPattern.ReplaceAllString(raw, "")
	raw = strings.ReplaceAll(raw, "*", "")
	return catalog.NormalizeTerms(strings.Split(raw, ","))
}

func platformTerms(platforms map[string]bool) []string {
	terms := make([]string, 0, len(platforms))
	for name, supported := range platforms {
		if supported {
			terms = append(terms, name)
		}
	}
	return catalog.NormalizeTerms(terms)
}

func screenshotURLs(screenshots []sources.Screenshot) []string {
	urls := make([]string, 0, len(screenshots))
	for _, shot := range screenshots {
		if shot.PathFull != "" {
			urls = append(urls, shot.PathFull)
		}
	}
	return urls
}

func movieURLs(movies []sources.Movie) []string {
	urls := make([]string, 0, len(movies))
	for _, movie := range movies {
		if movie.Webm.Max != "" {
			urls = append(urls, movie.Webm.Max)
		}
	}
	return urls
}

// parseStoreDate parses the storefront's free-text release date. Unknown
// formats ("Coming soon", "Q3 2026") are omitted rather than guessed.
func parseStoreDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{"Jan 2, 2006", "2 Jan, 2006", "January 2, 2006"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// ReviewsProcessor pulls the aggregate review counters per app.
type ReviewsProcessor struct {
	store  StoreAPI
	engine syncdomain.Upserter
	logger *zap.Logger
}

// NewReviewsProcessor creates the reviews processor.
func NewReviewsProcessor(store StoreAPI, engine syncdomain.Upserter, logger *zap.Logger) *ReviewsProcessor {
	return &ReviewsProcessor{store: store, engine: engine, logger: logger}
}

// Name implements PullProcessor
func (p *ReviewsProcessor) Name() string { return "reviews" }

// Process implements PullProcessor
func (p *ReviewsProcessor) Process(ctx context.Context, ids []int64) syncdomain.Result {
	if p.store == nil {
		return syncdomain.Failure(fmt.Errorf("reviews: %w", syncdomain.ErrMissingConfig), syncdomain.FailedStubs(ids))
	}

	type reviewFetch struct {
		id      int64
		summary *sources.ReviewSummary
		err     error
	}
	fetches := make([]reviewFetch, len(ids))
	sem := make(chan struct{}, detailFetchWorkers)
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, id int64) {
			defer wg.Done()
			defer func() { <-sem }()
			summary, err := p.store.Reviews(ctx, id)
			fetches[i] = reviewFetch{id: id, summary: summary, err: err}
		}(i, id)
	}
	wg.Wait()

	var result syncdomain.Result
	records := make([]catalog.Record, 0, len(ids))
	for _, fetch := range fetches {
		if fetch.err != nil {
			result.Fail(fmt.Errorf("reviews %d: %w: %w", fetch.id, syncdomain.ErrFetchFailed, fetch.err),
				catalog.NewAppRecord(fetch.id))
			continue
		}
		records = append(records, catalog.NewAppRecord(fetch.id).
			Set(catalog.FieldPositiveReviews, fetch.summary.TotalPositive).
			Set(catalog.FieldNegativeReviews, fetch.summary.TotalNegative))
	}

	result.Merge(p.engine.Upsert(ctx, catalog.AppTable, records, []string{catalog.FieldID}))
	return result
}
