package sync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tradeshelf/backend/internal/domain/catalog"
	syncdomain "github.com/tradeshelf/backend/internal/domain/sync"
)

// CardsProcessor sweeps the trading-card dump. The dump is a full
// snapshot, so delta filtering happens here against the set's added
// timestamp.
type CardsProcessor struct {
	cards  CardsAPI
	engine syncdomain.Upserter
	logger *zap.Logger
	now    func() time.Time
}

// NewCardsProcessor creates the cards processor.
func NewCardsProcessor(cards CardsAPI, engine syncdomain.Upserter, logger *zap.Logger) *CardsProcessor {
	return &CardsProcessor{cards: cards, engine: engine, logger: logger, now: time.Now}
}

// Source implements DeltaProcessor
func (p *CardsProcessor) Source() string { return syncdomain.SourceCards }

// Process implements DeltaProcessor
func (p *CardsProcessor) Process(ctx context.Context, lastCheck string) (syncdomain.Result, string) {
	if p.cards == nil {
		return syncdomain.Failure(fmt.Errorf("cards: %w", syncdomain.ErrMissingConfig), nil), ""
	}
	next := formatTimeWatermark(p.now())
	since := parseTimeWatermark(lastCheck)

	sets, err := p.cards.SetData(ctx)
	if err != nil {
		return syncdomain.Failure(fmt.Errorf("cards: %w: %w", syncdomain.ErrFetchFailed, err), nil), ""
	}

	records := make([]catalog.Record, 0, len(sets))
	for _, set := range sets {
		id := set.AppIDInt()
		if id == 0 {
			continue
		}
		if !since.IsZero() && !time.Unix(set.Added, 0).After(since) {
			continue
		}
		records = append(records, catalog.NewAppRecord(id).Set(catalog.FieldCards, set.CardCount()))
	}

	p.logger.Debug("card sets changed", zap.Int("records", len(records)))
	return p.engine.Upsert(ctx, catalog.AppTable, records, []string{catalog.FieldID}), next
}

// RemovalsProcessor sweeps the delisting tracker. The tracker always has
// thousands of rows, so an empty dump is treated as a broken fetch rather
// than a quiet day.
type RemovalsProcessor struct {
	tracker TrackerAPI
	engine  syncdomain.Upserter
	logger  *zap.Logger
	now     func() time.Time
}

// NewRemovalsProcessor creates the removals processor.
func NewRemovalsProcessor(tracker TrackerAPI, engine syncdomain.Upserter, logger *zap.Logger) *RemovalsProcessor {
	return &RemovalsProcessor{tracker: tracker, engine: engine, logger: logger, now: time.Now}
}

// Source implements DeltaProcessor
func (p *RemovalsProcessor) Source() string { return syncdomain.SourceRemovals }

// Process implements DeltaProcessor
func (p *RemovalsProcessor) Process(ctx context.Context, lastCheck string) (syncdomain.Result, string) {
	if p.tracker == nil {
		return syncdomain.Failure(fmt.Errorf("removals: %w", syncdomain.ErrMissingConfig), nil), ""
	}
	next := formatTimeWatermark(p.now())
	since := parseTimeWatermark(lastCheck)

	removed, err := p.tracker.RemovedApps(ctx)
	if err != nil {
		return syncdomain.Failure(fmt.Errorf("removals: %w: %w", syncdomain.ErrFetchFailed, err), nil), ""
	}
	if len(removed) == 0 {
		return syncdomain.Failure(fmt.Errorf("removals: %w", syncdomain.ErrEmptyFeed), nil), ""
	}

	records := make([]catalog.Record, 0, len(removed))
	for _, app := range removed {
		id := app.AppIDInt()
		if id == 0 {
			continue
		}
		changedAt, ok := parseTrackerTime(app.ChangedAt)
		if !ok {
			continue
		}
		if !since.IsZero() && !changedAt.After(since) {
			continue
		}

		record := catalog.NewAppRecord(id).
			Set(catalog.FieldRemovedAs, strings.ToLower(strings.TrimSpace(app.Category))).
			Set(catalog.FieldRemovedAt, changedAt.UTC())
		if appType := normalizeTrackerType(app.Type); appType != "" {
			record.Set(catalog.FieldType, appType)
		}
		records = append(records, record)
	}

	return p.engine.Upsert(ctx, catalog.AppTable, records, []string{catalog.FieldID}), next
}

// parseTrackerTime accepts the tracker's two observed timestamp shapes.
func parseTrackerTime(value string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func normalizeTrackerType(value string) string {
	appType := strings.ToLower(strings.TrimSpace(value))
	if appType == "uncategorized" {
		return catalog.TypeUnknown
	}
	return appType
}

// PlusOneProcessor sweeps the trading community's plus-one tag listing.
// The listing carries no change markers, so the source is not
// checkpointed and every run writes the full set.
type PlusOneProcessor struct {
	barter BarterAPI
	engine syncdomain.Upserter
	logger *zap.Logger
}

// NewPlusOneProcessor creates the plus-one processor.
func NewPlusOneProcessor(barter BarterAPI, engine syncdomain.Upserter, logger *zap.Logger) *PlusOneProcessor {
	return &PlusOneProcessor{barter: barter, engine: engine, logger: logger}
}

// Source implements DeltaProcessor
func (p *PlusOneProcessor) Source() string { return "" }

// Process implements DeltaProcessor
func (p *PlusOneProcessor) Process(ctx context.Context, _ string) (syncdomain.Result, string) {
	if p.barter == nil {
		return syncdomain.Failure(fmt.Errorf("plus one: %w", syncdomain.ErrMissingConfig), nil), ""
	}

	ids, err := p.barter.PlusOneAppIDs(ctx)
	if err != nil {
		return syncdomain.Failure(fmt.Errorf("plus one: %w: %w", syncdomain.ErrFetchFailed, err), nil), ""
	}

	records := make([]catalog.Record, 0, len(ids))
	for _, id := range ids {
		records = append(records, catalog.NewAppRecord(id).Set(catalog.FieldPlusOne, true))
	}

	return p.engine.Upsert(ctx, catalog.AppTable, records, []string{catalog.FieldID}), ""
}
