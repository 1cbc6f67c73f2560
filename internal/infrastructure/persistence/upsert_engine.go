package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tradeshelf/backend/internal/domain/catalog"
	syncdomain "github.com/tradeshelf/backend/internal/domain/sync"
)

const (
	defaultBatchSize  = 1000
	defaultMaxRetries = 3
)

// UpsertEngine writes partial records to the store through the database's
// atomic insert-on-conflict-update primitive. Records are grouped by field
// signature so each statement's on-conflict update list covers exactly the
// fields that group populates; a batch of partial records must never null
// out fields another source wrote.
type UpsertEngine struct {
	db         *gorm.DB
	logger     *zap.Logger
	batchSize  int
	maxRetries int
	sleep      func(ctx context.Context, d time.Duration) error
}

// UpsertEngineOption configures an UpsertEngine.
type UpsertEngineOption func(*UpsertEngine)

// WithBatchSize overrides the default batch size of 1000.
func WithBatchSize(size int) UpsertEngineOption {
	return func(e *UpsertEngine) {
		if size > 0 {
			e.batchSize = size
		}
	}
}

// WithMaxRetries overrides the default of 3 attempts per batch.
func WithMaxRetries(retries int) UpsertEngineOption {
	return func(e *UpsertEngine) {
		if retries >= 0 {
			e.maxRetries = retries
		}
	}
}

// WithSleep substitutes the backoff sleeper, used by tests to avoid real
// delays.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) UpsertEngineOption {
	return func(e *UpsertEngine) {
		e.sleep = sleep
	}
}

// NewUpsertEngine creates an upsert engine bound to a database handle.
func NewUpsertEngine(db *gorm.DB, logger *zap.Logger, opts ...UpsertEngineOption) *UpsertEngine {
	e := &UpsertEngine{
		db:         db,
		logger:     logger,
		batchSize:  defaultBatchSize,
		maxRetries: defaultMaxRetries,
		sleep: func(ctx context.Context, d time.Duration) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d):
				return nil
			}
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type signatureGroup struct {
	fields  []string
	records []catalog.Record
}

// Upsert groups, deduplicates, batches and writes records to table,
// resolving conflicts on conflictKeys. One exhausted batch marks only its
// own records failed; sibling batches still proceed. Successful and Failed
// in the returned result are disjoint.
func (e *UpsertEngine) Upsert(ctx context.Context, table string, records []catalog.Record, conflictKeys []string) syncdomain.Result {
	var result syncdomain.Result
	if len(records) == 0 {
		return result
	}

	groups := groupBySignature(records, conflictKeys)

	// Deterministic group order keeps retries and logs reproducible.
	signatures := make([]string, 0, len(groups))
	for sig := range groups {
		signatures = append(signatures, sig)
	}
	sort.Strings(signatures)

	for _, sig := range signatures {
		group := groups[sig]
		for start := 0; start < len(group.records); start += e.batchSize {
			end := start + e.batchSize
			if end > len(group.records) {
				end = len(group.records)
			}
			batch := group.records[start:end]

			if err := e.writeWithRetry(ctx, table, batch, group.fields, conflictKeys); err != nil {
				e.logger.Error("Batch upsert failed after all retries",
					zap.String("table", table),
					zap.String("signature", sig),
					zap.Int("records", len(batch)),
					zap.Error(err),
				)
				result.Fail(fmt.Errorf("%s: upsert batch of %d: %w: %w", table, len(batch), syncdomain.ErrWriteExhausted, err), batch...)
				continue
			}
			result.Successful = append(result.Successful, batch...)
		}
	}

	return result
}

// groupBySignature buckets records by the sorted set of fields they
// populate and deduplicates within each bucket by conflict-key equality,
// keeping the first occurrence.
func groupBySignature(records []catalog.Record, conflictKeys []string) map[string]*signatureGroup {
	groups := make(map[string]*signatureGroup)
	seen := make(map[string]map[string]struct{})

	for _, record := range records {
		sig := record.Signature()
		group, ok := groups[sig]
		if !ok {
			group = &signatureGroup{fields: record.Fields()}
			groups[sig] = group
			seen[sig] = make(map[string]struct{})
		}

		key := record.Key(conflictKeys)
		if _, dup := seen[sig][key]; dup {
			continue
		}
		seen[sig][key] = struct{}{}
		group.records = append(group.records, record)
	}

	return groups
}

// writeWithRetry issues one batch write, retrying with exponential backoff
// plus jitter: delay = rand(0,1s) + 1s * 2^(maxRetries - attemptsLeft).
func (e *UpsertEngine) writeWithRetry(ctx context.Context, table string, batch []catalog.Record, fields, conflictKeys []string) error {
	for attemptsLeft := e.maxRetries; ; attemptsLeft-- {
		err := e.writeBatch(ctx, table, batch, fields, conflictKeys)
		if err == nil {
			return nil
		}
		if attemptsLeft <= 0 {
			return err
		}

		jitter := time.Duration(rand.Intn(1000)) * time.Millisecond
		delay := jitter + time.Second*(1<<(e.maxRetries-attemptsLeft))
		e.logger.Warn("Retrying batch write",
			zap.String("table", table),
			zap.Int("attempts_left", attemptsLeft),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if serr := e.sleep(ctx, delay); serr != nil {
			return serr
		}
	}
}

func (e *UpsertEngine) writeBatch(ctx context.Context, table string, batch []catalog.Record, fields, conflictKeys []string) error {
	rows := make([]map[string]any, len(batch))
	for i, record := range batch {
		row := make(map[string]any, len(record))
		for field, value := range record {
			row[field] = storableValue(value)
		}
		rows[i] = row
	}

	columns := make([]clause.Column, len(conflictKeys))
	for i, key := range conflictKeys {
		columns[i] = clause.Column{Name: key}
	}

	onConflict := clause.OnConflict{Columns: columns}
	if updates := updatableFields(fields, conflictKeys); len(updates) > 0 {
		onConflict.DoUpdates = clause.AssignmentColumns(updates)
	} else {
		// Pure relation rows carry nothing beyond their conflict keys.
		onConflict.DoNothing = true
	}

	return e.db.WithContext(ctx).
		Table(table).
		Clauses(onConflict).
		Create(&rows).Error
}

// updatableFields is the signature's field set minus the conflict keys.
func updatableFields(fields, conflictKeys []string) []string {
	keySet := make(map[string]struct{}, len(conflictKeys))
	for _, k := range conflictKeys {
		keySet[k] = struct{}{}
	}
	updates := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, isKey := keySet[f]; !isKey {
			updates = append(updates, f)
		}
	}
	return updates
}

// storableValue serializes slice and struct values to JSON for jsonb
// columns; scalars pass through untouched.
func storableValue(value any) any {
	switch value.(type) {
	case nil, string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, time.Time, *time.Time, []byte:
		return value
	}
	if d, ok := value.(interface{ String() string }); ok {
		// decimal.Decimal and friends keep their exact textual form.
		return d.String()
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(encoded)
}
