package sync

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tradeshelf/backend/internal/domain/catalog"
	syncdomain "github.com/tradeshelf/backend/internal/domain/sync"
)

// Run kinds, used to label stored reports.
const (
	KindSweep   = "sweep"
	KindRefresh = "refresh"
)

// RunReport is the structured outcome of one orchestrator run. Failed
// lists the app ids that could not be processed; Errors carries the
// messages that held checkpoints back.
type RunReport struct {
	Success      bool      `json:"success"`
	Message      string    `json:"message"`
	Failed       []int64   `json:"failed,omitempty"`
	Errors       []string  `json:"errors,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	DurationMS   int64     `json:"duration_ms"`
	PeakMemoryMB uint64    `json:"peak_memory_mb"`
}

// DeltaSource pairs a delta processor with its orchestration flags.
// Discovery sources feed every successfully written id into the refresh
// queue for a later full refresh.
type DeltaSource struct {
	Processor DeltaProcessor
	Discovery bool
}

// OrchestratorConfig wires the orchestrator's collaborators.
type OrchestratorConfig struct {
	Checkpoints    syncdomain.CheckpointStore
	Queue          syncdomain.WorkQueue
	SweepSources   []DeltaSource
	Refreshers     []PullProcessor
	Exporter       *SnapshotExporter
	Logger         *zap.Logger
	RefreshDefault int
	RefreshMax     int
}

// Orchestrator sequences the pipeline: the periodic sweep over every
// delta source, and the bounded per-entity refresh fan-out. Source
// failures are contained per source; a run always produces a report.
type Orchestrator struct {
	checkpoints    syncdomain.CheckpointStore
	queue          syncdomain.WorkQueue
	sweepSources   []DeltaSource
	refreshers     []PullProcessor
	exporter       *SnapshotExporter
	logger         *zap.Logger
	now            func() time.Time
	refreshDefault int
	refreshMax     int
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	refreshDefault := cfg.RefreshDefault
	if refreshDefault <= 0 {
		refreshDefault = 100
	}
	refreshMax := cfg.RefreshMax
	if refreshMax <= 0 {
		refreshMax = 200
	}
	return &Orchestrator{
		checkpoints:    cfg.Checkpoints,
		queue:          cfg.Queue,
		sweepSources:   cfg.SweepSources,
		refreshers:     cfg.Refreshers,
		exporter:       cfg.Exporter,
		logger:         cfg.Logger,
		now:            time.Now,
		refreshDefault: refreshDefault,
		refreshMax:     refreshMax,
	}
}

// RunSweep executes every delta source in order, advances each source's
// checkpoint only after a clean run, enqueues discovered ids for refresh,
// and refreshes the snapshot artifact when one is configured.
func (o *Orchestrator) RunSweep(ctx context.Context) *RunReport {
	started := o.now()
	var total syncdomain.Result

	for _, source := range o.sweepSources {
		result, next := o.runDelta(ctx, source.Processor)

		if source.Discovery && result.OK() {
			ids := catalog.AppIDs(result.Successful)
			if err := o.queue.Enqueue(ctx, ids); err != nil {
				result.Errors = append(result.Errors, fmt.Errorf("enqueue discovered ids: %w", err))
			} else if len(ids) > 0 {
				o.logger.Info("discovered apps queued for refresh", zap.Int("count", len(ids)))
			}
		}

		if name := source.Processor.Source(); name != "" && next != "" {
			if result.OK() {
				if err := o.checkpoints.UpdateLastCheck(ctx, name, next); err != nil {
					o.logger.Warn("checkpoint update failed",
						zap.String("source", name), zap.Error(err))
				}
			} else {
				o.logger.Info("checkpoint held back after errors", zap.String("source", name))
			}
		}

		total.Merge(result)
	}

	if o.exporter != nil {
		if err := o.exporter.Export(ctx); err != nil {
			o.logger.Error("snapshot export failed", zap.Error(err))
		}
	}

	return o.report(started, total, fmt.Sprintf("swept %d sources", len(o.sweepSources)))
}

// runDelta runs one delta source with its stored watermark, containing
// panics so a misbehaving source cannot take down the run.
func (o *Orchestrator) runDelta(ctx context.Context, processor DeltaProcessor) (result syncdomain.Result, next string) {
	name := processor.Source()

	var lastCheck string
	if name != "" {
		stored, err := o.checkpoints.LastCheck(ctx, name)
		if err != nil {
			o.logger.Warn("checkpoint read failed, sweeping from scratch",
				zap.String("source", name), zap.Error(err))
		} else {
			lastCheck = stored
		}
	}

	defer func() {
		if r := recover(); r != nil {
			result = syncdomain.Failure(fmt.Errorf("source %q panicked: %v", name, r), nil)
			next = ""
		}
	}()

	result, next = processor.Process(ctx, lastCheck)
	o.logger.Info("source processed",
		zap.String("source", name),
		zap.Int("successful", len(result.Successful)),
		zap.Int("failed", len(result.Failed)),
		zap.Int("errors", len(result.Errors)))
	return result, next
}

// RunRefresh dequeues up to count queued ids and runs every pull
// processor over them concurrently. Requests beyond the configured
// maximum are refused before touching the queue.
func (o *Orchestrator) RunRefresh(ctx context.Context, count int) *RunReport {
	started := o.now()
	if count <= 0 {
		count = o.refreshDefault
	}
	if count > o.refreshMax {
		err := fmt.Errorf("%w: %d > %d", syncdomain.ErrTooManyIDs, count, o.refreshMax)
		return o.report(started, syncdomain.Failure(err, nil), err.Error())
	}

	ids := o.queue.Dequeue(ctx, count)
	if len(ids) == 0 {
		return o.report(started, syncdomain.Result{}, "refresh queue empty")
	}

	var mu sync.Mutex
	var total syncdomain.Result
	var wg sync.WaitGroup
	for _, refresher := range o.refreshers {
		wg.Add(1)
		go func(refresher PullProcessor) {
			defer wg.Done()
			result := o.runPull(ctx, refresher, ids)
			mu.Lock()
			total.Merge(result)
			mu.Unlock()
		}(refresher)
	}
	wg.Wait()

	return o.report(started, total, fmt.Sprintf("refreshed %d apps", len(ids)))
}

func (o *Orchestrator) runPull(ctx context.Context, processor PullProcessor, ids []int64) (result syncdomain.Result) {
	defer func() {
		if r := recover(); r != nil {
			result = syncdomain.Failure(
				fmt.Errorf("refresher %q panicked: %v", processor.Name(), r),
				syncdomain.FailedStubs(ids))
		}
	}()

	result = processor.Process(ctx, ids)
	o.logger.Info("refresher processed",
		zap.String("refresher", processor.Name()),
		zap.Int("successful", len(result.Successful)),
		zap.Int("failed", len(result.Failed)),
		zap.Int("errors", len(result.Errors)))
	return result
}

func (o *Orchestrator) report(started time.Time, result syncdomain.Result, okMessage string) *RunReport {
	message := okMessage
	if !result.OK() {
		message = fmt.Sprintf("completed with %d errors", len(result.Errors))
	}

	errs := make([]string, len(result.Errors))
	for i, err := range result.Errors {
		errs[i] = err.Error()
	}

	// Sys is monotonic within the process, so it approximates the run's
	// peak footprint rather than the instantaneous heap.
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	report := &RunReport{
		Success:      result.OK(),
		Message:      message,
		Failed:       dedupeIDs(catalog.AppIDs(result.Failed)),
		Errors:       errs,
		Timestamp:    started.UTC(),
		DurationMS:   o.now().Sub(started).Milliseconds(),
		PeakMemoryMB: mem.Sys / (1 << 20),
	}

	o.logger.Info("run finished",
		zap.Bool("success", report.Success),
		zap.String("message", report.Message),
		zap.Int("failed", len(report.Failed)),
		zap.Int64("duration_ms", report.DurationMS),
		zap.Uint64("peak_memory_mb", report.PeakMemoryMB))
	return report
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
