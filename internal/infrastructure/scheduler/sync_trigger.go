package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	syncapp "github.com/tradeshelf/backend/internal/application/sync"
)

// Runner drives the ingestion pipeline. Implemented by the sync orchestrator.
type Runner interface {
	RunSweep(ctx context.Context) *syncapp.RunReport
	RunRefresh(ctx context.Context, count int) *syncapp.RunReport
}

// ReportSink persists run reports so the status endpoint can serve the
// latest outcome without re-running anything.
type ReportSink interface {
	StoreReport(ctx context.Context, kind string, report *syncapp.RunReport) error
}

// SyncTriggerConfig holds the background run cadence
type SyncTriggerConfig struct {
	// SweepInterval is how often the full source sweep runs
	SweepInterval time.Duration

	// RefreshInterval is how often queued identifiers are drained
	RefreshInterval time.Duration

	// RefreshCount is the number of identifiers per refresh run.
	// Zero means the runner's default.
	RefreshCount int
}

// DefaultSyncTriggerConfig returns the default trigger configuration
func DefaultSyncTriggerConfig() SyncTriggerConfig {
	return SyncTriggerConfig{
		SweepInterval:   time.Hour,
		RefreshInterval: 5 * time.Minute,
	}
}

// SyncTrigger runs sweeps and refreshes on fixed intervals. Runs are
// single-flight: a tick that lands while another run is active is skipped
// rather than queued.
type SyncTrigger struct {
	config SyncTriggerConfig
	runner Runner
	sink   ReportSink
	logger *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	busy      sync.Mutex
}

// NewSyncTrigger creates a new sync trigger
func NewSyncTrigger(config SyncTriggerConfig, runner Runner, sink ReportSink, logger *zap.Logger) *SyncTrigger {
	return &SyncTrigger{
		config: config,
		runner: runner,
		sink:   sink,
		logger: logger,
	}
}

// Start starts the trigger loops
func (t *SyncTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = true
	t.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(2)
	go t.loop(ctx, t.config.SweepInterval, t.runSweep)
	go t.loop(ctx, t.config.RefreshInterval, t.runRefresh)

	t.logger.Info("Sync trigger started",
		zap.Duration("sweep_interval", t.config.SweepInterval),
		zap.Duration("refresh_interval", t.config.RefreshInterval),
	)

	return nil
}

// Stop stops the trigger and waits for any in-flight run to finish
func (t *SyncTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return ErrTriggerNotRunning
	}
	t.isRunning = false
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("Sync trigger stopped")
		return nil
	case <-ctx.Done():
		t.logger.Warn("Sync trigger stop timed out")
		return ctx.Err()
	}
}

// loop fires fn on every tick until the context is cancelled
func (t *SyncTrigger) loop(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	defer t.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

// runSweep runs a full source sweep unless another run holds the lock
func (t *SyncTrigger) runSweep(ctx context.Context) {
	if !t.busy.TryLock() {
		t.logger.Debug("Sweep tick skipped, previous run still active")
		return
	}
	defer t.busy.Unlock()

	report := t.runner.RunSweep(ctx)
	t.store(ctx, syncapp.KindSweep, report)
}

// runRefresh drains queued identifiers unless another run holds the lock
func (t *SyncTrigger) runRefresh(ctx context.Context) {
	if !t.busy.TryLock() {
		t.logger.Debug("Refresh tick skipped, previous run still active")
		return
	}
	defer t.busy.Unlock()

	report := t.runner.RunRefresh(ctx, t.config.RefreshCount)
	t.store(ctx, syncapp.KindRefresh, report)
}

// store persists the run report. Failures are logged, not fatal; the run
// itself already happened.
func (t *SyncTrigger) store(ctx context.Context, kind string, report *syncapp.RunReport) {
	if t.sink == nil || report == nil {
		return
	}
	if err := t.sink.StoreReport(ctx, kind, report); err != nil {
		t.logger.Warn("Failed to store run report",
			zap.String("kind", kind),
			zap.Error(err),
		)
	}
}

// TriggerSweep runs a sweep immediately, outside the tick cadence.
// Returns ErrRunInProgress when a scheduled run is active.
func (t *SyncTrigger) TriggerSweep(ctx context.Context) (*syncapp.RunReport, error) {
	if !t.busy.TryLock() {
		return nil, ErrRunInProgress
	}
	defer t.busy.Unlock()

	report := t.runner.RunSweep(ctx)
	t.store(ctx, syncapp.KindSweep, report)
	return report, nil
}

// TriggerRefresh runs a refresh immediately, outside the tick cadence.
// Returns ErrRunInProgress when a scheduled run is active.
func (t *SyncTrigger) TriggerRefresh(ctx context.Context, count int) (*syncapp.RunReport, error) {
	if !t.busy.TryLock() {
		return nil, ErrRunInProgress
	}
	defer t.busy.Unlock()

	report := t.runner.RunRefresh(ctx, count)
	t.store(ctx, syncapp.KindRefresh, report)
	return report, nil
}
