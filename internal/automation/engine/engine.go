// Package engine runs the reconciliation loop that copies registry tax-debt
// data onto CRM deals.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"pgfnsync/internal/automation/dedup"
	"pgfnsync/internal/automation/metrics"
	"pgfnsync/internal/automation/stats"
	"pgfnsync/internal/crm"
	"pgfnsync/internal/enrichment"
	"pgfnsync/internal/platform/config"
	audit "pgfnsync/pkg/platform/audit"
	"pgfnsync/pkg/platform/retry"
)

// Config holds the knobs of one engine.
type Config struct {
	Pipeline             int
	Stages               []string
	CompanyTaxpayerField string

	BatchSize           int
	DelayBetweenBatches time.Duration
	DelayBetweenRecords time.Duration
	MaxRecordsPerCycle  int
	PollInterval        time.Duration
	ContinueOnError     bool
}

// ConfigFrom extracts the engine settings from the application config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Pipeline:             cfg.Bitrix.TargetPipeline,
		Stages:               cfg.Bitrix.TargetStages,
		CompanyTaxpayerField: cfg.Bitrix.CompanyTaxpayerField,
		BatchSize:            cfg.Automation.BatchSize,
		DelayBetweenBatches:  cfg.Automation.DelayBetweenBatches,
		DelayBetweenRecords:  cfg.Automation.DelayBetweenRecords,
		MaxRecordsPerCycle:   cfg.Automation.MaxRecordsPerCycle,
		PollInterval:         cfg.Automation.PollInterval,
		ContinueOnError:      cfg.ErrorHandling.ContinueOnError,
	}
}

func (c Config) validate() error {
	var errs []error
	if len(c.Stages) == 0 {
		errs = append(errs, errors.New("at least one stage is required"))
	}
	if c.BatchSize <= 0 {
		errs = append(errs, errors.New("batch size must be positive"))
	}
	if c.MaxRecordsPerCycle <= 0 {
		errs = append(errs, errors.New("max records per cycle must be positive"))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("poll interval must be positive"))
	}
	return errors.Join(errs...)
}

// Engine discovers deals that need tax-debt data, looks them up and writes
// the result back. One engine runs at most one cycle at a time and processes
// records sequentially.
type Engine struct {
	cfg      Config
	crm      CRM
	registry Registry
	mapper   *enrichment.Mapper
	dedup    dedup.Store
	events   EventPublisher
	metrics  *metrics.Metrics
	stats    *stats.Collector
	logger   *slog.Logger
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
	newID    func() string

	running    atomic.Bool
	stopped    atomic.Bool
	continuous atomic.Bool
	// wake holds at most one pending Trigger for the continuous loop.
	wake chan struct{}

	// stopCtx is cancelled by Stop so pending sleeps wake up.
	stopMu     sync.Mutex
	stopCtx    context.Context
	stopCancel context.CancelFunc

	mu          sync.RWMutex
	executionID string
	last        *stats.Summary
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithDedup sets the processed set. Defaults to an in-memory store.
func WithDedup(store dedup.Store) Option {
	return func(e *Engine) {
		e.dedup = store
	}
}

func WithEventPublisher(p EventPublisher) Option {
	return func(e *Engine) {
		e.events = p
	}
}

// WithClock overrides time.Now, used for the discovery window and statistics.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithSleep overrides the pacing sleep. The function must honor ctx.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Engine) {
		e.sleep = sleep
	}
}

// WithIDGenerator overrides how execution ids are minted.
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) {
		e.newID = newID
	}
}

func New(cfg Config, crmClient CRM, registry Registry, mapper *enrichment.Mapper, opts ...Option) (*Engine, error) {
	if crmClient == nil {
		return nil, errors.New("crm client is required")
	}
	if registry == nil {
		return nil, errors.New("registry client is required")
	}
	if mapper == nil {
		return nil, errors.New("field mapper is required")
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}

	e := &Engine{
		cfg:      cfg,
		crm:      crmClient,
		registry: registry,
		mapper:   mapper,
		logger:   slog.Default(),
		now:      time.Now,
		sleep:    retry.Sleep,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	if e.dedup == nil {
		e.dedup = dedup.NewMemory()
	}
	e.stats = stats.NewCollector(e.now)
	e.stopCtx, e.stopCancel = context.WithCancel(context.Background())
	e.wake = make(chan struct{}, 1)
	return e, nil
}

// Running reports whether a run is active.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// ExecutionID returns the id of the current or most recent cycle.
func (e *Engine) ExecutionID() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.executionID
}

// LastSummary returns the summary of the most recently finished cycle.
func (e *Engine) LastSummary() (stats.Summary, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.last == nil {
		return stats.Summary{}, false
	}
	return *e.last, true
}

// Snapshot returns the statistics of the cycle in progress.
func (e *Engine) Snapshot() stats.Summary {
	return e.stats.Snapshot()
}

// Config returns the settings the engine was built with.
func (e *Engine) Config() Config {
	return e.cfg
}

// Stop asks the active run to end. The in-flight batch finishes, pending
// sleeps return immediately and no further batch or cycle starts.
// Safe to call from any goroutine.
func (e *Engine) Stop() {
	e.stopped.Store(true)
	e.stopMu.Lock()
	e.stopCancel()
	e.stopMu.Unlock()
}

// Trigger asks the continuous loop to start its next cycle without waiting
// out the poll interval. A trigger that arrives mid-cycle is kept and wakes
// the following poll sleep. It reports false when no loop is running.
func (e *Engine) Trigger() bool {
	if !e.continuous.Load() {
		return false
	}
	select {
	case e.wake <- struct{}{}:
	default:
	}
	return true
}

// Continuous reports whether the continuous loop owns the engine.
func (e *Engine) Continuous() bool {
	return e.continuous.Load()
}

// begin claims the single-flight slot and re-arms the stop signal.
func (e *Engine) begin() bool {
	if !e.running.CompareAndSwap(false, true) {
		return false
	}
	e.stopped.Store(false)
	e.stopMu.Lock()
	e.stopCtx, e.stopCancel = context.WithCancel(context.Background())
	e.stopMu.Unlock()
	e.metrics.SetRunning(true)
	return true
}

func (e *Engine) end() {
	e.metrics.SetRunning(false)
	e.running.Store(false)
}

func (e *Engine) stopSignal() context.Context {
	e.stopMu.Lock()
	defer e.stopMu.Unlock()
	return e.stopCtx
}

// pause sleeps for d unless Stop cuts it short. A stop-interrupted pause is
// not an error, and once stopped no pause sleeps at all.
func (e *Engine) pause(ctx context.Context, d time.Duration) error {
	return e.wait(ctx, d, nil)
}

// wait is pause that also returns early, without error, on a receive from wake.
func (e *Engine) wait(ctx context.Context, d time.Duration, wake <-chan struct{}) error {
	if d <= 0 || e.stopped.Load() {
		return ctx.Err()
	}
	sleepCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	unregister := context.AfterFunc(e.stopSignal(), cancel)
	defer unregister()

	var woken atomic.Bool
	if wake != nil {
		done := make(chan struct{})
		defer close(done)
		go func() {
			select {
			case <-wake:
				woken.Store(true)
				cancel()
			case <-done:
			}
		}()
	}

	err := e.sleep(sleepCtx, d)
	if err != nil && ctx.Err() == nil && (e.stopped.Load() || woken.Load()) {
		return nil
	}
	return err
}

// CheckConnections verifies the CRM and then the registry. The first failure
// is returned wrapped in ErrDependencyUnavailable.
func (e *Engine) CheckConnections(ctx context.Context) error {
	e.logger.InfoContext(ctx, "checking connections")
	if err := e.crm.HealthCheck(ctx); err != nil {
		e.logger.ErrorContext(ctx, "crm unreachable", "error", err)
		return fmt.Errorf("%w: crm: %w", ErrDependencyUnavailable, err)
	}
	if err := e.registry.Health(ctx); err != nil {
		e.logger.ErrorContext(ctx, "registry unreachable", "error", err)
		return fmt.Errorf("%w: registry: %w", ErrDependencyUnavailable, err)
	}
	e.logger.InfoContext(ctx, "all connections ok")
	return nil
}

// RunOnce checks connectivity and runs a single cycle.
func (e *Engine) RunOnce(ctx context.Context) (stats.Summary, error) {
	if !e.begin() {
		return stats.Summary{}, ErrAlreadyRunning
	}
	defer e.end()

	if err := e.CheckConnections(ctx); err != nil {
		return stats.Summary{}, err
	}
	return e.runCycle(ctx)
}

// RunContinuously checks connectivity once and then runs cycles every
// PollInterval until Stop is called or ctx is done, both of which end the
// loop without error. A cycle error ends the loop only when continue-on-error
// is disabled.
func (e *Engine) RunContinuously(ctx context.Context) error {
	if !e.begin() {
		return ErrAlreadyRunning
	}
	defer e.end()
	e.continuous.Store(true)
	defer e.continuous.Store(false)
	select {
	case <-e.wake:
	default:
	}

	e.logger.InfoContext(ctx, "continuous monitoring started",
		"poll_interval", e.cfg.PollInterval.String(),
		"pipeline", e.cfg.Pipeline,
		"stages", e.cfg.Stages,
	)
	defer e.logger.InfoContext(ctx, "continuous monitoring finished")

	if err := e.CheckConnections(ctx); err != nil {
		return err
	}

	for cycle := 1; ; cycle++ {
		if e.stopped.Load() || ctx.Err() != nil {
			return nil
		}
		start := e.now()
		summary, err := e.runCycle(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			e.logger.ErrorContext(ctx, "cycle failed",
				"cycle", cycle,
				"execution_id", summary.ExecutionID,
				"error", err,
			)
			if !e.cfg.ContinueOnError {
				return err
			}
			e.logger.WarnContext(ctx, "continuing monitoring after cycle error", "cycle", cycle)
		}
		e.logger.InfoContext(ctx, "cycle finished",
			"cycle", cycle,
			"execution_id", summary.ExecutionID,
			"discovered", summary.Discovered,
			"duration_ms", e.now().Sub(start).Milliseconds(),
		)

		if e.stopped.Load() {
			return nil
		}
		if err := e.wait(ctx, e.cfg.PollInterval, e.wake); err != nil {
			return nil
		}
	}
}

// runCycle discovers and processes one round of deals.
func (e *Engine) runCycle(ctx context.Context) (stats.Summary, error) {
	executionID := e.newID()
	e.mu.Lock()
	e.executionID = executionID
	e.mu.Unlock()

	logger := e.logger.With("execution_id", executionID)
	e.stats.Start(executionID)
	logger.InfoContext(ctx, "automation cycle started",
		"pipeline", e.cfg.Pipeline,
		"stages", e.cfg.Stages,
	)

	deals, err := e.discover(ctx, logger)
	if err == nil {
		e.stats.SetDiscovered(len(deals))
		if len(deals) == 0 {
			logger.InfoContext(ctx, "no deals to process")
		} else {
			err = e.processBatches(ctx, logger, deals)
		}
	}

	summary := e.stats.Finish()
	e.mu.Lock()
	e.last = &summary
	e.mu.Unlock()

	e.metrics.IncrementCycle()
	if err != nil {
		e.metrics.IncrementCycleError()
	}
	logger.InfoContext(ctx, "automation cycle completed",
		"discovered", summary.Discovered,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"duration_ms", summary.Duration.Milliseconds(),
	)
	e.emit(ctx, logger, audit.Event{
		Action:      string(audit.EventCycleCompleted),
		ExecutionID: executionID,
		DurationMS:  summary.Duration.Milliseconds(),
	})
	return summary, err
}

// processBatches walks deals in contiguous batches. There is no delay after
// the last record of a batch nor after the last batch.
func (e *Engine) processBatches(ctx context.Context, logger *slog.Logger, deals []crm.Deal) error {
	size := e.cfg.BatchSize
	total := (len(deals) + size - 1) / size

	for b := 0; b < total; b++ {
		if e.stopped.Load() {
			logger.InfoContext(ctx, "stop requested, skipping remaining batches", "remaining_batches", total-b)
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		lo := b * size
		hi := min(lo+size, len(deals))
		batch := deals[lo:hi]
		logger.InfoContext(ctx, "processing batch", "batch", b+1, "batches", total, "records", len(batch))

		for i, deal := range batch {
			if err := e.processRecord(ctx, logger, deal); err != nil {
				if !e.cfg.ContinueOnError {
					return err
				}
			}
			if i < len(batch)-1 {
				if err := e.pause(ctx, e.cfg.DelayBetweenRecords); err != nil {
					return err
				}
			}
		}

		if b < total-1 {
			logger.DebugContext(ctx, "waiting before next batch", "delay_ms", e.cfg.DelayBetweenBatches.Milliseconds())
			if err := e.pause(ctx, e.cfg.DelayBetweenBatches); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) emit(ctx context.Context, logger *slog.Logger, event audit.Event) {
	if e.events == nil {
		return
	}
	if err := e.events.Emit(ctx, event); err != nil {
		logger.WarnContext(ctx, "failed to emit event", "action", event.Action, "error", err)
	}
}
