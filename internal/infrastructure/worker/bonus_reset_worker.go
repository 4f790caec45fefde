package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// BonusResetter clears monthly department bonuses. A nil department resets all of them.
type BonusResetter interface {
	ResetMonthlyBonus(ctx context.Context, departmentID *int64, actorID int64) (int, error)
}

// BonusResetWorkerConfig holds configuration for the bonus reset worker
type BonusResetWorkerConfig struct {
	Interval time.Duration

	// ActorID is the user recorded on reset ledger and audit rows
	ActorID int64

	// RunOnStart triggers one reset as soon as the worker starts
	RunOnStart bool
}

// DefaultBonusResetWorkerConfig returns default configuration
func DefaultBonusResetWorkerConfig() BonusResetWorkerConfig {
	return BonusResetWorkerConfig{
		Interval: 24 * time.Hour,
	}
}

// BonusResetWorker periodically resets expired monthly bonuses
type BonusResetWorker struct {
	config   BonusResetWorkerConfig
	resetter BonusResetter
	logger   *zap.Logger

	mu         sync.RWMutex
	cancel     context.CancelFunc
	done       chan struct{}
	isRunning  bool
	runs       int
	resetCount int
	lastRun    time.Time
	lastError  error
}

// NewBonusResetWorker creates a new bonus reset worker
func NewBonusResetWorker(config BonusResetWorkerConfig, resetter BonusResetter, logger *zap.Logger) *BonusResetWorker {
	if config.Interval <= 0 {
		config.Interval = DefaultBonusResetWorkerConfig().Interval
	}
	return &BonusResetWorker{
		config:   config,
		resetter: resetter,
		logger:   logger,
	}
}

// Start begins the reset loop
func (w *BonusResetWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return fmt.Errorf("bonus reset worker already running")
	}

	var runCtx context.Context
	runCtx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	w.isRunning = true
	w.mu.Unlock()

	w.logger.Info("BonusResetWorker started",
		zap.Duration("interval", w.config.Interval),
		zap.Int64("actor_id", w.config.ActorID))

	go w.loop(runCtx)
	return nil
}

// Stop terminates the loop and waits for an in-flight reset to finish
func (w *BonusResetWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done

	w.logger.Info("BonusResetWorker stopped",
		zap.Int("runs", w.Runs()),
		zap.Int("departments_reset", w.ResetCount()))
	return nil
}

// Name returns the worker name for identification
func (w *BonusResetWorker) Name() string {
	return "BonusResetWorker"
}

func (w *BonusResetWorker) loop(ctx context.Context) {
	defer close(w.done)

	if w.config.RunOnStart {
		w.RunOnce(ctx)
	}

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce resets every department carrying a bonus and records the outcome
func (w *BonusResetWorker) RunOnce(ctx context.Context) {
	count, err := w.resetter.ResetMonthlyBonus(ctx, nil, w.config.ActorID)

	w.mu.Lock()
	w.runs++
	w.resetCount += count
	w.lastRun = time.Now().UTC()
	w.lastError = err
	w.mu.Unlock()

	if err != nil {
		w.logger.Error("Monthly bonus reset failed", zap.Error(err), zap.Int("departments_reset", count))
		return
	}
	w.logger.Info("Monthly bonus reset completed", zap.Int("departments_reset", count))
}

// Runs returns how many resets have been attempted
func (w *BonusResetWorker) Runs() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.runs
}

// ResetCount returns how many departments were reset in total
func (w *BonusResetWorker) ResetCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.resetCount
}

// LastError returns the error of the most recent run, if any
func (w *BonusResetWorker) LastError() error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastError
}
