package worker

import (
	"context"
	"sync"
	"time"

	"github.com/ayo6706/shop-treasury/internal/observability"
	"go.uber.org/zap"
)

const workerName = "reconciliation"

// Reconciler is the check the worker runs on every tick.
type Reconciler interface {
	Run(ctx context.Context) error
}

// ReconciliationWorker audits the ledger once at start and then on every
// tick. Each run is bounded by its own timeout.
type ReconciliationWorker struct {
	svc        Reconciler
	interval   time.Duration
	runTimeout time.Duration
	logger     *zap.Logger
	stopCh     chan struct{}
	stopOnce   sync.Once
}

// NewReconciliationWorker constructs a worker with a default hourly interval.
func NewReconciliationWorker(svc Reconciler) *ReconciliationWorker {
	return &ReconciliationWorker{
		svc:        svc,
		interval:   time.Hour,
		runTimeout: time.Minute,
		logger:     zap.L(),
		stopCh:     make(chan struct{}),
	}
}

// WithInterval updates the run interval.
func (w *ReconciliationWorker) WithInterval(interval time.Duration) *ReconciliationWorker {
	if interval > 0 {
		w.interval = interval
	}
	return w
}

// WithRunTimeout bounds a single reconciliation run.
func (w *ReconciliationWorker) WithRunTimeout(timeout time.Duration) *ReconciliationWorker {
	if timeout > 0 {
		w.runTimeout = timeout
	}
	return w
}

// Start blocks until ctx is done or Stop is called.
func (w *ReconciliationWorker) Start(ctx context.Context) {
	w.logger.Info("reconciliation worker starting", zap.Duration("interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("reconciliation worker context canceled")
			return
		case <-w.stopCh:
			w.logger.Info("reconciliation worker stop signal received")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// Stop ends the loop. It is safe to call more than once.
func (w *ReconciliationWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// Run starts the worker in a goroutine and returns a stop function. The stop
// function blocks until an in-flight run has returned.
func (w *ReconciliationWorker) Run(ctx context.Context) func() {
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Start(ctx)
	}()
	return func() {
		w.Stop()
		<-done
	}
}

func (w *ReconciliationWorker) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, w.runTimeout)
	defer cancel()

	start := time.Now()
	if err := w.svc.Run(runCtx); err != nil {
		observability.IncrementWorkerRun(workerName, "failed")
		w.logger.Error("reconciliation run failed", zap.Duration("duration", time.Since(start)), zap.Error(err))
		return
	}
	observability.IncrementWorkerRun(workerName, "success")
	w.logger.Debug("reconciliation run finished", zap.Duration("duration", time.Since(start)))
}
