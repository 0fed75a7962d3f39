package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

const defaultRunTimeout = 30 * time.Minute

// Recomputer re-derives every grade rollup from question grades
type Recomputer interface {
	RecomputeAll(ctx context.Context) (int, error)
}

// Reconciler periodically rebuilds module and course rollups so drift from
// failed post-delete recomputes never outlives one schedule period.
type Reconciler struct {
	cron       *cron.Cron
	recomputer Recomputer
	logger     *slog.Logger
	timeout    time.Duration

	// running guards against overlapping runs when one outlasts the schedule
	running sync.Mutex
}

func NewReconciler(recomputer Recomputer, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		cron:       cron.New(),
		recomputer: recomputer,
		logger:     logger,
		timeout:    defaultRunTimeout,
	}
}

// Start schedules Run on spec (standard 5-field cron or a descriptor such as @daily)
func (r *Reconciler) Start(spec string) error {
	if _, err := r.cron.AddFunc(spec, r.Run); err != nil {
		return fmt.Errorf("invalid reconcile schedule %q: %w", spec, err)
	}
	r.cron.Start()
	r.logger.Info("Grade reconciler started", "schedule", spec)
	return nil
}

// Stop waits for an in-flight run to finish or ctx to expire
func (r *Reconciler) Stop(ctx context.Context) {
	done := r.cron.Stop()
	select {
	case <-done.Done():
		r.logger.Info("Grade reconciler stopped")
	case <-ctx.Done():
		r.logger.Warn("Grade reconciler stop timed out", "error", ctx.Err())
	}
}

// Run performs one reconciliation pass; overlapping calls are skipped
func (r *Reconciler) Run() {
	if !r.running.TryLock() {
		r.logger.Warn("Grade reconciliation already running, skipping")
		return
	}
	defer r.running.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	start := time.Now()
	visited, err := r.recomputer.RecomputeAll(ctx)
	if err != nil {
		r.logger.Error("Grade reconciliation failed", "error", err, "visited", visited, "duration", time.Since(start))
		return
	}
	r.logger.Info("Grade reconciliation completed", "visited", visited, "duration", time.Since(start))
}
