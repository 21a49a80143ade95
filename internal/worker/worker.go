// Package worker runs the periodic background cycle: tag backfill, merchant
// normalization, waste detection, insight refresh, and backup.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/hone/internal/backup"
	"github.com/jmylchreest/hone/internal/insight"
	"github.com/jmylchreest/hone/internal/tagassign"
	"github.com/jmylchreest/hone/internal/wastedetect"
)

// Config holds worker configuration.
type Config struct {
	CycleInterval       time.Duration // how often the full detection cycle runs; default 15m
	BackupInterval      time.Duration // how often a backup snapshot is taken; default 24h
	ShutdownGracePeriod time.Duration // max time to wait for an in-flight cycle during shutdown
	TagBackfillLimit    int           // 0 = no limit per cycle
}

// Worker runs the background cycle on a timer until stopped.
type Worker struct {
	assigner  *tagassign.Assigner
	detector  *wastedetect.Detector
	insights  *insight.Engine
	backupEng *backup.Engine

	cycleInterval       time.Duration
	backupInterval      time.Duration
	shutdownGracePeriod time.Duration
	tagBackfillLimit    int

	stop       chan struct{}
	wg         sync.WaitGroup
	running    bool
	runningMu  sync.Mutex
	lastBackup time.Time
	logger     *slog.Logger
}

// New creates a Worker. backupEng may be nil, in which case the backup step
// of each cycle is skipped.
func New(assigner *tagassign.Assigner, detector *wastedetect.Detector, insights *insight.Engine, backupEng *backup.Engine, cfg Config, logger *slog.Logger) *Worker {
	if cfg.CycleInterval == 0 {
		cfg.CycleInterval = 15 * time.Minute
	}
	if cfg.BackupInterval == 0 {
		cfg.BackupInterval = 24 * time.Hour
	}
	if cfg.ShutdownGracePeriod == 0 {
		cfg.ShutdownGracePeriod = 2 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		assigner:            assigner,
		detector:            detector,
		insights:            insights,
		backupEng:           backupEng,
		cycleInterval:       cfg.CycleInterval,
		backupInterval:      cfg.BackupInterval,
		shutdownGracePeriod: cfg.ShutdownGracePeriod,
		tagBackfillLimit:    cfg.TagBackfillLimit,
		stop:                make(chan struct{}),
		logger:              logger.With("component", "worker"),
	}
}

// Start begins running the periodic cycle in the background.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("starting", "cycle_interval", w.cycleInterval, "backup_interval", w.backupInterval)
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the worker to stop and waits up to the shutdown grace period
// for any in-flight cycle to finish.
func (w *Worker) Stop() {
	w.logger.Info("stopping, waiting for in-flight cycle", "grace_period", w.shutdownGracePeriod)
	close(w.stop)

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("stopped")
	case <-time.After(w.shutdownGracePeriod):
		w.logger.Warn("shutdown grace period exceeded, cycle may be interrupted")
	}
}

// Running reports whether a cycle is currently executing.
func (w *Worker) Running() bool {
	w.runningMu.Lock()
	defer w.runningMu.Unlock()
	return w.running
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	timer := time.NewTimer(0) // run once immediately on startup
	defer timer.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case <-timer.C:
			w.runCycle(ctx)
			timer.Reset(w.cycleInterval)
		}
	}
}

// runCycle executes one pass of: tag backfill, merchant normalization,
// waste detection, insight refresh, and (when due) a backup snapshot.
func (w *Worker) runCycle(ctx context.Context) {
	w.runningMu.Lock()
	w.running = true
	w.runningMu.Unlock()
	defer func() {
		w.runningMu.Lock()
		w.running = false
		w.runningMu.Unlock()
	}()

	start := time.Now()
	w.logger.Info("cycle starting")

	if w.assigner != nil {
		if b, err := w.assigner.BackfillTags(ctx, w.tagBackfillLimit); err != nil {
			w.logger.Error("tag backfill failed", "error", err)
		} else {
			w.logger.Info("tag backfill complete", "tagged", b.TransactionsTagged, "processed", b.TransactionsProcessed)
		}
		if nb, err := w.assigner.NormalizeMerchants(ctx, w.tagBackfillLimit); err != nil {
			w.logger.Error("merchant normalization failed", "error", err)
		} else {
			w.logger.Info("merchant normalization complete", "normalized", nb.Normalized)
		}
	}

	if w.detector != nil {
		if counts, err := w.detector.DetectAll(ctx); err != nil {
			w.logger.Error("waste detection failed", "error", err)
		} else {
			w.logger.Info("waste detection complete",
				"recurring_promoted", counts.RecurringPromoted,
				"zombies_flagged", counts.ZombiesFlagged,
				"duplicates", counts.Duplicates,
				"spending_anomalies", counts.SpendingAnomalies,
				"tip_discrepancies", counts.TipDiscrepancies,
			)
		}
	}

	if w.insights != nil {
		if err := w.insights.RefreshAll(ctx); err != nil {
			w.logger.Error("insight refresh failed", "error", err)
		}
	}

	if w.backupEng != nil && time.Since(w.lastBackup) >= w.backupInterval {
		if snap, err := w.backupEng.Create(ctx); err != nil {
			w.logger.Error("backup failed", "error", err)
		} else {
			w.logger.Info("backup complete", "path", snap.Path)
			w.lastBackup = time.Now()
		}
	}

	w.logger.Info("cycle complete", "duration", time.Since(start))
}
