package worker

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/civicstack/form-engine/internal/config"
	"github.com/civicstack/form-engine/internal/observability"
	"github.com/civicstack/form-engine/internal/service"
)

const (
	scanLockKey      = "form-engine:escalation:lock"
	scanWatermarkKey = "form-engine:escalation:watermark"
)

// EscalationWorker runs the overdue scan on a fixed interval, decoupled
// from request handling. A redis lease keeps concurrent instances from
// scanning simultaneously; the watermark records when the last scan
// finished so a crashed run's progress is visible. Neither is required for
// correctness (escalation itself is idempotent), they only bound duplicate
// work.
type EscalationWorker struct {
	escalations *service.EscalationService
	redis       *redis.Client
	logger      *zap.Logger
	metrics     *observability.Metrics
	cfg         config.EscalationConfig

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewEscalationWorker constructs the worker.
func NewEscalationWorker(escalations *service.EscalationService, redisClient *redis.Client, logger *zap.Logger, metrics *observability.Metrics, cfg config.EscalationConfig) *EscalationWorker {
	return &EscalationWorker{
		escalations: escalations,
		redis:       redisClient,
		logger:      logger,
		metrics:     metrics,
		cfg:         cfg,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// Start launches the scan loop in a goroutine.
func (w *EscalationWorker) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop signals the loop to exit and waits for the in-flight scan to finish.
func (w *EscalationWorker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	<-w.doneCh
}

func (w *EscalationWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.cfg.Interval())
	defer ticker.Stop()

	w.logger.Info("escalation worker started",
		zap.Duration("interval", w.cfg.Interval()),
		zap.Int("batch_size", w.cfg.BatchSize))

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.scan(ctx)
		}
	}
}

func (w *EscalationWorker) scan(ctx context.Context) {
	if !w.acquireLock(ctx) {
		w.logger.Debug("escalation scan skipped, another instance holds the lock")
		return
	}
	defer w.releaseLock(ctx)

	report, err := w.escalations.RunOnce(ctx)
	if err != nil {
		// failures are retried on the next tick
		w.logger.Error("escalation scan error", zap.Error(err))
		return
	}
	w.metrics.RecordEscalationRun(report.Escalated)
	w.setWatermark(ctx)
}

func (w *EscalationWorker) acquireLock(ctx context.Context) bool {
	if w.redis == nil {
		return true
	}
	acquired, err := w.redis.SetNX(ctx, scanLockKey, time.Now().UTC().Format(time.RFC3339), w.cfg.LockTTL()).Result()
	if err != nil {
		w.logger.Warn("escalation lock unavailable, proceeding unlocked", zap.Error(err))
		return true
	}
	return acquired
}

func (w *EscalationWorker) releaseLock(ctx context.Context) {
	if w.redis == nil {
		return
	}
	if err := w.redis.Del(ctx, scanLockKey).Err(); err != nil {
		w.logger.Warn("failed to release escalation lock", zap.Error(err))
	}
}

func (w *EscalationWorker) setWatermark(ctx context.Context) {
	if w.redis == nil {
		return
	}
	if err := w.redis.Set(ctx, scanWatermarkKey, time.Now().UTC().Format(time.RFC3339), 0).Err(); err != nil {
		w.logger.Warn("failed to persist scan watermark", zap.Error(err))
	}
}

// Watermark returns the completion time of the last successful scan.
func (w *EscalationWorker) Watermark(ctx context.Context) (time.Time, bool) {
	if w.redis == nil {
		return time.Time{}, false
	}
	raw, err := w.redis.Get(ctx, scanWatermarkKey).Result()
	if err != nil {
		return time.Time{}, false
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return at, true
}
