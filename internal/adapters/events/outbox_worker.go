package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/core-platform/two-factor-auth-service/internal/ports"
)

// OutboxWorker drains the auth outbox: claim a batch, publish each row, then mark it
// published, failed (retried on a later claim) or dead-lettered.
type OutboxWorker struct {
	logger     *slog.Logger
	outbox     ports.OutboxRepository
	publisher  ports.EventPublisher
	interval   time.Duration
	batchSize  int
	claimTTL   time.Duration
	maxRetries int
	nowFn      func() time.Time
}

type OutboxWorkerConfig struct {
	Interval   time.Duration
	BatchSize  int
	ClaimTTL   time.Duration
	MaxRetries int
}

func NewOutboxWorker(logger *slog.Logger, outbox ports.OutboxRepository, publisher ports.EventPublisher, cfg OutboxWorkerConfig) *OutboxWorker {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.ClaimTTL <= 0 {
		cfg.ClaimTTL = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	return &OutboxWorker{
		logger:     logger,
		outbox:     outbox,
		publisher:  publisher,
		interval:   cfg.Interval,
		batchSize:  cfg.BatchSize,
		claimTTL:   cfg.ClaimTTL,
		maxRetries: cfg.MaxRetries,
		nowFn:      func() time.Time { return time.Now().UTC() },
	}
}

// Run polls until ctx is cancelled. A failed iteration is logged and retried on the next tick.
func (w *OutboxWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if _, err := w.ProcessOnce(ctx); err != nil {
			w.logger.ErrorContext(ctx, "outbox iteration failed",
				"module", "events.outbox_worker",
				"layer", "adapter",
				"operation", "outbox_process_once",
				"outcome", "failure",
				"error", err,
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// BatchResult counts what one ProcessOnce call did with its claimed rows.
type BatchResult struct {
	Claimed      int
	Published    int
	Failed       int
	DeadLettered int
}

func (w *OutboxWorker) ProcessOnce(ctx context.Context) (BatchResult, error) {
	claimToken := uuid.NewString()
	records, err := w.outbox.ClaimUnpublished(ctx, w.batchSize, claimToken, w.nowFn().Add(w.claimTTL))
	if err != nil {
		return BatchResult{}, err
	}

	result := BatchResult{Claimed: len(records)}
	for _, rec := range records {
		now := w.nowFn()
		if rec.RetryCount >= w.maxRetries {
			result.DeadLettered++
			w.settle(ctx, rec, "dead_letter", w.outbox.MarkDeadLettered(ctx, rec.OutboxID, claimToken, "retry threshold reached before publish", now))
			continue
		}

		if err := w.publisher.Publish(ctx, rec.EventType, rec.PartitionKey, rec.Payload); err != nil {
			result.Failed++
			attempts := rec.RetryCount + 1
			if attempts >= w.maxRetries {
				result.DeadLettered++
				w.logPublishFailure(ctx, slog.LevelError, "outbox message moved to dlq", rec, attempts, err)
				w.settle(ctx, rec, "dead_letter", w.outbox.MarkDeadLettered(ctx, rec.OutboxID, claimToken, err.Error(), now))
				continue
			}
			w.logPublishFailure(ctx, slog.LevelWarn, "outbox publish failed; retry scheduled", rec, attempts, err)
			w.settle(ctx, rec, "mark_failed", w.outbox.MarkFailed(ctx, rec.OutboxID, claimToken, err.Error(), now))
			continue
		}
		result.Published++
		w.settle(ctx, rec, "mark_published", w.outbox.MarkPublished(ctx, rec.OutboxID, claimToken, now))
	}

	if len(records) > 0 {
		w.logger.InfoContext(ctx, "outbox batch processed",
			"module", "events.outbox_worker",
			"layer", "adapter",
			"operation", "outbox_process_once",
			"outcome", "success",
			"batch_size", result.Claimed,
			"published_count", result.Published,
			"failed_count", result.Failed,
			"dead_lettered_count", result.DeadLettered,
		)
	}
	return result, nil
}

func (w *OutboxWorker) logPublishFailure(ctx context.Context, level slog.Level, msg string, rec ports.OutboxRecord, attempts int, err error) {
	w.logger.Log(ctx, level, msg,
		"module", "events.outbox_worker",
		"layer", "adapter",
		"operation", "publish_event",
		"outcome", "failure",
		"outbox_id", rec.OutboxID,
		"event_type", rec.EventType,
		"payload_bytes", len(rec.Payload),
		"retry_count", attempts,
		"error", err,
	)
}

// settle logs a failed status update; the claim lapses and the row is picked up again.
func (w *OutboxWorker) settle(ctx context.Context, rec ports.OutboxRecord, operation string, err error) {
	if err == nil {
		return
	}
	w.logger.WarnContext(ctx, "outbox status update failed",
		"module", "events.outbox_worker",
		"layer", "adapter",
		"operation", operation,
		"outcome", "failure",
		"outbox_id", rec.OutboxID,
		"error", err,
	)
}
