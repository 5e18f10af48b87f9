package broadcast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/kursadbilgin/broadcast-engine/internal/domain"
	"github.com/kursadbilgin/broadcast-engine/internal/observability"
	"go.uber.org/zap"
)

var errDeliveryNotConfigured = errors.New("delivery capability is not configured")

// DeliveryFunc places one message for one recipient.
type DeliveryFunc func(ctx context.Context, delivery domain.Delivery) error

// ProgressFunc is invoked synchronously after every attempted recipient.
type ProgressFunc func(progress domain.Progress)

// CompletionFunc is invoked exactly once per batch with the final report.
type CompletionFunc func(result domain.BatchResult)

// Engine sends one message to an ordered recipient list, strictly one
// recipient at a time. Recipients are grouped, every send is paced, and a
// failing recipient is recorded without aborting the batch.
type Engine struct {
	registry  StatusRegistry
	pacer     *Pacer
	groupSize int
	retention time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

func NewEngine(
	registry StatusRegistry,
	pacer *Pacer,
	groupSize int,
	retention time.Duration,
	logger *zap.Logger,
) (*Engine, error) {
	if registry == nil {
		return nil, fmt.Errorf("status registry is required")
	}
	if pacer == nil {
		pacer = DefaultPacer()
	}
	if groupSize < 1 {
		groupSize = DefaultGroupSize
	}
	if retention <= 0 {
		retention = DefaultStatusRetention
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		registry:  registry,
		pacer:     pacer,
		groupSize: groupSize,
		retention: retention,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Status is the read-only status lookup for pollers. It reports false both
// for unknown batches and for batches evicted after the retention window.
func (e *Engine) Status(ctx context.Context, batchID string) (domain.BatchStatus, bool, error) {
	return e.registry.Get(ctx, batchID)
}

// MarkCancelled flags a known batch as cancelled for pollers. The running
// dispatch does not read the flag.
func (e *Engine) MarkCancelled(ctx context.Context, batchID string) (bool, error) {
	return e.registry.MarkCancelled(ctx, batchID)
}

// Dispatch runs the whole batch and blocks until every recipient has been
// attempted. It never fails at the batch level: the returned result always has
// Success set and per-recipient errors are listed in FailedRecipients.
func (e *Engine) Dispatch(
	ctx context.Context,
	req domain.BatchRequest,
	deliver DeliveryFunc,
	onProgress ProgressFunc,
	onComplete CompletionFunc,
) domain.BatchResult {
	if ctx == nil {
		ctx = context.Background()
	}
	// Registry writes must land even when the dispatch context is cancelled.
	writeCtx := context.WithoutCancel(ctx)

	batchID := strings.TrimSpace(req.BatchID)
	logger := observability.BatchLogger(e.logger, ctx, batchID)

	total := len(req.Recipients)
	sent, failed := 0, 0
	failedRecipients := make([]domain.FailedRecipient, 0)
	startTime := e.now()

	e.putStatus(writeCtx, logger, batchID, domain.BatchStatus{
		Status:    domain.StatusProcessing,
		Total:     total,
		StartTime: startTime,
	})

	groups := Partition(req.Recipients, e.groupSize)
	logger.Info("broadcast dispatch started",
		zap.Int("total", total),
		zap.Int("groups", len(groups)),
	)

	attempted := 0
	for groupIndex, group := range groups {
		for _, recipient := range group {
			err := e.attempt(ctx, deliver, req.DeliveryFor(recipient))
			attempted++

			if err == nil {
				sent++
			} else {
				failed++
				failedRecipients = append(failedRecipients, domain.FailedRecipient{
					Address:     recipient.Address,
					DisplayName: recipient.DisplayName,
					Error:       err.Error(),
				})
				logger.Warn("broadcast delivery failed",
					zap.String("recipient", recipient.Address),
					zap.Int("group", groupIndex+1),
					zap.Error(err),
				)
			}

			if onProgress != nil {
				onProgress(domain.Progress{
					BatchID:           batchID,
					Sent:              sent,
					Failed:            failed,
					Total:             total,
					ProgressPercent:   progressPercent(attempted, total),
					CurrentGroupIndex: groupIndex + 1,
					TotalGroups:       len(groups),
				})
			}

			e.putStatus(writeCtx, logger, batchID, domain.BatchStatus{
				Status:    domain.StatusProcessing,
				Total:     total,
				Sent:      sent,
				Failed:    failed,
				StartTime: startTime,
			})

			if attempted < total {
				e.pause(ctx, logger, e.pacer.InterMessageDelay)
			}
		}

		if groupIndex < len(groups)-1 {
			e.pause(ctx, logger, e.pacer.InterBatchDelay)
		}
	}

	durationSeconds := int64(math.Round(e.now().Sub(startTime).Seconds()))
	result := domain.BatchResult{
		BatchID:           batchID,
		Success:           true,
		Total:             total,
		Sent:              sent,
		Failed:            failed,
		FailedRecipients:  failedRecipients,
		DurationSeconds:   durationSeconds,
		MessagesPerSecond: messagesPerSecond(total, durationSeconds),
	}

	e.putStatus(writeCtx, logger, batchID, result.CompletedStatus(startTime))
	if err := e.registry.ScheduleEviction(writeCtx, batchID, e.retention); err != nil {
		logger.Error("failed to schedule broadcast status eviction", zap.Error(err))
	}

	logger.Info("broadcast dispatch completed",
		zap.Int("total", total),
		zap.Int("sent", sent),
		zap.Int("failed", failed),
		zap.Int64("durationSeconds", durationSeconds),
	)

	if onComplete != nil {
		onComplete(result)
	}
	return result
}

// attempt isolates a single delivery, including a panicking delivery function.
func (e *Engine) attempt(ctx context.Context, deliver DeliveryFunc, delivery domain.Delivery) (err error) {
	if deliver == nil {
		return errDeliveryNotConfigured
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("delivery panicked: %v", r)
		}
	}()

	return deliver(ctx, delivery)
}

func (e *Engine) pause(ctx context.Context, logger *zap.Logger, wait func(context.Context) error) {
	if err := wait(ctx); err != nil {
		logger.Debug("broadcast pacing interrupted", zap.Error(err))
	}
}

func (e *Engine) putStatus(ctx context.Context, logger *zap.Logger, batchID string, status domain.BatchStatus) {
	if err := e.registry.Put(ctx, batchID, status); err != nil {
		logger.Error("failed to write broadcast status",
			zap.String("status", status.Status.String()),
			zap.Error(err),
		)
	}
}

func progressPercent(attempted, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(attempted) / float64(total)))
}

// messagesPerSecond is nil for sub-second batches where no rate is meaningful.
func messagesPerSecond(total int, durationSeconds int64) *float64 {
	if durationSeconds <= 0 {
		return nil
	}
	rate := math.Round(float64(total)/float64(durationSeconds)*10) / 10
	return &rate
}
