package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/broadcast-engine/internal/broadcast"
	"github.com/kursadbilgin/broadcast-engine/internal/domain"
	"github.com/kursadbilgin/broadcast-engine/internal/observability"
	"github.com/kursadbilgin/broadcast-engine/internal/provider"
	"github.com/kursadbilgin/broadcast-engine/internal/queue"
	"github.com/kursadbilgin/broadcast-engine/internal/ratelimit"
	"github.com/kursadbilgin/broadcast-engine/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const minWorkerConcurrency = 1

// WorkerService consumes queued broadcasts and runs each one through the
// dispatch engine. Every consumer handles one broadcast at a time.
type WorkerService struct {
	engine      *broadcast.Engine
	broadcasts  repository.BroadcastRepository
	consumer    queue.Consumer
	provider    provider.Provider
	rateLimiter ratelimit.RateLimiter
	logger      *zap.Logger
	metrics     *observability.Metrics
	concurrency int
	now         func() time.Time
}

func NewWorkerService(
	engine *broadcast.Engine,
	broadcasts repository.BroadcastRepository,
	consumer queue.Consumer,
	provider provider.Provider,
	rateLimiter ratelimit.RateLimiter,
	concurrency int,
	logger *zap.Logger,
) (*WorkerService, error) {
	if engine == nil {
		return nil, fmt.Errorf("dispatch engine is required")
	}
	if broadcasts == nil {
		return nil, fmt.Errorf("broadcast repository is required")
	}
	if consumer == nil {
		return nil, fmt.Errorf("consumer is required")
	}
	if provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if rateLimiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}
	if concurrency < minWorkerConcurrency {
		concurrency = minWorkerConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &WorkerService{
		engine:      engine,
		broadcasts:  broadcasts,
		consumer:    consumer,
		provider:    provider,
		rateLimiter: rateLimiter,
		logger:      logger,
		concurrency: concurrency,
		now:         time.Now,
	}, nil
}

func (s *WorkerService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Start consumes the broadcast queue until context cancellation.
func (s *WorkerService) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	queueNames := queue.WorkQueueNames()
	if len(queueNames) == 0 {
		return fmt.Errorf("no work queues configured")
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < s.concurrency; i++ {
		queueName := queueNames[i%len(queueNames)]
		workerID := i + 1

		g.Go(func() error {
			s.logger.Info("worker started",
				zap.Int("workerId", workerID),
				zap.String("queue", queueName),
			)

			err := s.consumer.Consume(groupCtx, queueName, s.processMessage)
			if err != nil {
				s.logger.Error("worker stopped with error",
					zap.Int("workerId", workerID),
					zap.String("queue", queueName),
					zap.Error(err),
				)
				return err
			}

			s.logger.Info("worker stopped",
				zap.Int("workerId", workerID),
				zap.String("queue", queueName),
			)
			return nil
		})
	}

	return g.Wait()
}

// processMessage returns an error only before the first send, so the message
// is dead-lettered instead of being dispatched twice.
func (s *WorkerService) processMessage(ctx context.Context, msg queue.BroadcastMessage) error {
	if msg.CorrelationID != "" {
		ctx = observability.WithCorrelationID(ctx, msg.CorrelationID)
	}
	logger := observability.BatchLogger(s.logger, ctx, msg.BatchID)

	report, err := s.broadcasts.GetByID(ctx, msg.BatchID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		logger.Warn("broadcast history row missing, dispatching without history")
	case err != nil:
		return fmt.Errorf("failed to load broadcast: %w", err)
	case report.StartedAt != nil || report.Status == domain.StatusCompleted:
		logger.Warn("broadcast already started, skipping redelivery",
			zap.String("status", report.Status.String()),
		)
		return nil
	}

	s.metrics.IncBroadcastInFlight()
	defer s.metrics.DecBroadcastInFlight()

	// History writes must land even when shutdown cancels the dispatch.
	writeCtx := context.WithoutCancel(ctx)
	startedAt := s.now()
	if err := s.broadcasts.UpdateProgress(writeCtx, msg.BatchID, 0, 0, startedAt); err != nil && !errors.Is(err, domain.ErrNotFound) {
		logger.Warn("failed to record broadcast start", zap.Error(err))
	}

	onProgress := func(p domain.Progress) {
		if err := s.broadcasts.UpdateProgress(writeCtx, p.BatchID, p.Sent, p.Failed, startedAt); err != nil && !errors.Is(err, domain.ErrNotFound) {
			logger.Warn("failed to persist broadcast progress",
				zap.Int("progress", p.ProgressPercent),
				zap.Error(err),
			)
		}
	}

	onComplete := func(result domain.BatchResult) {
		s.metrics.ObserveBroadcastCompleted(result.DurationSeconds)
		if err := s.broadcasts.Complete(writeCtx, result, startedAt, s.now()); err != nil && !errors.Is(err, domain.ErrNotFound) {
			logger.Error("failed to persist broadcast report", zap.Error(err))
		}
	}

	s.engine.Dispatch(ctx, msg.Request(), s.deliver, onProgress, onComplete)
	return nil
}

// deliver is the engine's delivery capability: throttle, then one gateway call.
func (s *WorkerService) deliver(ctx context.Context, delivery domain.Delivery) error {
	channel := ratelimit.ChannelWhatsApp

	if err := s.rateLimiter.Wait(ctx, channel); err != nil {
		s.metrics.IncRecipientFailed(channel, "rate_limited")
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}

	sendStart := s.now()
	resp, err := s.provider.Send(ctx, delivery)
	s.metrics.ObserveRecipientSendDuration(channel, s.now().Sub(sendStart))

	if err != nil {
		s.metrics.IncRecipientFailed(channel, provider.FailureReason(err))
		return err
	}

	s.metrics.IncRecipientSent(channel)
	if resp != nil && strings.TrimSpace(resp.MessageID) != "" {
		observability.WithContextLogger(s.logger, ctx).Debug("gateway accepted message",
			zap.String("recipient", delivery.Address),
			zap.String("messageId", resp.MessageID),
		)
	}
	return nil
}
