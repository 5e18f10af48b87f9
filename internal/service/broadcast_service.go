package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/broadcast-engine/internal/broadcast"
	"github.com/kursadbilgin/broadcast-engine/internal/domain"
	"github.com/kursadbilgin/broadcast-engine/internal/observability"
	"github.com/kursadbilgin/broadcast-engine/internal/queue"
	"github.com/kursadbilgin/broadcast-engine/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// StatusTracker is the live status surface of the dispatch engine.
type StatusTracker interface {
	Status(ctx context.Context, batchID string) (domain.BatchStatus, bool, error)
	MarkCancelled(ctx context.Context, batchID string) (bool, error)
}

var _ StatusTracker = (*broadcast.Engine)(nil)

type BroadcastService struct {
	broadcasts repository.BroadcastRepository
	statuses   StatusTracker
	publisher  queue.Publisher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// SubmitResult is returned once a broadcast has been queued.
type SubmitResult struct {
	BatchID string
	Status  domain.Status
	Total   int
}

func NewBroadcastService(
	broadcasts repository.BroadcastRepository,
	statuses StatusTracker,
	publisher queue.Publisher,
	logger *zap.Logger,
) (*BroadcastService, error) {
	if broadcasts == nil {
		return nil, fmt.Errorf("broadcast repository is required")
	}
	if statuses == nil {
		return nil, fmt.Errorf("status tracker is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &BroadcastService{
		broadcasts: broadcasts,
		statuses:   statuses,
		publisher:  publisher,
		logger:     logger,
		now:        time.Now,
	}, nil
}

func (s *BroadcastService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Submit validates the request, records it and queues it for a worker.
func (s *BroadcastService) Submit(ctx context.Context, req *domain.BatchRequest) (*SubmitResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := prepareRequestForSubmit(req); err != nil {
		return nil, err
	}

	logger := observability.BatchLogger(s.logger, ctx, req.BatchID)

	current, ok, err := s.statuses.Status(ctx, req.BatchID)
	if err != nil {
		return nil, fmt.Errorf("failed to check broadcast status: %w", err)
	}
	if ok && current.Status == domain.StatusProcessing {
		return nil, fmt.Errorf("%w: broadcast %q is still processing", domain.ErrConflict, req.BatchID)
	}

	correlationID, ok := observability.CorrelationIDFromContext(ctx)
	if !ok {
		correlationID = uuid.NewString()
	}

	report := domain.NewBroadcastReport(*req, correlationID)
	if err := s.broadcasts.Create(ctx, report); err != nil {
		if isUniqueViolationError(err) {
			return nil, fmt.Errorf("%w: broadcast %q already exists", domain.ErrConflict, req.BatchID)
		}
		return nil, fmt.Errorf("failed to store broadcast: %w", err)
	}

	msg := queue.NewBroadcastMessage(*req, correlationID, s.now())
	if err := s.publisher.Publish(ctx, queue.BroadcastQueue, msg); err != nil {
		logger.Error("failed to publish broadcast", zap.Error(err))
		return nil, fmt.Errorf("failed to publish broadcast: %w", err)
	}

	s.metrics.IncBroadcastSubmitted()
	logger.Info("broadcast queued", zap.Int("total", len(req.Recipients)))

	return &SubmitResult{
		BatchID: req.BatchID,
		Status:  domain.StatusProcessing,
		Total:   len(req.Recipients),
	}, nil
}

// GetStatus returns the engine's live status entry. Unknown and evicted batches are
// both reported as ErrNotFound.
func (s *BroadcastService) GetStatus(ctx context.Context, batchID string) (domain.BatchStatus, error) {
	id := strings.TrimSpace(batchID)
	if id == "" {
		return domain.BatchStatus{}, fmt.Errorf("%w: batch id is required", domain.ErrValidation)
	}

	status, ok, err := s.statuses.Status(ctx, id)
	if err != nil {
		return domain.BatchStatus{}, fmt.Errorf("failed to load broadcast status: %w", err)
	}
	if !ok {
		return domain.BatchStatus{}, domain.ErrNotFound
	}
	return status, nil
}

// Cancel flags the batch as cancelled for pollers. A dispatch that is already
// running is not interrupted and overwrites the flag with its next update.
func (s *BroadcastService) Cancel(ctx context.Context, batchID string) error {
	id := strings.TrimSpace(batchID)
	if id == "" {
		return fmt.Errorf("%w: batch id is required", domain.ErrValidation)
	}

	marked, err := s.statuses.MarkCancelled(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to mark broadcast cancelled: %w", err)
	}
	if !marked {
		return domain.ErrNotFound
	}

	s.metrics.IncBroadcastCancelMarked()
	observability.WithContextLogger(s.logger, ctx).Info("broadcast marked cancelled",
		zap.String("batchId", id),
	)
	return nil
}

// GetReport returns the durable history of a batch with its failed recipients.
func (s *BroadcastService) GetReport(ctx context.Context, batchID string) (*domain.BroadcastReport, error) {
	id := strings.TrimSpace(batchID)
	if id == "" {
		return nil, fmt.Errorf("%w: batch id is required", domain.ErrValidation)
	}

	report, err := s.broadcasts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	failures, err := s.broadcasts.ListFailures(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load failed recipients: %w", err)
	}
	report.FailedRecipients = failures
	return report, nil
}

func prepareRequestForSubmit(req *domain.BatchRequest) error {
	if req == nil {
		return fmt.Errorf("%w: broadcast request is required", domain.ErrValidation)
	}

	req.BatchID = strings.TrimSpace(req.BatchID)
	if req.BatchID == "" {
		req.BatchID = uuid.NewString()
	}

	for i := range req.Recipients {
		req.Recipients[i].Address = strings.TrimSpace(req.Recipients[i].Address)
		req.Recipients[i].DisplayName = strings.TrimSpace(req.Recipients[i].DisplayName)
	}

	req.MediaURL = normalizeOptionalString(req.MediaURL)
	if req.MediaURL == nil {
		req.MediaType = nil
	}
	if req.MediaType != nil {
		mediaType, err := domain.ParseMediaTypeFromString(req.MediaType.String())
		if err != nil {
			return err
		}
		req.MediaType = &mediaType
	}

	return req.Validate()
}

func normalizeOptionalString(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func isUniqueViolationError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
