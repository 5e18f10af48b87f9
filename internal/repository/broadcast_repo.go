package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/broadcast-engine/internal/domain"
	"gorm.io/gorm"
)

// failureInsertBatchSize bounds one INSERT of failed recipients.
const failureInsertBatchSize = 500

type BroadcastRepository interface {
	Create(ctx context.Context, r *domain.BroadcastReport) error
	UpdateProgress(ctx context.Context, id string, sent int, failed int, startedAt time.Time) error
	Complete(ctx context.Context, result domain.BatchResult, startedAt time.Time, completedAt time.Time) error
	GetByID(ctx context.Context, id string) (*domain.BroadcastReport, error)
	ListFailures(ctx context.Context, id string) ([]domain.FailedRecipient, error)
}

type GormBroadcastRepo struct {
	db    *gorm.DB
	newID func() string
}

func NewGormBroadcastRepo(db *gorm.DB) *GormBroadcastRepo {
	return &GormBroadcastRepo{db: db, newID: uuid.NewString}
}

func (r *GormBroadcastRepo) Create(ctx context.Context, report *domain.BroadcastReport) error {
	model := broadcastModelFromDomain(report)
	if model == nil {
		return domain.ErrValidation
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	*report = *broadcastModelToDomain(model)
	return nil
}

func (r *GormBroadcastRepo) UpdateProgress(ctx context.Context, id string, sent int, failed int, startedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&BroadcastModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"sent":       sent,
			"failed":     failed,
			"started_at": startedAt.UTC(),
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Complete stores the final counters and the failed recipients in one transaction.
func (r *GormBroadcastRepo) Complete(
	ctx context.Context,
	result domain.BatchResult,
	startedAt time.Time,
	completedAt time.Time,
) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		duration := result.DurationSeconds
		updates := map[string]any{
			"status":              domain.StatusCompleted,
			"total":               result.Total,
			"sent":                result.Sent,
			"failed":              result.Failed,
			"started_at":          startedAt.UTC(),
			"completed_at":        completedAt.UTC(),
			"duration_seconds":    &duration,
			"messages_per_second": result.MessagesPerSecond,
			"updated_at":          time.Now().UTC(),
		}

		res := tx.Model(&BroadcastModel{}).Where("id = ?", result.BatchID).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}

		failures := failureModelsFromDomain(result.BatchID, result.FailedRecipients, r.newID)
		if len(failures) == 0 {
			return nil
		}
		return tx.CreateInBatches(failures, failureInsertBatchSize).Error
	})
}

func (r *GormBroadcastRepo) GetByID(ctx context.Context, id string) (*domain.BroadcastReport, error) {
	var model BroadcastModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return broadcastModelToDomain(&model), nil
}

func (r *GormBroadcastRepo) ListFailures(ctx context.Context, id string) ([]domain.FailedRecipient, error) {
	var models []BroadcastFailureModel
	err := r.db.WithContext(ctx).
		Where("broadcast_id = ?", id).
		Order("position ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	failures := make([]domain.FailedRecipient, 0, len(models))
	for _, m := range models {
		failures = append(failures, failureModelToDomain(m))
	}
	return failures, nil
}
