package repository

import (
	"time"

	"github.com/kursadbilgin/broadcast-engine/internal/domain"
)

// BroadcastModel is the persistence model for the broadcasts table.
type BroadcastModel struct {
	ID                string            `gorm:"type:varchar(64);primaryKey"`
	CorrelationID     string            `gorm:"type:varchar(64);not null;default:''"`
	Status            domain.Status     `gorm:"type:varchar(20);not null"`
	Total             int               `gorm:"not null"`
	Sent              int               `gorm:"not null;default:0"`
	Failed            int               `gorm:"not null;default:0"`
	MessageText       string            `gorm:"type:text;not null;default:''"`
	MediaURL          *string           `gorm:"type:text"`
	MediaType         *domain.MediaType `gorm:"type:varchar(16)"`
	StartedAt         *time.Time        `gorm:"type:timestamptz"`
	CompletedAt       *time.Time        `gorm:"type:timestamptz"`
	DurationSeconds   *int64
	MessagesPerSecond *float64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (BroadcastModel) TableName() string {
	return "broadcasts"
}

// BroadcastFailureModel is one failed recipient of a completed broadcast.
type BroadcastFailureModel struct {
	ID          string  `gorm:"type:uuid;primaryKey"`
	BroadcastID string  `gorm:"type:varchar(64);not null;index"`
	Position    int     `gorm:"not null"`
	Address     string  `gorm:"type:varchar(255);not null"`
	DisplayName *string `gorm:"type:varchar(255)"`
	Error       string  `gorm:"type:text;not null"`
	CreatedAt   time.Time
}

func (BroadcastFailureModel) TableName() string {
	return "broadcast_failures"
}

func broadcastModelFromDomain(r *domain.BroadcastReport) *BroadcastModel {
	if r == nil {
		return nil
	}

	return &BroadcastModel{
		ID:                r.ID,
		CorrelationID:     r.CorrelationID,
		Status:            r.Status,
		Total:             r.Total,
		Sent:              r.Sent,
		Failed:            r.Failed,
		MessageText:       r.MessageText,
		MediaURL:          r.MediaURL,
		MediaType:         r.MediaType,
		StartedAt:         r.StartedAt,
		CompletedAt:       r.CompletedAt,
		DurationSeconds:   r.DurationSeconds,
		MessagesPerSecond: r.MessagesPerSecond,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

func broadcastModelToDomain(m *BroadcastModel) *domain.BroadcastReport {
	if m == nil {
		return nil
	}

	return &domain.BroadcastReport{
		ID:                m.ID,
		CorrelationID:     m.CorrelationID,
		Status:            m.Status,
		Total:             m.Total,
		Sent:              m.Sent,
		Failed:            m.Failed,
		MessageText:       m.MessageText,
		MediaURL:          m.MediaURL,
		MediaType:         m.MediaType,
		StartedAt:         m.StartedAt,
		CompletedAt:       m.CompletedAt,
		DurationSeconds:   m.DurationSeconds,
		MessagesPerSecond: m.MessagesPerSecond,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func failureModelsFromDomain(broadcastID string, failures []domain.FailedRecipient, newID func() string) []BroadcastFailureModel {
	if len(failures) == 0 {
		return nil
	}

	models := make([]BroadcastFailureModel, 0, len(failures))
	for i, f := range failures {
		var displayName *string
		if f.DisplayName != "" {
			name := f.DisplayName
			displayName = &name
		}
		models = append(models, BroadcastFailureModel{
			ID:          newID(),
			BroadcastID: broadcastID,
			Position:    i,
			Address:     f.Address,
			DisplayName: displayName,
			Error:       f.Error,
		})
	}
	return models
}

func failureModelToDomain(m BroadcastFailureModel) domain.FailedRecipient {
	f := domain.FailedRecipient{
		Address: m.Address,
		Error:   m.Error,
	}
	if m.DisplayName != nil {
		f.DisplayName = *m.DisplayName
	}
	return f
}
