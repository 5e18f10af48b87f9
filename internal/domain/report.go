package domain

import "time"

// BroadcastReport is the durable history of one batch. Unlike BatchStatus it
// outlives the status retention window.
type BroadcastReport struct {
	ID                string
	CorrelationID     string
	Status            Status
	Total             int
	Sent              int
	Failed            int
	MessageText       string
	MediaURL          *string
	MediaType         *MediaType
	StartedAt         *time.Time
	CompletedAt       *time.Time
	DurationSeconds   *int64
	MessagesPerSecond *float64
	FailedRecipients  []FailedRecipient
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewBroadcastReport builds the initial history row for an accepted request.
func NewBroadcastReport(req BatchRequest, correlationID string) *BroadcastReport {
	return &BroadcastReport{
		ID:            req.BatchID,
		CorrelationID: correlationID,
		Status:        StatusProcessing,
		Total:         len(req.Recipients),
		MessageText:   req.MessageText,
		MediaURL:      req.MediaURL,
		MediaType:     req.MediaType,
	}
}
