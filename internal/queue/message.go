package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/broadcast-engine/internal/domain"
)

// BroadcastMessage is the broker payload for one accepted broadcast. It carries
// the whole request so a worker never needs the API's state.
type BroadcastMessage struct {
	BatchID       string             `json:"batchId"`
	CorrelationID string             `json:"correlationId,omitempty"`
	Recipients    []domain.Recipient `json:"recipients"`
	MessageText   string             `json:"messageText,omitempty"`
	MediaURL      *string            `json:"mediaUrl,omitempty"`
	MediaType     *domain.MediaType  `json:"mediaType,omitempty"`
	SubmittedAt   time.Time          `json:"submittedAt"`
}

func NewBroadcastMessage(req domain.BatchRequest, correlationID string, submittedAt time.Time) BroadcastMessage {
	return BroadcastMessage{
		BatchID:       req.BatchID,
		CorrelationID: correlationID,
		Recipients:    req.Recipients,
		MessageText:   req.MessageText,
		MediaURL:      req.MediaURL,
		MediaType:     req.MediaType,
		SubmittedAt:   submittedAt.UTC(),
	}
}

// Request rebuilds the batch request carried by the message.
func (m BroadcastMessage) Request() domain.BatchRequest {
	return domain.BatchRequest{
		BatchID:     m.BatchID,
		Recipients:  m.Recipients,
		MessageText: m.MessageText,
		MediaURL:    m.MediaURL,
		MediaType:   m.MediaType,
	}
}

func (m BroadcastMessage) Validate() error {
	if strings.TrimSpace(m.BatchID) == "" {
		return fmt.Errorf("batchId is required")
	}
	req := m.Request()
	if err := req.Validate(); err != nil {
		return err
	}
	return nil
}
