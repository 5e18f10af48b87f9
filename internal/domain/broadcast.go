package domain

import (
	"fmt"
	"strings"
)

// MediaType is the kind of attachment sent alongside the message text.
type MediaType string

const (
	MediaTypeImage    MediaType = "image"
	MediaTypeVideo    MediaType = "video"
	MediaTypeAudio    MediaType = "audio"
	MediaTypeDocument MediaType = "document"
)

func (m MediaType) String() string { return string(m) }

func (m MediaType) IsValid() bool {
	switch m {
	case MediaTypeImage, MediaTypeVideo, MediaTypeAudio, MediaTypeDocument:
		return true
	}
	return false
}

func ParseMediaTypeFromString(s string) (MediaType, error) {
	mt := MediaType(strings.ToLower(strings.TrimSpace(s)))
	if !mt.IsValid() {
		return "", fmt.Errorf("%w: invalid media type %q", ErrValidation, s)
	}
	return mt, nil
}

// Submission limits.
const (
	MaxRecipients     = 10000
	MaxMessageContent = 4096
)

// Recipient is a single destination within a batch.
type Recipient struct {
	Address     string `json:"address"`
	DisplayName string `json:"displayName,omitempty"`
}

// BatchRequest is one message addressed to many recipients. It is owned by a
// single dispatch and must not be mutated while that dispatch runs.
type BatchRequest struct {
	BatchID     string      `json:"batchId"`
	Recipients  []Recipient `json:"recipients"`
	MessageText string      `json:"messageText"`
	MediaURL    *string     `json:"mediaUrl,omitempty"`
	MediaType   *MediaType  `json:"mediaType,omitempty"`
}

// Validate checks a request at the submission boundary. The dispatch engine
// itself never validates and degrades an empty recipient list to an immediate
// completion.
func (r *BatchRequest) Validate() error {
	if strings.TrimSpace(r.BatchID) == "" {
		return fmt.Errorf("%w: batch id is required", ErrValidation)
	}
	if len(r.Recipients) > MaxRecipients {
		return fmt.Errorf("%w: batch exceeds %d recipients (got %d)", ErrValidation, MaxRecipients, len(r.Recipients))
	}

	hasMedia := r.MediaURL != nil && strings.TrimSpace(*r.MediaURL) != ""
	if strings.TrimSpace(r.MessageText) == "" && !hasMedia {
		return fmt.Errorf("%w: message text or media url is required", ErrValidation)
	}
	if contentLen := len([]rune(r.MessageText)); contentLen > MaxMessageContent {
		return fmt.Errorf("%w: message exceeds %d characters (got %d)", ErrValidation, MaxMessageContent, contentLen)
	}
	if hasMedia {
		if r.MediaType == nil {
			return fmt.Errorf("%w: media type is required with media url", ErrValidation)
		}
		if !r.MediaType.IsValid() {
			return fmt.Errorf("%w: invalid media type %q", ErrValidation, *r.MediaType)
		}
	}

	for i, recipient := range r.Recipients {
		if strings.TrimSpace(recipient.Address) == "" {
			return fmt.Errorf("%w: recipient %d has no address", ErrValidation, i)
		}
	}

	return nil
}

// DeliveryFor builds the single-recipient payload handed to the delivery capability.
func (r *BatchRequest) DeliveryFor(recipient Recipient) Delivery {
	d := Delivery{
		Address:     recipient.Address,
		DisplayName: recipient.DisplayName,
		MessageText: r.MessageText,
	}
	if r.MediaURL != nil {
		d.MediaURL = *r.MediaURL
	}
	if r.MediaType != nil {
		d.MediaType = *r.MediaType
	}
	return d
}

// Delivery is one message placed for one recipient.
type Delivery struct {
	Address     string
	DisplayName string
	MessageText string
	MediaURL    string
	MediaType   MediaType
}

// HasMedia reports whether the delivery carries an attachment.
func (d Delivery) HasMedia() bool {
	return strings.TrimSpace(d.MediaURL) != ""
}
