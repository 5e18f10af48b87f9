package domain

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle state of a broadcast batch.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

func (s Status) String() string { return string(s) }

func (s Status) IsValid() bool {
	switch s {
	case StatusProcessing, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

func ParseStatusFromString(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid status %q", ErrValidation, s)
	}
	return st, nil
}

// FailedRecipient is a recipient whose delivery attempt returned an error.
type FailedRecipient struct {
	Address     string `json:"address"`
	DisplayName string `json:"displayName,omitempty"`
	Error       string `json:"error"`
}

// BatchStatus is the live or final state of one batch as held by a status registry.
// FailedRecipients, DurationSeconds and MessagesPerSecond are only set once the
// batch is completed.
type BatchStatus struct {
	Status            Status            `json:"status"`
	Total             int               `json:"total"`
	Sent              int               `json:"sent"`
	Failed            int               `json:"failed"`
	StartTime         time.Time         `json:"startTime"`
	FailedRecipients  []FailedRecipient `json:"failedRecipients,omitempty"`
	DurationSeconds   int64             `json:"durationSeconds,omitempty"`
	MessagesPerSecond *float64          `json:"messagesPerSecond,omitempty"`
}

// Attempted returns the number of recipients already tried.
func (s BatchStatus) Attempted() int {
	return s.Sent + s.Failed
}

// Clone returns a deep copy so readers can never alias registry state.
func (s BatchStatus) Clone() BatchStatus {
	cp := s
	if s.FailedRecipients != nil {
		cp.FailedRecipients = append([]FailedRecipient(nil), s.FailedRecipients...)
	}
	if s.MessagesPerSecond != nil {
		rate := *s.MessagesPerSecond
		cp.MessagesPerSecond = &rate
	}
	return cp
}

// BatchResult is the final per-batch report. Success is always true: failures
// are recorded per recipient.
type BatchResult struct {
	BatchID           string            `json:"batchId"`
	Success           bool              `json:"success"`
	Total             int               `json:"total"`
	Sent              int               `json:"sent"`
	Failed            int               `json:"failed"`
	FailedRecipients  []FailedRecipient `json:"failedRecipients"`
	DurationSeconds   int64             `json:"durationSeconds"`
	MessagesPerSecond *float64          `json:"messagesPerSecond,omitempty"`
}

// CompletedStatus converts the report into the terminal registry entry.
func (r BatchResult) CompletedStatus(startTime time.Time) BatchStatus {
	return BatchStatus{
		Status:            StatusCompleted,
		Total:             r.Total,
		Sent:              r.Sent,
		Failed:            r.Failed,
		StartTime:         startTime,
		FailedRecipients:  append([]FailedRecipient{}, r.FailedRecipients...),
		DurationSeconds:   r.DurationSeconds,
		MessagesPerSecond: r.MessagesPerSecond,
	}
}

// Progress is emitted once per attempted recipient.
type Progress struct {
	BatchID           string `json:"batchId"`
	Sent              int    `json:"sent"`
	Failed            int    `json:"failed"`
	Total             int    `json:"total"`
	ProgressPercent   int    `json:"progress"`
	CurrentGroupIndex int    `json:"currentBatch"`
	TotalGroups       int    `json:"totalBatches"`
}
