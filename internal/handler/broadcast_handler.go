package handler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/kursadbilgin/broadcast-engine/internal/domain"
	"github.com/kursadbilgin/broadcast-engine/internal/observability"
	"github.com/kursadbilgin/broadcast-engine/internal/service"
)

type BroadcastService interface {
	Submit(ctx context.Context, req *domain.BatchRequest) (*service.SubmitResult, error)
	GetStatus(ctx context.Context, batchID string) (domain.BatchStatus, error)
	Cancel(ctx context.Context, batchID string) error
	GetReport(ctx context.Context, batchID string) (*domain.BroadcastReport, error)
}

type BroadcastHandler struct {
	service BroadcastService
}

func NewBroadcastHandler(service BroadcastService) (*BroadcastHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("broadcast service is required")
	}
	return &BroadcastHandler{service: service}, nil
}

func RegisterBroadcastRoutes(router fiber.Router, service BroadcastService) error {
	h, err := NewBroadcastHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/broadcasts", h.CreateBroadcast)
	v1.Get("/broadcasts/:batchId/status", h.GetStatus)
	v1.Post("/broadcasts/:batchId/cancel", h.CancelBroadcast)
	v1.Get("/broadcasts/:batchId", h.GetReport)

	return nil
}

type recipientRequest struct {
	Address     string `json:"address"`
	DisplayName string `json:"displayName"`
}

type createBroadcastRequest struct {
	BatchID     string             `json:"batchId"`
	Recipients  []recipientRequest `json:"recipients"`
	MessageText string             `json:"messageText"`
	MediaURL    *string            `json:"mediaUrl"`
	MediaType   *string            `json:"mediaType"`
}

type createBroadcastResponse struct {
	BatchID string `json:"batchId"`
	Status  string `json:"status"`
	Total   int    `json:"total"`
}

type batchStatusResponse struct {
	BatchID           string                    `json:"batchId"`
	Status            string                    `json:"status"`
	Total             int                       `json:"total"`
	Sent              int                       `json:"sent"`
	Failed            int                       `json:"failed"`
	Progress          int                       `json:"progress"`
	StartTime         time.Time                 `json:"startTime"`
	FailedRecipients  *[]domain.FailedRecipient `json:"failedRecipients,omitempty"`
	DurationSeconds   *int64                    `json:"durationSeconds,omitempty"`
	MessagesPerSecond *float64                  `json:"messagesPerSecond,omitempty"`
}

type broadcastReportResponse struct {
	BatchID           string                   `json:"batchId"`
	CorrelationID     string                   `json:"correlationId,omitempty"`
	Status            string                   `json:"status"`
	Total             int                      `json:"total"`
	Sent              int                      `json:"sent"`
	Failed            int                      `json:"failed"`
	MessageText       string                   `json:"messageText,omitempty"`
	MediaURL          *string                  `json:"mediaUrl,omitempty"`
	MediaType         *string                  `json:"mediaType,omitempty"`
	StartedAt         *time.Time               `json:"startedAt,omitempty"`
	CompletedAt       *time.Time               `json:"completedAt,omitempty"`
	DurationSeconds   *int64                   `json:"durationSeconds,omitempty"`
	MessagesPerSecond *float64                 `json:"messagesPerSecond,omitempty"`
	FailedRecipients  []domain.FailedRecipient `json:"failedRecipients"`
	CreatedAt         time.Time                `json:"createdAt"`
}

func (h *BroadcastHandler) CreateBroadcast(c *fiber.Ctx) error {
	var req createBroadcastRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	batch, err := requestToBatchRequest(req)
	if err != nil {
		return toHTTPError(err)
	}

	result, err := h.service.Submit(c.UserContext(), &batch)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusAccepted).JSON(createBroadcastResponse{
		BatchID: result.BatchID,
		Status:  result.Status.String(),
		Total:   result.Total,
	})
}

func (h *BroadcastHandler) GetStatus(c *fiber.Ctx) error {
	batchID := strings.TrimSpace(c.Params("batchId"))
	status, err := h.service.GetStatus(c.UserContext(), batchID)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toBatchStatusResponse(batchID, status))
}

// CancelBroadcast only flags the batch for pollers. A running dispatch is not
// interrupted.
func (h *BroadcastHandler) CancelBroadcast(c *fiber.Ctx) error {
	batchID := strings.TrimSpace(c.Params("batchId"))
	if err := h.service.Cancel(c.UserContext(), batchID); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"batchId":  batchID,
		"status":   domain.StatusCancelled.String(),
		"advisory": true,
	})
}

func (h *BroadcastHandler) GetReport(c *fiber.Ctx) error {
	batchID := strings.TrimSpace(c.Params("batchId"))
	report, err := h.service.GetReport(c.UserContext(), batchID)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toBroadcastReportResponse(report))
}

// CorrelationMiddleware propagates X-Request-ID into the request context and
// echoes it back, generating one when the caller sent none.
func CorrelationMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		correlationID := strings.TrimSpace(c.Get(fiber.HeaderXRequestID))
		if correlationID == "" {
			correlationID = uuid.NewString()
		}

		c.SetUserContext(observability.WithCorrelationID(c.UserContext(), correlationID))
		c.Set(fiber.HeaderXRequestID, correlationID)
		return c.Next()
	}
}

func requestToBatchRequest(req createBroadcastRequest) (domain.BatchRequest, error) {
	batch := domain.BatchRequest{
		BatchID:     strings.TrimSpace(req.BatchID),
		Recipients:  make([]domain.Recipient, 0, len(req.Recipients)),
		MessageText: req.MessageText,
		MediaURL:    req.MediaURL,
	}

	for _, r := range req.Recipients {
		batch.Recipients = append(batch.Recipients, domain.Recipient{
			Address:     strings.TrimSpace(r.Address),
			DisplayName: strings.TrimSpace(r.DisplayName),
		})
	}

	if req.MediaType != nil && strings.TrimSpace(*req.MediaType) != "" {
		mediaType, err := domain.ParseMediaTypeFromString(*req.MediaType)
		if err != nil {
			return domain.BatchRequest{}, err
		}
		batch.MediaType = &mediaType
	}

	return batch, nil
}

func toBatchStatusResponse(batchID string, s domain.BatchStatus) batchStatusResponse {
	resp := batchStatusResponse{
		BatchID:           batchID,
		Status:            s.Status.String(),
		Total:             s.Total,
		Sent:              s.Sent,
		Failed:            s.Failed,
		StartTime:         s.StartTime,
		MessagesPerSecond: s.MessagesPerSecond,
	}
	if s.Total > 0 {
		resp.Progress = int(math.Round(100 * float64(s.Attempted()) / float64(s.Total)))
	}
	// A completed batch always reports its failures, even when there are none.
	if s.Status == domain.StatusCompleted {
		duration := s.DurationSeconds
		resp.DurationSeconds = &duration

		failed := s.FailedRecipients
		if failed == nil {
			failed = []domain.FailedRecipient{}
		}
		resp.FailedRecipients = &failed
	}
	return resp
}

func toBroadcastReportResponse(r *domain.BroadcastReport) broadcastReportResponse {
	if r == nil {
		return broadcastReportResponse{}
	}

	resp := broadcastReportResponse{
		BatchID:           r.ID,
		CorrelationID:     r.CorrelationID,
		Status:            r.Status.String(),
		Total:             r.Total,
		Sent:              r.Sent,
		Failed:            r.Failed,
		MessageText:       r.MessageText,
		MediaURL:          r.MediaURL,
		StartedAt:         r.StartedAt,
		CompletedAt:       r.CompletedAt,
		DurationSeconds:   r.DurationSeconds,
		MessagesPerSecond: r.MessagesPerSecond,
		FailedRecipients:  r.FailedRecipients,
		CreatedAt:         r.CreatedAt,
	}
	if resp.FailedRecipients == nil {
		resp.FailedRecipients = []domain.FailedRecipient{}
	}
	if r.MediaType != nil {
		mediaType := r.MediaType.String()
		resp.MediaType = &mediaType
	}
	return resp
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}
