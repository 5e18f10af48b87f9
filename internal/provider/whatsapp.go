package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/broadcast-engine/internal/domain"
)

const defaultGatewayTimeout = 10 * time.Second

type textMessageRequest struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

type mediaMessageRequest struct {
	To      string `json:"to"`
	Media   string `json:"media"`
	Caption string `json:"caption,omitempty"`
}

type gatewayResponse struct {
	ID        string `json:"id"`
	MessageID string `json:"messageId"`
}

// WhatsAppGatewayProvider sends messages through an HTTP WhatsApp gateway.
// Text goes to {base}/messages/text, media to {base}/messages/{mediaType}.
type WhatsAppGatewayProvider struct {
	client  *resty.Client
	baseURL string
}

func NewWhatsAppGatewayProvider(baseURL string, token string) (*WhatsAppGatewayProvider, error) {
	client := resty.New()
	client.SetTimeout(defaultGatewayTimeout)
	client.SetRetryCount(0)
	if token = strings.TrimSpace(token); token != "" {
		client.SetAuthToken(token)
	}

	return NewWhatsAppGatewayProviderWithClient(baseURL, client)
}

func NewWhatsAppGatewayProviderWithClient(baseURL string, client *resty.Client) (*WhatsAppGatewayProvider, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("gateway url is required")
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return nil, fmt.Errorf("invalid gateway url: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultGatewayTimeout)
	}
	// Retries would break one-send-at-a-time pacing.
	client.SetRetryCount(0)

	return &WhatsAppGatewayProvider{
		client:  client,
		baseURL: trimmed,
	}, nil
}

func (p *WhatsAppGatewayProvider) Send(ctx context.Context, delivery domain.Delivery) (*ProviderResponse, error) {
	if p == nil || p.client == nil {
		return nil, fmt.Errorf("provider is not initialized")
	}
	to := strings.TrimSpace(delivery.Address)
	if to == "" {
		return nil, fmt.Errorf("invalid delivery: %w: recipient address is required", domain.ErrValidation)
	}

	var (
		endpoint string
		body     any
	)
	if delivery.HasMedia() {
		endpoint = p.baseURL + "/messages/" + url.PathEscape(delivery.MediaType.String())
		body = mediaMessageRequest{
			To:      to,
			Media:   delivery.MediaURL,
			Caption: delivery.MessageText,
		}
	} else {
		endpoint = p.baseURL + "/messages/text"
		body = textMessageRequest{
			To:   to,
			Body: delivery.MessageText,
		}
	}

	var parsed gatewayResponse
	response, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&parsed).
		Post(endpoint)
	if err != nil {
		return nil, &GatewayError{
			Message:   "gateway request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	if response == nil {
		return nil, &GatewayError{
			Message:   "gateway returned empty response",
			Transient: true,
		}
	}

	statusCode := response.StatusCode()
	responseBody := strings.TrimSpace(response.String())

	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return &ProviderResponse{
			StatusCode: statusCode,
			Body:       responseBody,
			MessageID:  messageID(response, parsed),
		}, nil
	}

	return nil, &GatewayError{
		StatusCode: statusCode,
		Message:    providerErrorMessage(statusCode, responseBody),
		Transient:  isTransientHTTPStatus(statusCode),
	}
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || (statusCode >= http.StatusInternalServerError && statusCode <= 599)
}

func providerErrorMessage(statusCode int, body string) string {
	base := fmt.Sprintf("gateway returned status %d", statusCode)
	if body == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, body)
}

func messageID(response *resty.Response, parsed gatewayResponse) string {
	for _, candidate := range []string{parsed.MessageID, parsed.ID} {
		if value := strings.TrimSpace(candidate); value != "" {
			return value
		}
	}
	if response == nil {
		return ""
	}

	for _, key := range []string{"X-Request-ID", "X-Request-Id", "X-Correlation-ID", "X-Correlation-Id"} {
		if value := strings.TrimSpace(response.Header().Get(key)); value != "" {
			return value
		}
	}
	return ""
}
