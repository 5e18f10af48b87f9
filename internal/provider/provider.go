package provider

import (
	"context"

	"github.com/kursadbilgin/broadcast-engine/internal/domain"
)

// Provider is the outbound per-recipient delivery port.
type Provider interface {
	Send(ctx context.Context, delivery domain.Delivery) (*ProviderResponse, error)
}

// ProviderResponse stores gateway call metadata for logging.
type ProviderResponse struct {
	StatusCode int
	Body       string
	MessageID  string
}
