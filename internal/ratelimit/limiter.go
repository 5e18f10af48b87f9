package ratelimit

import "context"

// ChannelWhatsApp is the limiter key shared by every gateway send.
const ChannelWhatsApp = "whatsapp"

// RateLimiter controls message throughput per channel.
type RateLimiter interface {
	Allow(ctx context.Context, channel string) (bool, error)
	Wait(ctx context.Context, channel string) error
}
