package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/kursadbilgin/broadcast-engine/internal/domain"
)

// Failure reasons reported on the recipients_failed_total metric.
const (
	ReasonTransient        = "transient_error"
	ReasonUnauthorized     = "unauthorized"
	ReasonInvalidRecipient = "invalid_recipient"
	ReasonCancelled        = "cancelled"
	ReasonPermanent        = "permanent_error"
)

// GatewayError is a failed call to the WhatsApp gateway. StatusCode is zero
// when no HTTP response was received.
type GatewayError struct {
	StatusCode int
	Message    string
	Transient  bool
	Cause      error
}

func (e *GatewayError) Error() string {
	if e == nil {
		return "<nil>"
	}

	var b strings.Builder
	b.WriteString("gateway error")
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, ": status=%d", e.StatusCode)
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		b.WriteString(": " + msg)
	}
	if e.Cause != nil {
		b.WriteString(": " + e.Cause.Error())
	}
	return b.String()
}

func (e *GatewayError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Unauthorized reports a rejected credential. Every later send of the batch
// fails the same way until the token is replaced.
func (e *GatewayError) Unauthorized() bool {
	return e != nil && (e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden)
}

// FailureReason labels a failed delivery for metrics. Nothing retries on it:
// a failed recipient is recorded once and the batch moves on.
func FailureReason(err error) string {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.Canceled) {
		return ReasonCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTransient
	}
	if errors.Is(err, domain.ErrValidation) {
		return ReasonInvalidRecipient
	}

	var gatewayErr *GatewayError
	if errors.As(err, &gatewayErr) {
		switch {
		case gatewayErr.Unauthorized():
			return ReasonUnauthorized
		case gatewayErr.Transient:
			return ReasonTransient
		default:
			return ReasonPermanent
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonTransient
	}

	return ReasonPermanent
}
