package billing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Provider is the generic interface that any billing backend must implement.
type Provider interface {
	// Name returns the provider name (e.g., "lemonsqueezy")
	Name() string

	// WebhookHandler returns the HTTP handler that processes real-time events.
	// The implementation handles verification, parsing, and user record updates internally.
	WebhookHandler() http.Handler

	// SyncUser pulls the user's current subscription state from the provider
	// and merge-writes it into the user store.
	// This is used for "Restore Purchases" or reconciliation jobs.
	// Returns the resulting subscription plan and any error.
	SyncUser(ctx context.Context, email string) (string, error)
}

// WebhookProcessor is the transport-neutral core of a webhook endpoint.
// Framework adapters capture the raw body natively and hand it over here.
type WebhookProcessor interface {
	Process(ctx context.Context, req WebhookRequest) WebhookResponse

	// MaxBodyBytes is the largest body the processor accepts.
	MaxBodyBytes() int64

	// SignatureHeader names the request header carrying the signature.
	SignatureHeader() string
}

// WebhookRequest is an inbound webhook delivery with its body exactly as transmitted.
type WebhookRequest struct {
	Method    string
	Signature string
	Body      []byte

	// BodyErr is the error, if any, from reading Body. Use BodyError to
	// classify read errors.
	BodyErr error
}

// WebhookResponse is the status and JSON body to send back to the provider.
type WebhookResponse struct {
	Status int
	Body   interface{}
}

// AckResponse acknowledges a delivery.
type AckResponse struct {
	Received bool `json:"received"`
}

// ErrorResponse is the JSON envelope for rejected deliveries.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// BodyError classifies an error from reading a webhook body. Size limit
// violations wrap ErrPayloadTooLarge; anything else wraps ErrInvalidWebhookPayload.
func BodyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrPayloadTooLarge) || errors.Is(err, ErrEmptyPayload) {
		return err
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return fmt.Errorf("%w (max %d bytes)", ErrPayloadTooLarge, maxErr.Limit)
	}
	return fmt.Errorf("%w: %v", ErrInvalidWebhookPayload, err)
}
