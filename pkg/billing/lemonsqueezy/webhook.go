package lemonsqueezy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mihaimyh/lemongate/pkg/billing"
	"github.com/mihaimyh/lemongate/pkg/billing/internal"
)

const (
	msgMethodNotAllowed = "Method not allowed"
	msgSecretMissing    = "Webhook secret not configured"
	msgInvalidSignature = "Invalid signature"
	msgMissingEmail     = "Missing user email"
	msgInvalidPayload   = "Invalid payload"
	msgPayloadTooLarge  = "Payload too large"
	msgInternal         = "Internal server error"
)

// handleWebhook captures the raw body and hands it to Process. Read errors
// travel with the request so that method and configuration checks run first.
func (p *Provider) handleWebhook(w http.ResponseWriter, r *http.Request) {
	internal.SetSecurityHeaders(w)

	req := billing.WebhookRequest{
		Method:    r.Method,
		Signature: r.Header.Get(SignatureHeader),
	}

	if r.Method == http.MethodPost {
		req.Body, req.BodyErr = internal.ReadBodyStrict(w, r, p.maxBodyBytes)
	}

	p.writeResponse(w, p.Process(r.Context(), req))
}

func (p *Provider) writeResponse(w http.ResponseWriter, res billing.WebhookResponse) {
	if err := internal.WriteJSON(w, res.Status, res.Body); err != nil {
		p.logger.Warn("failed to write webhook response", billing.Field{Key: "error", Value: err})
	}
}

// Process runs verification, decoding, projection and the store write for one
// delivery. req.Body must be the raw request body as transmitted.
func (p *Provider) Process(ctx context.Context, req billing.WebhookRequest) (res billing.WebhookResponse) {
	startTime := time.Now()
	eventType := "UNKNOWN"

	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Error("panic while processing webhook",
				billing.Field{Key: "event_type", Value: eventType},
				billing.Field{Key: "panic", Value: fmt.Sprint(rec)},
			)
			p.metrics.RecordWebhookError(providerName, "panic")
			res = p.internalError(fmt.Errorf("panic: %v", rec))
		}
	}()

	if req.Method != http.MethodPost {
		return errorResponse(http.StatusMethodNotAllowed, msgMethodNotAllowed)
	}

	if len(p.webhookSecret) == 0 {
		p.logger.Error("webhook rejected", billing.Field{Key: "error", Value: billing.ErrWebhookSecretMissing})
		p.metrics.RecordWebhookError(providerName, "not_configured")
		return errorResponse(http.StatusInternalServerError, msgSecretMissing)
	}

	if err := billing.BodyError(req.BodyErr); err != nil {
		if errors.Is(err, billing.ErrPayloadTooLarge) {
			p.metrics.RecordWebhookError(providerName, "payload_too_large")
			return errorResponse(http.StatusRequestEntityTooLarge, msgPayloadTooLarge)
		}
		p.logger.Warn("webhook body could not be read", billing.Field{Key: "error", Value: err})
		p.metrics.RecordWebhookError(providerName, "invalid_payload")
		return errorResponse(http.StatusBadRequest, msgInvalidPayload)
	}
	if len(req.Body) == 0 {
		p.metrics.RecordWebhookError(providerName, "invalid_payload")
		return errorResponse(http.StatusBadRequest, msgInvalidPayload)
	}

	if !VerifySignature(req.Body, req.Signature, p.webhookSecret) {
		p.logger.Warn("webhook rejected",
			billing.Field{Key: "error", Value: billing.ErrInvalidWebhookSignature},
			billing.Field{Key: "signature_present", Value: req.Signature != ""},
		)
		p.metrics.RecordWebhookError(providerName, "auth_failed")
		return errorResponse(http.StatusUnauthorized, msgInvalidSignature)
	}
	p.metrics.RecordWebhookPayloadSize(providerName, len(req.Body))

	ev, err := DecodeEvent(req.Body)
	if err != nil {
		if errors.Is(err, billing.ErrMissingUserEmail) {
			p.logger.Warn("webhook rejected: missing user email", billing.Field{Key: "error", Value: err})
			p.metrics.RecordWebhookError(providerName, "missing_user_email")
			return errorResponse(http.StatusBadRequest, msgMissingEmail)
		}
		if errors.Is(err, billing.ErrMissingSubscriptionStatus) {
			p.logger.Warn("webhook rejected", billing.Field{Key: "error", Value: err})
			p.metrics.RecordWebhookError(providerName, "missing_status")
			return errorResponse(http.StatusBadRequest, msgInvalidPayload)
		}
		p.logger.Error("webhook payload could not be decoded", billing.Field{Key: "error", Value: err})
		p.metrics.RecordWebhookError(providerName, "invalid_payload")
		return p.internalError(err)
	}
	if name := string(ev.Name()); name != "" {
		eventType = name
	}

	if err := p.processEvent(ctx, ev); err != nil {
		p.logger.Error("webhook processing failed",
			billing.Field{Key: "event_type", Value: eventType},
			billing.Field{Key: "error", Value: err},
		)
		p.metrics.RecordWebhookEvent(providerName, eventType, "error")
		p.metrics.RecordWebhookError(providerName, "processing_error")
		p.metrics.RecordWebhookProcessingDuration(providerName, eventType, time.Since(startTime))
		return p.internalError(err)
	}

	p.metrics.RecordWebhookProcessingDuration(providerName, eventType, time.Since(startTime))
	return billing.WebhookResponse{Status: http.StatusOK, Body: billing.AckResponse{Received: true}}
}

// processEvent performs the single merge-upsert an event calls for.
func (p *Provider) processEvent(ctx context.Context, ev Event) error {
	now := p.now()
	update, ok := Project(ev, now)
	if !ok {
		p.logger.Info("webhook event acknowledged without changes",
			billing.Field{Key: "event_type", Value: string(ev.Name())},
		)
		p.metrics.RecordWebhookEvent(providerName, string(ev.Name()), "ignored")
		return nil
	}

	if err := p.store.UpsertUser(ctx, update); err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}

	p.metrics.RecordUserUpsert(providerName, string(ev.Name()), string(update.Subscription))
	p.metrics.RecordWebhookEvent(providerName, string(ev.Name()), "success")
	p.logger.Info("user record updated",
		billing.Field{Key: "event_type", Value: string(ev.Name())},
		billing.Field{Key: "subscription", Value: string(update.Subscription)},
	)

	if p.callback == nil {
		return nil
	}
	if err := p.callback(ctx, billing.WebhookEvent{
		Email:        update.Email,
		Subscription: string(update.Subscription),
		Provider:     providerName,
		EventType:    string(ev.Name()),
		ProcessedAt:  now,
		Fields:       update.Fields(),
	}); err != nil {
		return fmt.Errorf("webhook callback failed: %w", err)
	}
	return nil
}

func (p *Provider) internalError(err error) billing.WebhookResponse {
	res := errorResponse(http.StatusInternalServerError, msgInternal)
	if p.exposeErrors && err != nil {
		res.Body = billing.ErrorResponse{Error: msgInternal, Details: err.Error()}
	}
	return res
}

func errorResponse(status int, msg string) billing.WebhookResponse {
	return billing.WebhookResponse{Status: status, Body: billing.ErrorResponse{Error: msg}}
}
