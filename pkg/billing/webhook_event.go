package billing

import "time"

// WebhookEvent contains information about a successful webhook processing event.
// This event is passed to the WebhookCallback after the user record has been
// successfully updated in storage.
type WebhookEvent struct {
	// Email is the user record key
	Email string

	// Subscription is the plan written by the event ("premium" or "free")
	Subscription string

	// Provider is the billing provider name ("lemonsqueezy")
	Provider string

	// EventType is the provider-specific event name
	// Lemon Squeezy: "order_created", "subscription_created", "subscription_updated"
	EventType string

	// ProcessedAt is the server time assigned to the write
	ProcessedAt time.Time

	// Fields are the record fields written by the event, keyed by persisted name
	Fields map[string]interface{}
}
