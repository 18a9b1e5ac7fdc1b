package billing

import "errors"

var (
	// ErrProviderNotConfigured is returned when a provider is not properly configured
	ErrProviderNotConfigured = errors.New("billing provider not configured")

	// ErrWebhookSecretMissing is returned when no webhook secret is configured
	ErrWebhookSecretMissing = errors.New("webhook secret not configured")

	// ErrInvalidWebhookSignature is returned when webhook signature validation fails
	ErrInvalidWebhookSignature = errors.New("invalid webhook signature")

	// ErrInvalidWebhookPayload is returned when webhook payload cannot be parsed
	ErrInvalidWebhookPayload = errors.New("invalid webhook payload")

	// ErrPayloadTooLarge is returned when a webhook body exceeds the size limit
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrEmptyPayload is returned when a webhook delivery has no body
	ErrEmptyPayload = errors.New("empty payload")

	// ErrMissingUserEmail is returned when a handled event carries no user email
	ErrMissingUserEmail = errors.New("webhook event has no user email")

	// ErrMissingSubscriptionStatus is returned when a subscription update
	// carries no status to derive the plan from
	ErrMissingSubscriptionStatus = errors.New("subscription update has no status")

	// ErrProviderAPIError is returned when the provider's API returns an error
	ErrProviderAPIError = errors.New("billing provider API error")

	// ErrCustomerNotFound is returned when a customer cannot be found in the provider
	ErrCustomerNotFound = errors.New("customer not found in billing provider")
)
