package billing

import (
	"context"
	"net/http"
	"time"

	"github.com/mihaimyh/lemongate/pkg/users"
)

// Config defines the standard configuration all providers should accept
type Config struct {
	// Store receives the merge-upserts derived from webhook events (required)
	Store users.Storage

	// WebhookSecret is the shared secret used to verify webhook signatures.
	// An empty secret is accepted at construction time; every delivery is
	// then rejected as a configuration error.
	WebhookSecret string

	// APIKey is used for outbound API calls to the billing provider (e.g. SyncUser).
	APIKey string

	// HTTPClient is an optional HTTP client for API calls.
	// If nil, a default client with 10s timeout will be used.
	HTTPClient *http.Client

	// MaxBodyBytes caps the webhook payload size. Default: 256KB
	MaxBodyBytes int64

	// RateLimit is the number of webhook requests allowed per client IP per minute.
	// Zero uses the default (100); a negative value disables rate limiting.
	RateLimit int

	// ExposeErrorDetails adds the underlying error text to 500 responses.
	// Leave disabled in production.
	ExposeErrorDetails bool

	// WebhookCallback is invoked after a user record has been written.
	// A non-nil error turns the delivery into a 500 so the provider retries it.
	WebhookCallback func(ctx context.Context, event WebhookEvent) error

	// Now overrides the clock used for server-assigned timestamps.
	Now func() time.Time

	// Metrics is an optional metrics collector for tracking billing provider operations.
	// If nil, metrics will be silently ignored (no-op).
	// Use billing/metrics/prometheus.DefaultMetrics(namespace) for Prometheus metrics.
	Metrics Metrics

	// Logger is an optional structured logger. If nil, nothing is logged.
	Logger Logger
}
