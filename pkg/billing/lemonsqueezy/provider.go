package lemonsqueezy

import (
	"context"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mihaimyh/lemongate/pkg/billing"
	"github.com/mihaimyh/lemongate/pkg/billing/internal"
	"github.com/mihaimyh/lemongate/pkg/users"
)

const (
	providerName             = "lemonsqueezy"
	lemonSqueezyAPIBaseURL   = "https://api.lemonsqueezy.com/v1"
	defaultHTTPTimeout       = 10 * time.Second
	defaultMaxBodyBytes      = 256 * 1024
	defaultRateLimitWindow   = time.Minute
	defaultRateLimitRequests = 100
)

// Provider implements the billing.Provider interface for Lemon Squeezy
type Provider struct {
	store         users.Storage
	httpClient    *http.Client
	rateLimiter   *internal.RateLimiter
	webhookSecret []byte
	apiKey        string
	apiBaseURL    string
	maxBodyBytes  int64
	exposeErrors  bool
	callback      func(ctx context.Context, event billing.WebhookEvent) error
	now           func() time.Time
	metrics       billing.Metrics
	logger        billing.Logger

	// syncs collapses concurrent SyncUser calls for the same email.
	syncs singleflight.Group
}

var (
	_ billing.Provider         = (*Provider)(nil)
	_ billing.WebhookProcessor = (*Provider)(nil)
)

// NewProvider creates a new Lemon Squeezy billing provider.
//
// A missing webhook secret is not a construction error: the provider still
// serves, and every delivery is rejected until the secret is configured.
func NewProvider(config billing.Config) (*Provider, error) {
	if config.Store == nil {
		return nil, billing.ErrProviderNotConfigured
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: defaultHTTPTimeout,
		}
	}

	maxBodyBytes := config.MaxBodyBytes
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}

	var limiter *internal.RateLimiter
	switch {
	case config.RateLimit == 0:
		limiter = internal.NewRateLimiter(defaultRateLimitRequests, defaultRateLimitWindow)
	case config.RateLimit > 0:
		limiter = internal.NewRateLimiter(config.RateLimit, defaultRateLimitWindow)
	}

	now := config.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	metrics := config.Metrics
	if metrics == nil {
		metrics = &billing.NoopMetrics{}
	}

	logger := config.Logger
	if logger == nil {
		logger = &billing.NoopLogger{}
	}

	return &Provider{
		store:         config.Store,
		httpClient:    httpClient,
		rateLimiter:   limiter,
		webhookSecret: []byte(strings.TrimSpace(config.WebhookSecret)),
		apiKey:        strings.TrimSpace(config.APIKey),
		apiBaseURL:    lemonSqueezyAPIBaseURL,
		maxBodyBytes:  maxBodyBytes,
		exposeErrors:  config.ExposeErrorDetails,
		callback:      config.WebhookCallback,
		now:           now,
		metrics:       metrics,
		logger:        logger,
	}, nil
}

// Name returns the provider name
func (p *Provider) Name() string {
	return providerName
}

// WebhookHandler returns the HTTP handler for Lemon Squeezy webhooks
func (p *Provider) WebhookHandler() http.Handler {
	handler := http.HandlerFunc(p.handleWebhook)
	if p.rateLimiter == nil {
		return handler
	}
	return p.rateLimiter.Middleware(handler)
}

// SyncUser reconciles a user's record with their Lemon Squeezy subscriptions
func (p *Provider) SyncUser(ctx context.Context, email string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(email))
	v, err, _ := p.syncs.Do(key, func() (interface{}, error) {
		return p.syncUserFromAPI(ctx, email)
	})
	plan, _ := v.(string)
	return plan, err
}

// MaxBodyBytes implements billing.WebhookProcessor
func (p *Provider) MaxBodyBytes() int64 {
	return p.maxBodyBytes
}

// SignatureHeader implements billing.WebhookProcessor
func (p *Provider) SignatureHeader() string {
	return SignatureHeader
}
