package lemonsqueezy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mihaimyh/lemongate/pkg/billing"
	"github.com/mihaimyh/lemongate/pkg/users"
)

const (
	subscriptionsEndpoint = "/subscriptions"
	maxAPIResponseBytes   = 1 << 20
)

// subscriptionsResponse is the JSON:API list returned by GET /v1/subscriptions
type subscriptionsResponse struct {
	Data []subscriptionResource `json:"data"`
}

type subscriptionResource struct {
	ID         flexibleID `json:"id"`
	Attributes struct {
		UserEmail string    `json:"user_email"`
		Status    string    `json:"status"`
		UpdatedAt time.Time `json:"updated_at"`
	} `json:"attributes"`
}

// syncUserFromAPI fetches the user's subscriptions and merge-writes the most
// recently updated one as if a subscription_updated event had arrived.
func (p *Provider) syncUserFromAPI(ctx context.Context, email string) (string, error) {
	startTime := time.Now()
	plan, err := p.doSync(ctx, email)

	status := "success"
	switch {
	case errors.Is(err, billing.ErrCustomerNotFound):
		status = "not_found"
	case err != nil:
		status = "error"
	}
	p.metrics.RecordUserSync(providerName, status)
	p.metrics.RecordUserSyncDuration(providerName, time.Since(startTime))
	return plan, err
}

func (p *Provider) doSync(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", users.ErrInvalidEmail
	}
	if p.apiKey == "" {
		return "", fmt.Errorf("%w: lemon squeezy API key not configured", billing.ErrProviderNotConfigured)
	}

	subs, err := p.listSubscriptions(ctx, email)
	if err != nil {
		return "", err
	}
	if len(subs) == 0 {
		return "", billing.ErrCustomerNotFound
	}

	latest := subs[0]
	for _, sub := range subs[1:] {
		if sub.Attributes.UpdatedAt.After(latest.Attributes.UpdatedAt) {
			latest = sub
		}
	}

	status := strings.TrimSpace(latest.Attributes.Status)
	if status == "" {
		return "", fmt.Errorf("%w: %w: subscription %s", billing.ErrProviderAPIError, billing.ErrMissingSubscriptionStatus, latest.ID)
	}
	update, _ := Project(SubscriptionUpdated{
		SubscriptionID: string(latest.ID),
		UserEmail:      email,
		Status:         status,
	}, p.now())

	if err := p.store.UpsertUser(ctx, update); err != nil {
		return string(update.Subscription), fmt.Errorf("failed to upsert user: %w", err)
	}
	p.metrics.RecordUserUpsert(providerName, "sync", string(update.Subscription))
	p.logger.Info("user synchronized from lemon squeezy",
		billing.Field{Key: "subscription", Value: string(update.Subscription)},
		billing.Field{Key: "subscription_status", Value: update.SubscriptionStatus},
	)
	return string(update.Subscription), nil
}

func (p *Provider) listSubscriptions(ctx context.Context, email string) ([]subscriptionResource, error) {
	query := url.Values{"filter[user_email]": {email}}
	endpoint := p.apiBaseURL + subscriptionsEndpoint + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Accept", "application/vnd.api+json")

	callStart := time.Now()
	res, err := p.httpClient.Do(req)
	if err != nil {
		p.metrics.RecordAPICall(providerName, subscriptionsEndpoint, "error")
		return nil, fmt.Errorf("failed to fetch subscriptions: %w", err)
	}
	defer res.Body.Close()
	p.metrics.RecordAPICall(providerName, subscriptionsEndpoint, strconv.Itoa(res.StatusCode))
	p.metrics.RecordAPICallDuration(providerName, subscriptionsEndpoint, time.Since(callStart))

	body, err := io.ReadAll(io.LimitReader(res.Body, maxAPIResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", billing.ErrProviderAPIError, res.StatusCode)
	}

	var payload subscriptionsResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return payload.Data, nil
}
