package lemonsqueezy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mihaimyh/lemongate/pkg/billing"
)

// EventName is the webhook discriminator.
type EventName string

const (
	EventOrderCreated        EventName = "order_created"
	EventSubscriptionCreated EventName = "subscription_created"
	EventSubscriptionUpdated EventName = "subscription_updated"
)

// Event is one of OrderCreated, SubscriptionCreated, SubscriptionUpdated or
// Ignored. The set is closed: only this package can add variants.
type Event interface {
	Name() EventName
	isEvent()
}

// OrderCreated is a one-off purchase.
type OrderCreated struct {
	OrderID     string
	UserEmail   string
	Status      string
	ProductName string
}

// SubscriptionCreated is the start of a recurring subscription.
type SubscriptionCreated struct {
	SubscriptionID string
	UserEmail      string
	Status         string
}

// SubscriptionUpdated is any change to an existing subscription's status.
type SubscriptionUpdated struct {
	SubscriptionID string
	UserEmail      string
	Status         string
}

// Ignored is any event this gateway does not act on.
type Ignored struct {
	EventName EventName
}

func (OrderCreated) Name() EventName        { return EventOrderCreated }
func (SubscriptionCreated) Name() EventName { return EventSubscriptionCreated }
func (SubscriptionUpdated) Name() EventName { return EventSubscriptionUpdated }
func (e Ignored) Name() EventName           { return e.EventName }

func (OrderCreated) isEvent()        {}
func (SubscriptionCreated) isEvent() {}
func (SubscriptionUpdated) isEvent() {}
func (Ignored) isEvent()             {}

// webhookPayload is the JSON:API envelope Lemon Squeezy posts.
type webhookPayload struct {
	Meta struct {
		EventName string `json:"event_name"`
	} `json:"meta"`

	// EventName is accepted at the top level for senders that flatten meta.
	EventName string `json:"event_name"`

	Data struct {
		ID         flexibleID `json:"id"`
		Attributes struct {
			UserEmail      string `json:"user_email"`
			Status         string `json:"status"`
			FirstOrderItem struct {
				ProductName string `json:"product_name"`
			} `json:"first_order_item"`
		} `json:"attributes"`
	} `json:"data"`
}

// flexibleID accepts a JSON string or number and keeps its text form.
type flexibleID string

func (id *flexibleID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = flexibleID(n.String())
	return nil
}

func (p *webhookPayload) eventName() EventName {
	if name := strings.TrimSpace(p.Meta.EventName); name != "" {
		return EventName(name)
	}
	return EventName(strings.TrimSpace(p.EventName))
}

// DecodeEvent parses a verified webhook body into its event variant.
// Known variants without a user email fail with billing.ErrMissingUserEmail,
// a subscription_updated without a status fails with
// billing.ErrMissingSubscriptionStatus, and malformed JSON fails with
// billing.ErrInvalidWebhookPayload.
func DecodeEvent(body []byte) (Event, error) {
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", billing.ErrInvalidWebhookPayload, err)
	}

	attrs := payload.Data.Attributes
	email := strings.TrimSpace(attrs.UserEmail)
	id := strings.TrimSpace(string(payload.Data.ID))
	name := payload.eventName()

	var ev Event
	switch name {
	case EventOrderCreated:
		ev = OrderCreated{
			OrderID:     id,
			UserEmail:   email,
			Status:      strings.TrimSpace(attrs.Status),
			ProductName: attrs.FirstOrderItem.ProductName,
		}
	case EventSubscriptionCreated:
		ev = SubscriptionCreated{
			SubscriptionID: id,
			UserEmail:      email,
			Status:         strings.TrimSpace(attrs.Status),
		}
	case EventSubscriptionUpdated:
		ev = SubscriptionUpdated{
			SubscriptionID: id,
			UserEmail:      email,
			Status:         strings.TrimSpace(attrs.Status),
		}
	default:
		return Ignored{EventName: name}, nil
	}

	if email == "" {
		return nil, fmt.Errorf("%w: %s", billing.ErrMissingUserEmail, name)
	}
	// plan and subscriptionStatus are written together; an empty status
	// would flip the plan while leaving the stored status behind.
	if u, ok := ev.(SubscriptionUpdated); ok && u.Status == "" {
		return nil, fmt.Errorf("%w: %s", billing.ErrMissingSubscriptionStatus, u.SubscriptionID)
	}
	return ev, nil
}
