package lemonsqueezy

import (
	"errors"
	"testing"

	"github.com/mihaimyh/lemongate/pkg/billing"
)

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    Event
		wantErr error
	}{
		{
			name: "order created",
			body: `{"meta":{"event_name":"order_created"},"data":{"id":"1001","attributes":{"user_email":"a@example.com","status":"paid","first_order_item":{"product_name":"Pro Lifetime Plan"}}}}`,
			want: OrderCreated{OrderID: "1001", UserEmail: "a@example.com", Status: "paid", ProductName: "Pro Lifetime Plan"},
		},
		{
			name: "numeric id",
			body: `{"meta":{"event_name":"subscription_created"},"data":{"id":55,"attributes":{"user_email":"a@example.com","status":"active"}}}`,
			want: SubscriptionCreated{SubscriptionID: "55", UserEmail: "a@example.com", Status: "active"},
		},
		{
			name: "top-level event name",
			body: `{"event_name":"subscription_updated","data":{"id":"9","attributes":{"user_email":"a@example.com","status":"on_trial"}}}`,
			want: SubscriptionUpdated{SubscriptionID: "9", UserEmail: "a@example.com", Status: "on_trial"},
		},
		{
			name: "meta wins over top level",
			body: `{"event_name":"order_created","meta":{"event_name":"order_refunded"},"data":{}}`,
			want: Ignored{EventName: "order_refunded"},
		},
		{
			name: "unknown event without email",
			body: `{"meta":{"event_name":"license_key_created"}}`,
			want: Ignored{EventName: "license_key_created"},
		},
		{
			name: "no event name",
			body: `{}`,
			want: Ignored{},
		},
		{
			name:    "known event without email",
			body:    `{"meta":{"event_name":"order_created"},"data":{"id":"1","attributes":{"status":"paid"}}}`,
			wantErr: billing.ErrMissingUserEmail,
		},
		{
			name:    "blank email",
			body:    `{"meta":{"event_name":"subscription_updated"},"data":{"attributes":{"user_email":"  "}}}`,
			wantErr: billing.ErrMissingUserEmail,
		},
		{
			name:    "update without status",
			body:    `{"meta":{"event_name":"subscription_updated"},"data":{"id":"9","attributes":{"user_email":"a@example.com"}}}`,
			wantErr: billing.ErrMissingSubscriptionStatus,
		},
		{
			name:    "malformed json",
			body:    `{"meta":`,
			wantErr: billing.ErrInvalidWebhookPayload,
		},
		{
			name:    "id of wrong type",
			body:    `{"meta":{"event_name":"order_created"},"data":{"id":{"x":1}}}`,
			wantErr: billing.ErrInvalidWebhookPayload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeEvent([]byte(tt.body))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("DecodeEvent() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeEvent() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("DecodeEvent() = %#v, want %#v", got, tt.want)
			}
		})
	}
}
