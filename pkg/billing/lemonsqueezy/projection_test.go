package lemonsqueezy

import (
	"testing"
	"time"

	"github.com/mihaimyh/lemongate/pkg/users"
)

var testNow = time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)

func TestTermForProduct(t *testing.T) {
	tests := []struct {
		product string
		want    users.Term
	}{
		{"Pro Yearly Plan", users.TermYearly},
		{"YEARLY access", users.TermYearly},
		{"Pro Lifetime Plan", users.TermLifetime},
		{"Pro Monthly Plan", users.TermLifetime},
		{"", users.TermLifetime},
	}
	for _, tt := range tests {
		if got := TermForProduct(tt.product); got != tt.want {
			t.Errorf("TermForProduct(%q) = %q, want %q", tt.product, got, tt.want)
		}
	}
}

func TestPlanForStatus(t *testing.T) {
	tests := []struct {
		status string
		want   users.Plan
	}{
		{"active", users.PlanPremium},
		{"on_trial", users.PlanPremium},
		{"cancelled", users.PlanFree},
		{"expired", users.PlanFree},
		{"past_due", users.PlanFree},
		{"", users.PlanFree},
	}
	for _, tt := range tests {
		if got := PlanForStatus(tt.status); got != tt.want {
			t.Errorf("PlanForStatus(%q) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestProject(t *testing.T) {
	tests := []struct {
		name      string
		event     Event
		want      users.Update
		wantWrite bool
	}{
		{
			name:  "paid yearly order",
			event: OrderCreated{OrderID: "1", UserEmail: "a@example.com", Status: "paid", ProductName: "Pro Yearly Plan"},
			want: users.Update{
				Email:            "a@example.com",
				Subscription:     users.PlanPremium,
				SubscriptionType: users.TermYearly,
				PurchaseDate:     testNow,
				OrderID:          "1",
				ProductName:      "Pro Yearly Plan",
			},
			wantWrite: true,
		},
		{
			name:  "paid lifetime order",
			event: OrderCreated{OrderID: "2", UserEmail: "a@example.com", Status: "paid", ProductName: "Pro Lifetime Plan"},
			want: users.Update{
				Email:            "a@example.com",
				Subscription:     users.PlanPremium,
				SubscriptionType: users.TermLifetime,
				PurchaseDate:     testNow,
				OrderID:          "2",
				ProductName:      "Pro Lifetime Plan",
			},
			wantWrite: true,
		},
		{
			name:  "pending order",
			event: OrderCreated{OrderID: "3", UserEmail: "a@example.com", Status: "pending"},
		},
		{
			name:  "subscription created",
			event: SubscriptionCreated{SubscriptionID: "s1", UserEmail: "a@example.com", Status: "active"},
			want: users.Update{
				Email:                 "a@example.com",
				Subscription:          users.PlanPremium,
				SubscriptionType:      users.TermYearly,
				SubscriptionStartDate: testNow,
				SubscriptionID:        "s1",
			},
			wantWrite: true,
		},
		{
			name:  "subscription on trial",
			event: SubscriptionUpdated{SubscriptionID: "s1", UserEmail: "a@example.com", Status: "on_trial"},
			want: users.Update{
				Email:              "a@example.com",
				Subscription:       users.PlanPremium,
				SubscriptionStatus: "on_trial",
				LastUpdated:        testNow,
			},
			wantWrite: true,
		},
		{
			name:  "subscription cancelled",
			event: SubscriptionUpdated{SubscriptionID: "s1", UserEmail: "a@example.com", Status: "cancelled"},
			want: users.Update{
				Email:              "a@example.com",
				Subscription:       users.PlanFree,
				SubscriptionStatus: "cancelled",
				LastUpdated:        testNow,
			},
			wantWrite: true,
		},
		{
			name:  "ignored",
			event: Ignored{EventName: "order_refunded"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Project(tt.event, testNow)
			if ok != tt.wantWrite {
				t.Fatalf("Project() write = %v, want %v", ok, tt.wantWrite)
			}
			if got != tt.want {
				t.Errorf("Project() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
