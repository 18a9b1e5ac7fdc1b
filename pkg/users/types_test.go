package users

import (
	"testing"
	"time"
)

func TestUpdate_FieldsOmitsZeroValues(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	u := Update{
		Email:              "a@example.com",
		Subscription:       PlanFree,
		SubscriptionStatus: "cancelled",
		LastUpdated:        now,
	}

	fields := u.Fields()
	if len(fields) != 4 {
		t.Fatalf("expected 4 fields, got %d: %v", len(fields), fields)
	}
	if fields[FieldEmail] != "a@example.com" {
		t.Errorf("email = %v", fields[FieldEmail])
	}
	if fields[FieldSubscription] != "free" {
		t.Errorf("subscription = %v", fields[FieldSubscription])
	}
	if got, ok := fields[FieldLastUpdated].(time.Time); !ok || !got.Equal(now) {
		t.Errorf("lastUpdated = %v", fields[FieldLastUpdated])
	}
	for _, key := range []string{FieldSubscriptionType, FieldPurchaseDate, FieldOrderID, FieldProductName} {
		if _, ok := fields[key]; ok {
			t.Errorf("unexpected field %q in update", key)
		}
	}
}

func TestUpdate_ApplyLeavesUnmentionedFields(t *testing.T) {
	purchased := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	existing := Record{
		Email:            "a@example.com",
		Subscription:     PlanPremium,
		SubscriptionType: TermLifetime,
		PurchaseDate:     purchased,
		OrderID:          "1001",
		ProductName:      "Pro Lifetime Plan",
	}

	updated := Update{
		Email:              "a@example.com",
		Subscription:       PlanFree,
		SubscriptionStatus: "expired",
		LastUpdated:        purchased.AddDate(1, 0, 0),
	}.Apply(existing)

	if updated.Subscription != PlanFree {
		t.Errorf("subscription = %q, want free", updated.Subscription)
	}
	if updated.SubscriptionType != TermLifetime {
		t.Errorf("subscriptionType changed to %q", updated.SubscriptionType)
	}
	if !updated.PurchaseDate.Equal(purchased) || updated.OrderID != "1001" || updated.ProductName != "Pro Lifetime Plan" {
		t.Errorf("purchase fields were modified: %+v", updated)
	}
	if updated.SubscriptionStatus != "expired" {
		t.Errorf("subscriptionStatus = %q", updated.SubscriptionStatus)
	}
}

func TestUpdate_Validate(t *testing.T) {
	if err := (Update{Email: "  "}).Validate(); err != ErrInvalidEmail {
		t.Errorf("expected ErrInvalidEmail, got %v", err)
	}
	if err := (Update{Email: "a@example.com"}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
