package api

import (
	"time"

	"github.com/mihaimyh/lemongate/pkg/users"
)

// UserResponse is the standardized JSON view of a stored user record
type UserResponse struct {
	Email                 string     `json:"email"`
	Premium               bool       `json:"premium"`
	Subscription          users.Plan `json:"subscription"`
	SubscriptionType      users.Term `json:"subscriptionType,omitempty"`
	SubscriptionStatus    string     `json:"subscriptionStatus,omitempty"`
	PurchaseDate          *time.Time `json:"purchaseDate,omitempty"`
	SubscriptionStartDate *time.Time `json:"subscriptionStartDate,omitempty"`
	LastUpdated           *time.Time `json:"lastUpdated,omitempty"`
	OrderID               string     `json:"lemonSqueezyOrderId,omitempty"`
	SubscriptionID        string     `json:"lemonSqueezySubscriptionId,omitempty"`
	ProductName           string     `json:"productName,omitempty"`
}

// SyncResponse reports the plan a sync settled on
type SyncResponse struct {
	Email        string `json:"email"`
	Subscription string `json:"subscription"`
	Synced       bool   `json:"synced"`
}

func newUserResponse(rec *users.Record) UserResponse {
	plan := rec.Subscription
	if plan == "" {
		plan = users.PlanFree
	}
	return UserResponse{
		Email:                 rec.Email,
		Premium:               plan == users.PlanPremium,
		Subscription:          plan,
		SubscriptionType:      rec.SubscriptionType,
		SubscriptionStatus:    rec.SubscriptionStatus,
		PurchaseDate:          timePtr(rec.PurchaseDate),
		SubscriptionStartDate: timePtr(rec.SubscriptionStartDate),
		LastUpdated:           timePtr(rec.LastUpdated),
		OrderID:               rec.OrderID,
		SubscriptionID:        rec.SubscriptionID,
		ProductName:           rec.ProductName,
	}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	t = t.UTC()
	return &t
}
