package users

import (
	"strings"
	"time"
)

// Plan is the access level stored in the "subscription" field.
type Plan string

const (
	PlanPremium Plan = "premium"
	PlanFree    Plan = "free"
)

// Term is the billing term stored in the "subscriptionType" field.
type Term string

const (
	TermLifetime Term = "lifetime"
	TermYearly   Term = "yearly"
)

// Field names as persisted in every backend.
const (
	FieldEmail              = "email"
	FieldSubscription       = "subscription"
	FieldSubscriptionType   = "subscriptionType"
	FieldSubscriptionStatus = "subscriptionStatus"
	FieldPurchaseDate       = "purchaseDate"
	FieldSubscriptionStart  = "subscriptionStartDate"
	FieldLastUpdated        = "lastUpdated"
	FieldOrderID            = "lemonSqueezyOrderId"
	FieldSubscriptionID     = "lemonSqueezySubscriptionId"
	FieldProductName        = "productName"
)

// Record is a user document keyed by email.
type Record struct {
	Email                 string    `json:"email" firestore:"email"`
	Subscription          Plan      `json:"subscription,omitempty" firestore:"subscription,omitempty"`
	SubscriptionType      Term      `json:"subscriptionType,omitempty" firestore:"subscriptionType,omitempty"`
	SubscriptionStatus    string    `json:"subscriptionStatus,omitempty" firestore:"subscriptionStatus,omitempty"`
	PurchaseDate          time.Time `json:"purchaseDate" firestore:"purchaseDate,omitempty"`
	SubscriptionStartDate time.Time `json:"subscriptionStartDate" firestore:"subscriptionStartDate,omitempty"`
	LastUpdated           time.Time `json:"lastUpdated" firestore:"lastUpdated,omitempty"`
	OrderID               string    `json:"lemonSqueezyOrderId,omitempty" firestore:"lemonSqueezyOrderId,omitempty"`
	SubscriptionID        string    `json:"lemonSqueezySubscriptionId,omitempty" firestore:"lemonSqueezySubscriptionId,omitempty"`
	ProductName           string    `json:"productName,omitempty" firestore:"productName,omitempty"`
}

// Update is a partial write against a Record. Zero-valued fields are left
// untouched in the stored document; Email is both the key and a written field.
type Update struct {
	Email                 string
	Subscription          Plan
	SubscriptionType      Term
	SubscriptionStatus    string
	PurchaseDate          time.Time
	SubscriptionStartDate time.Time
	LastUpdated           time.Time
	OrderID               string
	SubscriptionID        string
	ProductName           string
}

// Fields returns the non-zero fields of the update keyed by their persisted
// names. Time values are returned as time.Time.
func (u Update) Fields() map[string]interface{} {
	fields := map[string]interface{}{
		FieldEmail: u.Email,
	}
	setString := func(key, value string) {
		if value != "" {
			fields[key] = value
		}
	}
	setTime := func(key string, value time.Time) {
		if !value.IsZero() {
			fields[key] = value
		}
	}

	setString(FieldSubscription, string(u.Subscription))
	setString(FieldSubscriptionType, string(u.SubscriptionType))
	setString(FieldSubscriptionStatus, u.SubscriptionStatus)
	setTime(FieldPurchaseDate, u.PurchaseDate)
	setTime(FieldSubscriptionStart, u.SubscriptionStartDate)
	setTime(FieldLastUpdated, u.LastUpdated)
	setString(FieldOrderID, u.OrderID)
	setString(FieldSubscriptionID, u.SubscriptionID)
	setString(FieldProductName, u.ProductName)

	return fields
}

// Validate checks that the update can be keyed.
func (u Update) Validate() error {
	if strings.TrimSpace(u.Email) == "" {
		return ErrInvalidEmail
	}
	return nil
}

// Apply merges the update into r and returns the result. Backends without a
// native merge write use it to keep merge semantics identical.
func (u Update) Apply(r Record) Record {
	r.Email = u.Email
	if u.Subscription != "" {
		r.Subscription = u.Subscription
	}
	if u.SubscriptionType != "" {
		r.SubscriptionType = u.SubscriptionType
	}
	if u.SubscriptionStatus != "" {
		r.SubscriptionStatus = u.SubscriptionStatus
	}
	if !u.PurchaseDate.IsZero() {
		r.PurchaseDate = u.PurchaseDate
	}
	if !u.SubscriptionStartDate.IsZero() {
		r.SubscriptionStartDate = u.SubscriptionStartDate
	}
	if !u.LastUpdated.IsZero() {
		r.LastUpdated = u.LastUpdated
	}
	if u.OrderID != "" {
		r.OrderID = u.OrderID
	}
	if u.SubscriptionID != "" {
		r.SubscriptionID = u.SubscriptionID
	}
	if u.ProductName != "" {
		r.ProductName = u.ProductName
	}
	return r
}

// AsUpdate returns an update that writes every set field of r.
func (r Record) AsUpdate() Update {
	return Update{
		Email:                 r.Email,
		Subscription:          r.Subscription,
		SubscriptionType:      r.SubscriptionType,
		SubscriptionStatus:    r.SubscriptionStatus,
		PurchaseDate:          r.PurchaseDate,
		SubscriptionStartDate: r.SubscriptionStartDate,
		LastUpdated:           r.LastUpdated,
		OrderID:               r.OrderID,
		SubscriptionID:        r.SubscriptionID,
		ProductName:           r.ProductName,
	}
}
