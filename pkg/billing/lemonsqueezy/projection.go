package lemonsqueezy

import (
	"strings"
	"time"

	"github.com/mihaimyh/lemongate/pkg/users"
)

const (
	orderStatusPaid      = "paid"
	statusActive         = "active"
	statusOnTrial        = "on_trial"
	yearlyProductKeyword = "yearly"
)

// Project derives the user record update for ev. The boolean is false when
// the event calls for no write: ignored events and unpaid orders.
// now is the server time stamped on the write.
func Project(ev Event, now time.Time) (users.Update, bool) {
	switch e := ev.(type) {
	case OrderCreated:
		if e.Status != orderStatusPaid {
			return users.Update{}, false
		}
		return users.Update{
			Email:            e.UserEmail,
			Subscription:     users.PlanPremium,
			SubscriptionType: TermForProduct(e.ProductName),
			PurchaseDate:     now,
			OrderID:          e.OrderID,
			ProductName:      e.ProductName,
		}, true

	case SubscriptionCreated:
		return users.Update{
			Email:                 e.UserEmail,
			Subscription:          users.PlanPremium,
			SubscriptionType:      users.TermYearly,
			SubscriptionStartDate: now,
			SubscriptionID:        e.SubscriptionID,
		}, true

	case SubscriptionUpdated:
		return users.Update{
			Email:              e.UserEmail,
			Subscription:       PlanForStatus(e.Status),
			SubscriptionStatus: e.Status,
			LastUpdated:        now,
		}, true

	case Ignored:
		return users.Update{}, false

	default:
		return users.Update{}, false
	}
}

// TermForProduct maps a product name to its billing term: any name containing
// "yearly" (case-insensitive) is yearly, everything else is a lifetime purchase.
func TermForProduct(productName string) users.Term {
	if strings.Contains(strings.ToLower(productName), yearlyProductKeyword) {
		return users.TermYearly
	}
	return users.TermLifetime
}

// PlanForStatus maps a subscription status to the access plan.
func PlanForStatus(status string) users.Plan {
	switch status {
	case statusActive, statusOnTrial:
		return users.PlanPremium
	default:
		return users.PlanFree
	}
}
