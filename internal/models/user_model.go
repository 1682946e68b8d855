package models

import "time"

// User is the per-identity entitlement record. The document ID is the Firebase Auth UID.
// Field names match the documents already stored in the users collection.
type User struct {
	ID                 string    `json:"id" firestore:"-"`
	BillingCustomerID  string    `json:"stripeCustomerId,omitempty" firestore:"stripeCustomerId,omitempty"`
	IsSubscribed       bool      `json:"isSubscribed" firestore:"isSubscribed"`
	SubscriptionStatus string    `json:"subscriptionStatus,omitempty" firestore:"subscriptionStatus,omitempty"`
	UpdatedAt          time.Time `json:"updatedAt" firestore:"updatedAt,serverTimestamp"`
}

// Entitled reports whether a Billing Provider subscription status grants premium access.
// Only active and trialing subscriptions do; every other status, known or not, does not.
func Entitled(status string) bool {
	switch status {
	case SubscriptionActive, SubscriptionTrialing:
		return true
	default:
		return false
	}
}

// Subscription statuses mirrored from the Billing Provider. Informational only:
// User.IsSubscribed is the gate.
const (
	SubscriptionActive            = "active"
	SubscriptionTrialing          = "trialing"
	SubscriptionPastDue           = "past_due"
	SubscriptionCanceled          = "canceled"
	SubscriptionUnpaid            = "unpaid"
	SubscriptionIncomplete        = "incomplete"
	SubscriptionIncompleteExpired = "incomplete_expired"
	SubscriptionPaused            = "paused"
)

// EntitlementChange is published after a webhook sync has written a User record.
type EntitlementChange struct {
	UserID             string    `json:"userId"`
	BillingCustomerID  string    `json:"customerId"`
	SubscriptionStatus string    `json:"status"`
	IsSubscribed       bool      `json:"isSubscribed"`
	EventType          string    `json:"eventType"`
	EventID            string    `json:"eventId,omitempty"`
	OccurredAt         time.Time `json:"occurredAt"`
}
