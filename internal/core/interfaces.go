package core

import (
	"context"
	"time"

	"luna-backend/internal/gate"
	"luna-backend/internal/models"
)

// BillingService is the only writer of a user's billing customer and entitlement fields.
type BillingService interface {
	// EnsureCustomer returns the user's billing customer, creating it on first use.
	EnsureCustomer(ctx context.Context, userID string) (string, error)
	// CreateCheckoutSession returns the hosted checkout URL for planID. Unknown plans
	// fall back to the monthly plan.
	CreateCheckoutSession(ctx context.Context, userID, planID, originURL string) (string, error)
	CreatePortalSession(ctx context.Context, userID, returnURL string) (string, error)
	// GetSubscriptionStatus reports the entitlement flag; a missing record is not subscribed.
	GetSubscriptionStatus(ctx context.Context, userID string) (bool, error)
	// VerifyWebhookSignature authenticates and decodes a webhook delivery.
	VerifyWebhookSignature(payload []byte, signatureHeader string) (*WebhookEvent, error)
	SyncFromWebhookEvent(ctx context.Context, event *WebhookEvent) (SyncOutcome, error)
}

// ChatService answers chat messages and manages their history.
type ChatService interface {
	Send(ctx context.Context, userID, persona, message string) (string, error)
	History(ctx context.Context, userID, persona string, limit int) ([]*models.ChatMessage, error)
	// DeleteHistory removes the user's messages for persona, or all of them when persona is empty.
	DeleteHistory(ctx context.Context, userID, persona string) (int, error)
	Usage(ctx context.Context, userID string) (*Usage, error)
	Personas(ctx context.Context, userID string) ([]PersonaAccess, error)
}

// SupportService stores issue reports.
type SupportService interface {
	ReportIssue(ctx context.Context, req models.ReportIssueRequest) (string, error)
}

// IdentityProvider resolves user ids issued by the identity platform.
type IdentityProvider interface {
	// LookupEmail returns the user's email, or an error wrapping ErrNotFound.
	LookupEmail(ctx context.Context, userID string) (string, error)
}

// BillingProvider is the subset of the payment provider used by BillingService.
type BillingProvider interface {
	CreateCustomer(ctx context.Context, params CustomerParams) (string, error)
	DeleteCustomer(ctx context.Context, customerID string) error
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (string, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
	// ConstructEvent verifies payload against secret and decodes it. An empty secret
	// skips verification.
	ConstructEvent(payload []byte, signatureHeader, secret string) (*WebhookEvent, error)
}

// DailyLimiter enforces the free-tier message ceiling per user per UTC day.
type DailyLimiter interface {
	// Consume counts one message, failing with ErrLimitReached without counting it
	// when the ceiling is already reached. It returns the count after the call.
	Consume(ctx context.Context, userID string, at time.Time) (int, error)
	Used(ctx context.Context, userID string, at time.Time) (int, error)
	Limit() int
}

// Responder produces the assistant reply for a message.
type Responder interface {
	Reply(ctx context.Context, persona, message string) (string, error)
}

// CustomerParams describes a billing customer to create.
type CustomerParams struct {
	UserID         string
	Email          string
	IdempotencyKey string
}

// CheckoutParams describes a subscription checkout session.
type CheckoutParams struct {
	CustomerID string
	PriceID    string
	UserID     string
	SuccessURL string
	CancelURL  string
}

// Webhook event types consumed by SyncFromWebhookEvent.
const (
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// WebhookEvent is a decoded billing webhook delivery.
type WebhookEvent struct {
	ID         string
	Type       string
	CustomerID string
	Status     string
	Created    time.Time
}

// SyncOutcome describes what SyncFromWebhookEvent did with an event.
type SyncOutcome string

const (
	SyncApplied   SyncOutcome = "applied"
	SyncIgnored   SyncOutcome = "ignored"
	SyncNoMatch   SyncOutcome = "no_match"
	SyncAmbiguous SyncOutcome = "ambiguous"
)

// Usage summarizes a user's message count for the current day.
type Usage struct {
	Used      int  `json:"used"`
	Limit     int  `json:"limit"`
	Remaining int  `json:"remaining"`
	Unlimited bool `json:"unlimited"`
}

// PersonaAccess is a catalog entry with the caller's lock state.
type PersonaAccess struct {
	gate.Persona
	Locked bool `json:"locked"`
}
