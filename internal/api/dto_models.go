package api

import "luna-backend/internal/models"

// ErrorResponse is the JSON error envelope of every endpoint.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// LimitReachedResponse is returned with 403 when the daily message ceiling is hit.
// The chat client keys its upsell on limit_reached.
type LimitReachedResponse struct {
	Error        string `json:"error"`
	LimitReached bool   `json:"limit_reached"`
	Message      string `json:"message"`
	Limit        int    `json:"limit"`
}

// CheckoutResponse is returned by POST /payment/create-checkout.
type CheckoutResponse struct {
	CheckoutURL string `json:"checkoutUrl"`
}

// PortalResponse is returned by POST /payment/create-portal-session.
type PortalResponse struct {
	PortalURL string `json:"portalUrl"`
}

// SubscriptionStatusResponse is returned by GET /payment/subscription-status.
type SubscriptionStatusResponse struct {
	IsSubscribed bool `json:"isSubscribed"`
}

// WebhookResponse acknowledges a webhook delivery.
type WebhookResponse struct {
	Received bool `json:"received"`
}

// ChatResponse is returned by POST /chat.
type ChatResponse struct {
	Reply string `json:"reply"`
}

// HistoryResponse is returned by GET /chat/history.
type HistoryResponse struct {
	Messages []*models.ChatMessage `json:"messages"`
}

// DeleteHistoryResponse is returned by DELETE /chat/history.
type DeleteHistoryResponse struct {
	Deleted int `json:"deleted"`
}

// ReportResponse is returned by POST /support/report-issue.
type ReportResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}
