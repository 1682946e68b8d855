package models

// CreateCheckoutRequest is the body of POST /payment/create-checkout.
// UserID is validated by the service so a missing value maps to BadRequest, not a binding error.
type CreateCheckoutRequest struct {
	UserID string `json:"userId"`
	PlanID string `json:"planId"`
}

// CreatePortalRequest is the body of POST /payment/create-portal-session.
type CreatePortalRequest struct {
	UserID string `json:"userId"`
}

// ChatRequest is the body of POST /chat. Persona and UserID are optional.
type ChatRequest struct {
	Message string `json:"message" binding:"required"`
	Persona string `json:"persona,omitempty"`
	UserID  string `json:"userId,omitempty"`
}

// ReportIssueRequest is the body of POST /support/report-issue.
type ReportIssueRequest struct {
	UserID      string `json:"userId,omitempty"`
	Email       string `json:"email,omitempty"`
	Description string `json:"description"`
	Severity    string `json:"severity,omitempty"`
	Page        string `json:"page,omitempty"`
}
