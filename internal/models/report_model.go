package models

import "time"

// Severity of a user-submitted issue report.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

// ReportStatusNew is the status every report is created with.
const ReportStatusNew = "new"

// AnonymousReporter fills UserID and Email when the reporter is not signed in.
const AnonymousReporter = "anonymous"

// IssueReport is an append-only support ticket.
type IssueReport struct {
	ID          string    `json:"id,omitempty" firestore:"-"`
	UserID      string    `json:"userId" firestore:"userId"`
	Email       string    `json:"email" firestore:"email"`
	Description string    `json:"description" firestore:"description"`
	Severity    Severity  `json:"severity" firestore:"severity"`
	Page        string    `json:"page" firestore:"page"`
	Status      string    `json:"status" firestore:"status"`
	CreatedAt   time.Time `json:"createdAt" firestore:"createdAt,serverTimestamp"`
}
