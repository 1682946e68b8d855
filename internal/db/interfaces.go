package db

import (
	"context"

	"luna-backend/internal/models"
)

// UserRepository stores entitlement records keyed by user ID.
type UserRepository interface {
	GetByID(ctx context.Context, userID string) (*models.User, error)
	// FindByBillingCustomerID returns at most two records so callers can detect a broken
	// one-customer-per-user invariant without scanning the collection.
	FindByBillingCustomerID(ctx context.Context, customerID string) ([]*models.User, error)
	// SetBillingCustomerIDIfAbsent writes customerID only if the record has no customer yet,
	// creating the record if needed. It returns the customer ID stored after the call.
	SetBillingCustomerIDIfAbsent(ctx context.Context, userID, customerID string) (string, error)
	// UpdateEntitlement overwrites the entitlement fields of an existing record.
	UpdateEntitlement(ctx context.Context, userID string, isSubscribed bool, status string) error
}

// ChatRepository stores chat exchanges partitioned by (userID, persona).
type ChatRepository interface {
	Append(ctx context.Context, msg *models.ChatMessage) (string, error)
	// Query returns up to limit messages in ascending creation order.
	Query(ctx context.Context, userID, persona string, limit int) ([]*models.ChatMessage, error)
	// DeleteAll removes every message of userID, or only those of persona when it is non-empty.
	DeleteAll(ctx context.Context, userID, persona string) (int, error)
}

// ReportRepository stores support issue reports.
type ReportRepository interface {
	Create(ctx context.Context, report *models.IssueReport) (string, error)
}

// UsageRepository counts chat messages per user per UTC day.
type UsageRepository interface {
	// Increment adds one to the counter unless that would exceed limit. It returns the
	// counter value after the call and whether the increment was applied.
	Increment(ctx context.Context, userID, day string, limit int) (int, bool, error)
	Get(ctx context.Context, userID, day string) (int, error)
}
