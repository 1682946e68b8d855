package db

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"

	"luna-backend/internal/models"
)

type firestoreUsageRepository struct {
	client *firestore.Client
}

// NewFirestoreUsageRepository creates a UsageRepository storing one document per user per day.
func NewFirestoreUsageRepository(client *firestore.Client) UsageRepository {
	return &firestoreUsageRepository{client: client}
}

func usageDocID(userID, day string) string {
	return userID + "_" + day
}

func (r *firestoreUsageRepository) Increment(ctx context.Context, userID, day string, limit int) (int, bool, error) {
	ref := r.client.Collection(usageCollection).Doc(usageDocID(userID, day))

	var (
		count   int
		applied bool
	)
	// Check and increment in one transaction; the closure may run again on contention.
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		count, applied = 0, false
		snap, err := tx.Get(ref)
		if err != nil && !isNotFound(err) {
			return err
		}
		if snap != nil && snap.Exists() {
			var usage models.DailyUsage
			if err := snap.DataTo(&usage); err != nil {
				return err
			}
			count = usage.Count
		}
		// At the ceiling: report the current count without writing.
		if count+1 > limit {
			return nil
		}
		count++
		applied = true
		return tx.Set(ref, &models.DailyUsage{UserID: userID, Day: day, Count: count})
	})
	if err != nil {
		return 0, false, fmt.Errorf("failed to increment usage for user '%s' on %s: %w", userID, day, err)
	}
	return count, applied, nil
}

func (r *firestoreUsageRepository) Get(ctx context.Context, userID, day string) (int, error) {
	snap, err := r.client.Collection(usageCollection).Doc(usageDocID(userID, day)).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read usage for user '%s' on %s: %w", userID, day, err)
	}
	var usage models.DailyUsage
	if err := snap.DataTo(&usage); err != nil {
		return 0, fmt.Errorf("failed to decode usage for user '%s': %w", userID, err)
	}
	return usage.Count, nil
}
