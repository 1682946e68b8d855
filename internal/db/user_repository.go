package db

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"

	"luna-backend/internal/models"
)

type firestoreUserRepository struct {
	client *firestore.Client
}

// NewFirestoreUserRepository creates a UserRepository backed by the users collection.
func NewFirestoreUserRepository(client *firestore.Client) UserRepository {
	return &firestoreUserRepository{client: client}
}

func (r *firestoreUserRepository) GetByID(ctx context.Context, userID string) (*models.User, error) {
	if userID == "" {
		return nil, errors.New("userID cannot be empty for GetByID operation")
	}
	snap, err := r.client.Collection(usersCollection).Doc(userID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("user with ID '%s' not found: %w", userID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user with ID '%s': %w", userID, err)
	}

	var user models.User
	if err := snap.DataTo(&user); err != nil {
		return nil, fmt.Errorf("failed to decode user data for ID '%s': %w", userID, err)
	}
	user.ID = snap.Ref.ID
	return &user, nil
}

func (r *firestoreUserRepository) FindByBillingCustomerID(ctx context.Context, customerID string) ([]*models.User, error) {
	if customerID == "" {
		return nil, errors.New("customerID cannot be empty for FindByBillingCustomerID operation")
	}
	snaps, err := r.client.Collection(usersCollection).
		Where("stripeCustomerId", "==", customerID).
		Limit(2).
		Documents(ctx).
		GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query users by customer '%s': %w", customerID, err)
	}

	users := make([]*models.User, 0, len(snaps))
	for _, snap := range snaps {
		var user models.User
		if err := snap.DataTo(&user); err != nil {
			return nil, fmt.Errorf("failed to decode user '%s': %w", snap.Ref.ID, err)
		}
		user.ID = snap.Ref.ID
		users = append(users, &user)
	}
	return users, nil
}

func (r *firestoreUserRepository) SetBillingCustomerIDIfAbsent(ctx context.Context, userID, customerID string) (string, error) {
	if userID == "" || customerID == "" {
		return "", errors.New("userID and customerID are required for SetBillingCustomerIDIfAbsent operation")
	}
	ref := r.client.Collection(usersCollection).Doc(userID)

	var stored string
	// Read and write in one transaction so concurrent first checkouts agree on a single customer.
	// Firestore retries the function on contention, so it must only assign, never append.
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		// A missing document is fine here; the user gets a record on first checkout.
		if err != nil && !isNotFound(err) {
			return err
		}
		if snap != nil && snap.Exists() {
			var existing models.User
			if err := snap.DataTo(&existing); err != nil {
				return err
			}
			// Someone else won; report their id and leave the document alone.
			if existing.BillingCustomerID != "" {
				stored = existing.BillingCustomerID
				return nil
			}
		}
		stored = customerID
		// Merge so a record created by another path keeps its entitlement fields.
		return tx.Set(ref, map[string]interface{}{
			"stripeCustomerId": customerID,
			"updatedAt":        firestore.ServerTimestamp,
		}, firestore.MergeAll)
	})
	if err != nil {
		return "", fmt.Errorf("failed to set customer for user '%s': %w", userID, err)
	}
	return stored, nil
}

func (r *firestoreUserRepository) UpdateEntitlement(ctx context.Context, userID string, isSubscribed bool, status string) error {
	if userID == "" {
		return errors.New("userID cannot be empty for UpdateEntitlement operation")
	}
	// Update (not Set) fails on a missing document, so webhooks never create user records.
	_, err := r.client.Collection(usersCollection).Doc(userID).Update(ctx, []firestore.Update{
		{Path: "isSubscribed", Value: isSubscribed},
		{Path: "subscriptionStatus", Value: status},
		{Path: "updatedAt", Value: firestore.ServerTimestamp},
	})
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("user with ID '%s' not found: %w", userID, ErrNotFound)
		}
		return fmt.Errorf("failed to update entitlement for user '%s': %w", userID, err)
	}
	return nil
}
