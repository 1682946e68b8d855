package db

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"luna-backend/internal/models"
)

type firestoreChatRepository struct {
	client *firestore.Client
}

// NewFirestoreChatRepository creates a ChatRepository backed by the chats collection.
// Query needs a composite index on (userId, persona, createdAt).
func NewFirestoreChatRepository(client *firestore.Client) ChatRepository {
	return &firestoreChatRepository{client: client}
}

func (r *firestoreChatRepository) Append(ctx context.Context, msg *models.ChatMessage) (string, error) {
	if msg == nil || msg.UserID == "" {
		return "", errors.New("chat message with a userID is required for Append operation")
	}
	// CreatedAt is left zero so the serverTimestamp tag assigns it.
	ref, _, err := r.client.Collection(chatsCollection).Add(ctx, msg)
	if err != nil {
		return "", fmt.Errorf("failed to append chat message for user '%s': %w", msg.UserID, err)
	}
	return ref.ID, nil
}

func (r *firestoreChatRepository) Query(ctx context.Context, userID, persona string, limit int) ([]*models.ChatMessage, error) {
	if userID == "" {
		return nil, errors.New("userID cannot be empty for Query operation")
	}
	q := r.client.Collection(chatsCollection).
		Where("userId", "==", userID).
		Where("persona", "==", persona).
		OrderBy("createdAt", firestore.Asc).
		Limit(limit)

	snaps, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query chat history for user '%s': %w", userID, err)
	}
	messages := make([]*models.ChatMessage, 0, len(snaps))
	for _, snap := range snaps {
		var msg models.ChatMessage
		if err := snap.DataTo(&msg); err != nil {
			return nil, fmt.Errorf("failed to decode chat message '%s': %w", snap.Ref.ID, err)
		}
		msg.ID = snap.Ref.ID
		messages = append(messages, &msg)
	}
	return messages, nil
}

func (r *firestoreChatRepository) DeleteAll(ctx context.Context, userID, persona string) (int, error) {
	if userID == "" {
		return 0, errors.New("userID cannot be empty for DeleteAll operation")
	}
	q := r.client.Collection(chatsCollection).Where("userId", "==", userID)
	if persona != "" {
		q = q.Where("persona", "==", persona)
	}

	bw := r.client.BulkWriter(ctx)
	var jobs []*firestore.BulkWriterJob

	iter := q.Documents(ctx)
	defer iter.Stop()
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			bw.End()
			return 0, fmt.Errorf("failed to list chat messages for user '%s': %w", userID, err)
		}
		job, err := bw.Delete(snap.Ref)
		if err != nil {
			bw.End()
			return 0, fmt.Errorf("failed to enqueue delete of '%s': %w", snap.Ref.ID, err)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	deleted := 0
	var firstErr error
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		deleted++
	}
	if firstErr != nil {
		return deleted, fmt.Errorf("failed to delete %d of %d chat messages for user '%s': %w", len(jobs)-deleted, len(jobs), userID, firstErr)
	}
	return deleted, nil
}
