package db

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	usersCollection   = "users"
	chatsCollection   = "chats"
	reportsCollection = "reports"
	usageCollection   = "usage"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("document not found")

// NewFirestoreClient opens the Firestore client of an initialized Firebase app.
func NewFirestoreClient(ctx context.Context, app *firebase.App) (*firestore.Client, error) {
	if app == nil {
		return nil, errors.New("NewFirestoreClient: firebase app cannot be nil")
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("app.Firestore: %w", err)
	}
	return client, nil
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}
