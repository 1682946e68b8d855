package db

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"

	"luna-backend/internal/models"
)

type firestoreReportRepository struct {
	client *firestore.Client
}

// NewFirestoreReportRepository creates a ReportRepository backed by the reports collection.
func NewFirestoreReportRepository(client *firestore.Client) ReportRepository {
	return &firestoreReportRepository{client: client}
}

func (r *firestoreReportRepository) Create(ctx context.Context, report *models.IssueReport) (string, error) {
	ref, _, err := r.client.Collection(reportsCollection).Add(ctx, report)
	if err != nil {
		return "", fmt.Errorf("failed to create issue report: %w", err)
	}
	return ref.ID, nil
}
