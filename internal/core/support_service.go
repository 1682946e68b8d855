package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"luna-backend/internal/db"
	"luna-backend/internal/models"
	"luna-backend/pkg/messagequeue"
)

type supportService struct {
	reports   db.ReportRepository
	publisher messagequeue.Publisher
	queue     string
	logger    *zap.Logger
}

// NewSupportService creates a SupportService. Stored reports are also published to queue
// when both publisher and queue are set.
func NewSupportService(reports db.ReportRepository, publisher messagequeue.Publisher, queue string, logger *zap.Logger) SupportService {
	if publisher == nil {
		publisher = messagequeue.NoopPublisher{}
	}
	return &supportService{reports: reports, publisher: publisher, queue: queue, logger: logger}
}

func (s *supportService) ReportIssue(ctx context.Context, req models.ReportIssueRequest) (string, error) {
	description := strings.TrimSpace(req.Description)
	if description == "" {
		return "", fmt.Errorf("%w: description is required", ErrBadRequest)
	}

	severity := models.Severity(strings.ToLower(strings.TrimSpace(req.Severity)))
	if severity == "" {
		severity = models.SeverityMedium
	}
	if !severity.Valid() {
		return "", fmt.Errorf("%w: %q (want low, medium or high)", ErrInvalidSeverity, req.Severity)
	}

	report := &models.IssueReport{
		UserID:      orDefault(req.UserID, models.AnonymousReporter),
		Email:       orDefault(req.Email, models.AnonymousReporter),
		Description: description,
		Severity:    severity,
		Page:        orDefault(req.Page, "unknown"),
		Status:      models.ReportStatusNew,
	}
	id, err := s.reports.Create(ctx, report)
	if err != nil {
		return "", fmt.Errorf("failed to store issue report: %w", err)
	}
	report.ID = id
	s.logger.Info("Issue report stored", zap.String("report_id", id), zap.String("user_id", report.UserID),
		zap.String("severity", string(severity)))

	if s.queue != "" {
		body, err := json.Marshal(report)
		if err == nil {
			err = s.publisher.Publish(ctx, s.queue, body)
		}
		if err != nil {
			s.logger.Warn("Failed to publish issue report", zap.String("report_id", id), zap.Error(err))
		}
	}
	return id, nil
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}
