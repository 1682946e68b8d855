package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"luna-backend/internal/core"
	"luna-backend/internal/middleware"
	"luna-backend/internal/models"
)

// SupportHandler handles issue reports.
type SupportHandler struct {
	supportService core.SupportService
	logger         *zap.Logger
}

// NewSupportHandler creates a new SupportHandler.
func NewSupportHandler(ss core.SupportService, logger *zap.Logger) *SupportHandler {
	return &SupportHandler{supportService: ss, logger: logger}
}

// ReportIssue handles POST /support/report-issue.
func (h *SupportHandler) ReportIssue(c *gin.Context) {
	var req models.ReportIssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}
	userID, ok := resolveUserID(c, req.UserID)
	if !ok {
		return
	}
	req.UserID = userID
	if req.Email == "" {
		req.Email = c.GetString(middleware.UserEmailKey)
	}

	id, err := h.supportService.ReportIssue(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrBadRequest), errors.Is(err, core.ErrInvalidSeverity):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid report", Details: err.Error()})
		default:
			h.logger.Error("Error reporting issue", zap.Error(err))
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to submit report"})
		}
		return
	}
	c.JSON(http.StatusOK, ReportResponse{Success: true, Message: "Report submitted", ID: id})
}
