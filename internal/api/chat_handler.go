package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"luna-backend/internal/core"
	"luna-backend/internal/models"
)

// ChatHandler handles chat, history, usage and persona endpoints.
type ChatHandler struct {
	chatService core.ChatService
	dailyLimit  int
	logger      *zap.Logger
}

// NewChatHandler creates a new ChatHandler. dailyLimit is reported in limit responses.
func NewChatHandler(cs core.ChatService, dailyLimit int, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{chatService: cs, dailyLimit: dailyLimit, logger: logger}
}

func (h *ChatHandler) mapChatErrorToStatus(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, core.ErrBadRequest):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Details: err.Error()})
	case errors.Is(err, core.ErrLimitReached):
		c.JSON(http.StatusForbidden, LimitReachedResponse{
			Error:        "Daily limit reached",
			LimitReached: true,
			Message:      fmt.Sprintf("You've used all %d free messages for today. Upgrade to Luna Plus for unlimited chat.", h.dailyLimit),
			Limit:        h.dailyLimit,
		})
	case errors.Is(err, core.ErrPersonaLocked):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "This persona requires Luna Plus", Details: err.Error()})
	default:
		h.logger.Error("Internal server error in ChatHandler", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: fallback})
	}
}

// SendMessage handles POST /chat.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}
	userID, ok := resolveUserID(c, req.UserID)
	if !ok {
		return
	}

	reply, err := h.chatService.Send(c.Request.Context(), userID, req.Persona, req.Message)
	if err != nil {
		h.mapChatErrorToStatus(c, err, "Chat processing failed")
		return
	}
	c.JSON(http.StatusOK, ChatResponse{Reply: reply})
}

// GetHistory handles GET /chat/history?userId=&persona=&limit=.
func (h *ChatHandler) GetHistory(c *gin.Context) {
	userID, ok := resolveUserID(c, c.Query("userId"))
	if !ok {
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		// Out-of-range values are clamped by the service; only non-numbers are rejected.
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be an integer"})
			return
		}
		limit = n
	}

	msgs, err := h.chatService.History(c.Request.Context(), userID, c.Query("persona"), limit)
	if err != nil {
		h.mapChatErrorToStatus(c, err, "Failed to fetch history")
		return
	}
	c.JSON(http.StatusOK, HistoryResponse{Messages: msgs})
}

// DeleteHistory handles DELETE /chat/history?userId=&persona=.
func (h *ChatHandler) DeleteHistory(c *gin.Context) {
	userID, ok := resolveUserID(c, c.Query("userId"))
	if !ok {
		return
	}
	n, err := h.chatService.DeleteHistory(c.Request.Context(), userID, c.Query("persona"))
	if err != nil {
		h.mapChatErrorToStatus(c, err, "Failed to delete history")
		return
	}
	c.JSON(http.StatusOK, DeleteHistoryResponse{Deleted: n})
}

// GetUsage handles GET /chat/usage?userId=.
func (h *ChatHandler) GetUsage(c *gin.Context) {
	userID, ok := resolveUserID(c, c.Query("userId"))
	if !ok {
		return
	}
	usage, err := h.chatService.Usage(c.Request.Context(), userID)
	if err != nil {
		h.mapChatErrorToStatus(c, err, "Failed to fetch usage")
		return
	}
	c.JSON(http.StatusOK, usage)
}

// ListPersonas handles GET /personas?userId=.
func (h *ChatHandler) ListPersonas(c *gin.Context) {
	userID, ok := resolveUserID(c, c.Query("userId"))
	if !ok {
		return
	}
	personas, err := h.chatService.Personas(c.Request.Context(), userID)
	if err != nil {
		h.mapChatErrorToStatus(c, err, "Failed to list personas")
		return
	}
	c.JSON(http.StatusOK, gin.H{"personas": personas})
}
