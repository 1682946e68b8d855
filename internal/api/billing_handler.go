package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"luna-backend/internal/core"
	"luna-backend/internal/metrics"
	"luna-backend/internal/models"
)

// webhookBodyLimit caps webhook payloads; Stripe events are far smaller.
const webhookBodyLimit = 64 << 10

// BillingHandler handles the payment endpoints and the billing webhook.
type BillingHandler struct {
	billingService core.BillingService
	logger         *zap.Logger
}

// NewBillingHandler creates a new BillingHandler.
func NewBillingHandler(bs core.BillingService, logger *zap.Logger) *BillingHandler {
	return &BillingHandler{billingService: bs, logger: logger}
}

// mapBillingErrorToStatus maps errors from core.BillingService to HTTP responses.
func (h *BillingHandler) mapBillingErrorToStatus(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, core.ErrBadRequest):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Missing userId", Details: err.Error()})
	case errors.Is(err, core.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "User or customer not found. You may not have an active subscription."})
	case errors.Is(err, core.ErrUpstream):
		h.logger.Error("Payment provider error", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: fallback, Details: "Could not complete the operation with the payment provider."})
	default:
		h.logger.Error("Internal server error in BillingHandler", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: fallback})
	}
}

func requestOrigin(c *gin.Context) string {
	return c.GetHeader("Origin")
}

// CreateCheckoutSession handles POST /payment/create-checkout.
func (h *BillingHandler) CreateCheckoutSession(c *gin.Context) {
	var req models.CreateCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}
	userID, ok := resolveUserID(c, req.UserID)
	if !ok {
		return
	}

	url, err := h.billingService.CreateCheckoutSession(c.Request.Context(), userID, req.PlanID, requestOrigin(c))
	if err != nil {
		h.mapBillingErrorToStatus(c, err, "Failed to create checkout session")
		return
	}
	c.JSON(http.StatusOK, CheckoutResponse{CheckoutURL: url})
}

// CreatePortalSession handles POST /payment/create-portal-session.
func (h *BillingHandler) CreatePortalSession(c *gin.Context) {
	var req models.CreatePortalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}
	userID, ok := resolveUserID(c, req.UserID)
	if !ok {
		return
	}

	url, err := h.billingService.CreatePortalSession(c.Request.Context(), userID, requestOrigin(c))
	if err != nil {
		h.mapBillingErrorToStatus(c, err, "Failed to create portal session")
		return
	}
	c.JSON(http.StatusOK, PortalResponse{PortalURL: url})
}

// GetSubscriptionStatus handles GET /payment/subscription-status?userId=.
func (h *BillingHandler) GetSubscriptionStatus(c *gin.Context) {
	userID, ok := resolveUserID(c, c.Query("userId"))
	if !ok {
		return
	}
	subscribed, err := h.billingService.GetSubscriptionStatus(c.Request.Context(), userID)
	if err != nil {
		h.mapBillingErrorToStatus(c, err, "Failed to check status")
		return
	}
	c.JSON(http.StatusOK, SubscriptionStatusResponse{IsSubscribed: subscribed})
}

// HandleWebhook handles the billing provider webhook. Authentication is by the
// Stripe-Signature header, so the route carries no auth middleware.
func (h *BillingHandler) HandleWebhook(c *gin.Context) {
	// Signature verification needs the exact raw bytes, so the body is read before any binding.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, webhookBodyLimit)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("unknown", metrics.OutcomeError).Inc()
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Webhook Error: failed to read request body", Details: err.Error()})
		return
	}

	event, err := h.billingService.VerifyWebhookSignature(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		outcome := metrics.OutcomeError
		if errors.Is(err, core.ErrSignatureInvalid) {
			outcome = metrics.OutcomeInvalid
		}
		metrics.WebhookEventsTotal.WithLabelValues("unknown", outcome).Inc()
		h.logger.Warn("Rejected webhook delivery", zap.Error(err), zap.String("client_ip", c.ClientIP()))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Webhook Error: " + webhookErrorMessage(err)})
		return
	}

	outcome, err := h.billingService.SyncFromWebhookEvent(c.Request.Context(), event)
	if err != nil {
		// A 5xx makes Stripe redeliver the event later.
		metrics.WebhookEventsTotal.WithLabelValues(event.Type, metrics.OutcomeError).Inc()
		h.logger.Error("Webhook processing failed",
			zap.String("event_id", event.ID), zap.String("event_type", event.Type), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Webhook processing failed"})
		return
	}

	// Unmatched and ignored events are still acknowledged so Stripe stops retrying them.
	metrics.WebhookEventsTotal.WithLabelValues(event.Type, string(outcome)).Inc()
	c.JSON(http.StatusOK, WebhookResponse{Received: true})
}

func webhookErrorMessage(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{core.ErrSignatureInvalid, core.ErrBadRequest} {
		msg = strings.TrimPrefix(msg, sentinel.Error()+": ")
	}
	return msg
}
