package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"luna-backend/internal/core"
	"luna-backend/internal/middleware"
)

// Services groups the core services the routes depend on.
type Services struct {
	Billing core.BillingService
	Chat    core.ChatService
	Support core.SupportService
}

func passthrough(c *gin.Context) { c.Next() }

// SetupRoutes registers every endpoint on router. Global middleware (request id,
// logging, recovery, CORS) is expected to be installed already. A nil authMW leaves
// all routes unauthenticated and trusts the userId supplied by the client.
func SetupRoutes(
	router *gin.Engine,
	logger *zap.Logger,
	services Services,
	authMW *middleware.AuthMiddleware,
	dailyLimit int,
) {
	requireUser, optionalUser := gin.HandlerFunc(passthrough), gin.HandlerFunc(passthrough)
	if authMW != nil {
		requireUser, optionalUser = authMW.VerifyToken(), authMW.OptionalToken()
	}

	billingHandler := NewBillingHandler(services.Billing, logger)
	chatHandler := NewChatHandler(services.Chat, dailyLimit, logger)
	supportHandler := NewSupportHandler(services.Support, logger)

	apiV1 := router.Group("/api/v1")
	{
		apiV1.POST("/support/report-issue", optionalUser, supportHandler.ReportIssue)

		payment := apiV1.Group("/payment")
		{
			payment.POST("/create-checkout", requireUser, billingHandler.CreateCheckoutSession)
			payment.POST("/create-portal-session", requireUser, billingHandler.CreatePortalSession)
			payment.GET("/subscription-status", requireUser, billingHandler.GetSubscriptionStatus)
			// Authenticated by the Stripe-Signature header.
			payment.POST("/webhook", billingHandler.HandleWebhook)
		}

		apiV1.POST("/chat", optionalUser, chatHandler.SendMessage)
		chat := apiV1.Group("/chat", requireUser)
		{
			chat.GET("/history", chatHandler.GetHistory)
			chat.DELETE("/history", chatHandler.DeleteHistory)
			chat.GET("/usage", chatHandler.GetUsage)
		}

		apiV1.GET("/personas", optionalUser, chatHandler.ListPersonas)
	}

	router.POST("/stripe/webhook", billingHandler.HandleWebhook)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	logger.Info("API routes configured", zap.Bool("auth_required", authMW != nil))
}
