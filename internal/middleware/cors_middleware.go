package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"luna-backend/internal/config"
)

// CORSMiddleware allows the configured CLIENT_URL to call the API.
func CORSMiddleware(appConfig *config.Config) gin.HandlerFunc {
	// A wildcard origin is not allowed together with credentials, so the client URL is mandatory.
	if appConfig == nil || appConfig.ClientURL == "" {
		panic("ClientURL for CORS is not configured")
	}

	return cors.New(cors.Config{
		AllowOrigins:     []string{appConfig.ClientURL},
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With", RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", RequestIDHeader},
		AllowCredentials: true,           // Authorization header carries the Firebase ID token
		MaxAge:           12 * time.Hour, // Cache preflight responses
	})
}
