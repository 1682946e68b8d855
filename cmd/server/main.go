package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"luna-backend/internal/api"
	"luna-backend/internal/billing"
	"luna-backend/internal/config"
	"luna-backend/internal/core"
	"luna-backend/internal/db"
	"luna-backend/internal/firebase"
	"luna-backend/internal/middleware"
	"luna-backend/pkg/cache"
	"luna-backend/pkg/messagequeue"
)

type repositories struct {
	users   db.UserRepository
	chats   db.ChatRepository
	reports db.ReportRepository
	usage   db.UsageRepository
}

func newLogger(release bool) (*zap.Logger, error) {
	if release {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func main() {
	// --- 1. Environment and configuration ---
	// A local .env file is a development convenience; deployed instances use real env vars.
	if !strings.EqualFold(os.Getenv("GIN_MODE"), gin.ReleaseMode) {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Printf("WARNING: failed to load .env file: %v", err)
		}
	}

	appConfig, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("CRITICAL_ERROR: Failed to load application configuration: %v", err)
	}

	// --- 2. Logger ---
	zapLogger, err := newLogger(appConfig.IsRelease())
	if err != nil {
		log.Fatalf("CRITICAL_ERROR: Failed to initialize Zap logger: %v", err)
	}
	defer zapLogger.Sync()
	zapLogger.Info("Application configuration loaded",
		zap.String("storage", appConfig.StorageBackend),
		zap.String("limit_backend", appConfig.LimitBackend),
		zap.String("auth_mode", appConfig.AuthMode))

	initCtx, cancelInit := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelInit()

	var closers []io.Closer

	// --- 3. Storage and identity ---
	var (
		repos    repositories
		identity core.IdentityProvider
		authMW   *middleware.AuthMiddleware
		fsClient *firestore.Client
	)
	switch appConfig.StorageBackend {
	case config.StorageFirestore:
		app, err := firebase.NewApp(initCtx, appConfig)
		if err != nil {
			zapLogger.Fatal("CRITICAL_ERROR: Failed to initialize Firebase app", zap.Error(err))
		}
		fsClient, err = db.NewFirestoreClient(initCtx, app)
		if err != nil {
			zapLogger.Fatal("CRITICAL_ERROR: Failed to initialize Firestore client", zap.Error(err))
		}
		closers = append(closers, fsClient)

		authClient, err := app.Auth(initCtx)
		if err != nil {
			zapLogger.Fatal("CRITICAL_ERROR: Failed to initialize Firebase Auth client", zap.Error(err))
		}
		identity = firebase.NewIdentityProvider(authClient)
		if appConfig.AuthMode == config.AuthVerify {
			authMW = middleware.NewAuthMiddleware(authClient, zapLogger)
		}

		repos = repositories{
			users:   db.NewFirestoreUserRepository(fsClient),
			chats:   db.NewFirestoreChatRepository(fsClient),
			reports: db.NewFirestoreReportRepository(fsClient),
			usage:   db.NewFirestoreUsageRepository(fsClient),
		}
		zapLogger.Info("Firestore repositories initialized", zap.String("project_id", appConfig.FirebaseProjectID))
	default:
		identity = firebase.OfflineIdentityProvider{}
		repos = repositories{
			users:   db.NewMemoryUserRepository(),
			chats:   db.NewMemoryChatRepository(nil),
			reports: db.NewMemoryReportRepository(),
			usage:   db.NewMemoryUsageRepository(),
		}
		zapLogger.Warn("Using in-memory storage; data is lost on restart")
	}

	// --- 4. Daily message limiter ---
	var limiter core.DailyLimiter
	switch appConfig.LimitBackend {
	case config.LimitRedis:
		counter, err := cache.NewRedisCounter(initCtx, cache.NewRedisCounterConfig{
			Address:  appConfig.RedisAddr,
			Password: appConfig.RedisPassword,
			DB:       appConfig.RedisDB,
			Prefix:   "luna:",
		}, zapLogger)
		if err != nil {
			zapLogger.Fatal("CRITICAL_ERROR: Failed to connect to Redis", zap.Error(err))
		}
		closers = append(closers, counter)
		limiter = core.NewCounterLimiter(counter, appConfig.FreeDailyMessages, zapLogger)
	default:
		limiter = core.NewUsageLimiter(repos.usage, appConfig.FreeDailyMessages)
	}

	// --- 5. Event publishing ---
	var publisher messagequeue.Publisher = messagequeue.NoopPublisher{}
	if appConfig.RabbitMQURL != "" {
		mq, err := messagequeue.NewRabbitMQPublisher(messagequeue.NewRabbitMQPublisherConfig{
			URL:    appConfig.RabbitMQURL,
			Queues: []string{appConfig.RabbitMQEntitlementQueue, appConfig.RabbitMQReportsQueue},
		}, zapLogger)
		if err != nil {
			// Events are best effort; the API stays up without a broker.
			zapLogger.Warn("RabbitMQ unavailable, events will not be published", zap.Error(err))
		} else {
			publisher = mq
			closers = append(closers, mq)
		}
	}

	// --- 6. Services ---
	if appConfig.StripeWebhookSecret == "" {
		zapLogger.Warn("STRIPE_WEBHOOK_SECRET is not set: webhook signatures will NOT be verified")
	}
	billingService := core.NewBillingService(
		repos.users,
		identity,
		billing.NewStripeProvider(appConfig.StripeSecretKey),
		publisher,
		core.BillingOptionsFromConfig(appConfig),
		zapLogger,
	)
	chatService := core.NewChatService(
		repos.chats,
		billingService,
		limiter,
		core.EchoResponder{},
		core.ChatOptions{DefaultPersona: appConfig.DefaultPersona},
		zapLogger,
	)
	supportService := core.NewSupportService(repos.reports, publisher, appConfig.RabbitMQReportsQueue, zapLogger)

	// --- 7. HTTP engine ---
	if appConfig.IsRelease() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(zapLogger))
	router.Use(middleware.RecoveryMiddleware(zapLogger))
	router.Use(middleware.CORSMiddleware(appConfig))

	api.SetupRoutes(router, zapLogger, api.Services{
		Billing: billingService,
		Chat:    chatService,
		Support: supportService,
	}, authMW, appConfig.FreeDailyMessages)

	// --- 8. Serve and shut down gracefully ---
	serverAddr := fmt.Sprintf(":%s", appConfig.Port)
	httpServer := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		zapLogger.Info("Starting HTTP server", zap.String("address", serverAddr), zap.String("ginMode", gin.Mode()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	zapLogger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			zapLogger.Warn("Error closing resource", zap.Error(err))
		}
	}
	zapLogger.Info("Server exiting gracefully.")
}
