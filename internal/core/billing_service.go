package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"luna-backend/internal/config"
	"luna-backend/internal/db"
	"luna-backend/internal/metrics"
	"luna-backend/internal/models"
	"luna-backend/pkg/messagequeue"
)

const (
	checkoutSuccessPath = "/luna-plus?payment=success&session_id={CHECKOUT_SESSION_ID}"
	checkoutCancelPath  = "/luna-plus?payment=cancelled"
)

// BillingOptions carries the configuration BillingService needs.
type BillingOptions struct {
	// Prices maps plan ids to provider price ids. It must contain config.PlanMonthly.
	Prices           map[string]string
	WebhookSecret    string
	ClientURL        string
	EntitlementQueue string
}

// BillingOptionsFromConfig extracts BillingOptions from the application config.
func BillingOptionsFromConfig(cfg *config.Config) BillingOptions {
	return BillingOptions{
		Prices:           cfg.PriceTable(),
		WebhookSecret:    cfg.StripeWebhookSecret,
		ClientURL:        cfg.ClientURL,
		EntitlementQueue: cfg.RabbitMQEntitlementQueue,
	}
}

type billingService struct {
	users     db.UserRepository
	identity  IdentityProvider
	provider  BillingProvider
	publisher messagequeue.Publisher
	opts      BillingOptions
	logger    *zap.Logger
}

// NewBillingService creates a BillingService. A nil publisher disables entitlement events.
func NewBillingService(
	users db.UserRepository,
	identity IdentityProvider,
	provider BillingProvider,
	publisher messagequeue.Publisher,
	opts BillingOptions,
	logger *zap.Logger,
) BillingService {
	if publisher == nil {
		publisher = messagequeue.NoopPublisher{}
	}
	return &billingService{
		users:     users,
		identity:  identity,
		provider:  provider,
		publisher: publisher,
		opts:      opts,
		logger:    logger,
	}
}

func (s *billingService) EnsureCustomer(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: userId is required", ErrBadRequest)
	}

	// 1. Reuse the stored customer if there is one.
	user, err := s.users.GetByID(ctx, userID)
	switch {
	case err == nil && user.BillingCustomerID != "":
		return user.BillingCustomerID, nil
	case err != nil && !errors.Is(err, db.ErrNotFound):
		return "", fmt.Errorf("failed to load user record '%s': %w", userID, err)
	}

	// 2. Create a customer tagged with the user's email and id.
	email, err := s.identity.LookupEmail(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", err
		}
		return "", fmt.Errorf("%w: identity lookup for user '%s': %v", ErrUpstream, userID, err)
	}

	created, err := s.provider.CreateCustomer(ctx, CustomerParams{
		UserID:         userID,
		Email:          email,
		IdempotencyKey: customerIdempotencyKey(userID, email),
	})
	if err != nil {
		return "", fmt.Errorf("%w: create customer for user '%s': %v", ErrUpstream, userID, err)
	}

	// 3. Store it only if no concurrent request got there first.
	stored, err := s.users.SetBillingCustomerIDIfAbsent(ctx, userID, created)
	if err != nil {
		s.logger.Error("Billing customer created but not stored",
			zap.String("user_id", userID), zap.String("customer_id", created), zap.Error(err))
		return "", fmt.Errorf("failed to store billing customer for user '%s': %w", userID, err)
	}

	if stored != created {
		// A concurrent request stored its customer first; ours is discarded.
		metrics.OrphanCustomersTotal.Inc()
		s.logger.Warn("Discarding billing customer created concurrently",
			zap.String("user_id", userID), zap.String("kept", stored), zap.String("discarded", created))
		if err := s.provider.DeleteCustomer(ctx, created); err != nil {
			s.logger.Error("Failed to delete discarded billing customer",
				zap.String("user_id", userID), zap.String("customer_id", created), zap.Error(err))
		}
	}
	return stored, nil
}

// customerIdempotencyKey is stable for concurrent first checkouts of the same user. The
// email digest changes the key when the email does, since Stripe rejects a replayed key
// whose parameters differ.
func customerIdempotencyKey(userID, email string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return "customer-" + userID + "-" + hex.EncodeToString(sum[:6])
}

func (s *billingService) resolvePrice(planID string) (string, string) {
	if price, ok := s.opts.Prices[planID]; ok && price != "" {
		return planID, price
	}
	return config.PlanMonthly, s.opts.Prices[config.PlanMonthly]
}

func (s *billingService) origin(originURL string) string {
	origin := strings.TrimSpace(originURL)
	if origin == "" {
		origin = s.opts.ClientURL
	}
	return strings.TrimRight(origin, "/")
}

func (s *billingService) CreateCheckoutSession(ctx context.Context, userID, planID, originURL string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: userId is required", ErrBadRequest)
	}

	plan, price := s.resolvePrice(planID)
	customerID, err := s.EnsureCustomer(ctx, userID)
	if err != nil {
		metrics.CheckoutSessionsTotal.WithLabelValues(plan, metrics.OutcomeError).Inc()
		return "", err
	}

	origin := s.origin(originURL)
	url, err := s.provider.CreateCheckoutSession(ctx, CheckoutParams{
		CustomerID: customerID,
		PriceID:    price,
		UserID:     userID,
		SuccessURL: origin + checkoutSuccessPath,
		CancelURL:  origin + checkoutCancelPath,
	})
	if err != nil {
		metrics.CheckoutSessionsTotal.WithLabelValues(plan, metrics.OutcomeError).Inc()
		return "", fmt.Errorf("%w: create checkout session for user '%s': %v", ErrUpstream, userID, err)
	}

	metrics.CheckoutSessionsTotal.WithLabelValues(plan, metrics.OutcomeCreated).Inc()
	s.logger.Info("Checkout session created",
		zap.String("user_id", userID), zap.String("plan", plan), zap.String("customer_id", customerID))
	return url, nil
}

func (s *billingService) CreatePortalSession(ctx context.Context, userID, returnURL string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: userId is required", ErrBadRequest)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return "", fmt.Errorf("%w: no active subscription found for user '%s'", ErrNotFound, userID)
		}
		return "", fmt.Errorf("failed to load user record '%s': %w", userID, err)
	}
	if user.BillingCustomerID == "" {
		return "", fmt.Errorf("%w: no active subscription found for user '%s'", ErrNotFound, userID)
	}

	url, err := s.provider.CreatePortalSession(ctx, user.BillingCustomerID, s.origin(returnURL))
	if err != nil {
		return "", fmt.Errorf("%w: create portal session for user '%s': %v", ErrUpstream, userID, err)
	}
	return url, nil
}

func (s *billingService) GetSubscriptionStatus(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, fmt.Errorf("%w: userId is required", ErrBadRequest)
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to load user record '%s': %w", userID, err)
	}
	return user.IsSubscribed, nil
}

func (s *billingService) VerifyWebhookSignature(payload []byte, signatureHeader string) (*WebhookEvent, error) {
	if s.opts.WebhookSecret == "" {
		s.logger.Warn("Accepting unsigned webhook: no signing secret configured")
	}
	return s.provider.ConstructEvent(payload, signatureHeader, s.opts.WebhookSecret)
}

func (s *billingService) SyncFromWebhookEvent(ctx context.Context, event *WebhookEvent) (SyncOutcome, error) {
	if event == nil {
		return SyncIgnored, fmt.Errorf("%w: nil event", ErrBadRequest)
	}
	if event.Type != EventSubscriptionUpdated && event.Type != EventSubscriptionDeleted {
		s.logger.Debug("Ignoring webhook event", zap.String("event_type", event.Type), zap.String("event_id", event.ID))
		return SyncIgnored, nil
	}
	log := s.logger.With(
		zap.String("event_type", event.Type),
		zap.String("event_id", event.ID),
		zap.String("customer_id", event.CustomerID),
	)
	if event.CustomerID == "" {
		log.Warn("Subscription event without customer id")
		return SyncIgnored, nil
	}

	// Webhooks only update existing records; a customer with no user is left alone.
	users, err := s.users.FindByBillingCustomerID(ctx, event.CustomerID)
	if err != nil {
		return "", fmt.Errorf("failed to look up customer '%s': %w", event.CustomerID, err)
	}
	switch len(users) {
	case 0:
		log.Info("No user record for billing customer")
		return SyncNoMatch, nil
	case 1:
	default:
		log.Error("Billing customer matches more than one user record; skipping sync",
			zap.String("first_user_id", users[0].ID), zap.String("second_user_id", users[1].ID))
		return SyncAmbiguous, nil
	}

	// Last write wins: events carry no sequence number to order them by.
	user := users[0]
	isSubscribed := models.Entitled(event.Status)
	if err := s.users.UpdateEntitlement(ctx, user.ID, isSubscribed, event.Status); err != nil {
		return "", fmt.Errorf("failed to update entitlement of user '%s': %w", user.ID, err)
	}
	log.Info("Entitlement synced",
		zap.String("user_id", user.ID), zap.String("status", event.Status), zap.Bool("is_subscribed", isSubscribed))

	s.publishChange(ctx, models.EntitlementChange{
		UserID:             user.ID,
		BillingCustomerID:  event.CustomerID,
		SubscriptionStatus: event.Status,
		IsSubscribed:       isSubscribed,
		EventType:          event.Type,
		EventID:            event.ID,
		OccurredAt:         eventTime(event),
	})
	return SyncApplied, nil
}

func (s *billingService) publishChange(ctx context.Context, change models.EntitlementChange) {
	if s.opts.EntitlementQueue == "" {
		return
	}
	body, err := json.Marshal(change)
	if err != nil {
		s.logger.Warn("Failed to encode entitlement change", zap.String("user_id", change.UserID), zap.Error(err))
		return
	}
	if err := s.publisher.Publish(ctx, s.opts.EntitlementQueue, body); err != nil {
		s.logger.Warn("Failed to publish entitlement change",
			zap.String("user_id", change.UserID), zap.String("queue", s.opts.EntitlementQueue), zap.Error(err))
	}
}

func eventTime(event *WebhookEvent) time.Time {
	if event.Created.IsZero() {
		return time.Now().UTC()
	}
	return event.Created.UTC()
}
