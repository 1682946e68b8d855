package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"luna-backend/internal/db"
	"luna-backend/internal/gate"
	"luna-backend/internal/metrics"
	"luna-backend/internal/models"
)

// MaxHistory caps the number of messages returned by History.
const MaxHistory = 50

// EntitlementReader reports whether a user is subscribed.
type EntitlementReader interface {
	GetSubscriptionStatus(ctx context.Context, userID string) (bool, error)
}

// ChatOptions configures a ChatService.
type ChatOptions struct {
	// DefaultPersona labels messages sent without a persona.
	DefaultPersona string
	// Now returns the current time; nil uses time.Now.
	Now func() time.Time
}

type chatService struct {
	chats        db.ChatRepository
	entitlements EntitlementReader
	limiter      DailyLimiter
	responder    Responder
	opts         ChatOptions
	logger       *zap.Logger
}

// NewChatService creates a ChatService.
func NewChatService(
	chats db.ChatRepository,
	entitlements EntitlementReader,
	limiter DailyLimiter,
	responder Responder,
	opts ChatOptions,
	logger *zap.Logger,
) ChatService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.DefaultPersona == "" {
		opts.DefaultPersona = "Luna"
	}
	if responder == nil {
		responder = EchoResponder{}
	}
	return &chatService{
		chats:        chats,
		entitlements: entitlements,
		limiter:      limiter,
		responder:    responder,
		opts:         opts,
		logger:       logger,
	}
}

func (s *chatService) persona(p string) string {
	if p = strings.TrimSpace(p); p == "" {
		return s.opts.DefaultPersona
	}
	return p
}

// Send answers message. Signed-in users pass the persona gate and the daily limit and
// have the exchange stored; a storage failure is logged and does not affect the reply.
func (s *chatService) Send(ctx context.Context, userID, persona, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", fmt.Errorf("%w: message is required", ErrBadRequest)
	}
	persona = s.persona(persona)

	// Anonymous callers are treated as free users.
	entitled := false
	if userID != "" {
		var err error
		entitled, err = s.entitlements.GetSubscriptionStatus(ctx, userID)
		if err != nil {
			metrics.ChatMessagesTotal.WithLabelValues(metrics.OutcomeError).Inc()
			return "", fmt.Errorf("failed to read entitlement for user '%s': %w", userID, err)
		}
	}

	if !gate.Allowed(persona, entitled) {
		metrics.ChatMessagesTotal.WithLabelValues(metrics.OutcomePersonaLocked).Inc()
		return "", fmt.Errorf("%w: %s", ErrPersonaLocked, persona)
	}

	// The limit is checked after the persona gate so a locked persona does not use up a message.
	if userID != "" && !entitled && s.limiter != nil {
		if _, err := s.limiter.Consume(ctx, userID, s.opts.Now()); err != nil {
			outcome := metrics.OutcomeError
			if isLimitReached(err) {
				outcome = metrics.OutcomeLimitReached
			}
			metrics.ChatMessagesTotal.WithLabelValues(outcome).Inc()
			return "", err
		}
	}

	reply, err := s.responder.Reply(ctx, persona, message)
	if err != nil {
		metrics.ChatMessagesTotal.WithLabelValues(metrics.OutcomeError).Inc()
		return "", fmt.Errorf("%w: reply generation: %v", ErrUpstream, err)
	}
	metrics.ChatMessagesTotal.WithLabelValues(metrics.OutcomeReplied).Inc()

	// The reply is already computed; a storage failure is logged, not returned.
	if userID != "" {
		_, err := s.chats.Append(ctx, &models.ChatMessage{
			UserID:  userID,
			Persona: persona,
			Message: message,
			Reply:   reply,
		})
		if err != nil {
			metrics.ChatPersistFailuresTotal.Inc()
			s.logger.Warn("Failed to store chat message", zap.String("user_id", userID),
				zap.String("persona", persona), zap.Error(err))
		}
	}
	return reply, nil
}

func (s *chatService) History(ctx context.Context, userID, persona string, limit int) ([]*models.ChatMessage, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: userId is required", ErrBadRequest)
	}
	if limit <= 0 || limit > MaxHistory {
		limit = MaxHistory
	}
	msgs, err := s.chats.Query(ctx, userID, s.persona(persona), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load chat history for user '%s': %w", userID, err)
	}
	if msgs == nil {
		msgs = []*models.ChatMessage{}
	}
	return msgs, nil
}

func (s *chatService) DeleteHistory(ctx context.Context, userID, persona string) (int, error) {
	if userID == "" {
		return 0, fmt.Errorf("%w: userId is required", ErrBadRequest)
	}
	n, err := s.chats.DeleteAll(ctx, userID, strings.TrimSpace(persona))
	if err != nil {
		return n, fmt.Errorf("failed to delete chat history for user '%s': %w", userID, err)
	}
	s.logger.Info("Chat history deleted", zap.String("user_id", userID), zap.String("persona", persona), zap.Int("deleted", n))
	return n, nil
}

func (s *chatService) Usage(ctx context.Context, userID string) (*Usage, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: userId is required", ErrBadRequest)
	}
	entitled, err := s.entitlements.GetSubscriptionStatus(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read entitlement for user '%s': %w", userID, err)
	}
	if entitled || s.limiter == nil {
		return &Usage{Unlimited: true}, nil
	}

	used, err := s.limiter.Used(ctx, userID, s.opts.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to read usage for user '%s': %w", userID, err)
	}
	limit := s.limiter.Limit()
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	return &Usage{Used: used, Limit: limit, Remaining: remaining}, nil
}

func (s *chatService) Personas(ctx context.Context, userID string) ([]PersonaAccess, error) {
	entitled := false
	if userID != "" {
		var err error
		entitled, err = s.entitlements.GetSubscriptionStatus(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to read entitlement for user '%s': %w", userID, err)
		}
	}
	catalog := gate.Personas()
	out := make([]PersonaAccess, 0, len(catalog))
	for _, p := range catalog {
		out = append(out, PersonaAccess{Persona: p, Locked: !gate.Allowed(p.ID, entitled)})
	}
	return out, nil
}
