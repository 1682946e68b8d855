package core

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"luna-backend/internal/db"
	"luna-backend/pkg/cache"
)

// counterTTL outlives a UTC day in every timezone a client may be in.
const counterTTL = 48 * time.Hour

// DayKey is the UTC calendar day of at, formatted YYYY-MM-DD.
func DayKey(at time.Time) string {
	return at.UTC().Format("2006-01-02")
}

func limitError(used, limit int) error {
	return fmt.Errorf("%w: %d of %d free messages used today", ErrLimitReached, used, limit)
}

type usageLimiter struct {
	usage db.UsageRepository
	limit int
}

// NewUsageLimiter creates a DailyLimiter backed by a UsageRepository.
func NewUsageLimiter(usage db.UsageRepository, limit int) DailyLimiter {
	return &usageLimiter{usage: usage, limit: limit}
}

func (l *usageLimiter) Limit() int { return l.limit }

func (l *usageLimiter) Consume(ctx context.Context, userID string, at time.Time) (int, error) {
	count, applied, err := l.usage.Increment(ctx, userID, DayKey(at), l.limit)
	if err != nil {
		return 0, err
	}
	if !applied {
		return count, limitError(count, l.limit)
	}
	return count, nil
}

func (l *usageLimiter) Used(ctx context.Context, userID string, at time.Time) (int, error) {
	return l.usage.Get(ctx, userID, DayKey(at))
}

type counterLimiter struct {
	counter cache.Counter
	limit   int
	logger  *zap.Logger
}

// NewCounterLimiter creates a DailyLimiter backed by a cache.Counter such as Redis.
func NewCounterLimiter(counter cache.Counter, limit int, logger *zap.Logger) DailyLimiter {
	return &counterLimiter{counter: counter, limit: limit, logger: logger}
}

func counterKey(userID string, at time.Time) string {
	return "usage:" + userID + ":" + DayKey(at)
}

func (l *counterLimiter) Limit() int { return l.limit }

func (l *counterLimiter) Consume(ctx context.Context, userID string, at time.Time) (int, error) {
	key := counterKey(userID, at)
	v, err := l.counter.Increment(ctx, key, counterTTL)
	if err != nil {
		return 0, err
	}
	if int(v) <= l.limit {
		return int(v), nil
	}
	// Undo the INCR for the refused attempt. A failed rollback over-counts by one until
	// the key expires.
	if err := l.counter.Decrement(ctx, key); err != nil {
		l.logger.Warn("Failed to roll back refused message count", zap.String("user_id", userID), zap.Error(err))
	}
	return l.limit, limitError(l.limit, l.limit)
}

func (l *counterLimiter) Used(ctx context.Context, userID string, at time.Time) (int, error) {
	v, err := l.counter.Get(ctx, counterKey(userID, at))
	if err != nil {
		return 0, err
	}
	if int(v) > l.limit {
		return l.limit, nil
	}
	return int(v), nil
}
