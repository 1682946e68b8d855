package db

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"luna-backend/internal/models"
)

// In-memory repositories back STORAGE_BACKEND=memory and the service tests.
// They honour the same contracts as the Firestore repositories.

type memoryUserRepository struct {
	mu    sync.Mutex
	users map[string]models.User
}

// NewMemoryUserRepository creates an empty in-memory UserRepository.
func NewMemoryUserRepository() UserRepository {
	return &memoryUserRepository{users: make(map[string]models.User)}
}

func (r *memoryUserRepository) GetByID(_ context.Context, userID string) (*models.User, error) {
	if userID == "" {
		return nil, errors.New("userID cannot be empty for GetByID operation")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return nil, fmt.Errorf("user with ID '%s' not found: %w", userID, ErrNotFound)
	}
	return &user, nil
}

func (r *memoryUserRepository) FindByBillingCustomerID(_ context.Context, customerID string) ([]*models.User, error) {
	if customerID == "" {
		return nil, errors.New("customerID cannot be empty for FindByBillingCustomerID operation")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.users))
	for id := range r.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var found []*models.User
	for _, id := range ids {
		user := r.users[id]
		if user.BillingCustomerID != customerID {
			continue
		}
		found = append(found, &user)
		if len(found) == 2 {
			break
		}
	}
	return found, nil
}

func (r *memoryUserRepository) SetBillingCustomerIDIfAbsent(_ context.Context, userID, customerID string) (string, error) {
	if userID == "" || customerID == "" {
		return "", errors.New("userID and customerID are required for SetBillingCustomerIDIfAbsent operation")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if ok && user.BillingCustomerID != "" {
		return user.BillingCustomerID, nil
	}
	user.ID = userID
	user.BillingCustomerID = customerID
	user.UpdatedAt = time.Now().UTC()
	r.users[userID] = user
	return customerID, nil
}

func (r *memoryUserRepository) UpdateEntitlement(_ context.Context, userID string, isSubscribed bool, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return fmt.Errorf("user with ID '%s' not found: %w", userID, ErrNotFound)
	}
	user.IsSubscribed = isSubscribed
	user.SubscriptionStatus = status
	user.UpdatedAt = time.Now().UTC()
	r.users[userID] = user
	return nil
}

type memoryChatRepository struct {
	mu       sync.Mutex
	now      func() time.Time
	last     time.Time
	messages []models.ChatMessage
}

// NewMemoryChatRepository creates an empty in-memory ChatRepository. A nil clock uses time.Now.
func NewMemoryChatRepository(now func() time.Time) ChatRepository {
	if now == nil {
		now = time.Now
	}
	return &memoryChatRepository{now: now}
}

func (r *memoryChatRepository) Append(_ context.Context, msg *models.ChatMessage) (string, error) {
	if msg == nil || msg.UserID == "" {
		return "", errors.New("chat message with a userID is required for Append operation")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	created := r.now().UTC()
	// Server timestamps never go backwards within a partition.
	if created.Before(r.last) {
		created = r.last
	}
	r.last = created

	stored := *msg
	stored.ID = uuid.NewString()
	stored.CreatedAt = created
	r.messages = append(r.messages, stored)
	return stored.ID, nil
}

func (r *memoryChatRepository) Query(_ context.Context, userID, persona string, limit int) ([]*models.ChatMessage, error) {
	if userID == "" {
		return nil, errors.New("userID cannot be empty for Query operation")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.ChatMessage
	for i := range r.messages {
		m := r.messages[i]
		if m.UserID != userID || m.Persona != persona {
			continue
		}
		out = append(out, &m)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryChatRepository) DeleteAll(_ context.Context, userID, persona string) (int, error) {
	if userID == "" {
		return 0, errors.New("userID cannot be empty for DeleteAll operation")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.messages[:0]
	deleted := 0
	for _, m := range r.messages {
		if m.UserID == userID && (persona == "" || m.Persona == persona) {
			deleted++
			continue
		}
		kept = append(kept, m)
	}
	r.messages = kept
	return deleted, nil
}

type memoryReportRepository struct {
	mu      sync.Mutex
	reports []models.IssueReport
}

// NewMemoryReportRepository creates an empty in-memory ReportRepository.
func NewMemoryReportRepository() ReportRepository {
	return &memoryReportRepository{}
}

func (r *memoryReportRepository) Create(_ context.Context, report *models.IssueReport) (string, error) {
	if report == nil {
		return "", errors.New("report cannot be nil for Create operation")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *report
	stored.ID = uuid.NewString()
	stored.CreatedAt = time.Now().UTC()
	r.reports = append(r.reports, stored)
	return stored.ID, nil
}

type memoryUsageRepository struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewMemoryUsageRepository creates an empty in-memory UsageRepository.
func NewMemoryUsageRepository() UsageRepository {
	return &memoryUsageRepository{counts: make(map[string]int)}
}

func (r *memoryUsageRepository) Increment(_ context.Context, userID, day string, limit int) (int, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := usageDocID(userID, day)
	count := r.counts[key]
	if count+1 > limit {
		return count, false, nil
	}
	count++
	r.counts[key] = count
	return count, true, nil
}

func (r *memoryUsageRepository) Get(_ context.Context, userID, day string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[usageDocID(userID, day)], nil
}
