package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"luna-backend/internal/db"
	"luna-backend/internal/models"
)

type fakeIdentity struct {
	emails map[string]string
	err    error
}

func (f *fakeIdentity) LookupEmail(_ context.Context, userID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	email, ok := f.emails[userID]
	if !ok {
		return "", fmt.Errorf("%w: identity '%s'", ErrNotFound, userID)
	}
	return email, nil
}

type fakeProvider struct {
	mu        sync.Mutex
	customers []CustomerParams
	deleted   []string
	checkouts []CheckoutParams
	portals   []string

	createErr   error
	checkoutErr error
	event       *WebhookEvent
	eventErr    error
}

func (f *fakeProvider) CreateCustomer(_ context.Context, params CustomerParams) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.customers = append(f.customers, params)
	return fmt.Sprintf("cus_%d", len(f.customers)), nil
}

func (f *fakeProvider) DeleteCustomer(_ context.Context, customerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, customerID)
	return nil
}

func (f *fakeProvider) CreateCheckoutSession(_ context.Context, params CheckoutParams) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.checkoutErr != nil {
		return "", f.checkoutErr
	}
	f.checkouts = append(f.checkouts, params)
	return "https://checkout.test/" + params.PriceID, nil
}

func (f *fakeProvider) CreatePortalSession(_ context.Context, customerID, returnURL string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.portals = append(f.portals, customerID)
	return "https://portal.test/" + customerID + "?return=" + returnURL, nil
}

func (f *fakeProvider) ConstructEvent(_ []byte, _ string, _ string) (*WebhookEvent, error) {
	if f.eventErr != nil {
		return nil, f.eventErr
	}
	return f.event, nil
}

type recordingPublisher struct {
	mu       sync.Mutex
	messages map[string][][]byte
	err      error
}

func (p *recordingPublisher) Publish(_ context.Context, queue string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	if p.messages == nil {
		p.messages = make(map[string][][]byte)
	}
	p.messages[queue] = append(p.messages[queue], body)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

// racingUserRepository stores a competing customer right before the first conditional write.
type racingUserRepository struct {
	db.UserRepository
	winner string
	once   sync.Once
}

func (r *racingUserRepository) SetBillingCustomerIDIfAbsent(ctx context.Context, userID, customerID string) (string, error) {
	r.once.Do(func() {
		_, _ = r.UserRepository.SetBillingCustomerIDIfAbsent(ctx, userID, r.winner)
	})
	return r.UserRepository.SetBillingCustomerIDIfAbsent(ctx, userID, customerID)
}

type failingChatRepository struct {
	db.ChatRepository
}

func (failingChatRepository) Append(context.Context, *models.ChatMessage) (string, error) {
	return "", errors.New("firestore unavailable")
}

type fixedEntitlements map[string]bool

func (f fixedEntitlements) GetSubscriptionStatus(_ context.Context, userID string) (bool, error) {
	return f[userID], nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
