package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v82"
	portalsession "github.com/stripe/stripe-go/v82/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/webhook"

	"luna-backend/internal/core"
)

// StripeProvider implements core.BillingProvider with the Stripe API.
type StripeProvider struct {
	newCustomer        func(*stripe.CustomerParams) (*stripe.Customer, error)
	delCustomer        func(string, *stripe.CustomerParams) (*stripe.Customer, error)
	newCheckoutSession func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	newPortalSession   func(*stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error)
}

// NewStripeProvider sets the Stripe API key and returns a provider using the package clients.
func NewStripeProvider(secretKey string) *StripeProvider {
	stripe.Key = secretKey
	return &StripeProvider{
		newCustomer:        customer.New,
		delCustomer:        customer.Del,
		newCheckoutSession: checkoutsession.New,
		newPortalSession:   portalsession.New,
	}
}

func (p *StripeProvider) CreateCustomer(ctx context.Context, params core.CustomerParams) (string, error) {
	cp := &stripe.CustomerParams{}
	cp.Context = ctx
	if params.Email != "" {
		cp.Email = stripe.String(params.Email)
	}
	cp.AddMetadata("userId", params.UserID)
	if params.IdempotencyKey != "" {
		cp.SetIdempotencyKey(params.IdempotencyKey)
	}
	c, err := p.newCustomer(cp)
	if err != nil {
		return "", fmt.Errorf("stripe customer.New: %w", err)
	}
	return c.ID, nil
}

func (p *StripeProvider) DeleteCustomer(ctx context.Context, customerID string) error {
	cp := &stripe.CustomerParams{}
	cp.Context = ctx
	if _, err := p.delCustomer(customerID, cp); err != nil {
		return fmt.Errorf("stripe customer.Del %s: %w", customerID, err)
	}
	return nil
}

func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, params core.CheckoutParams) (string, error) {
	sp := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:           stripe.String(params.CustomerID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(params.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(params.SuccessURL),
		CancelURL:  stripe.String(params.CancelURL),
	}
	sp.Context = ctx
	sp.AddMetadata("userId", params.UserID)

	s, err := p.newCheckoutSession(sp)
	if err != nil {
		return "", fmt.Errorf("stripe checkout session.New: %w", err)
	}
	return s.URL, nil
}

func (p *StripeProvider) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	sp := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	sp.Context = ctx
	s, err := p.newPortalSession(sp)
	if err != nil {
		return "", fmt.Errorf("stripe billing portal session.New: %w", err)
	}
	return s.URL, nil
}

// ConstructEvent authenticates payload with the Stripe-Signature header. With an empty
// secret the payload is decoded without verification.
func (p *StripeProvider) ConstructEvent(payload []byte, signatureHeader, secret string) (*core.WebhookEvent, error) {
	var event stripe.Event
	if secret == "" {
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, fmt.Errorf("%w: malformed event payload: %v", core.ErrBadRequest, err)
		}
	} else {
		var err error
		event, err = webhook.ConstructEventWithOptions(payload, signatureHeader, secret, webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrSignatureInvalid, err)
		}
	}
	return decodeEvent(&event)
}

func decodeEvent(event *stripe.Event) (*core.WebhookEvent, error) {
	out := &core.WebhookEvent{
		ID:   event.ID,
		Type: string(event.Type),
	}
	if event.Created > 0 {
		out.Created = time.Unix(event.Created, 0).UTC()
	}

	switch out.Type {
	case core.EventSubscriptionUpdated, core.EventSubscriptionDeleted:
		if event.Data == nil {
			return nil, fmt.Errorf("%w: event %s has no data", core.ErrBadRequest, event.ID)
		}
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("%w: decode subscription: %v", core.ErrBadRequest, err)
		}
		if sub.Customer != nil {
			out.CustomerID = sub.Customer.ID
		}
		out.Status = string(sub.Status)
	}
	return out, nil
}
