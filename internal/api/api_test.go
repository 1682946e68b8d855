package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"

	"luna-backend/internal/billing"
	"luna-backend/internal/config"
	"luna-backend/internal/core"
	"luna-backend/internal/db"
	"luna-backend/internal/middleware"
)

const (
	testWebhookSecret = "whsec_api_test"
	testDailyLimit    = 3
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testProvider keeps the real Stripe event verification and fakes the API calls.
type testProvider struct {
	*billing.StripeProvider

	mu        sync.Mutex
	customers int
	checkouts []core.CheckoutParams
}

func (p *testProvider) CreateCustomer(_ context.Context, _ core.CustomerParams) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.customers++
	return fmt.Sprintf("cus_test_%d", p.customers), nil
}

func (p *testProvider) DeleteCustomer(context.Context, string) error { return nil }

func (p *testProvider) CreateCheckoutSession(_ context.Context, params core.CheckoutParams) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checkouts = append(p.checkouts, params)
	return "https://checkout.stripe.test/" + params.PriceID, nil
}

func (p *testProvider) CreatePortalSession(_ context.Context, customerID, returnURL string) (string, error) {
	return "https://billing.stripe.test/" + customerID + "?return=" + returnURL, nil
}

type allowAllIdentity struct{}

func (allowAllIdentity) LookupEmail(_ context.Context, userID string) (string, error) {
	return userID + "@example.com", nil
}

type tokenVerifier map[string]string

func (v tokenVerifier) VerifyIDToken(_ context.Context, idToken string) (*auth.Token, error) {
	uid, ok := v[idToken]
	if !ok {
		return nil, fmt.Errorf("invalid token")
	}
	return &auth.Token{UID: uid}, nil
}

type testEnv struct {
	router   *gin.Engine
	users    db.UserRepository
	provider *testProvider
}

func newTestEnv(t *testing.T, webhookSecret string, authMW *middleware.AuthMiddleware) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	users := db.NewMemoryUserRepository()
	provider := &testProvider{StripeProvider: &billing.StripeProvider{}}

	billingSvc := core.NewBillingService(users, allowAllIdentity{}, provider, nil, core.BillingOptions{
		Prices: map[string]string{
			config.PlanMonthly:     "price_monthly_placeholder",
			config.PlanYearly:      "price_yearly_placeholder",
			config.PlanThreeMonths: "price_3months_placeholder",
		},
		WebhookSecret: webhookSecret,
		ClientURL:     "http://localhost:3000",
	}, logger)
	chatSvc := core.NewChatService(
		db.NewMemoryChatRepository(nil),
		billingSvc,
		core.NewUsageLimiter(db.NewMemoryUsageRepository(), testDailyLimit),
		core.EchoResponder{},
		core.ChatOptions{DefaultPersona: "Luna"},
		logger,
	)
	supportSvc := core.NewSupportService(db.NewMemoryReportRepository(), nil, "", logger)

	router := gin.New()
	router.Use(middleware.RequestID())
	SetupRoutes(router, logger, Services{Billing: billingSvc, Chat: chatSvc, Support: supportSvc}, authMW, testDailyLimit)
	return &testEnv{router: router, users: users, provider: provider}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func subscriptionEventBody(t *testing.T, customerID, status string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"id":      "evt_test",
		"object":  "event",
		"type":    core.EventSubscriptionUpdated,
		"created": time.Now().Unix(),
		"data": map[string]any{
			"object": map[string]any{"id": "sub_1", "object": "subscription", "customer": customerID, "status": status},
		},
	})
	require.NoError(t, err)
	return body
}

func signedWebhook(t *testing.T, e *testEnv, secret string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   body,
		Secret:    secret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	return e.do(t, http.MethodPost, "/api/v1/payment/webhook", signed.Payload, "Stripe-Signature", signed.Header)
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t, testWebhookSecret, nil)
	w := e.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"UP"}`, w.Body.String())
}

func TestSubscriptionStatus(t *testing.T) {
	e := newTestEnv(t, testWebhookSecret, nil)

	w := e.do(t, http.MethodGet, "/api/v1/payment/subscription-status", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodGet, "/api/v1/payment/subscription-status?userId=nobody", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"isSubscribed":false}`, w.Body.String())
}

func TestCreateCheckout(t *testing.T) {
	e := newTestEnv(t, testWebhookSecret, nil)

	w := e.do(t, http.MethodPost, "/api/v1/payment/create-checkout", map[string]string{"planId": "monthly"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodPost, "/api/v1/payment/create-checkout",
		map[string]string{"userId": "u1", "planId": "bogus"}, "Origin", "https://luna.app")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "https://checkout.stripe.test/price_monthly_placeholder", decode[CheckoutResponse](t, w).CheckoutURL)

	require.Len(t, e.provider.checkouts, 1)
	assert.Equal(t, "https://luna.app/luna-plus?payment=success&session_id={CHECKOUT_SESSION_ID}", e.provider.checkouts[0].SuccessURL)
}

func TestCreatePortalSession(t *testing.T) {
	e := newTestEnv(t, testWebhookSecret, nil)

	w := e.do(t, http.MethodPost, "/api/v1/payment/create-portal-session", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodPost, "/api/v1/payment/create-portal-session", map[string]string{"userId": "u1"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(t, http.MethodPost, "/api/v1/payment/create-checkout", map[string]string{"userId": "u1", "planId": "monthly"})
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodPost, "/api/v1/payment/create-portal-session", map[string]string{"userId": "u1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://billing.stripe.test/cus_test_1?return=http://localhost:3000", decode[PortalResponse](t, w).PortalURL)
}

func TestCheckoutWebhookEntitlesUser(t *testing.T) {
	e := newTestEnv(t, testWebhookSecret, nil)

	w := e.do(t, http.MethodPost, "/api/v1/payment/create-checkout",
		map[string]string{"userId": "u1", "planId": "yearly"}, "Origin", "https://app")
	require.Equal(t, http.StatusOK, w.Code)
	customerID := e.provider.checkouts[0].CustomerID

	w = signedWebhook(t, e, testWebhookSecret, subscriptionEventBody(t, customerID, "active"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"received":true}`, w.Body.String())

	w = e.do(t, http.MethodGet, "/api/v1/payment/subscription-status?userId=u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"isSubscribed":true}`, w.Body.String())
}

func TestWebhookInvalidSignatureLeavesRecordsUnchanged(t *testing.T) {
	e := newTestEnv(t, testWebhookSecret, nil)
	w := e.do(t, http.MethodPost, "/api/v1/payment/create-checkout", map[string]string{"userId": "u1"})
	require.Equal(t, http.StatusOK, w.Code)
	customerID := e.provider.checkouts[0].CustomerID

	w = signedWebhook(t, e, "whsec_attacker", subscriptionEventBody(t, customerID, "active"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[ErrorResponse](t, w).Error, "Webhook Error:")

	w = e.do(t, http.MethodPost, "/stripe/webhook", subscriptionEventBody(t, customerID, "active"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	user, err := e.users.GetByID(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, user.IsSubscribed)
	assert.Empty(t, user.SubscriptionStatus)
}

func TestWebhookUnsignedModeTrustsBody(t *testing.T) {
	e := newTestEnv(t, "", nil)
	w := e.do(t, http.MethodPost, "/api/v1/payment/create-checkout", map[string]string{"userId": "u1"})
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodPost, "/stripe/webhook", subscriptionEventBody(t, e.provider.checkouts[0].CustomerID, "trialing"))
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodGet, "/api/v1/payment/subscription-status?userId=u1", nil)
	assert.JSONEq(t, `{"isSubscribed":true}`, w.Body.String())
}

func TestWebhookUnknownCustomerIsAcknowledged(t *testing.T) {
	e := newTestEnv(t, testWebhookSecret, nil)
	w := signedWebhook(t, e, testWebhookSecret, subscriptionEventBody(t, "cus_nobody", "active"))
	require.Equal(t, http.StatusOK, w.Code)
	_, err := e.users.GetByID(context.Background(), "cus_nobody")
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestWebhookBodyLimit(t *testing.T) {
	e := newTestEnv(t, testWebhookSecret, nil)
	w := e.do(t, http.MethodPost, "/api/v1/payment/webhook", bytes.Repeat([]byte("a"), webhookBodyLimit+1))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatDailyLimit(t *testing.T) {
	e := newTestEnv(t, testWebhookSecret, nil)

	for i := 0; i < testDailyLimit; i++ {
		w := e.do(t, http.MethodPost, "/api/v1/chat", map[string]string{"userId": "u1", "message": "hi"})
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := e.do(t, http.MethodPost, "/api/v1/chat", map[string]string{"userId": "u1", "message": "hi"})
	require.Equal(t, http.StatusForbidden, w.Code)
	body := decode[LimitReachedResponse](t, w)
	assert.True(t, body.LimitReached)
	assert.Equal(t, testDailyLimit, body.Limit)
	assert.NotEmpty(t, body.Message)

	w = e.do(t, http.MethodGet, "/api/v1/chat/usage?userId=u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"used":3,"limit":3,"remaining":0,"unlimited":false}`, w.Body.String())

	// Anonymous chat is unmetered.
	w = e.do(t, http.MethodPost, "/api/v1/chat", map[string]string{"message": "hi"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `I received your message: "hi". I am Luna. (Backend is working!)`, decode[ChatResponse](t, w).Reply)
}

func TestChatPersonaLocked(t *testing.T) {
	e := newTestEnv(t, testWebhookSecret, nil)

	w := e.do(t, http.MethodPost, "/api/v1/chat", map[string]string{"userId": "u1", "message": "hi", "persona": "Seductive"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(t, http.MethodGet, "/api/v1/personas?userId=u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Personas []core.PersonaAccess `json:"personas"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Personas, 4)
	assert.True(t, body.Personas[3].Locked)
	assert.False(t, body.Personas[0].Locked)
}

func TestChatHistory(t *testing.T) {
	e := newTestEnv(t, testWebhookSecret, nil)
	for _, m := range []string{"one", "two"} {
		w := e.do(t, http.MethodPost, "/api/v1/chat", map[string]string{"userId": "u1", "message": m, "persona": "Flirty"})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := e.do(t, http.MethodGet, "/api/v1/chat/history", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodGet, "/api/v1/chat/history?userId=u1&persona=Flirty", nil)
	require.Equal(t, http.StatusOK, w.Code)
	history := decode[HistoryResponse](t, w)
	require.Len(t, history.Messages, 2)
	assert.Equal(t, "one", history.Messages[0].Message)
	assert.Equal(t, "two", history.Messages[1].Message)

	w = e.do(t, http.MethodGet, "/api/v1/chat/history?userId=u1&persona=Flirty&limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[HistoryResponse](t, w).Messages, 1)

	w = e.do(t, http.MethodGet, "/api/v1/chat/history?userId=u1&limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	for _, limit := range []string{"0", "-3", "500"} {
		w = e.do(t, http.MethodGet, "/api/v1/chat/history?userId=u1&persona=Flirty&limit="+limit, nil)
		require.Equal(t, http.StatusOK, w.Code, "limit=%s", limit)
		assert.Len(t, decode[HistoryResponse](t, w).Messages, 2, "limit=%s", limit)
	}

	w = e.do(t, http.MethodDelete, "/api/v1/chat/history?userId=u1&persona=Flirty", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"deleted":2}`, w.Body.String())

	w = e.do(t, http.MethodGet, "/api/v1/chat/history?userId=u1&persona=Flirty", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"messages":[]}`, w.Body.String())
}

func TestReportIssue(t *testing.T) {
	e := newTestEnv(t, testWebhookSecret, nil)

	w := e.do(t, http.MethodPost, "/api/v1/support/report-issue", map[string]string{"description": "button broken"})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[ReportResponse](t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, "Report submitted", resp.Message)

	w = e.do(t, http.MethodPost, "/api/v1/support/report-issue", map[string]string{"description": "x", "severity": "urgent"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVerifiedIdentity(t *testing.T) {
	authMW := middleware.NewAuthMiddleware(tokenVerifier{"tok-u1": "u1"}, zap.NewNop())
	e := newTestEnv(t, testWebhookSecret, authMW)

	w := e.do(t, http.MethodGet, "/api/v1/payment/subscription-status?userId=u1", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(t, http.MethodGet, "/api/v1/payment/subscription-status?userId=u2", nil, "Authorization", "Bearer tok-u1")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(t, http.MethodPost, "/api/v1/payment/create-checkout", map[string]string{"planId": "yearly"}, "Authorization", "Bearer tok-u1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", e.provider.checkouts[0].UserID)

	// Anonymous chat still works; the webhook needs no token.
	w = e.do(t, http.MethodPost, "/api/v1/chat", map[string]string{"message": "hi"})
	assert.Equal(t, http.StatusOK, w.Code)
	w = signedWebhook(t, e, testWebhookSecret, subscriptionEventBody(t, "cus_test_1", "active"))
	assert.Equal(t, http.StatusOK, w.Code)
}
