package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lucentpay-checkout/internal/models"
	"lucentpay-checkout/internal/payments"
	"lucentpay-checkout/internal/service"
)

type stubProvider struct {
	price      *payments.PriceInfo
	sessionErr error
	lastParams payments.CheckoutParams
}

func (s *stubProvider) GetPrice(ctx context.Context, priceID string) (*payments.PriceInfo, error) {
	if s.price == nil {
		return nil, payments.Rejected(errors.New("resource_missing"), "No such price: '"+priceID+"'", http.StatusNotFound)
	}
	info := *s.price
	info.ID = priceID
	return &info, nil
}

func (s *stubProvider) CreateCheckoutSession(ctx context.Context, params payments.CheckoutParams) (*payments.Session, error) {
	s.lastParams = params
	if s.sessionErr != nil {
		return nil, s.sessionErr
	}
	return &payments.Session{ID: "cs_test_42", URL: "https://checkout.example/cs_test_42", Mode: params.Mode}, nil
}

func (s *stubProvider) GetCheckoutSession(ctx context.Context, sessionID string) (*payments.SessionDetails, error) {
	status := "active"
	return &payments.SessionDetails{ID: sessionID, Status: "complete", PaymentStatus: "paid", Mode: "subscription", SubscriptionStatus: &status}, nil
}

func newTestRouter(provider payments.Provider, priceID string, expose bool) *gin.Engine {
	gin.SetMode(gin.TestMode)

	svc := service.NewCheckoutService(provider, service.NewPriceResolver(provider, time.Second), service.CheckoutConfig{
		PriceID:     priceID,
		SiteBaseURL: "https://lucentpay.co",
	})
	handler := NewCheckoutHandler(svc, expose)
	handler.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	router := gin.New()
	router.GET("/", handler.Health)
	router.GET("/debug/price", handler.DebugPrice)
	router.POST("/create-pro-checkout", handler.CreateProCheckout)
	router.POST("/create-checkout-session", handler.CreateCheckoutSession)
	router.GET("/verify-session", handler.VerifySession)
	return router
}

func perform(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func recurring() *payments.PriceInfo {
	return &payments.PriceInfo{BillingMode: payments.BillingRecurring, Currency: "gbp", Interval: "year", IntervalCount: 1}
}

func TestHealth(t *testing.T) {
	rec := perform(newTestRouter(&stubProvider{}, "price_pro", false), http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, models.HealthResponse{
		OK:            true,
		Service:       "lucentpay-checkout",
		Time:          "2026-01-02T03:04:05Z",
		HasGatewayKey: true,
		HasPrice:      true,
	}, resp)
}

func TestHealthWithoutGatewayKey(t *testing.T) {
	rec := perform(newTestRouter(nil, "", false), http.MethodGet, "/", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"hasGatewayKey":false`)
}

func TestCreateProCheckout(t *testing.T) {
	provider := &stubProvider{price: recurring()}
	router := newTestRouter(provider, "price_pro", false)

	rec := perform(router, http.MethodPost, "/create-pro-checkout", `{"email":"member@example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"url":"https://checkout.example/cs_test_42"}`, rec.Body.String())
	assert.Equal(t, payments.ModeSubscription, provider.lastParams.Mode)

	rec = perform(router, http.MethodPost, "/create-pro-checkout", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, provider.lastParams.CustomerEmail)

	rec = perform(router, http.MethodPost, "/create-pro-checkout", `{"email":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateProCheckoutNotConfigured(t *testing.T) {
	rec := perform(newTestRouter(nil, "", false), http.MethodPost, "/create-pro-checkout", `{}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotEmpty(t, decodeError(t, rec).Error)
}

func TestCreateProCheckoutGatewayFailures(t *testing.T) {
	unavailable := &stubProvider{price: recurring(), sessionErr: payments.Unavailable(errors.New("dial tcp: refused"), "")}
	rec := perform(newTestRouter(unavailable, "price_pro", false), http.MethodPost, "/create-pro-checkout", `{}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.True(t, decodeError(t, rec).Retryable)

	rejected := &stubProvider{}
	rec = perform(newTestRouter(rejected, "price_missing", false), http.MethodPost, "/create-pro-checkout", `{}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "Failed to create checkout session", resp.Error)
	assert.False(t, resp.Retryable)

	rec = perform(newTestRouter(rejected, "price_missing", true), http.MethodPost, "/create-pro-checkout", `{}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "No such price: 'price_missing'", decodeError(t, rec).Error)
}

func TestCreateCheckoutSessionGatewayUnavailable(t *testing.T) {
	provider := &stubProvider{sessionErr: payments.Unavailable(errors.New("i/o timeout"), "")}
	rec := perform(newTestRouter(provider, "", false), http.MethodPost, "/create-checkout-session", validInvoiceBody)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Failed to create checkout session","retryable":true}`, rec.Body.String())
}

const validInvoiceBody = `{"recipient":"Acme Ltd","sort_code":"12-34-56","account_number":"12345678",
	"reference":"INV-1001","amount":"200.00","fee_rate":0.05,"email":"payer@example.com"}`

func TestCreateCheckoutSession(t *testing.T) {
	provider := &stubProvider{}
	router := newTestRouter(provider, "", false)

	rec := perform(router, http.MethodPost, "/create-checkout-session", validInvoiceBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp models.CheckoutSessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "cs_test_42", resp.ID)
	assert.Equal(t, "https://checkout.example/cs_test_42", resp.URL)
	assert.Equal(t, int64(21000), resp.TotalAmountMinor)
	require.Len(t, provider.lastParams.LineItems, 1)
	assert.Contains(t, provider.lastParams.LineItems[0].Description, "Acme Ltd")
}

func TestCreateCheckoutSessionMissingFields(t *testing.T) {
	body := `{"recipient":"Acme Ltd","sort_code":"12-34-56","account_number":"12345678",
		"amount":200,"fee_rate":0.05,"email":"payer@example.com"}`
	rec := perform(newTestRouter(&stubProvider{}, "", false), http.MethodPost, "/create-checkout-session", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decodeError(t, rec)
	assert.Equal(t, []string{"reference"}, resp.Fields)
	assert.Contains(t, resp.Error, "reference")
}

func TestCreateCheckoutSessionBlankAmountsAreMissing(t *testing.T) {
	body := `{"recipient":"Acme Ltd","sort_code":"12-34-56","account_number":"12345678",
		"reference":"INV-1","amount":"","fee_rate":"  ","email":"payer@example.com"}`
	rec := perform(newTestRouter(&stubProvider{}, "", false), http.MethodPost, "/create-checkout-session", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"amount", "fee_rate"}, decodeError(t, rec).Fields)
}

func TestCreateCheckoutSessionEmptyBodyListsEveryField(t *testing.T) {
	rec := perform(newTestRouter(&stubProvider{}, "", false), http.MethodPost, "/create-checkout-session", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"recipient", "sort_code", "account_number", "reference", "amount", "fee_rate", "email"},
		decodeError(t, rec).Fields)
}

func TestCreateCheckoutSessionMalformedValues(t *testing.T) {
	router := newTestRouter(&stubProvider{}, "", false)

	body := `{"recipient":"Acme Ltd","sort_code":"12-34-56","account_number":"12345678",
		"reference":"INV-1","amount":"lots","fee_rate":0.05,"email":"payer@example.com"}`
	rec := perform(router, http.MethodPost, "/create-checkout-session", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"amount"}, decodeError(t, rec).Fields)

	body = `{"recipient":42,"sort_code":"12-34-56","account_number":"12345678",
		"reference":"INV-1","amount":10,"fee_rate":0.05,"email":"payer@example.com"}`
	rec = perform(router, http.MethodPost, "/create-checkout-session", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"recipient"}, decodeError(t, rec).Fields)

	rec = perform(router, http.MethodPost, "/create-checkout-session", `{"recipient":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "Invalid request body", resp.Error)
	assert.Empty(t, resp.Fields)
}

func TestVerifySession(t *testing.T) {
	router := newTestRouter(&stubProvider{}, "", false)

	rec := perform(router, http.MethodGet, "/verify-session", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = perform(router, http.MethodGet, "/verify-session?session_id=cs_test_42", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var details payments.SessionDetails
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &details))
	assert.Equal(t, "cs_test_42", details.ID)
	assert.Equal(t, "complete", details.Status)
	assert.Equal(t, "paid", details.PaymentStatus)
	require.NotNil(t, details.SubscriptionStatus)
	assert.Equal(t, "active", *details.SubscriptionStatus)
	assert.Contains(t, rec.Body.String(), `"customer_email":null`)
}

func TestDebugPrice(t *testing.T) {
	rec := perform(newTestRouter(&stubProvider{price: recurring()}, "price_pro", false), http.MethodGet, "/debug/price", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"billing_mode":"recurring"`)

	rec = perform(newTestRouter(&stubProvider{}, "", false), http.MethodGet, "/debug/price", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
