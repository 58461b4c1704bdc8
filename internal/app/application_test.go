package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lucentpay-checkout/internal/config"
	"lucentpay-checkout/internal/payments"
)

type staticProvider struct{}

func (staticProvider) GetPrice(ctx context.Context, priceID string) (*payments.PriceInfo, error) {
	return &payments.PriceInfo{ID: priceID, BillingMode: payments.BillingRecurring, Currency: "gbp"}, nil
}

func (staticProvider) CreateCheckoutSession(ctx context.Context, params payments.CheckoutParams) (*payments.Session, error) {
	return &payments.Session{ID: "cs_test_app", URL: "https://checkout.example/cs_test_app", Mode: params.Mode}, nil
}

func (staticProvider) GetCheckoutSession(ctx context.Context, sessionID string) (*payments.SessionDetails, error) {
	return &payments.SessionDetails{ID: sessionID, PaymentStatus: "paid"}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Port:              "0",
		Environment:       "test",
		ProductPriceID:    "price_pro",
		GatewayTimeout:    time.Second,
		SiteBaseURL:       "https://lucentpay.co",
		TrustedDomain:     "lucentpay.co",
		StorefrontSuffix:  ".myshopify.com",
		RateLimitRequests: 100,
		RateLimitWindow:   60,
		RateLimitBurst:    100,
		EnableMetrics:     true,
	}
}

func newTestApp(t *testing.T, cfg *config.Config, opts Options) *Application {
	t.Helper()
	application, err := New(cfg, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Shutdown(context.Background()) })
	return application
}

func serve(a *Application, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	a.Router().ServeHTTP(rec, req)
	return rec
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(nil, Options{})
	assert.Error(t, err)
}

func TestHealthWithoutGatewayKeyIsDegraded(t *testing.T) {
	application := newTestApp(t, testConfig(), Options{})

	rec := serve(application, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"hasGatewayKey":false`)
	assert.Equal(t, "LucentPay Checkout", rec.Header().Get("X-Powered-By"))

	rec = serve(application, httptest.NewRequest(http.MethodPost, "/create-pro-checkout", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestMembershipCheckoutThroughRouter(t *testing.T) {
	application := newTestApp(t, testConfig(), Options{Provider: staticProvider{}})

	req := httptest.NewRequest(http.MethodPost, "/create-pro-checkout", strings.NewReader(`{"email":"a@b.co"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "https://shop123.myshopify.com")
	rec := serve(application, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"url":"https://checkout.example/cs_test_app"}`, rec.Body.String())
	assert.Equal(t, "https://shop123.myshopify.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestDisallowedOriginIsRejected(t *testing.T) {
	application := newTestApp(t, testConfig(), Options{Provider: staticProvider{}})

	req := httptest.NewRequest(http.MethodPost, "/create-pro-checkout", strings.NewReader(`{}`))
	req.Header.Set("Origin", "https://evil.example")
	rec := serve(application, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPreflight(t *testing.T) {
	application := newTestApp(t, testConfig(), Options{Provider: staticProvider{}})

	req := httptest.NewRequest(http.MethodOptions, "/create-checkout-session", nil)
	req.Header.Set("Origin", "https://www.lucentpay.co")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := serve(application, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(application, httptest.NewRequest(http.MethodOptions, "/anything", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestMetricsEndpointToggle(t *testing.T) {
	application := newTestApp(t, testConfig(), Options{Provider: staticProvider{}})
	serve(application, httptest.NewRequest(http.MethodGet, "/", nil))

	rec := serve(application, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "checkout_http_requests_total")

	cfg := testConfig()
	cfg.EnableMetrics = false
	disabled := newTestApp(t, cfg, Options{Provider: staticProvider{}})
	rec = serve(disabled, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
