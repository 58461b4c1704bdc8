package stripe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	stripego "github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"lucentpay-checkout/internal/metrics"
	"lucentpay-checkout/internal/payments"
	"lucentpay-checkout/pkg/logger"
)

const defaultAPIBase = "https://api.stripe.com"

// Config tunes the outbound client. Zero values fall back to defaults.
type Config struct {
	APIBaseURL      string
	Timeout         time.Duration
	BreakerFailures int
	BreakerCooldown time.Duration
	// HTTPClient replaces the default instrumented client; its Timeout is left untouched.
	HTTPClient *http.Client
}

// Provider implements payments.Provider on top of the official Stripe SDK.
type Provider struct {
	api     *client.API
	breaker *gobreaker.CircuitBreaker[any]
	timeout time.Duration
}

// NewProvider constructs a Stripe provider using the supplied secret API key.
func NewProvider(secretKey string, cfg Config) (*Provider, error) {
	key := strings.TrimSpace(secretKey)
	if key == "" {
		return nil, errors.New("stripe secret key is required")
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.BreakerFailures <= 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 30 * time.Second
	}
	base := strings.TrimSpace(cfg.APIBaseURL)
	if base == "" {
		base = defaultAPIBase
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	backend := stripego.GetBackendWithConfig(stripego.APIBackend, &stripego.BackendConfig{
		HTTPClient:        httpClient,
		URL:               stripego.String(base),
		MaxNetworkRetries: stripego.Int64(0),
		LeveledLogger:     logger.Logger,
	})

	api := &client.API{}
	api.Init(key, &stripego.Backends{API: backend, Connect: backend, Uploads: backend})

	failures := uint32(cfg.BreakerFailures)
	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "stripe",
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, payments.ErrGatewayUnavailable)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Gateway circuit breaker state changed", map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		},
	})

	return &Provider{api: api, breaker: breaker, timeout: cfg.Timeout}, nil
}

// GetPrice looks up a price record and normalises its billing cadence.
func (p *Provider) GetPrice(ctx context.Context, priceID string) (*payments.PriceInfo, error) {
	if p == nil {
		return nil, errors.New("stripe provider is not configured")
	}

	ctx, cancel := p.callContext(ctx)
	defer cancel()

	result, err := p.execute(ctx, "get_price", func() (any, error) {
		params := &stripego.PriceParams{}
		params.Context = ctx
		return p.api.Prices.Get(priceID, params)
	})
	if err != nil {
		return nil, err
	}

	return priceInfoFromStripe(result.(*stripego.Price)), nil
}

// CreateCheckoutSession creates a Stripe Checkout session for the provided purchase parameters.
func (p *Provider) CreateCheckoutSession(ctx context.Context, params payments.CheckoutParams) (*payments.Session, error) {
	if p == nil {
		return nil, errors.New("stripe provider is not configured")
	}

	sessionParams, err := buildSessionParams(params)
	if err != nil {
		return nil, err
	}

	ctx, cancel := p.callContext(ctx)
	defer cancel()
	sessionParams.Context = ctx

	result, err := p.execute(ctx, "create_session", func() (any, error) {
		return p.api.CheckoutSessions.New(sessionParams)
	})
	if err != nil {
		return nil, err
	}

	s := result.(*stripego.CheckoutSession)
	if s.ID == "" || s.URL == "" {
		return nil, payments.Rejected(nil, "stripe response missing session details", 0)
	}

	return &payments.Session{ID: s.ID, URL: s.URL, Mode: payments.Mode(s.Mode)}, nil
}

// GetCheckoutSession retrieves a session with its subscription and customer expanded.
func (p *Provider) GetCheckoutSession(ctx context.Context, sessionID string) (*payments.SessionDetails, error) {
	if p == nil {
		return nil, errors.New("stripe provider is not configured")
	}

	ctx, cancel := p.callContext(ctx)
	defer cancel()

	result, err := p.execute(ctx, "get_session", func() (any, error) {
		params := &stripego.CheckoutSessionParams{}
		params.Context = ctx
		params.AddExpand("subscription")
		params.AddExpand("customer")
		return p.api.CheckoutSessions.Get(sessionID, params)
	})
	if err != nil {
		return nil, err
	}

	s := result.(*stripego.CheckoutSession)
	details := &payments.SessionDetails{
		ID:            s.ID,
		Status:        string(s.Status),
		PaymentStatus: string(s.PaymentStatus),
		Mode:          string(s.Mode),
	}

	var email string
	switch {
	case s.CustomerDetails != nil && s.CustomerDetails.Email != "":
		email = s.CustomerDetails.Email
	case s.Customer != nil && s.Customer.Email != "":
		email = s.Customer.Email
	default:
		email = s.CustomerEmail
	}
	if email != "" {
		details.CustomerEmail = &email
	}
	if s.Subscription != nil && s.Subscription.Status != "" {
		status := string(s.Subscription.Status)
		details.SubscriptionStatus = &status
	}

	return details, nil
}

func (p *Provider) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, p.timeout)
}

func (p *Provider) execute(ctx context.Context, operation string, call func() (any, error)) (any, error) {
	result, err := p.breaker.Execute(func() (any, error) {
		res, err := call()
		if err != nil {
			return nil, classifyError(ctx, err)
		}
		return res, nil
	})

	switch {
	case err == nil:
		metrics.GatewayRequests.WithLabelValues(operation, "ok").Inc()
		return result, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.GatewayRequests.WithLabelValues(operation, "breaker_open").Inc()
		return nil, payments.Unavailable(err, "circuit breaker open")
	case errors.Is(err, payments.ErrGatewayRejected):
		metrics.GatewayRequests.WithLabelValues(operation, "rejected").Inc()
	default:
		metrics.GatewayRequests.WithLabelValues(operation, "unavailable").Inc()
	}

	return nil, err
}

func classifyError(ctx context.Context, err error) error {
	var stripeErr *stripego.Error
	if errors.As(err, &stripeErr) {
		status := stripeErr.HTTPStatusCode
		if status >= 500 || status == http.StatusTooManyRequests || stripeErr.Type == stripego.ErrorTypeAPI {
			return &payments.GatewayError{Kind: payments.ErrGatewayUnavailable, Message: stripeErr.Msg, StatusCode: status, Err: err}
		}
		return payments.Rejected(err, stripeErr.Msg, status)
	}

	if ctx.Err() != nil {
		return payments.Unavailable(err, "gateway call timed out or was cancelled")
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return payments.Unavailable(err, "gateway network error")
	}

	return payments.Unavailable(err, "")
}

func buildSessionParams(params payments.CheckoutParams) (*stripego.CheckoutSessionParams, error) {
	if len(params.LineItems) == 0 {
		return nil, errors.New("at least one line item is required")
	}

	mode := params.Mode
	if mode == "" {
		mode = payments.ModePayment
	}

	out := &stripego.CheckoutSessionParams{
		Mode:                stripego.String(string(mode)),
		SuccessURL:          stripego.String(params.SuccessURL),
		CancelURL:           stripego.String(params.CancelURL),
		AllowPromotionCodes: stripego.Bool(params.AllowPromotionCodes),
	}

	if email := strings.TrimSpace(params.CustomerEmail); email != "" {
		out.CustomerEmail = stripego.String(email)
	}

	for key, value := range params.Metadata {
		if key == "" || value == "" {
			continue
		}
		out.AddMetadata(key, value)
	}

	if mode == payments.ModeSubscription && len(params.SubscriptionMetadata) > 0 {
		out.SubscriptionData = &stripego.CheckoutSessionSubscriptionDataParams{
			Metadata: params.SubscriptionMetadata,
		}
	}

	for _, item := range params.LineItems {
		quantity := item.Quantity
		if quantity <= 0 {
			quantity = 1
		}

		if item.PriceID != "" {
			out.LineItems = append(out.LineItems, &stripego.CheckoutSessionLineItemParams{
				Price:    stripego.String(item.PriceID),
				Quantity: stripego.Int64(quantity),
			})
			continue
		}

		if item.AmountCents <= 0 {
			return nil, fmt.Errorf("line item %q has invalid amount", item.Name)
		}
		currency := strings.ToLower(strings.TrimSpace(item.Currency))
		if currency == "" {
			return nil, fmt.Errorf("line item %q currency is required", item.Name)
		}

		productData := &stripego.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripego.String(item.Name),
		}
		if desc := strings.TrimSpace(item.Description); desc != "" {
			productData.Description = stripego.String(desc)
		}

		out.LineItems = append(out.LineItems, &stripego.CheckoutSessionLineItemParams{
			Quantity: stripego.Int64(quantity),
			PriceData: &stripego.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripego.String(currency),
				UnitAmount:  stripego.Int64(item.AmountCents),
				ProductData: productData,
			},
		})
	}

	return out, nil
}

func priceInfoFromStripe(price *stripego.Price) *payments.PriceInfo {
	info := &payments.PriceInfo{
		ID:          price.ID,
		BillingMode: payments.BillingOneTime,
		Currency:    string(price.Currency),
	}

	if price.Recurring != nil && price.Recurring.Interval != "" {
		info.BillingMode = payments.BillingRecurring
		info.Interval = string(price.Recurring.Interval)
		info.IntervalCount = price.Recurring.IntervalCount
	}

	info.UnitAmount = unitAmountOf(price)

	return info
}

// unitAmountOf reports the per-unit charge in minor units. Tiered prices have no single
// amount. Records that omit billing_scheme only report a non-zero amount.
func unitAmountOf(price *stripego.Price) *int64 {
	switch price.BillingScheme {
	case stripego.PriceBillingSchemeTiered:
		return nil
	case stripego.PriceBillingSchemePerUnit:
	default:
		if price.UnitAmount == 0 && price.UnitAmountDecimal == 0 {
			return nil
		}
	}

	amount := price.UnitAmount
	if amount == 0 && price.UnitAmountDecimal != 0 {
		amount = decimal.NewFromFloat(price.UnitAmountDecimal).Round(0).IntPart()
	}
	return &amount
}
