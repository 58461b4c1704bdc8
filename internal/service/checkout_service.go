package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"lucentpay-checkout/internal/metrics"
	"lucentpay-checkout/internal/models"
	"lucentpay-checkout/internal/payments"
	"lucentpay-checkout/pkg/logger"
	"lucentpay-checkout/pkg/money"
	"lucentpay-checkout/pkg/validator"
)

const (
	membershipSuccessPath = "/pages/verify-pro?session_id={CHECKOUT_SESSION_ID}"
	membershipCancelPath  = "/products/lucentpay-pro"
	invoiceSuccessPath    = "/pages/payment-success?session_id={CHECKOUT_SESSION_ID}"
	invoiceCancelPath     = "/pages/payment-cancelled"

	membershipProductTag = "lucentpay_pro_membership"
	membershipPlanTag    = "lucentpay_pro_annual"

	invoiceCurrency    = "gbp"
	invoiceProductName = "Invoice payment"
)

// CheckoutConfig defines configuration required to create checkout sessions.
type CheckoutConfig struct {
	PriceID     string
	SiteBaseURL string
}

// CheckoutSession wraps the information returned by the payment provider.
type CheckoutSession struct {
	ID   string
	URL  string
	Mode payments.Mode
}

// CheckoutService creates hosted checkout sessions for the membership and invoice flows.
type CheckoutService struct {
	provider payments.Provider
	prices   *PriceResolver
	config   CheckoutConfig
}

// NewCheckoutService constructs a checkout service instance.
func NewCheckoutService(provider payments.Provider, prices *PriceResolver, cfg CheckoutConfig) *CheckoutService {
	return &CheckoutService{
		provider: provider,
		prices:   prices,
		config: CheckoutConfig{
			PriceID:     strings.TrimSpace(cfg.PriceID),
			SiteBaseURL: strings.TrimRight(strings.TrimSpace(cfg.SiteBaseURL), "/"),
		},
	}
}

// Enabled reports whether a gateway client is available.
func (s *CheckoutService) Enabled() bool {
	return s != nil && s.provider != nil
}

// HasPrice reports whether a membership price identifier is configured.
func (s *CheckoutService) HasPrice() bool {
	return s != nil && s.config.PriceID != ""
}

// Price resolves the configured membership price.
func (s *CheckoutService) Price(ctx context.Context) (*payments.PriceInfo, error) {
	if !s.Enabled() || !s.HasPrice() {
		return nil, ErrNotConfigured
	}
	price, err := s.prices.Resolve(ctx, s.config.PriceID)
	if err != nil {
		if errors.Is(err, ErrNotConfigured) {
			return nil, err
		}
		return nil, gatewayError(err)
	}
	return price, nil
}

// CreateMembershipCheckout starts a checkout for the configured membership price. The session
// mode follows the price's billing cadence.
func (s *CheckoutService) CreateMembershipCheckout(ctx context.Context, email string) (*CheckoutSession, error) {
	price, err := s.Price(ctx)
	if err != nil {
		metrics.CheckoutSessions.WithLabelValues("membership", "failed").Inc()
		return nil, err
	}

	mode := price.BillingMode.CheckoutMode()
	params := payments.CheckoutParams{
		Mode:          mode,
		SuccessURL:    s.config.SiteBaseURL + membershipSuccessPath,
		CancelURL:     s.config.SiteBaseURL + membershipCancelPath,
		CustomerEmail: strings.TrimSpace(email),
		Metadata: map[string]string{
			"product": membershipProductTag,
		},
		LineItems: []payments.LineItem{
			{PriceID: s.config.PriceID, Quantity: 1},
		},
	}
	if mode == payments.ModeSubscription {
		params.SubscriptionMetadata = map[string]string{"plan": membershipPlanTag}
	}

	logger.WithContext(ctx).WithFields(map[string]interface{}{
		"price_id":  s.config.PriceID,
		"mode":      mode,
		"has_email": params.CustomerEmail != "",
	}).Info("Preparing membership checkout session")

	session, err := s.submit(ctx, "membership", params)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// CreateInvoiceCheckout validates an invoice payment, applies the fee markup and starts a
// one-off checkout for the fee-inclusive total.
func (s *CheckoutService) CreateInvoiceCheckout(ctx context.Context, req models.InvoiceCheckoutRequest) (*CheckoutSession, *money.ComputedCharge, error) {
	req = normalizeInvoiceRequest(req)

	if err := validator.Validate(req); err != nil {
		metrics.CheckoutSessions.WithLabelValues("invoice", "invalid").Inc()
		if fields := validator.MissingFields(err); len(fields) > 0 {
			return nil, nil, missingFieldsError(fields)
		}
		return nil, nil, newValidationError("%v", err)
	}

	if req.Amount.Decimal.IsNegative() {
		metrics.CheckoutSessions.WithLabelValues("invoice", "invalid").Inc()
		return nil, nil, &ValidationError{Message: "amount must be a non-negative number", Fields: []string{"amount"}}
	}
	if req.FeeRate.Decimal.IsNegative() {
		metrics.CheckoutSessions.WithLabelValues("invoice", "invalid").Inc()
		return nil, nil, &ValidationError{Message: "fee_rate must be a non-negative number", Fields: []string{"fee_rate"}}
	}

	charge, err := money.NewCharge(req.Amount.Decimal, req.FeeRate.Decimal)
	if err != nil {
		metrics.CheckoutSessions.WithLabelValues("invoice", "invalid").Inc()
		return nil, nil, newValidationError("%v", err)
	}
	if charge.TotalAmountMinor <= 0 {
		metrics.CheckoutSessions.WithLabelValues("invoice", "invalid").Inc()
		return nil, nil, &ValidationError{Message: "amount must be greater than zero", Fields: []string{"amount"}}
	}

	if !s.Enabled() {
		metrics.CheckoutSessions.WithLabelValues("invoice", "failed").Inc()
		return nil, nil, ErrNotConfigured
	}

	description := validator.SanitizeString(fmt.Sprintf("Payment to %s, ref %s", req.Recipient, req.Reference))

	params := payments.CheckoutParams{
		Mode:          payments.ModePayment,
		SuccessURL:    s.config.SiteBaseURL + invoiceSuccessPath,
		CancelURL:     s.config.SiteBaseURL + invoiceCancelPath,
		CustomerEmail: req.Email,
		Metadata: map[string]string{
			"recipient":      req.Recipient,
			"sort_code":      req.SortCode,
			"account_number": req.AccountNumber,
			"reference":      req.Reference,
			"base_amount":    charge.BaseAmountMajor.StringFixed(2),
			"fee_rate":       charge.FeeRate.String(),
			"total_amount":   charge.TotalAmountMajor(),
			"plan":           req.Plan,
			"email":          req.Email,
		},
		LineItems: []payments.LineItem{
			{
				Name:        invoiceProductName,
				Description: truncateDescription(description),
				AmountCents: charge.TotalAmountMinor,
				Quantity:    1,
				Currency:    invoiceCurrency,
			},
		},
	}

	logger.WithContext(ctx).WithFields(map[string]interface{}{
		"reference":      req.Reference,
		"account_number": maskAccount(req.AccountNumber),
		"base_amount":    charge.BaseAmountMajor.String(),
		"total_minor":    charge.TotalAmountMinor,
	}).Info("Preparing invoice checkout session")

	session, err := s.submit(ctx, "invoice", params)
	if err != nil {
		return nil, nil, err
	}
	return session, &charge, nil
}

// VerifySession looks up a previously created session so the storefront can confirm it.
func (s *CheckoutService) VerifySession(ctx context.Context, sessionID string) (*payments.SessionDetails, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, &ValidationError{Message: "missing session_id", Fields: []string{"session_id"}}
	}
	if !s.Enabled() {
		return nil, ErrNotConfigured
	}

	details, err := s.provider.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		logger.Error(err, "Failed to verify checkout session", map[string]interface{}{
			"session_id": sessionID,
		})
		return nil, gatewayError(err)
	}
	return details, nil
}

func (s *CheckoutService) submit(ctx context.Context, flow string, params payments.CheckoutParams) (*CheckoutSession, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	session, err := s.provider.CreateCheckoutSession(ctx, params)
	if err != nil {
		metrics.CheckoutSessions.WithLabelValues(flow, "failed").Inc()
		logger.Error(err, "Failed to create checkout session with provider", map[string]interface{}{
			"flow": flow,
			"mode": params.Mode,
		})
		return nil, gatewayError(err)
	}

	metrics.CheckoutSessions.WithLabelValues(flow, "created").Inc()
	logger.WithContext(ctx).WithFields(map[string]interface{}{
		"flow":       flow,
		"session_id": session.ID,
	}).Info("Checkout session ready")

	mode := session.Mode
	if mode == "" {
		mode = params.Mode
	}
	return &CheckoutSession{ID: session.ID, URL: session.URL, Mode: mode}, nil
}

// gatewayError makes sure anything returned by the provider lands in the gateway taxonomy.
func gatewayError(err error) error {
	if errors.Is(err, payments.ErrGatewayUnavailable) || errors.Is(err, payments.ErrGatewayRejected) {
		return err
	}
	return payments.Rejected(err, err.Error(), 0)
}

func normalizeInvoiceRequest(req models.InvoiceCheckoutRequest) models.InvoiceCheckoutRequest {
	req.Recipient = validator.NormalizeSpaces(req.Recipient)
	req.SortCode = strings.TrimSpace(req.SortCode)
	req.AccountNumber = strings.TrimSpace(req.AccountNumber)
	req.Reference = strings.TrimSpace(req.Reference)
	req.Plan = strings.TrimSpace(req.Plan)
	req.Email = strings.TrimSpace(req.Email)
	return req
}

func maskAccount(account string) string {
	if len(account) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(account)-4) + account[len(account)-4:]
}

func truncateDescription(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	if len([]rune(trimmed)) <= 500 {
		return trimmed
	}
	runes := []rune(trimmed)
	return string(runes[:500])
}
