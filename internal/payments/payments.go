package payments

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrGatewayUnavailable marks transport failures, timeouts and provider outages. Clients may retry.
	ErrGatewayUnavailable = errors.New("payments gateway unavailable")
	// ErrGatewayRejected marks semantic errors reported by the provider, such as an unknown price.
	ErrGatewayRejected = errors.New("payments gateway rejected the request")
)

// Mode represents the type of checkout session that should be created.
type Mode string

const (
	// ModePayment processes a one-time payment for goods or services.
	ModePayment Mode = "payment"
	// ModeSubscription starts a recurring subscription.
	ModeSubscription Mode = "subscription"
)

// BillingMode is the normalised cadence of a price record.
type BillingMode string

const (
	BillingOneTime   BillingMode = "one_time"
	BillingRecurring BillingMode = "recurring"
)

// CheckoutMode maps a billing cadence to the checkout session mode that can sell it.
func (b BillingMode) CheckoutMode() Mode {
	if b == BillingRecurring {
		return ModeSubscription
	}
	return ModePayment
}

// PriceInfo is a resolved price record.
type PriceInfo struct {
	ID            string      `json:"id"`
	BillingMode   BillingMode `json:"billing_mode"`
	Currency      string      `json:"currency"`
	UnitAmount    *int64      `json:"unit_amount,omitempty"`
	Interval      string      `json:"interval,omitempty"`
	IntervalCount int64       `json:"interval_count,omitempty"`
}

// LineItem describes a purchasable item that should be included in a checkout session.
// Either PriceID references a stored price, or the remaining fields describe an ad-hoc one.
type LineItem struct {
	PriceID     string
	Name        string
	Description string
	AmountCents int64
	Quantity    int64
	Currency    string
}

// CheckoutParams encapsulates the parameters needed to create a checkout session.
type CheckoutParams struct {
	Mode                 Mode
	SuccessURL           string
	CancelURL            string
	CustomerEmail        string
	AllowPromotionCodes  bool
	Metadata             map[string]string
	SubscriptionMetadata map[string]string
	LineItems            []LineItem
}

// Session represents a checkout session created by a payment provider.
type Session struct {
	ID   string
	URL  string
	Mode Mode
}

// SessionDetails represents the state of an existing checkout session retrieved from a payment provider.
// Unknown email or subscription state is reported as JSON null.
type SessionDetails struct {
	ID                 string  `json:"id"`
	Status             string  `json:"status"`
	PaymentStatus      string  `json:"payment_status"`
	Mode               string  `json:"mode"`
	CustomerEmail      *string `json:"customer_email"`
	SubscriptionStatus *string `json:"subscription_status"`
}

// Provider defines the behaviour required to create checkout sessions across payment vendors.
type Provider interface {
	GetPrice(ctx context.Context, priceID string) (*PriceInfo, error)
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*Session, error)
	GetCheckoutSession(ctx context.Context, sessionID string) (*SessionDetails, error)
}

// GatewayError carries the provider's message alongside the failure class.
type GatewayError struct {
	Kind       error
	Message    string
	StatusCode int
	Err        error
}

func (e *GatewayError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + msg
}

func (e *GatewayError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Unavailable wraps err as a transient gateway failure.
func Unavailable(err error, message string) error {
	return &GatewayError{Kind: ErrGatewayUnavailable, Message: message, Err: err}
}

// Rejected wraps a provider-reported semantic error.
func Rejected(err error, message string, status int) error {
	return &GatewayError{Kind: ErrGatewayRejected, Message: message, StatusCode: status, Err: err}
}
