package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MembershipCheckoutRequest is the body of POST /create-pro-checkout.
type MembershipCheckoutRequest struct {
	Email string `json:"email"`
}

// InvoiceCheckoutRequest is the body of POST /create-checkout-session. Amounts accept JSON
// numbers or numeric strings; null and blank strings count as absent.
type InvoiceCheckoutRequest struct {
	Recipient     string              `json:"recipient" validate:"required"`
	SortCode      string              `json:"sort_code" validate:"required"`
	AccountNumber string              `json:"account_number" validate:"required"`
	Reference     string              `json:"reference" validate:"required"`
	Amount        decimal.NullDecimal `json:"amount" validate:"required"`
	FeeRate       decimal.NullDecimal `json:"fee_rate" validate:"required"`
	Plan          string              `json:"plan"`
	Email         string              `json:"email" validate:"required"`
}

// FieldError reports a body value that could not be decoded into its field.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s must be a number", e.Field)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

func (r *InvoiceCheckoutRequest) UnmarshalJSON(data []byte) error {
	type plain InvoiceCheckoutRequest
	var raw struct {
		plain
		Amount  json.RawMessage `json:"amount"`
		FeeRate json.RawMessage `json:"fee_rate"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*r = InvoiceCheckoutRequest(raw.plain)

	var err error
	if r.Amount, err = decodeDecimal("amount", raw.Amount); err != nil {
		return err
	}
	if r.FeeRate, err = decodeDecimal("fee_rate", raw.FeeRate); err != nil {
		return err
	}
	return nil
}

func decodeDecimal(field string, raw json.RawMessage) (decimal.NullDecimal, error) {
	value := bytes.TrimSpace(raw)
	if len(value) == 0 || bytes.Equal(value, []byte("null")) {
		return decimal.NullDecimal{}, nil
	}

	text := string(value)
	if value[0] == '"' {
		if err := json.Unmarshal(value, &text); err != nil {
			return decimal.NullDecimal{}, &FieldError{Field: field, Err: err}
		}
		if text = strings.TrimSpace(text); text == "" {
			return decimal.NullDecimal{}, nil
		}
	}

	parsed, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.NullDecimal{}, &FieldError{Field: field, Err: err}
	}
	return decimal.NewNullDecimal(parsed), nil
}

// CheckoutURLResponse is returned by the membership flow.
type CheckoutURLResponse struct {
	URL string `json:"url"`
}

// CheckoutSessionResponse is returned by the invoice flow.
type CheckoutSessionResponse struct {
	ID               string `json:"id"`
	URL              string `json:"url"`
	TotalAmountMinor int64  `json:"total_amount_minor"`
}

// HealthResponse is served on GET /.
type HealthResponse struct {
	OK            bool   `json:"ok"`
	Service       string `json:"service"`
	Time          string `json:"time"`
	HasGatewayKey bool   `json:"hasGatewayKey"`
	HasPrice      bool   `json:"hasPrice"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error     string   `json:"error"`
	Fields    []string `json:"fields,omitempty"`
	Retryable bool     `json:"retryable,omitempty"`
}
