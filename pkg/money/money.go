// Package money holds fee arithmetic for amounts expressed in major currency units
// (pounds) and charged in minor units (pence).
package money

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned for negative, NaN or infinite inputs.
var ErrInvalidAmount = errors.New("money: amount must be a finite non-negative number")

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// ComputedCharge is the fee-inclusive total derived from a base amount and fee rate.
type ComputedCharge struct {
	TotalAmountMinor int64
	BaseAmountMajor  decimal.Decimal
	FeeRate          decimal.Decimal
}

// TotalAmountMajor renders the total as a two-decimal major-unit string.
func (c ComputedCharge) TotalAmountMajor() string {
	return MinorToMajor(c.TotalAmountMinor)
}

// ComputeTotalWithFee returns round(base * (1 + feeRate) * 100). The product is
// computed in decimal and rounded half away from zero.
func ComputeTotalWithFee(baseAmountMajor, feeRate decimal.Decimal) (int64, error) {
	if baseAmountMajor.IsNegative() || feeRate.IsNegative() {
		return 0, ErrInvalidAmount
	}

	total := baseAmountMajor.Mul(one.Add(feeRate)).Mul(hundred).Round(0)
	if !total.IsInteger() || total.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		return 0, ErrInvalidAmount
	}

	return total.IntPart(), nil
}

// NewCharge computes the total and echoes the inputs.
func NewCharge(baseAmountMajor, feeRate decimal.Decimal) (ComputedCharge, error) {
	total, err := ComputeTotalWithFee(baseAmountMajor, feeRate)
	if err != nil {
		return ComputedCharge{}, err
	}
	return ComputedCharge{
		TotalAmountMinor: total,
		BaseAmountMajor:  baseAmountMajor,
		FeeRate:          feeRate,
	}, nil
}

// MinorToMajor formats pence as pounds, e.g. 21000 -> "210.00".
func MinorToMajor(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}
