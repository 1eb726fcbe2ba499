package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// MicrosScale is the fixed precision the postgres ledger stores amounts in.
const MicrosScale = 6

var (
	ErrNegativeAmount  = errors.New("amount must not be negative")
	ErrAmountPrecision = errors.New("amount has more than 6 fractional digits")
)

var micro = decimal.New(1, MicrosScale)

var colorCodePattern = regexp.MustCompile(`(?i)§[0-9A-FK-ORX]`)

// ValidateAmount rejects negative amounts. Zero is allowed.
func ValidateAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("%w: %s", ErrNegativeAmount, amount.String())
	}
	return nil
}

// ToMicros converts a decimal amount to int64 micros (10^-6) without rounding.
func ToMicros(amount decimal.Decimal) (int64, error) {
	if !amount.Equal(amount.Truncate(MicrosScale)) {
		return 0, fmt.Errorf("%w: %s", ErrAmountPrecision, amount.String())
	}
	scaled := amount.Mul(micro)
	if !scaled.IsInteger() || scaled.GreaterThan(decimal.NewFromInt(1<<62)) || scaled.LessThan(decimal.NewFromInt(-(1 << 62))) {
		return 0, fmt.Errorf("amount %s out of range", amount.String())
	}
	return scaled.IntPart(), nil
}

// FromMicros converts int64 micros back to a decimal amount.
func FromMicros(micros int64) decimal.Decimal {
	return decimal.New(micros, -MicrosScale)
}

// CurrencyFormat renders amounts for display.
type CurrencyFormat struct {
	Symbol string
	Places int32
}

// DefaultCurrencyFormat renders "$1,234.50".
var DefaultCurrencyFormat = CurrencyFormat{Symbol: "$", Places: 2}

// Format returns the amount with thousands separators and a leading symbol.
func (f CurrencyFormat) Format(amount decimal.Decimal) string {
	fixed := amount.Abs().StringFixed(f.Places)
	whole, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	if amount.IsNegative() {
		b.WriteByte('-')
	}
	b.WriteString(f.Symbol)
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if frac != "" {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}

// StripColor removes "§x" formatting codes from s.
func StripColor(s string) string {
	return colorCodePattern.ReplaceAllString(s, "")
}
