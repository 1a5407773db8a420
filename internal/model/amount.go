package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Amount is a monetary value: a decimal number plus an ISO currency code.
// A nil *Amount on a posting means the amount is intentionally missing and
// will be inferred by the balancer.
type Amount struct {
	Number   decimal.Decimal
	Currency string
}

// NewAmount creates an Amount from a decimal number and currency code.
func NewAmount(number decimal.Decimal, currency string) *Amount {
	return &Amount{Number: number, Currency: currency}
}

// MustAmount creates an Amount from a decimal string, panicking on parse
// failure. Intended for tests and static fixtures.
func MustAmount(number, currency string) *Amount {
	return &Amount{Number: decimal.RequireFromString(number), Currency: currency}
}

// Equal reports whether two amounts have the same numeric value and currency.
// Two nil amounts are equal; nil never equals a concrete amount.
func (a *Amount) Equal(b *Amount) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Currency == b.Currency && a.Number.Equal(b.Number)
}

// Neg returns a new Amount with the sign flipped.
func (a *Amount) Neg() *Amount {
	return &Amount{Number: a.Number.Neg(), Currency: a.Currency}
}

func (a *Amount) String() string {
	if a == nil {
		return "<missing>"
	}
	return fmt.Sprintf("%s %s", a.Number.String(), a.Currency)
}
