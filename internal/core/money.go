package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MoneyPlaces is the precision every stored amount is rounded to.
const MoneyPlaces = 2

var hundred = decimal.NewFromInt(100)

// ParseAmount parses a user-entered magnitude. Both "12.34" and "12,34" are
// accepted; the result is rounded half-up to cents and must be positive.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, Validationf("parse amount", "amount is required")
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, Validationf("parse amount", "amount must be entered without a sign")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, Validationf("parse amount", "invalid amount %q", s)
	}
	d = RoundMoney(d)
	if !d.IsPositive() {
		return decimal.Zero, Validationf("parse amount", "amount must be greater than zero")
	}
	return d, nil
}

// RoundMoney rounds half away from zero to MoneyPlaces.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// SignedAmount applies the sign convention of t to a magnitude.
func SignedAmount(t TransactionType, magnitude decimal.Decimal) decimal.Decimal {
	m := RoundMoney(magnitude.Abs())
	if t == Expense {
		return m.Neg()
	}
	return m
}

// Percent returns 100*part/whole rounded to two places, 0 when whole is not positive.
func Percent(part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Mul(hundred).DivRound(whole, 2)
}
