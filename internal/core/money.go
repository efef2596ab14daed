// Package core provides money parsing and handling utilities.
//
// This file contains the decimal-backed Money type used for allowances and
// expense amounts. Money serializes as a bare JSON number.
package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	errNotPositive = errors.New("amount must be positive")
	errMalformed   = errors.New("amount must be plain decimal digits")
	errTooLarge    = errors.New("amount out of range")
)

// Input bounds: at most 12 whole digits and 8 decimal places.
const (
	maxWholeDigits    = 12
	maxFractionDigits = 8
)

// Money is a decimal amount in the user's display currency.
type Money struct {
	d decimal.Decimal
}

// NewMoney wraps a decimal value.
func NewMoney(d decimal.Decimal) Money {
	return Money{d: d}
}

// MoneyFromFloat converts a float, mostly useful in tests and seeds.
func MoneyFromFloat(f float64) Money {
	return Money{d: decimal.NewFromFloat(f)}
}

// ParseMoney converts user input into a strictly positive amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Signs,
// exponents, empty strings and anything that is not a number are rejected,
// as are values beyond maxWholeDigits or maxFractionDigits.
//
// Examples:
//
//	ParseMoney("4.5")  -> 4.5, nil
//	ParseMoney("12,3") -> 12.3, nil
//	ParseMoney("0")    -> error
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, errNotPositive
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Money{}, errNotPositive
	}
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return Money{}, errMalformed
	}
	for _, part := range []string{whole, frac} {
		for _, r := range part {
			if r < '0' || r > '9' {
				return Money{}, errMalformed
			}
		}
	}
	if len(strings.TrimLeft(whole, "0")) > maxWholeDigits || len(frac) > maxFractionDigits {
		return Money{}, errTooLarge
	}
	if whole == "" {
		whole = "0"
	}
	if frac != "" {
		whole += "." + frac
	}
	d, err := decimal.NewFromString(whole)
	if err != nil {
		return Money{}, err
	}
	if !d.IsPositive() {
		return Money{}, errNotPositive
	}
	return Money{d: d}, nil
}

func (m Money) Decimal() decimal.Decimal { return m.d }

func (m Money) Add(o Money) Money { return Money{d: m.d.Add(o.d)} }

func (m Money) Sub(o Money) Money { return Money{d: m.d.Sub(o.d)} }

// Fraction returns m scaled by f, e.g. a quarter of the allowance.
func (m Money) Fraction(f float64) Money {
	return Money{d: m.d.Mul(decimal.NewFromFloat(f))}
}

func (m Money) Cmp(o Money) int { return m.d.Cmp(o.d) }

func (m Money) Equal(o Money) bool { return m.d.Equal(o.d) }

func (m Money) LessThan(o Money) bool { return m.d.LessThan(o.d) }

func (m Money) IsZero() bool { return m.d.IsZero() }

func (m Money) IsPositive() bool { return m.d.IsPositive() }

func (m Money) IsNegative() bool { return m.d.IsNegative() }

// Fixed formats the amount with exactly two decimal places.
func (m Money) Fixed() string {
	return m.d.StringFixed(2)
}

// String returns the shortest exact representation, suitable for form inputs.
func (m Money) String() string {
	return m.d.String()
}

// MarshalJSON writes the amount as a JSON number.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.d.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (m *Money) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		m.d = decimal.Zero
		return nil
	}
	return m.d.UnmarshalJSON(data)
}
