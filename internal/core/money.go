// Package core provides money parsing and handling utilities.
//
// Amounts are held as integer cents so that sums are exact and independent
// of summation order.
package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

type Money struct {
	Cents int64
}

var ErrInvalidAmount = errors.New("invalid amount")

var hundred = decimal.NewFromInt(100)

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

func (m Money) IsPositive() bool {
	return m.Cents > 0
}

// Dollars returns the value as a float64 for display purposes.
// Use cents for calculations.
func (m Money) Dollars() float64 {
	return float64(m.Cents) / 100.0
}

// Decimal returns the exact decimal value.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// MoneyFromDecimal rounds d half away from zero to whole cents.
func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money{Cents: d.Mul(hundred).Round(0).IntPart()}
}

// ParseMoney converts an amount as it appears in a payment schedule to Money.
//
// It strips currency symbols, quotes and spaces (including the narrow and
// non-breaking spaces used as French thousands separators), reads
// "(123.45)" as a negative amount and accepts a decimal comma when the comma
// is the only separator and is followed by exactly two digits.
//
// Examples:
//
//	ParseMoney("$1,234.56")  -> 123456
//	ParseMoney("1 234,56")   -> 123456
//	ParseMoney("(12.50)")    -> -1250
//	ParseMoney("12.345")     -> 1235 (half-up)
func ParseMoney(s string) (Money, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '$', '"', '\'', ' ', '\t', '\u00a0', '\u202f':
			return -1
		}
		return r
	}, s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	switch {
	case strings.Contains(s, "."):
		s = strings.ReplaceAll(s, ",", "")
	case strings.Count(s, ",") == 1 && len(s)-strings.Index(s, ",") == 3:
		s = strings.Replace(s, ",", ".", 1)
	default:
		s = strings.ReplaceAll(s, ",", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	if negative {
		d = d.Neg()
	}
	return MoneyFromDecimal(d), nil
}
