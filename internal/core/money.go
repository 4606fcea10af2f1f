// Package core provides money parsing and handling utilities.
//
// Amounts are kept in integer cents. Rates are applied in floating point and
// rounded half away from zero back to cents.
package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// EUR builds a Money from a whole euro amount.
func EUR(euros int64) Money {
	return Money{Cents: euros * 100}
}

// ParseDecimalToCents converts a decimal string to cents with proper rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators, ignores
// French thousands separators (spaces, narrow no-break spaces) and performs
// half-up rounding on the third decimal place. The result is always positive cents.
//
// Examples:
//   ParseDecimalToCents("12.34") -> 1234, nil
//   ParseDecimalToCents("1 200,50") -> 120050, nil
//   ParseDecimalToCents("12.345") -> 1235, nil (rounds up)
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	s = strings.TrimSuffix(s, "€")
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart + fracPart {
		if r < '0' || r > '9' {
			return 0, ErrInvalidAmount
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv > maxSafeInt64 {
		return 0, ErrInvalidAmount
	}
	var fracCents int64
	if len(fracPart) > 0 {
		fracCents = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			fracCents += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracCents++
			}
		}
	}
	cents := iv*100 + fracCents
	if cents <= 0 {
		return 0, ErrInvalidAmount
	}
	return cents, nil
}

// ParseMoney is ParseDecimalToCents returning a Money.
func ParseMoney(s string) (Money, error) {
	c, err := ParseDecimalToCents(s)
	if err != nil {
		return Money{}, err
	}
	return Money{Cents: c}, nil
}

// Euros returns the euro value as a float64 for display purposes.
// Use cents for calculations to avoid floating-point precision issues.
func (m Money) Euros() float64 {
	return float64(m.Cents) / 100.0
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) IsZero() bool { return m.Cents == 0 }

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }

func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

func (m Money) Neg() Money { return Money{Cents: -m.Cents} }

// MulRate multiplies by a fraction (0.22 for 22%) and rounds to the cent.
func (m Money) MulRate(rate float64) Money {
	return Money{Cents: int64(math.Round(float64(m.Cents) * rate))}
}

// Percent applies a percentage (20 for 20%) and rounds to the cent.
func (m Money) Percent(pct float64) Money {
	return m.MulRate(pct / 100)
}

// String formats the amount the way invoices and summaries display it: "1234.50 €".
func (m Money) String() string {
	return fmt.Sprintf("%.2f €", m.Euros())
}

// MarshalJSON encodes the amount as a decimal euro number.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(m.Euros(), 'f', 2, 64)), nil
}

// UnmarshalJSON accepts a JSON number or a decimal string, zero included.
func (m *Money) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" || s == "0" {
		*m = Money{}
		return nil
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return ErrInvalidAmount
	}
	*m = Money{Cents: int64(math.Round(f * 100))}
	return nil
}
