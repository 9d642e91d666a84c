// Package core holds the domain model of the tracker: money, periods,
// accounts, transactions, recurring rules, categories and budgets.
package core

import (
	"strconv"
	"strings"
	"unicode"
)

// Money is a fixed-precision amount in integer cents. All arithmetic stays in
// cents; floating point only appears at exchange-rate boundaries.
type Money struct {
	Cents int64
}

// Amortized returns the amount divided by 12, rounded half away from zero.
// Used to spread an annual recurring amount over monthly installments.
func (m Money) Amortized() Money {
	return Money{Cents: divRound(m.Cents, 12)}
}

// Scaled multiplies the amount by an exchange-rate factor, rounding half away
// from zero.
func (m Money) Scaled(rate float64) Money {
	v := float64(m.Cents) * rate
	if v < 0 {
		return Money{Cents: int64(v - 0.5)}
	}
	return Money{Cents: int64(v + 0.5)}
}

// Units returns the value in whole currency units for display.
func (m Money) Units() float64 {
	return float64(m.Cents) / 100.0
}

func divRound(cents, by int64) int64 {
	q := cents / by
	r := cents % by
	if r < 0 {
		r = -r
	}
	if 2*r >= by {
		if cents < 0 {
			return q - 1
		}
		return q + 1
	}
	return q
}

// ParseDecimalToCents converts a decimal string to cents with half-up
// rounding on the third decimal place. Both dot and comma separators are
// accepted; only positive amounts are valid.
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
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
		if !unicode.IsDigit(r) {
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
