package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// MoneyScale is the number of fractional digits the ledger keeps internally.
// All balance arithmetic happens on int64 ticks; floating point is never
// used, even transiently.
const MoneyScale = 4

const moneyScaleFactor = 10000

// Money is a fixed-point amount scaled by 10^MoneyScale ("ticks").
type Money int64

// ZeroMoney is the additive identity.
const ZeroMoney Money = 0

// ParseMoney parses a decimal string (e.g. "100.50", "12", "-3.0001") into
// Money. It rejects more than MoneyScale fractional digits and malformed
// input; it never goes through a float.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("money: empty amount")
	}

	neg := false
	rest := s
	switch rest[0] {
	case '-':
		neg = true
		rest = rest[1:]
	case '+':
		rest = rest[1:]
	}
	if rest == "" {
		return 0, fmt.Errorf("money: invalid amount %q", s)
	}

	intPart, fracPart, hasFrac := strings.Cut(rest, ".")
	if intPart == "" {
		intPart = "0"
	}
	if hasFrac && len(fracPart) > MoneyScale {
		return 0, fmt.Errorf("money: amount %q has more than %d fractional digits", s, MoneyScale)
	}
	for len(fracPart) < MoneyScale {
		fracPart += "0"
	}

	if !isDigits(intPart) || (hasFrac && !isDigits(fracPart)) {
		return 0, fmt.Errorf("money: invalid amount %q", s)
	}

	whole, err := strconv.ParseInt(intPart, 10, 63)
	if err != nil {
		return 0, fmt.Errorf("money: invalid amount %q: %w", s, err)
	}
	frac, err := strconv.ParseInt(fracPart, 10, 63)
	if err != nil {
		return 0, fmt.Errorf("money: invalid amount %q: %w", s, err)
	}

	ticks := whole*moneyScaleFactor + frac
	if neg {
		ticks = -ticks
	}
	return Money(ticks), nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// IsPositive reports whether the amount is strictly greater than zero.
func (m Money) IsPositive() bool { return m > 0 }

// IsNegative reports whether the amount is strictly less than zero.
func (m Money) IsNegative() bool { return m < 0 }

// Add returns m + other.
func (m Money) Add(other Money) Money { return m + other }

// Sub returns m - other.
func (m Money) Sub(other Money) Money { return m - other }

// String formats the amount with the full internal precision (4 digits).
func (m Money) String() string { return m.format(MoneyScale) }

// StringAt2 formats the amount truncated to 2 fractional digits, the
// precision used on outbound event payloads.
func (m Money) StringAt2() string { return m.format(2) }

func (m Money) format(digits int) string {
	ticks := int64(m)
	neg := ticks < 0
	if neg {
		ticks = -ticks
	}
	whole := ticks / moneyScaleFactor
	frac := ticks % moneyScaleFactor
	fracStr := fmt.Sprintf("%0*d", MoneyScale, frac)[:digits]
	sign := ""
	if neg {
		sign = "-"
	}
	if digits == 0 {
		return fmt.Sprintf("%s%d", sign, whole)
	}
	return fmt.Sprintf("%s%d.%s", sign, whole, fracStr)
}
