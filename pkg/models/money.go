package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Money is an amount in paise (hundredths of a rupee).
type Money int64

// MaxAmount is the largest amount accepted for a single operation.
const MaxAmount Money = 1_000_000_000_000

// CurrencySymbol prefixes formatted amounts.
const CurrencySymbol = "₹"

// Rupees builds a Money value from whole rupees.
func Rupees(r int64) Money {
	return Money(r * 100)
}

// String formats m as ₹1234.50.
func (m Money) String() string {
	return CurrencySymbol + m.Plain()
}

// Plain formats m as 1234.50 without the currency symbol.
func (m Money) Plain() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// Float returns m in rupees.
func (m Money) Float() float64 {
	return float64(m) / 100
}

// ParseAmount parses user input such as "1500", "1500.5" or "1500.50".
//
// Parsing is lenient: anything that is not a plain decimal number yields 0,
// which callers treat as an invalid amount. Digits past the second decimal
// place are truncated.
func ParseAmount(s string) Money {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" && !hasFrac {
		return 0
	}
	if !isDigits(whole) || (hasFrac && !isDigits(frac)) {
		return 0
	}
	if whole == "" {
		whole = "0"
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || units > int64(MaxAmount)/100 {
		return 0
	}

	var cents int64
	switch {
	case len(frac) == 0:
	case len(frac) == 1:
		cents = int64(frac[0]-'0') * 10
	default:
		cents = int64(frac[0]-'0')*10 + int64(frac[1]-'0')
	}
	return Money(units*100 + cents)
}

// ValidAmount reports whether m is positive and within MaxAmount.
func ValidAmount(m Money) bool {
	return m > 0 && m <= MaxAmount
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
