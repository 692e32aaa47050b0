package payment

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// CurrencySymbol returns the display symbol for an ISO 4217 code. Codes
// without a symbol are shown verbatim.
func CurrencySymbol(currency string) string {
	switch currency {
	case "EUR":
		return "€"
	case "USD":
		return "$"
	case "CHF":
		return "CHF"
	default:
		return currency
	}
}

// FormatAmount renders an amount with two decimals, a comma decimal separator
// and the currency symbol in front, e.g. "€ 12,50".
func FormatAmount(amount decimal.Decimal, currency string) string {
	fixed := amount.StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")
	return fmt.Sprintf("%s %s,%s", CurrencySymbol(currency), whole, frac)
}

// MinorUnits converts an amount to minor units after rounding to two decimals.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Round(2).Shift(2).IntPart()
}

// CeilMinorUnits converts an amount to minor units rounding up, as required
// for device wallet totals.
func CeilMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Ceil().IntPart()
}

// ParseMinorUnits recovers the minor units from a string produced by
// FormatAmount by reading its digits.
func ParseMinorUnits(formatted string) (int64, error) {
	var digits strings.Builder
	negative := false
	for _, r := range formatted {
		switch {
		case unicode.IsDigit(r):
			digits.WriteRune(r)
		case r == '-' && digits.Len() == 0:
			negative = true
		}
	}
	if digits.Len() == 0 {
		return 0, fmt.Errorf("no digits in amount %q", formatted)
	}
	v, err := strconv.ParseInt(digits.String(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", formatted, err)
	}
	if negative {
		v = -v
	}
	return v, nil
}
