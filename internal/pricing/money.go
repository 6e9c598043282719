package pricing

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// Money represents a monetary value in whole currency units. The storefront
// trades in FCFA, which has no decimal subunit, so every amount is an integer.
type Money = int64

// ErrInvalidAmount is returned when a value cannot be represented as Money.
var ErrInvalidAmount = errors.New("invalid amount")

// Round converts a fractional amount into Money using round-half-up. The
// engines themselves stay in integer arithmetic; Round exists for callers
// ingesting fractional amounts from outside (imports, external price feeds)
// and is the only place such a value may become a whole-currency one.
func Round(x float64) (Money, error) {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0, ErrInvalidAmount
	}
	rounded := math.Floor(x + 0.5)
	if rounded < 0 {
		return 0, ErrInvalidAmount
	}
	return Money(rounded), nil
}

// ThousandsSeparator groups digits in formatted amounts. A plain space keeps
// formatted labels byte-for-byte predictable for clients and logs.
const ThousandsSeparator = " "

// Format renders an amount with spaces as thousands separators followed by
// the currency label, e.g. "8 500 FCFA". The input must already be a whole
// Money value; no rounding happens here.
func Format(m Money, label string) string {
	digits := strconv.FormatInt(m, 10)
	negative := strings.HasPrefix(digits, "-")
	if negative {
		digits = digits[1:]
	}
	var b strings.Builder
	if negative {
		b.WriteByte('-')
	}
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 && !(negative && b.Len() == 1) {
			b.WriteString(ThousandsSeparator)
		}
		b.WriteString(digits[i : i+3])
	}
	label = strings.TrimSpace(label)
	if label == "" {
		return b.String()
	}
	return b.String() + " " + label
}
