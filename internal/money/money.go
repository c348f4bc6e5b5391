// Package money renders currency, percentage and date values the way the
// booking platform displays them: the id-ID locale with IDR as a
// zero-decimal currency. All arithmetic stays in decimal form; formatting
// happens only at the display boundary.
package money

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// thousandsSep and decimalSep follow the id-ID locale.
	thousandsSep = "."
	decimalSep   = ","

	currencyPrefix = "Rp"
)

// FormatIDR renders an amount as Indonesian Rupiah, e.g. "Rp 480.000".
// IDR is displayed with zero minor units; the amount is rounded half-up
// to a whole number first.
func FormatIDR(amount decimal.Decimal) string {
	whole := amount.Round(0)

	neg := whole.IsNegative()
	digits := whole.Abs().String()

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteString(currencyPrefix)
	b.WriteByte(' ')
	b.WriteString(group(digits))
	return b.String()
}

// FormatPercent renders a percentage value, e.g. "10%" or "12,5%".
// Trailing fraction zeros are trimmed before the id-ID decimal separator
// is applied.
func FormatPercent(value decimal.Decimal) string {
	s := value.String() // canonical form, no trailing zeros
	s = strings.Replace(s, ".", decimalSep, 1)
	return s + "%"
}

// FormatDate renders a timestamp as day/month/year, e.g. "31/01/2024".
func FormatDate(t time.Time) string {
	return t.Format("02/01/2006")
}

// group inserts the id-ID thousands separator into an unsigned digit string.
func group(digits string) string {
	n := len(digits)
	if n <= 3 {
		return digits
	}

	var b strings.Builder
	head := n % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < n; i += 3 {
		if b.Len() > 0 {
			b.WriteString(thousandsSep)
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
