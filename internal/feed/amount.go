package feed

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount reads a money or area cell such as "1,250,000 SAR",
// "﷼ 950٬000" or "١٢٥٫٥".  Thousands separators, currency symbols and
// letters are dropped; Arabic-Indic digits and the Arabic decimal
// separator are understood.  Anything unparseable yields zero.
func ParseAmount(raw string) decimal.Decimal {
	s := toASCIIDigits(strings.TrimSpace(raw))
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' && strings.ContainsAny(b.String(), "0123456789"):
			// dots before any digit belong to abbreviations like "ر.س"
			b.WriteRune(r)
		case r == '-' && b.Len() == 0:
			b.WriteRune(r)
		}
	}
	d, err := decimal.NewFromString(strings.TrimRight(b.String(), "."))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// toASCIIDigits maps Arabic-Indic and Eastern Arabic-Indic digits to
// ASCII, turns the Arabic decimal separator into '.' and removes the
// Arabic thousands separator.
func toASCIIDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= '٠' && r <= '٩':
			b.WriteRune('0' + (r - '٠'))
		case r >= '۰' && r <= '۹':
			b.WriteRune('0' + (r - '۰'))
		case r == '٫':
			b.WriteRune('.')
		case r == '٬':
			// thousands separator
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
