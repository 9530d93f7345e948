package formatting

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Separator returns a line separator of given width
func Separator(width int) string {
	return strings.Repeat("=", width)
}

// Money formats a quote-currency amount as $12.34
func Money(v decimal.Decimal) string {
	return "$" + v.StringFixed(2)
}

// Price keeps more precision for small-cap coins
func Price(v decimal.Decimal) string {
	if v.LessThan(decimal.NewFromInt(1)) {
		return "$" + v.StringFixed(6)
	}
	return "$" + v.StringFixed(4)
}

func Percent(f float64) string {
	return fmt.Sprintf("%.0f%%", f*100)
}

// FirstN returns at most n leading reasons joined by ", "
func FirstN(items []string, n int) string {
	if len(items) > n {
		items = items[:n]
	}
	return strings.Join(items, ", ")
}
