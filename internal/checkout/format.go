package checkout

import (
	"math"
	"strconv"
	"strings"
)

const nbsp = "\u00a0"

// FormatEuro renders value the way fi-FI formats whole euros, e.g. "2 899 €".
func FormatEuro(value float64) string {
	rounded := math.Round(value)
	neg := rounded < 0
	digits := strconv.FormatFloat(math.Abs(rounded), 'f', 0, 64)

	var b strings.Builder
	if neg {
		b.WriteString("\u2212")
	}
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteString(nbsp)
		}
		b.WriteRune(r)
	}
	b.WriteString(nbsp + "€")
	return b.String()
}
