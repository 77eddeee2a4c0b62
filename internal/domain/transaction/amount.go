package transaction

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatCents renders an amount in cents with exactly two fraction digits,
// the form every gateway call and DB numeric column uses ("100.00").
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}

	whole := cents / 100
	frac := cents % 100

	return fmt.Sprintf("%s%d.%02d", sign, whole, frac)
}

// ParseCents converts a decimal amount string back to cents.
func ParseCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount string")
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}

	return int64(math.Round(f * 100)), nil
}
