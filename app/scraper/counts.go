package scraper

import (
	"strconv"
	"strings"
)

// ParseCount converts display counts like "2.3M", "15K" or "1,234" into an
// absolute value. Malformed input yields nil.
func ParseCount(s string) *int64 {
	s = strings.ToUpper(strings.TrimSpace(strings.ReplaceAll(s, ",", "")))
	if s == "" {
		return nil
	}

	mult := int64(1)
	switch {
	case strings.HasSuffix(s, "K"):
		mult = 1_000
		s = strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		mult = 1_000_000
		s = strings.TrimSuffix(s, "M")
	case strings.HasSuffix(s, "B"):
		mult = 1_000_000_000
		s = strings.TrimSuffix(s, "B")
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}

	n := int64(f * float64(mult))
	return &n
}

// cleanText collapses runs of whitespace into single spaces.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
