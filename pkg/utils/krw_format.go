// Package utils provides common utility functions for kstock.
package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// CleanText removes non-breaking spaces and collapses runs of whitespace
// into a single space.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	return strings.Join(strings.Fields(s), " ")
}

// ParseNumber parses a number as printed on Korean finance pages:
// thousands separators, an optional sign and a trailing unit are tolerated.
// e.g. "72,300원" → 72300, "+1.69%" → 1.69, "-0.5" → -0.5
func ParseNumber(s string) (float64, bool) {
	s = CleanText(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.TrimRightFunc(s, func(r rune) bool {
		return !(r >= '0' && r <= '9') && r != '.'
	})
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseInt parses an integer count such as a traded volume ("12,345,678").
func ParseInt(s string) (int64, bool) {
	s = strings.ReplaceAll(CleanText(s), ",", "")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseEokAmount parses an amount written with 조 and 억 groups and returns it
// in units of 억 (1조 = 10,000억). A bare number is taken to be 억 already.
// e.g. "430조 1,234" → 4301234, "9,876" → 9876
func ParseEokAmount(s string) (float64, bool) {
	s = strings.ReplaceAll(CleanText(s), " ", "")
	s = strings.TrimSuffix(s, "원")
	s = strings.TrimSuffix(s, "억")

	total := 0.0
	if i := strings.Index(s, "조"); i >= 0 {
		jo, ok := ParseNumber(s[:i])
		if !ok {
			return 0, false
		}
		total = jo * 10000
		s = s[i+len("조"):]
	}
	if s == "" {
		return total, true
	}
	eok, ok := ParseNumber(s)
	if !ok {
		return 0, false
	}
	return total + eok, true
}

// FormatThousands formats an integer with comma grouping (1234567 → "1,234,567").
func FormatThousands(n int64) string {
	negative := n < 0
	if negative {
		n = -n
	}

	s := strconv.FormatInt(n, 10)
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}

	if negative {
		return "-" + b.String()
	}
	return b.String()
}

// FormatPct formats a percentage value with sign and suffix.
// e.g., 2.45 → "+2.45%", -1.23 → "-1.23%"
func FormatPct(pct float64) string {
	if pct >= 0 {
		return fmt.Sprintf("+%.2f%%", pct)
	}
	return fmt.Sprintf("%.2f%%", pct)
}
