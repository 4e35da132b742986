package utils

import (
	"strings"
	"unicode"
)

// CodeWidth is the fixed width of a KRX short code.
const CodeWidth = 6

// NormalizeCode turns a user- or page-supplied KRX short code into the
// canonical zero-padded form. e.g. "5930" → "005930", "A005930" → "005930"
func NormalizeCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))

	// The listing sometimes carries the standard "A" prefix.
	if len(code) == CodeWidth+1 && code[0] == 'A' {
		code = code[1:]
	}

	if len(code) < CodeWidth {
		code = strings.Repeat("0", CodeWidth-len(code)) + code
	}
	return code
}

// IsCode reports whether s already looks like a canonical short code.
// Newer listings mix letters into the code (e.g. "0004V0").
func IsCode(s string) bool {
	if len(s) != CodeWidth {
		return false
	}
	digits := 0
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			digits++
		case r >= 'A' && r <= 'Z':
		default:
			return false
		}
	}
	return digits >= CodeWidth-1
}

// NormalizeQuery trims and lower-cases a free-text security name.
func NormalizeQuery(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}
