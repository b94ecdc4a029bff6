package transport

import "regexp"

// nineDigits matches an unformatted national identifier. Formatted variants
// (123-456-789, 123 456 789) are normalized by the same pattern on each
// digit group boundary.
var nineDigits = regexp.MustCompile(`\b(\d{3})[ -]?(\d{3})[ -]?(\d{3})\b`)

// maskIdentifiers redacts national identifiers in free-form text down to
// the last four digits. Applied to every response fragment before it can
// reach an error value or log line.
func maskIdentifiers(s string) string {
	return nineDigits.ReplaceAllStringFunc(s, func(m string) string {
		digits := make([]byte, 0, 9)
		for i := 0; i < len(m); i++ {
			if m[i] >= '0' && m[i] <= '9' {
				digits = append(digits, m[i])
			}
		}
		return "***-***-" + string(digits[5:])
	})
}
