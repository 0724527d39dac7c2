// internal/service/phone.go
package service

import (
	"regexp"
	"strings"
)

// Matches international and US-style numbers with optional separators.
// Deliberately loose: a false positive only means we ask the messaging
// provider to validate a bad destination, a false negative loses the lead's
// phone scenario.
var phonePattern = regexp.MustCompile(`\+?\d[\d\-\.\s\(\)]{7,}\d`)

// ExtractPhone returns the first phone-looking token in text, normalized to
// digits (with a leading + preserved), or "" when none is present.
func ExtractPhone(text string) string {
	match := phonePattern.FindString(text)
	if match == "" {
		return ""
	}

	var b strings.Builder
	for i, r := range match {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}

	digits := strings.TrimPrefix(b.String(), "+")
	if len(digits) < 9 || len(digits) > 15 {
		return ""
	}
	return b.String()
}
