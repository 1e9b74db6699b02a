// Package deident masks likely personal-identifying substrings in free
// text before it leaves the service boundary. It is best-effort pattern
// matching, not exhaustive PII scrubbing.
package deident

import "regexp"

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	// Korean phone numbers: 010-1234-5678, 02-1234-5678 and similar.
	phonePattern = regexp.MustCompile(`(\d{2,3})[-.\s]?(\d{3,4})[-.\s]?(\d{4})`)
	urlPattern   = regexp.MustCompile(`https?://[^\s]+`)
	// Resident registration numbers: 6 digits, dash, 7 digits.
	nationalIDPattern = regexp.MustCompile(`\d{6}-\d{7}`)
)

const (
	EmailPlaceholder      = "[이메일]"
	PhonePlaceholder      = "[연락처]"
	URLPlaceholder        = "[URL]"
	NationalIDPlaceholder = "[식별번호]"
)

// Text replaces email addresses, phone numbers, URLs and national-ID
// patterns with placeholder tokens. Each substitution scans the whole
// string independently; already-masked text passes through unchanged,
// so the transform is idempotent.
func Text(text string) string {
	text = emailPattern.ReplaceAllString(text, EmailPlaceholder)
	// National IDs first: the phone pattern would otherwise consume
	// the leading digits of a resident number.
	text = nationalIDPattern.ReplaceAllString(text, NationalIDPlaceholder)
	text = phonePattern.ReplaceAllString(text, PhonePlaceholder)
	return urlPattern.ReplaceAllString(text, URLPlaceholder)
}
