// Package normalize collapses free-text bank transaction descriptions
// into a canonical form usable as a deduplication key. Card processors
// append per-transaction reference codes, timestamps and authorization
// numbers to the merchant name; stripping those leaves the stable part
// of the description so that repeat transactions at the same merchant
// group together.
package normalize

import (
	"regexp"
	"strings"
)

var (
	// Asterisk-prefixed reference codes, e.g. "STORE*AB12CD34".
	refCode = regexp.MustCompile(`(?i)\*[A-Z0-9]{8,10}`)

	// Residual reference/authorization IDs: standalone 7-10 char
	// alphanumeric tokens. Matched tokens are only dropped when they
	// carry at least one digit, so ordinary long words survive.
	idToken = regexp.MustCompile(`(?i)\b[A-Z0-9]{7,10}\b`)

	digitRun = regexp.MustCompile(`\d+`)
	symbols  = regexp.MustCompile(`[^\w\s]`)
	meridiem = regexp.MustCompile(`(?i)\bAM\b|\bPM\b`)
)

// Normalize derives the canonical form of a raw ledger description.
// It is pure and total: any input string yields a result, and applying
// it twice yields the same result as applying it once.
//
// The rule order matters: reference codes must go before the digit
// strip (a code stripped of its digits no longer looks like a code),
// and both must go before the symbol strip (codes attached with "*"
// would otherwise merge into the merchant name).
//
// Case and inner whitespace are left alone, so two descriptions that
// differ only in casing or spacing are distinct normalized forms.
func Normalize(raw string) string {
	s := refCode.ReplaceAllString(raw, "")
	s = idToken.ReplaceAllStringFunc(s, func(tok string) string {
		if strings.ContainsAny(tok, "0123456789") {
			return ""
		}
		return tok
	})
	s = digitRun.ReplaceAllString(s, "")
	s = symbols.ReplaceAllString(s, "")
	s = meridiem.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
