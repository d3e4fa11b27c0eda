package sam

import (
	"strings"
	"unicode"
)

// zeroDate is the placeholder the source emits for unknown dates. It
// does not parse, so it is rewritten to a sentinel that does.
const (
	zeroDate     = "0000-00-00"
	sentinelDate = "0001-01-01"
)

// Sanitize applies the two input-sanitization rules to a raw source
// value before any type coercion: Unicode control characters become
// spaces, and zero dates become the sentinel date.
func Sanitize(raw string) string {
	if raw == zeroDate {
		return sentinelDate
	}
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if unicode.IsControl(r) {
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
