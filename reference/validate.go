// Package reference validates the opaque locator strings recorded by the
// registry, and offers a display helper for presentation layers.
//
// The registry calls Validate only. Describe inspects the string for UI
// purposes and is never consulted for authorization or storage.
package reference

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMaxLen is the default upper bound on a reference, in bytes.
const DefaultMaxLen = 2048

// Validate checks that ref is acceptable as an opaque locator.
// maxLen <= 0 selects DefaultMaxLen.
func Validate(ref string, maxLen int) error {
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}
	if strings.TrimSpace(ref) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidReference)
	}
	if len(ref) > maxLen {
		return fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrInvalidReference, len(ref), maxLen)
	}
	if !utf8.ValidString(ref) {
		return fmt.Errorf("%w: not valid UTF-8", ErrInvalidReference)
	}
	for i, r := range ref {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character at byte %d", ErrInvalidReference, i)
		}
	}
	return nil
}
