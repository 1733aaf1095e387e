// Package paymail resolves Paymail handles (alias@domain) to registry
// identities, so users can share access by handle instead of by address.
//
// Resolution discovers the host through the _bsvalias._tcp SRV record
// (DNSSEC-validated when a DNSSECResolver is used), fetches the capability
// document at /.well-known/bsvalias, and follows the PKI capability to the
// alias's compressed public key.
package paymail

import (
	"fmt"
	"strings"
)

// IsHandle reports whether s is syntactically a Paymail handle.
func IsHandle(s string) bool {
	_, _, err := ParseHandle(s)
	return err == nil
}

// ParseHandle splits alias@domain. The alias may contain letters, digits,
// '.', '_', '-' and '+'; the domain must contain a dot.
func ParseHandle(s string) (alias, domain string, err error) {
	s = strings.TrimSpace(s)
	at := strings.IndexByte(s, '@')
	if at <= 0 || at != strings.LastIndexByte(s, '@') || at == len(s)-1 {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidHandle, s)
	}
	alias, domain = s[:at], strings.ToLower(strings.TrimSuffix(s[at+1:], "."))

	for _, r := range alias {
		if !isAliasRune(r) {
			return "", "", fmt.Errorf("%w: alias contains %q", ErrInvalidHandle, r)
		}
	}
	if !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") {
		return "", "", fmt.Errorf("%w: domain %q", ErrInvalidHandle, domain)
	}
	for _, r := range domain {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-' || r == '.') {
			return "", "", fmt.Errorf("%w: domain contains %q", ErrInvalidHandle, r)
		}
	}
	return alias, domain, nil
}

func isAliasRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '.', r == '_', r == '-', r == '+':
		return true
	default:
		return false
	}
}

// validateCompressedPubKey checks that raw bytes represent a valid compressed public key.
// A compressed secp256k1 public key is exactly 33 bytes with prefix 0x02 or 0x03.
func validateCompressedPubKey(pub []byte) error {
	if len(pub) != 33 {
		return fmt.Errorf("%w: expected 33 bytes, got %d", ErrInvalidPubKey, len(pub))
	}
	if pub[0] != 0x02 && pub[0] != 0x03 {
		return fmt.Errorf("%w: invalid prefix byte 0x%02x", ErrInvalidPubKey, pub[0])
	}
	return nil
}
