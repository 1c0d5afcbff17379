package domain

import (
	"fmt"
	"strings"

	"golang.org/x/net/idna"
)

// Name is a validated domain name in canonical form: lowercase ASCII
// (punycode for internationalized input), no trailing dot, no scheme,
// no path.
type Name string

const maxNameLength = 253

// NewName normalizes and validates a raw domain name. Unicode input is
// converted to its ASCII (punycode) form before validation. All failures
// wrap ErrInvalidInput so callers can reject bad input before touching
// the upstream service.
func NewName(raw string) (Name, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("%w: empty name", ErrInvalidInput)
	}
	if strings.ContainsAny(s, "/\\:?#@ \t") {
		return "", fmt.Errorf("%w: %q contains scheme, path or whitespace characters", ErrInvalidInput, raw)
	}
	s = strings.TrimSuffix(strings.ToLower(s), ".")

	ascii, err := idna.Lookup.ToASCII(s)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidInput, raw, err)
	}
	if err := validateASCIIName(ascii); err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidInput, raw, err)
	}
	return Name(ascii), nil
}

// String returns the canonical name.
func (n Name) String() string { return string(n) }

// validateASCIIName checks label structure on an already-lowercased
// ASCII name: total length, per-label length, allowed characters, and
// hyphen placement.
func validateASCIIName(s string) error {
	if len(s) > maxNameLength {
		return fmt.Errorf("name exceeds %d characters", maxNameLength)
	}
	for _, label := range strings.Split(s, ".") {
		if label == "" {
			return fmt.Errorf("empty label")
		}
		if len(label) > 63 {
			return fmt.Errorf("label %q exceeds 63 characters", label)
		}
		if label[0] == '-' || label[len(label)-1] == '-' {
			return fmt.Errorf("label %q has leading or trailing hyphen", label)
		}
		for i := 0; i < len(label); i++ {
			c := label[i]
			if (c < 'a' || c > 'z') && (c < '0' || c > '9') && c != '-' {
				return fmt.Errorf("label %q contains invalid character %q", label, c)
			}
		}
	}
	return nil
}
