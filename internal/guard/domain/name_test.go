package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestNewName_Valid(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "simple domain",
			input:    "example.com",
			expected: "example.com",
		},
		{
			name:     "subdomain",
			input:    "ads.tracker.example.com",
			expected: "ads.tracker.example.com",
		},
		{
			name:     "uppercase is lowered",
			input:    "Example.COM",
			expected: "example.com",
		},
		{
			name:     "trailing dot stripped",
			input:    "example.com.",
			expected: "example.com",
		},
		{
			name:     "surrounding whitespace trimmed",
			input:    "  example.com  ",
			expected: "example.com",
		},
		{
			name:     "single label",
			input:    "localhost",
			expected: "localhost",
		},
		{
			name:     "digits and hyphens",
			input:    "ad-server01.example.net",
			expected: "ad-server01.example.net",
		},
		{
			name:     "unicode converts to punycode",
			input:    "bücher.example",
			expected: "xn--bcher-kva.example",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NewName(tc.input)
			if err != nil {
				t.Fatalf("NewName(%q) returned error: %v", tc.input, err)
			}
			if got.String() != tc.expected {
				t.Errorf("NewName(%q) = %q, want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestNewName_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty", input: ""},
		{name: "whitespace only", input: "   "},
		{name: "scheme", input: "http://x.com"},
		{name: "path", input: "a/b"},
		{name: "backslash", input: "a\\b"},
		{name: "embedded space", input: "exa mple.com"},
		{name: "port", input: "example.com:8080"},
		{name: "query", input: "example.com?x=1"},
		{name: "fragment", input: "example.com#top"},
		{name: "userinfo", input: "user@example.com"},
		{name: "empty label", input: "example..com"},
		{name: "leading hyphen", input: "-example.com"},
		{name: "trailing hyphen in label", input: "bad-.example.com"},
		{name: "label too long", input: strings.Repeat("a", 64) + ".com"},
		{name: "name too long", input: strings.Repeat("abcdefgh.", 30) + "com"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewName(tc.input)
			if err == nil {
				t.Fatalf("NewName(%q) succeeded, want error", tc.input)
			}
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("NewName(%q) error %v does not wrap ErrInvalidInput", tc.input, err)
			}
		})
	}
}
