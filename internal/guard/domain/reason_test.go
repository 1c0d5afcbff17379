package domain

import (
	"errors"
	"testing"
)

func TestParseReason_KnownValues(t *testing.T) {
	tests := []struct {
		input    string
		filtered bool
	}{
		{"NotFilteredNotFound", false},
		{"NotFilteredWhiteList", false},
		{"NotFilteredError", false},
		{"FilteredBlackList", true},
		{"FilteredSafeBrowsing", true},
		{"FilteredParental", true},
		{"FilteredInvalid", true},
		{"FilteredSafeSearch", true},
		{"FilteredBlockedService", true},
		{"Rewrite", false},
		{"RewriteEtcHosts", false},
		{"RewriteRule", false},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			r, err := ParseReason(tc.input)
			if err != nil {
				t.Fatalf("ParseReason(%q) returned error: %v", tc.input, err)
			}
			if r.String() != tc.input {
				t.Errorf("ParseReason(%q) = %q", tc.input, r)
			}
			if r.IsFiltered() != tc.filtered {
				t.Errorf("Reason(%q).IsFiltered() = %v, want %v", tc.input, r.IsFiltered(), tc.filtered)
			}
		})
	}
}

func TestParseReason_UnknownValues(t *testing.T) {
	for _, input := range []string{"", "Blocked", "filteredblacklist", "FilteredSomethingNew"} {
		t.Run("input="+input, func(t *testing.T) {
			_, err := ParseReason(input)
			if err == nil {
				t.Fatalf("ParseReason(%q) succeeded, want error", input)
			}
			if !errors.Is(err, ErrUpstreamProtocol) {
				t.Errorf("ParseReason(%q) error %v does not wrap ErrUpstreamProtocol", input, err)
			}
		})
	}
}

func TestCheckResult_Blocked(t *testing.T) {
	if (CheckResult{Reason: ReasonNotFilteredNotFound}).Blocked() {
		t.Error("NotFilteredNotFound should not report blocked")
	}
	if !(CheckResult{Reason: ReasonFilteredBlackList}).Blocked() {
		t.Error("FilteredBlackList should report blocked")
	}
	if (CheckResult{Reason: ReasonRewrite}).Blocked() {
		t.Error("Rewrite should not report blocked")
	}
}
