package domain

import (
	"fmt"
	"strings"
)

// Reason reports why the filtering service did or did not filter a host.
// The set is closed: anything else coming off the wire is a protocol
// error, not a new variant.
type Reason string

const (
	ReasonNotFilteredNotFound   Reason = "NotFilteredNotFound"
	ReasonNotFilteredWhiteList  Reason = "NotFilteredWhiteList"
	ReasonNotFilteredError      Reason = "NotFilteredError"
	ReasonFilteredBlackList     Reason = "FilteredBlackList"
	ReasonFilteredSafeBrowsing  Reason = "FilteredSafeBrowsing"
	ReasonFilteredParental      Reason = "FilteredParental"
	ReasonFilteredInvalid       Reason = "FilteredInvalid"
	ReasonFilteredSafeSearch    Reason = "FilteredSafeSearch"
	ReasonFilteredBlockedService Reason = "FilteredBlockedService"
	ReasonRewrite               Reason = "Rewrite"
	ReasonRewriteEtcHosts       Reason = "RewriteEtcHosts"
	ReasonRewriteRule           Reason = "RewriteRule"
)

// knownReasons is the closed set accepted at the upstream boundary.
var knownReasons = map[Reason]struct{}{
	ReasonNotFilteredNotFound:    {},
	ReasonNotFilteredWhiteList:   {},
	ReasonNotFilteredError:       {},
	ReasonFilteredBlackList:      {},
	ReasonFilteredSafeBrowsing:   {},
	ReasonFilteredParental:       {},
	ReasonFilteredInvalid:        {},
	ReasonFilteredSafeSearch:     {},
	ReasonFilteredBlockedService: {},
	ReasonRewrite:                {},
	ReasonRewriteEtcHosts:        {},
	ReasonRewriteRule:            {},
}

// ParseReason validates a raw reason string against the closed set.
// Unknown values wrap ErrUpstreamProtocol rather than propagating raw
// upstream data.
func ParseReason(s string) (Reason, error) {
	r := Reason(s)
	if _, ok := knownReasons[r]; !ok {
		return "", fmt.Errorf("%w: unknown filtering reason %q", ErrUpstreamProtocol, s)
	}
	return r, nil
}

// IsFiltered returns true when the reason indicates the host is blocked.
func (r Reason) IsFiltered() bool {
	return strings.HasPrefix(string(r), "Filtered")
}

// String returns the wire representation of the reason.
func (r Reason) String() string { return string(r) }
