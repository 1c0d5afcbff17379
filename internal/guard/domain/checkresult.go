package domain

// CheckResult is the normalized outcome of asking the filtering service
// about a single host. Optional fields are only set for the reasons that
// carry them (rule matches, service blocks, DNS rewrites).
type CheckResult struct {
	Reason      Reason   `json:"reason"`
	Rule        string   `json:"rule,omitempty"`
	FilterID    *int64   `json:"filter_id,omitempty"`
	ServiceName string   `json:"service_name,omitempty"`
	CName       string   `json:"cname,omitempty"`
	IPAddrs     []string `json:"ip_addrs,omitempty"`
}

// Blocked reports whether the checked host is currently filtered.
func (r CheckResult) Blocked() bool { return r.Reason.IsFiltered() }
