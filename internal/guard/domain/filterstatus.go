package domain

// Filter describes one filter list subscription on the upstream service.
type Filter struct {
	Enabled     bool   `json:"enabled"`
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	RulesCount  int    `json:"rules_count"`
	URL         string `json:"url"`
	LastUpdated string `json:"last_updated,omitempty"`
}

// FilterStatus is a point-in-time snapshot of the upstream filtering
// configuration. It reflects the last successful fetch and nothing more;
// there is no local cache invariant.
type FilterStatus struct {
	Enabled          bool     `json:"enabled"`
	Interval         int      `json:"interval,omitempty"`
	Filters          []Filter `json:"filters"`
	WhitelistFilters []Filter `json:"whitelist_filters"`
	UserRules        []string `json:"user_rules"`
}
