package domain

// Node budget bounds applied to caller-supplied max_nodes values.
const (
	MinMaxNodes     = 2
	MaxMaxNodes     = 100
	DefaultMaxNodes = 10
)

// ClampMaxNodes normalizes a caller-supplied node budget into the supported
// range. Zero or negative values fall back to the default.
func ClampMaxNodes(n int) int {
	if n <= 0 {
		return DefaultMaxNodes
	}
	if n < MinMaxNodes {
		return MinMaxNodes
	}
	if n > MaxMaxNodes {
		return MaxMaxNodes
	}
	return n
}

// SearchFilters is the structured filter set derived from a query by the
// intent extraction stage.
type SearchFilters struct {
	Topics       []string `json:"topics"`
	GeoScopes    []string `json:"geo_scopes,omitempty"`
	Institutions []string `json:"institutions,omitempty"`
}

// IsEmpty returns true if no filter dimension carries a value.
func (f SearchFilters) IsEmpty() bool {
	return len(f.Topics) == 0 && len(f.GeoScopes) == 0 && len(f.Institutions) == 0
}

// IntentKind tags the outcome of intent extraction.
type IntentKind string

const (
	// IntentParsed means the text-understanding collaborator returned a
	// well-formed filter set.
	IntentParsed IntentKind = "parsed"
	// IntentDegraded means extraction fell back to the raw query as the
	// single topic.
	IntentDegraded IntentKind = "degraded"
)

// IntentResult is the tagged outcome of intent extraction. Callers must
// branch on Kind instead of inspecting fields blindly.
type IntentResult struct {
	Kind     IntentKind    `json:"kind"`
	Filters  SearchFilters `json:"filters"`
	RawQuery string        `json:"raw_query"`
}

// DegradedIntent builds the fallback result used when the collaborator is
// unavailable or returns malformed structure: the raw query becomes the
// single search topic.
func DegradedIntent(query string) IntentResult {
	return IntentResult{
		Kind:     IntentDegraded,
		Filters:  SearchFilters{Topics: []string{query}},
		RawQuery: query,
	}
}

// ParsedIntent builds a result from a well-formed filter set. An empty filter
// set still degrades, so search always has at least one topic to work with.
func ParsedIntent(query string, filters SearchFilters) IntentResult {
	if len(filters.Topics) == 0 && filters.IsEmpty() {
		return DegradedIntent(query)
	}
	if len(filters.Topics) == 0 {
		filters.Topics = []string{query}
	}
	return IntentResult{
		Kind:     IntentParsed,
		Filters:  filters,
		RawQuery: query,
	}
}
