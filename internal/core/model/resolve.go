package model

type Strategy string

const (
	StrategyNewest          Strategy = "newest"
	StrategyPreferredSource Strategy = "preferredSource"
)

// ResolutionConfig selects how a duplicate cluster collapses to one record.
// PreferredSource is only meaningful when Strategy is StrategyPreferredSource.
type ResolutionConfig struct {
	Strategy        Strategy `json:"strategy"`
	AutoMerge       bool     `json:"auto_merge"`
	PreferredSource Source   `json:"preferred_source,omitempty"`
}

// ResolvedContact is the canonical record for a cluster plus provenance:
// FieldSources maps each populated field to the key of the record it came from,
// MergedFrom lists the non-canonical members folded into it.
type ResolvedContact struct {
	Canonical    ContactRecord     `json:"canonical"`
	FieldSources map[string]string `json:"field_sources"`
	MergedFrom   []string          `json:"merged_from"`
}
