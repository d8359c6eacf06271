package model

type Direction string

const (
	DirectionImport Direction = "import"
	DirectionExport Direction = "export"
	DirectionBoth   Direction = "both"
)

// Import reports whether the pass pulls remote records.
func (d Direction) Import() bool { return d == DirectionImport || d == DirectionBoth }

// Export reports whether the pass pushes local records.
func (d Direction) Export() bool { return d == DirectionExport || d == DirectionBoth }

// SyncRequest describes one reconciliation pass. Threshold, when non-zero,
// overrides the configured deduplication threshold for this pass only.
type SyncRequest struct {
	UserID         string    `json:"user_id"`
	Direction      Direction `json:"direction"`
	DryRun         bool      `json:"dry_run"`
	ForceFull      bool      `json:"force_full"`
	EnableLLMDedup bool      `json:"enable_llm_dedup"`
	Threshold      int       `json:"deduplication_threshold,omitempty"`
}

// SyncResult aggregates one pass. Errors are per-item and never abort the
// batch; Success is false only when the pass could not run at all.
type SyncResult struct {
	Exported        int      `json:"exported"`
	Imported        int      `json:"imported"`
	Updated         int      `json:"updated"`
	DuplicatesFound int      `json:"duplicates_found"`
	Merged          int      `json:"merged"`
	Errors          []string `json:"errors"`
	Success         bool     `json:"success"`
}
