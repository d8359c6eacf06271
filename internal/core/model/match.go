package model

type Decision string

const (
	DecisionMatch   Decision = "MATCH"
	DecisionNoMatch Decision = "NO_MATCH"
	DecisionUnsure  Decision = "UNSURE"
)

type DecidedBy string

const (
	DecidedByScore DecidedBy = "score"
	DecidedByLLM   DecidedBy = "llm"
)

// MatchResult is the pairwise verdict for two record identities.
type MatchResult struct {
	RecordA    string    `json:"record_a"` // source-qualified key
	RecordB    string    `json:"record_b"`
	Score      int       `json:"score"`
	Decision   Decision  `json:"decision"`
	DecidedBy  DecidedBy `json:"decided_by"`
	Confidence float64   `json:"confidence,omitempty"` // set when decided by LLM
}

// DedupeConfig tunes classification. Threshold is the sole deterministic cutoff:
// any score at or above it is a MATCH before the LLM is ever consulted.
// LLMThreshold is the lower bound of the unsure band; scores in
// [LLMThreshold, Threshold) escalate when EnableLLM is set.
type DedupeConfig struct {
	Threshold    int    `json:"threshold"`
	LLMThreshold int    `json:"llm_threshold"`
	EnableLLM    bool   `json:"enable_llm"`
	Model        string `json:"model"`
	MaxRetries   int    `json:"max_retries"`
	RetryDelayMs int    `json:"retry_delay_ms"`
}

// ComparisonResult is the shape the LLM is asked to return.
type ComparisonResult struct {
	IsDuplicate bool    `json:"is_duplicate"`
	Confidence  float64 `json:"confidence"`
}
