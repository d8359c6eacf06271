// Package dedupe classifies record pairs as MATCH, NO_MATCH or UNSURE and
// groups a record set into duplicate clusters. The deterministic scorer runs
// on every pair (it is cheap); LLM escalation is gated behind blocking keys
// so a large set never fans out into O(n²) model calls.
package dedupe

import (
	"context"
	"log"
	"unicode/utf8"

	"github.com/keeperhq/keeper/internal/core/common"
	"github.com/keeperhq/keeper/internal/core/model"
	"github.com/keeperhq/keeper/internal/core/similarity"
	"github.com/keeperhq/keeper/internal/llm"
)

type Deduplicator struct {
	Escalator *Escalator
}

func NewDeduplicator(llmClient llm.LLMClient) *Deduplicator {
	return &Deduplicator{
		Escalator: NewEscalator(llmClient),
	}
}

// FindDuplicates scores every record pair and returns a MatchResult per
// candidate pair (score at or above the unsure band). Scores at or above
// cfg.Threshold are a MATCH decided by score alone, regardless of LLM
// settings. In-band pairs escalate to the LLM when enabled and co-blocked;
// otherwise they conservatively stay NO_MATCH. An LLM outage downgrades the
// pair to UNSURE, never fails the call.
func (d *Deduplicator) FindDuplicates(ctx context.Context, records []model.ContactRecord, cfg model.DedupeConfig) ([]model.MatchResult, error) {
	blocks := blockKeys(records)

	var results []model.MatchResult
	for i := 0; i < len(records); i++ {
		for j := i + 1; j < len(records); j++ {
			a, b := records[i], records[j]
			score := similarity.Score(a, b)
			if score < cfg.LLMThreshold {
				continue
			}

			result := model.MatchResult{
				RecordA: a.Key(),
				RecordB: b.Key(),
				Score:   score,
			}

			switch {
			case score >= cfg.Threshold:
				result.Decision = model.DecisionMatch
				result.DecidedBy = model.DecidedByScore

			case cfg.EnableLLM && sharesBlock(blocks[i], blocks[j]):
				isDup, confidence, err := d.Escalator.Compare(ctx, a, b, cfg)
				result.DecidedBy = model.DecidedByLLM
				result.Confidence = confidence
				switch {
				case err != nil:
					// Outage or a misbehaving model both degrade to a
					// conservative non-merge, never to a failed pass.
					log.Printf("LLM comparison unavailable for %s/%s, leaving unsure: %v", a.Key(), b.Key(), err)
					result.Decision = model.DecisionUnsure
				case isDup:
					result.Decision = model.DecisionMatch
				default:
					result.Decision = model.DecisionNoMatch
				}

			default:
				// Untrusted mid-band score with no LLM available: never
				// auto-merge on it.
				result.Decision = model.DecisionNoMatch
				result.DecidedBy = model.DecidedByScore
			}

			results = append(results, result)
		}
	}

	return results, nil
}

// blockKeys assigns each record its candidate-blocking keys: normalized
// email domain and first letter of the normalized name.
func blockKeys(records []model.ContactRecord) [][]string {
	keys := make([][]string, len(records))
	for i, r := range records {
		if domain := common.EmailDomain(r.Email); domain != "" {
			keys[i] = append(keys[i], "d:"+domain)
		}
		if name := common.NormalizeText(r.Name); name != "" {
			first, _ := utf8.DecodeRuneInString(name)
			keys[i] = append(keys[i], "n:"+string(first))
		}
	}
	return keys
}

func sharesBlock(a, b []string) bool {
	for _, ka := range a {
		for _, kb := range b {
			if ka == kb {
				return true
			}
		}
	}
	return false
}
