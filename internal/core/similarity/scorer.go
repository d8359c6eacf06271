// Package similarity implements the deterministic field-level comparison
// between two contact records. Scoring is pure: no I/O, no failure mode —
// malformed or missing fields contribute nothing instead of erroring.
package similarity

import (
	"math"

	"github.com/keeperhq/keeper/internal/core/common"
	"github.com/keeperhq/keeper/internal/core/model"
)

// Relative field weights, out of 100. Email is the strongest identity signal.
const (
	WeightEmail   = 40
	WeightName    = 30
	WeightPhone   = 20
	WeightCompany = 10

	// EmailExactScore is the floor applied when both normalized emails match
	// exactly; it short-circuits the weighted comparison.
	EmailExactScore = 95

	// fuzzyFloor discards field similarities below this ratio so that two
	// unrelated strings sharing a few letters contribute nothing.
	fuzzyFloor = 0.5
)

// Score compares two records and returns a match score in [0,100].
// Symmetric: Score(a, b) == Score(b, a). A field missing on either side
// contributes zero rather than penalizing the total.
func Score(a, b model.ContactRecord) int {
	emailA := common.NormalizeEmail(a.Email)
	emailB := common.NormalizeEmail(b.Email)
	if emailA != "" && emailA == emailB {
		return EmailExactScore
	}

	total := 0.0
	total += float64(WeightEmail) * fieldSimilarity(emailA, emailB)
	total += float64(WeightName) * fieldSimilarity(common.NormalizeText(a.Name), common.NormalizeText(b.Name))
	total += float64(WeightPhone) * phoneSimilarity(a.Phone, b.Phone)
	total += float64(WeightCompany) * fieldSimilarity(common.NormalizeText(a.Company), common.NormalizeText(b.Company))

	score := int(math.Round(total))
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

func fieldSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	sim := common.StringSimilarity(a, b)
	if sim < fuzzyFloor {
		return 0
	}
	return sim
}

// phoneSimilarity compares digits only; exact match or nothing, since a
// single differing digit is a different number, not a typo to forgive.
func phoneSimilarity(a, b string) float64 {
	pa, pb := common.NormalizePhone(a), common.NormalizePhone(b)
	if pa == "" || pb == "" {
		return 0
	}
	if pa == pb {
		return 1
	}
	// Tolerate a country-code prefix on one side only.
	if len(pa) != len(pb) {
		longer, shorter := pa, pb
		if len(pb) > len(pa) {
			longer, shorter = pb, pa
		}
		if len(shorter) >= 7 && len(longer)-len(shorter) <= 3 && longer[len(longer)-len(shorter):] == shorter {
			return 1
		}
	}
	return 0
}
