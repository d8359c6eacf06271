package dedupe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/keeperhq/keeper/internal/core/common"
	"github.com/keeperhq/keeper/internal/core/model"
	"github.com/keeperhq/keeper/internal/llm"
)

// Escalator asks the LLM whether two borderline records describe the same
// person. Transient failures retry with linear backoff (base delay * attempt);
// a malformed response is permanent and surfaces immediately.
type Escalator struct {
	LLM llm.LLMClient

	// Sleep is replaceable in tests; the default honors context cancellation.
	Sleep func(ctx context.Context, d time.Duration) error
}

func NewEscalator(llmClient llm.LLMClient) *Escalator {
	return &Escalator{
		LLM:   llmClient,
		Sleep: sleepCtx,
	}
}

// Compare returns the LLM's verdict for a record pair. It makes up to
// cfg.MaxRetries+1 attempts; once retries are exhausted the transient error
// is returned and the caller degrades to UNSURE rather than failing the pass.
func (e *Escalator) Compare(ctx context.Context, a, b model.ContactRecord, cfg model.DedupeConfig) (bool, float64, error) {
	prompt := comparisonPrompt(a, b)

	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(cfg.RetryDelayMs) * time.Millisecond * time.Duration(attempt)
			if err := e.Sleep(ctx, delay); err != nil {
				return false, 0, model.Transient(err, "comparison canceled")
			}
		}

		response, err := e.LLM.Generate(ctx, prompt)
		if err != nil {
			if !isTransientCause(err) {
				return false, 0, model.Permanent(err, "llm comparison failed")
			}
			lastErr = err
			continue
		}

		result, err := common.ParseJSON[model.ComparisonResult](response)
		if err != nil {
			// A well-connected model returning garbage will keep returning
			// garbage; do not burn retries on it.
			return false, 0, model.Permanent(err, "malformed llm comparison response")
		}

		return result.IsDuplicate, result.Confidence, nil
	}

	return false, 0, model.Transient(lastErr, "llm comparison exhausted %d retries", cfg.MaxRetries)
}

func comparisonPrompt(a, b model.ContactRecord) string {
	return fmt.Sprintf(`You compare contact records for a CRM.

<RECORD A>
%s</RECORD A>

<RECORD B>
%s</RECORD B>

Instructions:
Decide whether RECORD A and RECORD B describe the same real-world person.
Consider typos, formatting differences, nicknames and employer changes.
Return a JSON object with "is_duplicate" (bool) and "confidence" (float 0-1).

Example JSON:
{"is_duplicate": true, "confidence": 0.92}
`, serializeRecord(a), serializeRecord(b))
}

func serializeRecord(r model.ContactRecord) string {
	var s string
	s += fmt.Sprintf("- Name: %s\n", r.Name)
	if r.Email != "" {
		s += fmt.Sprintf("- Email: %s\n", r.Email)
	}
	if r.Phone != "" {
		s += fmt.Sprintf("- Phone: %s\n", r.Phone)
	}
	if r.Company != "" {
		s += fmt.Sprintf("- Company: %s\n", r.Company)
	}
	return s
}

// isTransientCause classifies provider errors: network and rate-limit
// failures retry, everything else is treated as permanent.
func isTransientCause(err error) bool {
	if model.IsTransient(err) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"rate limit", "429", "timeout", "temporarily", "connection refused", "503", "502"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
