package dedupe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keeperhq/keeper/internal/core/model"
)

func TestEscalator_RetriesTransientWithLinearBackoff(t *testing.T) {
	mockLLM := &MockLLMClient{
		Queue: []func() (string, error){
			func() (string, error) { return "", errTimeout{} },
			func() (string, error) { return "", errTimeout{} },
			func() (string, error) { return `{"is_duplicate": true, "confidence": 0.8}`, nil },
		},
	}

	var slept []time.Duration
	e := NewEscalator(mockLLM)
	e.Sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	cfg := testConfig()
	cfg.MaxRetries = 3
	cfg.RetryDelayMs = 100

	isDup, confidence, err := e.Compare(context.Background(), model.ContactRecord{Name: "A"}, model.ContactRecord{Name: "B"}, cfg)
	require.NoError(t, err)
	assert.True(t, isDup)
	assert.InDelta(t, 0.8, confidence, 0.001)
	assert.Equal(t, 3, mockLLM.Calls)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, slept)
}

func TestEscalator_MalformedResponseFailsImmediately(t *testing.T) {
	mockLLM := &MockLLMClient{Response: "I cannot answer that in JSON, sorry."}

	e := NewEscalator(mockLLM)
	e.Sleep = noSleep

	_, _, err := e.Compare(context.Background(), model.ContactRecord{Name: "A"}, model.ContactRecord{Name: "B"}, testConfig())
	require.Error(t, err)
	assert.False(t, model.IsTransient(err))
	assert.Equal(t, 1, mockLLM.Calls, "a malformed response must not be retried")
}

func TestEscalator_NonTransientErrorFailsImmediately(t *testing.T) {
	mockLLM := &MockLLMClient{Err: errors.New("invalid api key")}

	e := NewEscalator(mockLLM)
	e.Sleep = noSleep

	_, _, err := e.Compare(context.Background(), model.ContactRecord{Name: "A"}, model.ContactRecord{Name: "B"}, testConfig())
	require.Error(t, err)
	assert.False(t, model.IsTransient(err))
	assert.Equal(t, 1, mockLLM.Calls)
}

func TestEscalator_ExhaustedRetriesAreTransient(t *testing.T) {
	mockLLM := &MockLLMClient{Err: errTimeout{}}

	e := NewEscalator(mockLLM)
	e.Sleep = noSleep

	cfg := testConfig()
	cfg.MaxRetries = 2

	_, _, err := e.Compare(context.Background(), model.ContactRecord{Name: "A"}, model.ContactRecord{Name: "B"}, cfg)
	require.Error(t, err)
	assert.True(t, model.IsTransient(err))
	assert.Equal(t, 3, mockLLM.Calls)
}

func TestEscalator_CancellationStopsRetrying(t *testing.T) {
	mockLLM := &MockLLMClient{Err: errTimeout{}}

	ctx, cancel := context.WithCancel(context.Background())
	e := NewEscalator(mockLLM)
	e.Sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_, _, err := e.Compare(ctx, model.ContactRecord{Name: "A"}, model.ContactRecord{Name: "B"}, testConfig())
	require.Error(t, err)
	assert.Equal(t, 1, mockLLM.Calls, "the canceled backoff prevents any further attempt")
}
