// Package buffer is a status-tracked queue of deferred side-effecting work
// (embedding generation, deferred writes). Items move through
// pending → processing → {completed | pending(retry) | failed}; the
// pending→processing claim is atomic, so concurrent workers never execute
// the same item twice.
package buffer

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/keeperhq/keeper/internal/core/model"
	"github.com/keeperhq/keeper/internal/metrics"
)

type entry struct {
	item      model.BufferItem
	notBefore time.Time // retry backoff; zero means claimable now
}

type Buffer struct {
	mu    sync.Mutex
	items map[string]*entry

	// RetryDelay is the backoff base applied as delay * retryCount when an
	// item is requeued after a failure.
	RetryDelay time.Duration

	// DefaultMaxRetries applies to submitted items that carry none.
	DefaultMaxRetries int
}

func New(retryDelay time.Duration, defaultMaxRetries int) *Buffer {
	return &Buffer{
		items:             make(map[string]*entry),
		RetryDelay:        retryDelay,
		DefaultMaxRetries: defaultMaxRetries,
	}
}

// Submit enqueues an item as pending and returns its id, assigning one when
// the producer did not.
func (b *Buffer) Submit(item model.BufferItem) (string, error) {
	switch item.Type {
	case model.BufferItemMemory, model.BufferItemEntity, model.BufferItemInteraction:
	default:
		return "", model.Permanent(nil, "unknown buffer item type %q", item.Type)
	}

	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	if item.MaxRetries == 0 {
		item.MaxRetries = b.DefaultMaxRetries
	}
	item.Status = model.StatusPending
	item.RetryCount = 0

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.items[item.ID]; exists {
		return "", model.Conflict("buffer item %s already exists", item.ID)
	}
	b.items[item.ID] = &entry{item: item}
	metrics.BufferSubmitted.Inc()
	metrics.BufferPending.Inc()
	return item.ID, nil
}

// Status returns a snapshot of the item.
func (b *Buffer) Status(id string) (model.BufferItem, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.items[id]
	if !ok {
		return model.BufferItem{}, fmt.Errorf("buffer item %s not found", id)
	}
	return e.item, nil
}

// Claim atomically moves the best pending item to processing and returns a
// snapshot of it. Eligible items are ordered by priority (higher first),
// then CreatedAt (FIFO). Returns false when nothing is claimable.
func (b *Buffer) Claim() (model.BufferItem, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	var best *entry
	for _, e := range b.items {
		if e.item.Status != model.StatusPending || e.notBefore.After(now) {
			continue
		}
		if best == nil || claimsBefore(e.item, best.item) {
			best = e
		}
	}
	if best == nil {
		return model.BufferItem{}, false
	}

	best.item.Status = model.StatusProcessing
	metrics.BufferPending.Dec()
	return best.item, true
}

func claimsBefore(a, b model.BufferItem) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID // stable order for identical timestamps
}

// Complete marks a processing item terminal-successful.
func (b *Buffer) Complete(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.items[id]
	if !ok {
		return fmt.Errorf("buffer item %s not found", id)
	}
	if e.item.Status != model.StatusProcessing {
		return model.Conflict("cannot complete item %s in status %s", id, e.item.Status)
	}

	now := time.Now().UTC()
	e.item.Status = model.StatusCompleted
	e.item.ProcessedAt = &now
	e.item.Error = ""
	metrics.BufferCompleted.Inc()
	return nil
}

// Fail records a processing failure. Below MaxRetries the item returns to
// pending with a backoff delay; at MaxRetries, or when the cause is
// permanent, it becomes terminally failed.
func (b *Buffer) Fail(id string, cause error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.items[id]
	if !ok {
		return fmt.Errorf("buffer item %s not found", id)
	}
	if e.item.Status != model.StatusProcessing {
		return model.Conflict("cannot fail item %s in status %s", id, e.item.Status)
	}

	e.item.Error = cause.Error()
	if !isPermanent(cause) && e.item.RetryCount < e.item.MaxRetries {
		e.item.RetryCount++
		e.item.Status = model.StatusPending
		e.notBefore = time.Now().Add(b.RetryDelay * time.Duration(e.item.RetryCount))
		metrics.BufferPending.Inc()
		return nil
	}

	now := time.Now().UTC()
	e.item.Status = model.StatusFailed
	e.item.ProcessedAt = &now
	metrics.BufferFailed.Inc()
	return nil
}

func isPermanent(err error) bool {
	var se *model.SyncError
	return errors.As(err, &se) && se.Code == model.CodePermanent
}

// Pending reports how many items are currently claimable or backing off.
func (b *Buffer) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.items {
		if e.item.Status == model.StatusPending {
			n++
		}
	}
	return n
}
