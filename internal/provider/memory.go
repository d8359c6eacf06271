package provider

import (
	"context"
	"sync"
	"time"

	"github.com/keeperhq/keeper/internal/core/model"
)

// MemoryProvider is an in-process RemoteProvider used by tests and local
// development. Records are keyed per user; all methods are safe for
// concurrent use.
type MemoryProvider struct {
	ProviderName string

	mu      sync.RWMutex
	records map[string]map[string]model.ContactRecord // userID -> recordID -> record
}

func NewMemoryProvider(name string) *MemoryProvider {
	if name == "" {
		name = "memory"
	}
	return &MemoryProvider{
		ProviderName: name,
		records:      make(map[string]map[string]model.ContactRecord),
	}
}

func (p *MemoryProvider) Name() string { return p.ProviderName }

// Seed inserts records without going through Upsert's source rewrite.
func (p *MemoryProvider) Seed(userID string, recs ...model.ContactRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.records[userID] == nil {
		p.records[userID] = make(map[string]model.ContactRecord)
	}
	for _, r := range recs {
		r.Source = model.SourceRemote
		p.records[userID][r.ID] = r
	}
}

func (p *MemoryProvider) ListAll(ctx context.Context, userID string) ([]model.ContactRecord, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []model.ContactRecord
	for _, r := range p.records[userID] {
		out = append(out, r)
	}
	return out, nil
}

func (p *MemoryProvider) ListChangedSince(ctx context.Context, userID string, cursor time.Time) ([]model.ContactRecord, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []model.ContactRecord
	for _, r := range p.records[userID] {
		if r.UpdatedAt.After(cursor) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (p *MemoryProvider) Upsert(ctx context.Context, userID string, rec model.ContactRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.records[userID] == nil {
		p.records[userID] = make(map[string]model.ContactRecord)
	}
	rec.Source = model.SourceRemote
	p.records[userID][rec.ID] = rec
	return nil
}
