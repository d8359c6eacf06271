package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/keeperhq/keeper/internal/core/model"
)

// MockStore is an in-memory ContactStore that records every write and can
// inject failures per record ID.
type MockStore struct {
	mu       sync.Mutex
	Contacts map[string]model.ContactRecord // keyed by record ID
	Cursors  map[string]time.Time           // keyed by user|provider

	Embeddings map[string][]float32

	ListErr    error
	UpsertErrs map[string]error

	UpsertCalls       int
	ChangedSinceCalls int
}

func NewMockStore() *MockStore {
	return &MockStore{
		Contacts:   make(map[string]model.ContactRecord),
		Cursors:    make(map[string]time.Time),
		Embeddings: make(map[string][]float32),
		UpsertErrs: make(map[string]error),
	}
}

func (m *MockStore) Seed(recs ...model.ContactRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range recs {
		r.Source = model.SourceLocal
		m.Contacts[r.ID] = r
	}
}

func (m *MockStore) ListContacts(ctx context.Context, userID string) ([]model.ContactRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	var out []model.ContactRecord
	for _, r := range m.Contacts {
		out = append(out, r)
	}
	return out, nil
}

func (m *MockStore) ListContactsChangedSince(ctx context.Context, userID string, since time.Time) ([]model.ContactRecord, error) {
	m.mu.Lock()
	m.ChangedSinceCalls++
	m.mu.Unlock()
	all, err := m.ListContacts(ctx, userID)
	if err != nil {
		return nil, err
	}
	var out []model.ContactRecord
	for _, r := range all {
		if r.UpdatedAt.After(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MockStore) UpsertContact(ctx context.Context, userID string, rec model.ContactRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpsertCalls++
	if err := m.UpsertErrs[rec.ID]; err != nil {
		return err
	}
	m.Contacts[rec.ID] = rec
	return nil
}

func (m *MockStore) Cursor(ctx context.Context, userID, provider string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Cursors[userID+"|"+provider], nil
}

func (m *MockStore) SaveCursor(ctx context.Context, userID, provider string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Cursors[userID+"|"+provider] = at
	return nil
}

func (m *MockStore) SaveEmbedding(ctx context.Context, userID, kind, id string, vector []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Embeddings[kind+":"+id] = vector
	return nil
}

func (m *MockStore) Close(ctx context.Context) error { return nil }

// MockLLM returns queued responses in order, then falls back to Response.
type MockLLM struct {
	Response string
	Err      error
	Calls    int
}

func (m *MockLLM) Generate(ctx context.Context, prompt string) (string, error) {
	m.Calls++
	if m.Err != nil {
		return "", m.Err
	}
	if m.Response == "" {
		return "", fmt.Errorf("no mock response configured")
	}
	return m.Response, nil
}

// MockEmbedder returns a fixed vector.
type MockEmbedder struct {
	Vector []float32
	Err    error
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Vector, nil
}
