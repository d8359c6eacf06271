package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keeperhq/keeper/internal/buffer"
	"github.com/keeperhq/keeper/internal/core/model"
	"github.com/keeperhq/keeper/internal/provider"
)

var (
	t1 = time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	t2 = time.Date(2025, 4, 2, 9, 0, 0, 0, time.UTC)
)

func testEngine(store *MockStore, prov provider.RemoteProvider) *Engine {
	return NewEngine(store, prov, &MockLLM{}, nil,
		model.DedupeConfig{Threshold: 90, LLMThreshold: 60, EnableLLM: false, MaxRetries: 1, RetryDelayMs: 1},
		model.ResolutionConfig{Strategy: model.StrategyNewest, AutoMerge: true},
		2)
}

func bothRequest() model.SyncRequest {
	return model.SyncRequest{UserID: "u1", Direction: model.DirectionBoth, ForceFull: true}
}

func TestSync_NewestWinsEndToEnd(t *testing.T) {
	store := NewMockStore()
	store.Seed(model.ContactRecord{ID: "l1", Name: "Ada King", Email: "a@x.com", UpdatedAt: t2})

	prov := provider.NewMemoryProvider("test")
	prov.Seed("u1", model.ContactRecord{ID: "r1", Name: "Ada K.", Email: "a@x.com", Phone: "5550101", UpdatedAt: t1})

	engine := testEngine(store, prov)
	result, err := engine.Sync(context.Background(), bothRequest())
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 1, result.DuplicatesFound)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 1, result.Merged)
	assert.Zero(t, result.Imported)
	assert.Zero(t, result.Exported)
	assert.Empty(t, result.Errors)

	// Canonical is the later (local) record, backfilled from the remote one.
	canonical := store.Contacts["l1"]
	assert.Equal(t, "Ada King", canonical.Name)
	assert.Equal(t, "5550101", canonical.Phone, "autoMerge backfills the phone only the remote record had")

	// Exported back to the provider under the remote identity.
	remoteRecs, _ := prov.ListAll(context.Background(), "u1")
	require.Len(t, remoteRecs, 1)
	assert.Equal(t, "Ada King", remoteRecs[0].Name)
}

func TestSync_DistinctRecordsStayDistinct(t *testing.T) {
	store := NewMockStore()
	store.Seed(model.ContactRecord{ID: "l1", Name: "Jonathon Byers", Email: "jbyers@corp.com", UpdatedAt: t1})

	prov := provider.NewMemoryProvider("test")
	prov.Seed("u1", model.ContactRecord{ID: "r1", Name: "Jonathan Byers", Email: "jon.byers@corp.com", UpdatedAt: t1})

	engine := testEngine(store, prov)
	result, err := engine.Sync(context.Background(), bothRequest())
	require.NoError(t, err)

	// Mid-band score with LLM disabled: conservative non-merge.
	assert.Zero(t, result.DuplicatesFound)
	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 1, result.Exported)

	assert.Contains(t, store.Contacts, "r1", "remote record imported under its own identity")
	remoteRecs, _ := prov.ListAll(context.Background(), "u1")
	assert.Len(t, remoteRecs, 2)
}

func TestSync_DryRunSameCountsZeroWrites(t *testing.T) {
	seedStore := func() *MockStore {
		s := NewMockStore()
		s.Seed(
			model.ContactRecord{ID: "l1", Name: "Ada King", Email: "a@x.com", UpdatedAt: t2},
			model.ContactRecord{ID: "l2", Name: "Solo Local", Email: "solo@y.com", UpdatedAt: t1},
		)
		return s
	}
	seedProvider := func() *provider.MemoryProvider {
		p := provider.NewMemoryProvider("test")
		p.Seed("u1",
			model.ContactRecord{ID: "r1", Name: "Ada K.", Email: "a@x.com", UpdatedAt: t1},
			model.ContactRecord{ID: "r2", Name: "Only Remote", Email: "only@z.com", UpdatedAt: t1},
		)
		return p
	}

	dryStore := seedStore()
	dryEngine := testEngine(dryStore, seedProvider())
	dryReq := bothRequest()
	dryReq.DryRun = true
	dryResult, err := dryEngine.Sync(context.Background(), dryReq)
	require.NoError(t, err)

	wetStore := seedStore()
	wetEngine := testEngine(wetStore, seedProvider())
	wetResult, err := wetEngine.Sync(context.Background(), bothRequest())
	require.NoError(t, err)

	assert.Equal(t, wetResult.Imported, dryResult.Imported)
	assert.Equal(t, wetResult.Exported, dryResult.Exported)
	assert.Equal(t, wetResult.Updated, dryResult.Updated)
	assert.Equal(t, wetResult.Merged, dryResult.Merged)
	assert.Equal(t, wetResult.DuplicatesFound, dryResult.DuplicatesFound)

	assert.Zero(t, dryStore.UpsertCalls, "dry run performs no writes")
	assert.Empty(t, dryStore.Cursors, "dry run leaves the cursor unchanged")
	assert.NotEmpty(t, wetStore.Cursors)
}

func TestSync_PartialWriteFailureDoesNotAbortBatch(t *testing.T) {
	store := NewMockStore()
	store.UpsertErrs["r1"] = errors.New("constraint violation")

	prov := provider.NewMemoryProvider("test")
	prov.Seed("u1",
		model.ContactRecord{ID: "r1", Name: "Fails", Email: "f@a.com", UpdatedAt: t1},
		model.ContactRecord{ID: "r2", Name: "Succeeds", Email: "s@b.com", UpdatedAt: t1},
	)

	engine := testEngine(store, prov)
	req := bothRequest()
	req.Direction = model.DirectionImport
	result, err := engine.Sync(context.Background(), req)

	var pbe *model.PartialBatchError
	require.ErrorAs(t, err, &pbe)
	assert.Equal(t, result.Errors, pbe.Failures)

	assert.True(t, result.Success, "per-item failures never fail the pass")
	assert.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "r1")
	assert.Contains(t, store.Contacts, "r2")
}

func TestSync_HardFailureWhenLocalFetchFails(t *testing.T) {
	store := NewMockStore()
	store.ListErr = errors.New("bolt connection refused")

	engine := testEngine(store, provider.NewMemoryProvider("test"))
	result, err := engine.Sync(context.Background(), bothRequest())

	require.Error(t, err)
	assert.False(t, result.Success)
}

func TestSync_UnknownDirectionRejected(t *testing.T) {
	engine := testEngine(NewMockStore(), provider.NewMemoryProvider("test"))
	_, err := engine.Sync(context.Background(), model.SyncRequest{UserID: "u1", Direction: "sideways"})
	require.Error(t, err)
}

func TestSync_IncrementalPassUsesCursor(t *testing.T) {
	store := NewMockStore()
	prov := provider.NewMemoryProvider("test")
	prov.Seed("u1", model.ContactRecord{ID: "r1", Name: "Early Bird", Email: "eb@a.com", UpdatedAt: t1})

	engine := testEngine(store, prov)
	req := model.SyncRequest{UserID: "u1", Direction: model.DirectionImport}

	first, err := engine.Sync(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Imported)

	// Nothing changed since the cursor: second pass is a no-op.
	second, err := engine.Sync(context.Background(), req)
	require.NoError(t, err)
	assert.Zero(t, second.Imported)

	// A record updated after the cursor is picked up.
	prov.Seed("u1", model.ContactRecord{ID: "r2", Name: "Late Arrival", Email: "la@b.com", UpdatedAt: time.Now().UTC().Add(time.Hour)})
	third, err := engine.Sync(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, third.Imported)
}

func TestSync_IncrementalExportUsesChangedSinceListing(t *testing.T) {
	store := NewMockStore()
	store.Seed(model.ContactRecord{ID: "l1", Name: "Old Hand", Email: "oh@a.com", UpdatedAt: t1})

	engine := testEngine(store, provider.NewMemoryProvider("test"))
	req := model.SyncRequest{UserID: "u1", Direction: model.DirectionExport, ForceFull: true}

	first, err := engine.Sync(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Exported)
	assert.Zero(t, store.ChangedSinceCalls, "full passes list everything")

	// Unchanged since the cursor: the incremental listing is consulted and
	// finds nothing due.
	req.ForceFull = false
	second, err := engine.Sync(context.Background(), req)
	require.NoError(t, err)
	assert.Zero(t, second.Exported)
	assert.Equal(t, 1, store.ChangedSinceCalls)

	store.Seed(model.ContactRecord{ID: "l2", Name: "Fresh Edit", Email: "fe@b.com", UpdatedAt: time.Now().UTC().Add(time.Hour)})
	third, err := engine.Sync(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, third.Exported)
}

func TestSync_CancellationReturnsPartialResult(t *testing.T) {
	store := NewMockStore()
	prov := provider.NewMemoryProvider("test")
	prov.Seed("u1", model.ContactRecord{ID: "r1", Name: "Someone", Email: "s@a.com", UpdatedAt: t1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := testEngine(store, prov)
	result, err := engine.Sync(ctx, bothRequest())
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, 1, result.Imported, "counts reflect the work the pass had planned")
}

func TestSync_ConcurrentPassForSamePairRejected(t *testing.T) {
	store := NewMockStore()
	release := make(chan struct{})
	prov := &blockingProvider{inner: provider.NewMemoryProvider("test"), release: release}
	prov.inner.Seed("u1", model.ContactRecord{ID: "r1", Name: "Someone", Email: "s@a.com", UpdatedAt: t1})

	engine := testEngine(store, prov)

	started := make(chan struct{})
	prov.started = started
	done := make(chan error, 1)
	go func() {
		_, err := engine.Sync(context.Background(), bothRequest())
		done <- err
	}()

	<-started
	_, err := engine.Sync(context.Background(), bothRequest())
	require.Error(t, err, "second pass for the same (user, provider) pair must not run")

	close(release)
	require.NoError(t, <-done)
}

func TestSync_QueuesDeferredEmbeddings(t *testing.T) {
	store := NewMockStore()
	prov := provider.NewMemoryProvider("test")
	prov.Seed("u1", model.ContactRecord{ID: "r1", Name: "Grace Hopper", Email: "gh@navy.mil", UpdatedAt: t1})

	buf := buffer.New(0, 1)
	engine := testEngine(store, prov)
	engine.Buffer = buf

	req := bothRequest()
	req.Direction = model.DirectionImport
	_, err := engine.Sync(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 1, buf.Pending(), "one embedding task per imported contact")

	pool := buffer.NewPool(buf, buffer.NewEmbedExecutor(&MockEmbedder{Vector: []float32{0.1, 0.2}}, store), 1)
	pool.Drain(context.Background())

	assert.Equal(t, []float32{0.1, 0.2}, store.Embeddings["entity:r1"])
}

// blockingProvider holds ListAll open until released, to overlap two passes.
type blockingProvider struct {
	inner   *provider.MemoryProvider
	started chan struct{}
	release chan struct{}
}

func (p *blockingProvider) Name() string { return p.inner.Name() }

func (p *blockingProvider) ListAll(ctx context.Context, userID string) ([]model.ContactRecord, error) {
	if p.started != nil {
		close(p.started)
		p.started = nil
	}
	<-p.release
	return p.inner.ListAll(ctx, userID)
}

func (p *blockingProvider) ListChangedSince(ctx context.Context, userID string, cursor time.Time) ([]model.ContactRecord, error) {
	return p.inner.ListChangedSince(ctx, userID, cursor)
}

func (p *blockingProvider) Upsert(ctx context.Context, userID string, rec model.ContactRecord) error {
	return p.inner.Upsert(ctx, userID, rec)
}
