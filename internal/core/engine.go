// Package core drives bidirectional contact reconciliation: fetch both
// record sets, detect duplicate clusters, resolve each to a canonical
// record, and apply writes with best-effort batch semantics.
package core

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/keeperhq/keeper/internal/buffer"
	"github.com/keeperhq/keeper/internal/core/dedupe"
	"github.com/keeperhq/keeper/internal/core/model"
	"github.com/keeperhq/keeper/internal/core/resolve"
	"github.com/keeperhq/keeper/internal/driver"
	"github.com/keeperhq/keeper/internal/llm"
	"github.com/keeperhq/keeper/internal/metrics"
	"github.com/keeperhq/keeper/internal/provider"
)

type Engine struct {
	Store        driver.ContactStore
	Provider     provider.RemoteProvider
	Deduplicator *dedupe.Deduplicator
	Buffer       *buffer.Buffer // optional; enables deferred embedding generation

	DedupeConfig     model.DedupeConfig
	ResolutionConfig model.ResolutionConfig

	// Parallelism bounds concurrent writes within one pass, to respect
	// provider rate limits.
	Parallelism int

	passLocks sync.Map // "user|provider" -> *sync.Mutex
}

func NewEngine(store driver.ContactStore, prov provider.RemoteProvider, llmClient llm.LLMClient, buf *buffer.Buffer, dedupeCfg model.DedupeConfig, resolutionCfg model.ResolutionConfig, parallelism int) *Engine {
	if parallelism <= 0 {
		parallelism = 4
	}
	return &Engine{
		Store:            store,
		Provider:         prov,
		Deduplicator:     dedupe.NewDeduplicator(llmClient),
		Buffer:           buf,
		DedupeConfig:     dedupeCfg,
		ResolutionConfig: resolutionCfg,
		Parallelism:      parallelism,
	}
}

// Sync runs one reconciliation pass. The returned result is always
// populated. A hard error (bad request, concurrent pass for the same pair,
// unreachable data source) means the pass could not run and Success is
// false. Per-item write failures never abort the batch: the pass completes
// with Success true and the failures surface both in result.Errors and as a
// *model.PartialBatchError return.
func (e *Engine) Sync(ctx context.Context, req model.SyncRequest) (model.SyncResult, error) {
	result := model.SyncResult{Errors: []string{}}

	switch req.Direction {
	case model.DirectionImport, model.DirectionExport, model.DirectionBoth:
	default:
		metrics.SyncPasses.WithLabelValues("rejected").Inc()
		return result, model.Permanent(nil, "unknown sync direction %q", req.Direction)
	}

	// One pass at a time per (user, provider) pair.
	lockKey := req.UserID + "|" + e.Provider.Name()
	muAny, _ := e.passLocks.LoadOrStore(lockKey, &sync.Mutex{})
	mu := muAny.(*sync.Mutex)
	if !mu.TryLock() {
		metrics.SyncPasses.WithLabelValues("rejected").Inc()
		return result, model.Conflict("sync already running for %s", lockKey)
	}
	defer mu.Unlock()

	passStart := time.Now().UTC()

	cursor, err := e.Store.Cursor(ctx, req.UserID, e.Provider.Name())
	if err != nil {
		metrics.SyncPasses.WithLabelValues("failed").Inc()
		return result, fmt.Errorf("failed to load sync cursor: %w", err)
	}
	fullPass := req.ForceFull || cursor.IsZero()

	var remote []model.ContactRecord
	if req.Direction.Import() {
		if fullPass {
			remote, err = e.Provider.ListAll(ctx, req.UserID)
		} else {
			remote, err = e.Provider.ListChangedSince(ctx, req.UserID, cursor)
		}
		if err != nil {
			metrics.SyncPasses.WithLabelValues("failed").Inc()
			return result, model.Transient(err, "failed to fetch remote records")
		}
	}

	// The full local set always participates in matching; the cursor only
	// limits which local records are due for export.
	local, err := e.Store.ListContacts(ctx, req.UserID)
	if err != nil {
		metrics.SyncPasses.WithLabelValues("failed").Inc()
		return result, model.Transient(err, "failed to fetch local records")
	}

	exportable := local
	if req.Direction.Export() && !fullPass {
		exportable, err = e.Store.ListContactsChangedSince(ctx, req.UserID, cursor)
		if err != nil {
			metrics.SyncPasses.WithLabelValues("failed").Inc()
			return result, model.Transient(err, "failed to fetch changed local records")
		}
	}

	dedupeCfg := e.DedupeConfig
	if req.Threshold > 0 {
		dedupeCfg.Threshold = req.Threshold
	}
	dedupeCfg.EnableLLM = dedupeCfg.EnableLLM && req.EnableLLMDedup

	combined := append(append([]model.ContactRecord{}, remote...), local...)
	matches, err := e.Deduplicator.FindDuplicates(ctx, combined, dedupeCfg)
	if err != nil {
		metrics.SyncPasses.WithLabelValues("failed").Inc()
		return result, fmt.Errorf("deduplication failed: %w", err)
	}

	clusters := dedupe.Cluster(combined, matches)
	result.DuplicatesFound = len(clusters)
	metrics.SyncDuplicates.Add(float64(len(clusters)))

	clustered := make(map[string]bool)
	for _, cluster := range clusters {
		for _, r := range cluster {
			clustered[r.Key()] = true
		}
	}

	// All writes for the pass, resolved before any of them runs.
	var writes []writeTask
	for _, cluster := range clusters {
		resolved, rerr := resolve.Resolve(cluster, e.ResolutionConfig)
		if rerr != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("cluster resolution: %v", rerr))
			continue
		}
		result.Updated++
		result.Merged++
		metrics.SyncItems.WithLabelValues("updated").Inc()
		writes = append(writes, e.clusterWrites(req, cluster, resolved)...)
	}

	for _, rec := range remote {
		if clustered[rec.Key()] {
			continue
		}
		result.Imported++
		metrics.SyncItems.WithLabelValues("imported").Inc()
		writes = append(writes, e.importWrite(req, rec))
	}

	if req.Direction.Export() {
		for _, rec := range exportable {
			if clustered[rec.Key()] {
				continue
			}
			result.Exported++
			metrics.SyncItems.WithLabelValues("exported").Inc()
			writes = append(writes, e.exportWrite(req, rec))
		}
	}

	canceled := e.applyWrites(ctx, req, writes, &result)
	if canceled {
		result.Success = false
		metrics.SyncPasses.WithLabelValues("canceled").Inc()
		return result, nil
	}

	if !req.DryRun {
		if err := e.Store.SaveCursor(ctx, req.UserID, e.Provider.Name(), passStart); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("cursor update: %v", err))
		}
	}

	result.Success = true
	metrics.SyncPasses.WithLabelValues("ok").Inc()
	if len(result.Errors) > 0 {
		return result, &model.PartialBatchError{Failures: result.Errors}
	}
	return result, nil
}

// writeTask is one pending side effect; label feeds the error list.
type writeTask struct {
	label string
	run   func(ctx context.Context) error
}

// applyWrites fans tasks out with bounded parallelism. Dry runs skip
// execution entirely but keep identical counts. Returns true when the
// context was canceled before all tasks were claimed.
func (e *Engine) applyWrites(ctx context.Context, req model.SyncRequest, writes []writeTask, result *model.SyncResult) bool {
	if req.DryRun || len(writes) == 0 {
		return ctx.Err() != nil
	}

	var mu sync.Mutex
	canceled := false

	g := &errgroup.Group{}
	g.SetLimit(e.Parallelism)
	for _, w := range writes {
		if ctx.Err() != nil {
			canceled = true
			break
		}
		w := w
		g.Go(func() error {
			if err := w.run(ctx); err != nil {
				mu.Lock()
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", w.label, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return canceled || ctx.Err() != nil
}

// clusterWrites applies a resolved cluster: the canonical record lands in
// the local store under the cluster's local identity and, on an exporting
// pass, is pushed back to the provider under the remote identity.
func (e *Engine) clusterWrites(req model.SyncRequest, cluster []model.ContactRecord, resolved *model.ResolvedContact) []writeTask {
	var tasks []writeTask

	localID, remoteID := "", ""
	for _, member := range cluster {
		switch member.Source {
		case model.SourceLocal:
			if localID == "" {
				localID = member.ID
			}
		case model.SourceRemote:
			if remoteID == "" {
				remoteID = member.ID
			}
		}
	}

	canonical := resolved.Canonical

	localRec := canonical
	localRec.Source = model.SourceLocal
	if localID != "" {
		localRec.ID = localID
	} else {
		localRec.ID = uuid.New().String()
	}
	tasks = append(tasks, writeTask{
		label: "update " + localRec.Key(),
		run: func(ctx context.Context) error {
			if err := e.Store.UpsertContact(ctx, req.UserID, localRec); err != nil {
				return err
			}
			e.queueEmbedding(req.UserID, localRec)
			return nil
		},
	})

	if req.Direction.Export() && remoteID != "" {
		remoteRec := canonical
		remoteRec.Source = model.SourceRemote
		remoteRec.ID = remoteID
		tasks = append(tasks, writeTask{
			label: "update " + remoteRec.Key(),
			run: func(ctx context.Context) error {
				return e.Provider.Upsert(ctx, req.UserID, remoteRec)
			},
		})
	}

	return tasks
}

// importWrite copies a remote-only record into the local store, keeping the
// remote ID so re-imports stay idempotent.
func (e *Engine) importWrite(req model.SyncRequest, rec model.ContactRecord) writeTask {
	localRec := rec
	localRec.Source = model.SourceLocal
	return writeTask{
		label: "import " + rec.Key(),
		run: func(ctx context.Context) error {
			if err := e.Store.UpsertContact(ctx, req.UserID, localRec); err != nil {
				return err
			}
			e.queueEmbedding(req.UserID, localRec)
			return nil
		},
	}
}

func (e *Engine) exportWrite(req model.SyncRequest, rec model.ContactRecord) writeTask {
	remoteRec := rec
	remoteRec.Source = model.SourceRemote
	return writeTask{
		label: "export " + rec.Key(),
		run: func(ctx context.Context) error {
			return e.Provider.Upsert(ctx, req.UserID, remoteRec)
		},
	}
}

// queueEmbedding defers embedding generation for a written contact through
// the async buffer instead of blocking the pass on the embedder.
func (e *Engine) queueEmbedding(userID string, rec model.ContactRecord) {
	if e.Buffer == nil {
		return
	}
	text := rec.Name
	if rec.Company != "" {
		text += " " + rec.Company
	}
	if rec.Email != "" {
		text += " " + rec.Email
	}
	_, err := e.Buffer.Submit(model.BufferItem{
		Type: model.BufferItemEntity,
		Data: map[string]interface{}{
			"user_id": userID,
			"ref_id":  rec.ID,
			"text":    text,
		},
	})
	if err != nil {
		log.Printf("failed to queue embedding for %s: %v", rec.ID, err)
	}
}
