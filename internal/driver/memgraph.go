package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/keeperhq/keeper/internal/core/model"
)

// MemgraphStore persists contacts, sync cursors and embedding vectors in
// Memgraph over the bolt protocol.
type MemgraphStore struct {
	Driver neo4j.DriverWithContext
}

func NewMemgraphStore(uri, username, password string) (*MemgraphStore, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, err
	}

	if err := driver.VerifyConnectivity(context.Background()); err != nil {
		return nil, err
	}

	log.Println("Connected to Memgraph")
	return &MemgraphStore{Driver: driver}, nil
}

func (s *MemgraphStore) Close(ctx context.Context) error {
	return s.Driver.Close(ctx)
}

func (s *MemgraphStore) executeQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	result, err := neo4j.ExecuteQuery(ctx, s.Driver, query, params, neo4j.EagerResultTransformer)
	if err != nil {
		return neo4j.EagerResult{}, fmt.Errorf("failed to execute query: %w", err)
	}
	return *result, nil
}

// BuildIndices creates the lookup indices the sync path depends on. Index
// creation failures are logged and skipped since the index may already exist.
func (s *MemgraphStore) BuildIndices(ctx context.Context) error {
	queries := []string{
		"CREATE INDEX ON :Contact(user_id);",
		"CREATE INDEX ON :Contact(id);",
		"CREATE INDEX ON :SyncCursor(user_id);",
		"CREATE INDEX ON :Embedding(user_id);",
	}

	for _, q := range queries {
		if _, err := s.executeQuery(ctx, q, nil); err != nil {
			log.Printf("Warning: failed to create index '%s': %v", q, err)
		}
	}

	return nil
}

func (s *MemgraphStore) UpsertContact(ctx context.Context, userID string, rec model.ContactRecord) error {
	metadata := "{}"
	if rec.Metadata != nil {
		raw, err := json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("failed to serialize contact metadata: %w", err)
		}
		metadata = string(raw)
	}

	params := map[string]interface{}{
		"user_id":    userID,
		"source":     string(rec.Source),
		"id":         rec.ID,
		"name":       rec.Name,
		"email":      rec.Email,
		"phone":      rec.Phone,
		"company":    rec.Company,
		"updated_at": rec.UpdatedAt.UTC().Format(time.RFC3339Nano),
		"metadata":   metadata,
	}

	_, err := s.executeQuery(ctx, SaveContactQuery, params)
	return err
}

func (s *MemgraphStore) ListContacts(ctx context.Context, userID string) ([]model.ContactRecord, error) {
	res, err := s.executeQuery(ctx, ListContactsQuery, map[string]interface{}{"user_id": userID})
	if err != nil {
		return nil, err
	}
	return recordsFromResult(res)
}

func (s *MemgraphStore) ListContactsChangedSince(ctx context.Context, userID string, since time.Time) ([]model.ContactRecord, error) {
	res, err := s.executeQuery(ctx, ListContactsChangedSinceQuery, map[string]interface{}{
		"user_id": userID,
		"since":   since.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, err
	}
	return recordsFromResult(res)
}

func (s *MemgraphStore) Cursor(ctx context.Context, userID, provider string) (time.Time, error) {
	res, err := s.executeQuery(ctx, GetCursorQuery, map[string]interface{}{
		"user_id":  userID,
		"provider": provider,
	})
	if err != nil {
		return time.Time{}, err
	}
	if len(res.Records) == 0 {
		return time.Time{}, nil // no cursor yet: caller does a full pass
	}

	raw, _ := res.Records[0].Get("synced_at")
	str, ok := raw.(string)
	if !ok || str == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, str)
}

func (s *MemgraphStore) SaveCursor(ctx context.Context, userID, provider string, at time.Time) error {
	_, err := s.executeQuery(ctx, SaveCursorQuery, map[string]interface{}{
		"user_id":   userID,
		"provider":  provider,
		"synced_at": at.UTC().Format(time.RFC3339Nano),
	})
	return err
}

func (s *MemgraphStore) SaveEmbedding(ctx context.Context, userID, kind, id string, vector []float32) error {
	_, err := s.executeQuery(ctx, SaveEmbeddingQuery, map[string]interface{}{
		"user_id":    userID,
		"kind":       kind,
		"ref_id":     id,
		"vector":     vector,
		"updated_at": time.Now().UTC().Format(time.RFC3339Nano),
	})
	return err
}

func recordsFromResult(res neo4j.EagerResult) ([]model.ContactRecord, error) {
	var records []model.ContactRecord
	for _, rec := range res.Records {
		r := model.ContactRecord{}
		if v, ok := rec.Get("id"); ok {
			r.ID, _ = v.(string)
		}
		if v, ok := rec.Get("source"); ok {
			if src, _ := v.(string); src != "" {
				r.Source = model.Source(src)
			}
		}
		if v, ok := rec.Get("name"); ok {
			r.Name, _ = v.(string)
		}
		if v, ok := rec.Get("email"); ok {
			r.Email, _ = v.(string)
		}
		if v, ok := rec.Get("phone"); ok {
			r.Phone, _ = v.(string)
		}
		if v, ok := rec.Get("company"); ok {
			r.Company, _ = v.(string)
		}
		if v, ok := rec.Get("updated_at"); ok {
			if str, _ := v.(string); str != "" {
				if ts, err := time.Parse(time.RFC3339Nano, str); err == nil {
					r.UpdatedAt = ts
				}
			}
		}
		if v, ok := rec.Get("metadata"); ok {
			if str, _ := v.(string); str != "" && str != "{}" {
				var meta map[string]interface{}
				if err := json.Unmarshal([]byte(str), &meta); err == nil {
					r.Metadata = meta
				}
			}
		}
		records = append(records, r)
	}
	return records, nil
}
