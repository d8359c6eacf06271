package buffer

import (
	"context"
	"fmt"

	"github.com/keeperhq/keeper/internal/core/model"
	"github.com/keeperhq/keeper/internal/driver"
	"github.com/keeperhq/keeper/internal/llm"
)

// EmbedExecutor generates embedding vectors for deferred memory, entity and
// interaction items and persists them through the contact store. Producers
// enqueue these instead of blocking a request on the embedding call.
type EmbedExecutor struct {
	Embedder llm.EmbedderClient
	Store    driver.ContactStore
}

func NewEmbedExecutor(embedder llm.EmbedderClient, store driver.ContactStore) *EmbedExecutor {
	return &EmbedExecutor{Embedder: embedder, Store: store}
}

func (x *EmbedExecutor) Execute(ctx context.Context, item model.BufferItem) error {
	// Some providers (claude, ollama) cannot embed; the factory hands the
	// server a nil embedder for those.
	if x.Embedder == nil {
		return model.Permanent(nil, "no embedder configured for buffer item %s", item.ID)
	}

	userID, _ := item.Data["user_id"].(string)
	refID, _ := item.Data["ref_id"].(string)
	text, _ := item.Data["text"].(string)
	if refID == "" || text == "" {
		return model.Permanent(nil, "buffer item %s missing ref_id or text", item.ID)
	}

	vector, err := x.Embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("failed to embed %s item %s: %w", item.Type, refID, err)
	}

	if err := x.Store.SaveEmbedding(ctx, userID, string(item.Type), refID, vector); err != nil {
		return fmt.Errorf("failed to persist embedding for %s: %w", refID, err)
	}

	return nil
}
