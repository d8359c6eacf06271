package driver

import (
	"context"
	"time"

	"github.com/keeperhq/keeper/internal/core/model"
)

// ContactStore is the local side of a sync pass: contact snapshots, the
// per-(user, provider) incremental cursor, and embedding persistence for
// work deferred through the buffer.
type ContactStore interface {
	ListContacts(ctx context.Context, userID string) ([]model.ContactRecord, error)
	ListContactsChangedSince(ctx context.Context, userID string, since time.Time) ([]model.ContactRecord, error)
	UpsertContact(ctx context.Context, userID string, rec model.ContactRecord) error

	Cursor(ctx context.Context, userID, provider string) (time.Time, error)
	SaveCursor(ctx context.Context, userID, provider string, at time.Time) error

	SaveEmbedding(ctx context.Context, userID, kind, id string, vector []float32) error

	Close(ctx context.Context) error
}
