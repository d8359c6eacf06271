// Package provider abstracts the external contact source (Google People,
// Exchange, ...). The engine consumes record shapes only; transport, OAuth
// and provider-specific pagination live behind this interface.
package provider

import (
	"context"
	"time"

	"github.com/keeperhq/keeper/internal/core/model"
)

type RemoteProvider interface {
	// Name identifies the provider for cursor scoping, e.g. "google".
	Name() string

	ListAll(ctx context.Context, userID string) ([]model.ContactRecord, error)
	ListChangedSince(ctx context.Context, userID string, cursor time.Time) ([]model.ContactRecord, error)

	Upsert(ctx context.Context, userID string, rec model.ContactRecord) error
}
