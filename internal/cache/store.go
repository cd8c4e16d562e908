package cache

import (
	"context"

	"github.com/emelmujiro/offline-gateway/internal/models"
)

// Store is the durable backing for named cache generations. Entries are keyed
// by (generation, url); put is an atomic upsert so concurrent writers for the
// same key settle on last-write-wins without corruption.
type Store interface {
	Get(ctx context.Context, generation, url string) (*models.CacheObject, bool, error)
	Put(ctx context.Context, obj *models.CacheObject) error
	// PutAll commits every object in a single transaction: either all entries
	// land or none do.
	PutAll(ctx context.Context, objs []models.CacheObject) error
	Generations(ctx context.Context) ([]string, error)
	DeleteGeneration(ctx context.Context, generation string) error
	// TrimClass deletes the oldest entries of a class until at most keep remain.
	TrimClass(ctx context.Context, generation, class string, keep int) error
}
