package replay

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/emelmujiro/offline-gateway/internal/models"
)

// Store is the durable sync queue. One record per tag; put overwrites the
// previous unsent payload for that tag (last-write-wins).
type Store interface {
	Get(ctx context.Context, tag string) (*models.SyncEntry, bool, error)
	Put(ctx context.Context, tag string, data []byte) error
	Delete(ctx context.Context, tag string) error
	// DeleteIfUnchanged removes the entry for a tag only if its enqueue
	// timestamp still matches. Returns false when the entry was overwritten
	// in the meantime and therefore kept.
	DeleteIfUnchanged(ctx context.Context, tag string, enqueuedAt time.Time) (bool, error)
	Tags(ctx context.Context) ([]string, error)
}

// DatabaseStore implements Store on the primary SQL database.
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore constructs a database-backed sync store.
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	if db == nil {
		return nil
	}
	return &DatabaseStore{db: db}
}

// Get retrieves the pending entry for a tag.
func (s *DatabaseStore) Get(ctx context.Context, tag string) (*models.SyncEntry, bool, error) {
	if s == nil {
		return nil, false, errors.New("replay: database store not initialised")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var entry models.SyncEntry
	err := s.db.WithContext(ctx).Take(&entry, "tag = ?", tag).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	return &entry, true, nil
}

// Put upserts the payload for a tag. The enqueue timestamp always reflects
// the most recent write.
func (s *DatabaseStore) Put(ctx context.Context, tag string, data []byte) error {
	if s == nil {
		return errors.New("replay: database store not initialised")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	entry := models.SyncEntry{
		Tag:        tag,
		Data:       datatypes.JSON(data),
		EnqueuedAt: time.Now().UTC(),
	}

	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tag"}},
			DoUpdates: clause.AssignmentColumns([]string{"data", "enqueued_at", "updated_at"}),
		}).Create(&entry).Error
}

// Delete removes the entry for a tag. Deleting an absent tag is a no-op.
func (s *DatabaseStore) Delete(ctx context.Context, tag string) error {
	if s == nil {
		return errors.New("replay: database store not initialised")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	return s.db.WithContext(ctx).Where("tag = ?", tag).Delete(&models.SyncEntry{}).Error
}

// DeleteIfUnchanged removes the entry for a tag unless a newer payload was
// enqueued since enqueuedAt was read.
func (s *DatabaseStore) DeleteIfUnchanged(ctx context.Context, tag string, enqueuedAt time.Time) (bool, error) {
	if s == nil {
		return false, errors.New("replay: database store not initialised")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	res := s.db.WithContext(ctx).
		Where("tag = ? AND enqueued_at = ?", tag, enqueuedAt).
		Delete(&models.SyncEntry{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Tags lists every tag that currently has a pending entry.
func (s *DatabaseStore) Tags(ctx context.Context) ([]string, error) {
	if s == nil {
		return nil, errors.New("replay: database store not initialised")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var tags []string
	err := s.db.WithContext(ctx).
		Model(&models.SyncEntry{}).
		Order("enqueued_at").
		Pluck("tag", &tags).Error
	if err != nil {
		return nil, err
	}
	return tags, nil
}
