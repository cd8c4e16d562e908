package cache

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/emelmujiro/offline-gateway/internal/models"
)

// DatabaseStore implements the cache Store interface using the primary SQL database.
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore constructs a database-backed Store.
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	if db == nil {
		return nil
	}
	return &DatabaseStore{db: db}
}

// Get retrieves a cached response by generation and URL.
func (s *DatabaseStore) Get(ctx context.Context, generation, url string) (*models.CacheObject, bool, error) {
	if s == nil {
		return nil, false, errors.New("cache: database store not initialised")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var obj models.CacheObject
	err := s.db.WithContext(ctx).
		Take(&obj, "generation = ? AND url = ?", generation, url).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	return &obj, true, nil
}

// Put upserts a cached response for its (generation, url) key.
func (s *DatabaseStore) Put(ctx context.Context, obj *models.CacheObject) error {
	if s == nil {
		return errors.New("cache: database store not initialised")
	}
	if obj == nil {
		return errors.New("cache: nil object")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "generation"}, {Name: "url"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "headers", "body", "content_type", "class", "updated_at"}),
		}).Create(obj).Error
}

// PutAll commits all objects inside one transaction.
func (s *DatabaseStore) PutAll(ctx context.Context, objs []models.CacheObject) error {
	if s == nil {
		return errors.New("cache: database store not initialised")
	}
	if len(objs) == 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range objs {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "generation"}, {Name: "url"}},
				DoUpdates: clause.AssignmentColumns([]string{"status", "headers", "body", "content_type", "class", "updated_at"}),
			}).Create(&objs[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Generations enumerates the distinct generation names currently stored.
func (s *DatabaseStore) Generations(ctx context.Context) ([]string, error) {
	if s == nil {
		return nil, errors.New("cache: database store not initialised")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var names []string
	err := s.db.WithContext(ctx).
		Model(&models.CacheObject{}).
		Distinct("generation").
		Order("generation").
		Pluck("generation", &names).Error
	if err != nil {
		return nil, err
	}
	return names, nil
}

// DeleteGeneration removes every entry belonging to the named generation.
func (s *DatabaseStore) DeleteGeneration(ctx context.Context, generation string) error {
	if s == nil {
		return errors.New("cache: database store not initialised")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	return s.db.WithContext(ctx).
		Where("generation = ?", generation).
		Delete(&models.CacheObject{}).Error
}

// TrimClass deletes the oldest entries of a class until at most keep remain.
func (s *DatabaseStore) TrimClass(ctx context.Context, generation, class string, keep int) error {
	if s == nil {
		return errors.New("cache: database store not initialised")
	}
	if keep < 0 {
		keep = 0
	}
	if ctx == nil {
		ctx = context.Background()
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.CacheObject{}).
			Where("generation = ? AND class = ?", generation, class).
			Count(&count).Error; err != nil {
			return err
		}
		if count <= int64(keep) {
			return nil
		}

		var victims []models.CacheObject
		if err := tx.Select("generation", "url").
			Where("generation = ? AND class = ?", generation, class).
			Order("updated_at ASC, url ASC").
			Limit(int(count) - keep).
			Find(&victims).Error; err != nil {
			return err
		}

		for i := range victims {
			if err := tx.Where("generation = ? AND url = ?", victims[i].Generation, victims[i].URL).
				Delete(&models.CacheObject{}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
