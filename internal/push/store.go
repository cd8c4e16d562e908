package push

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/emelmujiro/offline-gateway/internal/models"
)

// SubscriptionStore persists push subscriptions.
type SubscriptionStore interface {
	// Save registers a subscription, updating key material when the endpoint
	// is already known.
	Save(ctx context.Context, sub *models.PushSubscription) error
	// Delete removes the subscription for an endpoint. Unknown endpoints are
	// a no-op.
	Delete(ctx context.Context, endpoint string) error
	// List returns all registered subscriptions.
	List(ctx context.Context) ([]models.PushSubscription, error)
}

// DatabaseSubscriptionStore is the gorm-backed SubscriptionStore.
type DatabaseSubscriptionStore struct {
	db *gorm.DB
}

// NewDatabaseSubscriptionStore constructs a store on the given connection.
func NewDatabaseSubscriptionStore(db *gorm.DB) *DatabaseSubscriptionStore {
	return &DatabaseSubscriptionStore{db: db}
}

func (s *DatabaseSubscriptionStore) Save(ctx context.Context, sub *models.PushSubscription) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth", "updated_at"}),
		}).
		Create(sub).Error
	if err != nil {
		return fmt.Errorf("push: save subscription: %w", err)
	}
	return nil
}

func (s *DatabaseSubscriptionStore) Delete(ctx context.Context, endpoint string) error {
	err := s.db.WithContext(ctx).
		Where("endpoint = ?", endpoint).
		Delete(&models.PushSubscription{}).Error
	if err != nil {
		return fmt.Errorf("push: delete subscription: %w", err)
	}
	return nil
}

func (s *DatabaseSubscriptionStore) List(ctx context.Context) ([]models.PushSubscription, error) {
	var subs []models.PushSubscription
	err := s.db.WithContext(ctx).
		Order("created_at ASC").
		Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("push: list subscriptions: %w", err)
	}
	return subs, nil
}
