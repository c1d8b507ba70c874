package push

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aradhanasaha/coffee-sub000/internal/ids"
	"github.com/aradhanasaha/coffee-sub000/internal/validate"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrInvalidSubscription indicates a registration without endpoint or keys.
	ErrInvalidSubscription = errors.New("push: invalid subscription")
	errMissingDatabase     = errors.New("push: database handle is required")
	errMissingIDProvider   = errors.New("push: id provider is required")
)

// Subscription is a browser or device registration for web push.
type Subscription struct {
	SubscriptionID string    `gorm:"column:subscription_id;primaryKey;size:190;not null" json:"id"`
	UserID         string    `gorm:"column:user_id;size:190;not null;uniqueIndex:idx_push_user_endpoint,priority:1" json:"user_id"`
	Endpoint       string    `gorm:"column:endpoint;size:2048;not null;uniqueIndex:idx_push_user_endpoint,priority:2" json:"endpoint"`
	P256dh         string    `gorm:"column:p256dh;size:255;not null" json:"-"`
	Auth           string    `gorm:"column:auth;size:255;not null" json:"-"`
	UserAgent      string    `gorm:"column:user_agent;size:512;not null;default:''" json:"user_agent"`
	CreatedAt      time.Time `gorm:"column:created_at;not null" json:"created_at"`
}

// TableName provides the explicit table binding for GORM.
func (Subscription) TableName() string {
	return "push_subscriptions"
}

// RegistrationKeys are the client keys used to encrypt payloads.
type RegistrationKeys struct {
	P256dh string `json:"p256dh" validate:"required,max=255"`
	Auth   string `json:"auth" validate:"required,max=255"`
}

// Registration is the browser-provided subscription payload.
type Registration struct {
	Endpoint  string           `json:"endpoint" validate:"required,url,max=2048"`
	Keys      RegistrationKeys `json:"keys"`
	UserAgent string           `json:"-"`
}

// SubscriptionStore persists push subscriptions.
type SubscriptionStore struct {
	db         *gorm.DB
	idProvider ids.Provider
	clock      func() time.Time
}

func NewSubscriptionStore(db *gorm.DB, idProvider ids.Provider, clock func() time.Time) (*SubscriptionStore, error) {
	if db == nil {
		return nil, errMissingDatabase
	}
	if idProvider == nil {
		return nil, errMissingIDProvider
	}
	if clock == nil {
		clock = time.Now
	}
	return &SubscriptionStore{db: db, idProvider: idProvider, clock: clock}, nil
}

// Upsert stores the registration for the user. Registering the same endpoint again
// refreshes its keys and user agent and keeps the original id.
func (s *SubscriptionStore) Upsert(ctx context.Context, userID string, registration Registration) (Subscription, error) {
	registration.Endpoint = strings.TrimSpace(registration.Endpoint)
	if err := validate.Struct(registration); err != nil {
		return Subscription{}, fmt.Errorf("%w: %v", ErrInvalidSubscription, err)
	}
	subscriptionID, err := s.idProvider.NewID()
	if err != nil {
		return Subscription{}, err
	}
	subscription := Subscription{
		SubscriptionID: subscriptionID,
		UserID:         userID,
		Endpoint:       registration.Endpoint,
		P256dh:         registration.Keys.P256dh,
		Auth:           registration.Keys.Auth,
		UserAgent:      registration.UserAgent,
		CreatedAt:      s.clock().UTC(),
	}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth", "user_agent"}),
		}).
		Create(&subscription).Error
	if err != nil {
		return Subscription{}, err
	}

	var stored Subscription
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND endpoint = ?", userID, registration.Endpoint).
		Take(&stored).Error; err != nil {
		return Subscription{}, err
	}
	return stored, nil
}

// ForUser lists every subscription registered by the user, oldest first.
func (s *SubscriptionStore) ForUser(ctx context.Context, userID string) ([]Subscription, error) {
	var subscriptions []Subscription
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Order("subscription_id ASC").
		Find(&subscriptions).Error; err != nil {
		return nil, err
	}
	return subscriptions, nil
}

// Delete removes a subscription by id. Deleting a missing row is not an error.
func (s *SubscriptionStore) Delete(ctx context.Context, subscriptionID string) error {
	return s.db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Delete(&Subscription{}).Error
}

// Revoke removes the user's subscription for endpoint and reports whether one existed.
func (s *SubscriptionStore) Revoke(ctx context.Context, userID, endpoint string) (bool, error) {
	result := s.db.WithContext(ctx).
		Where("user_id = ? AND endpoint = ?", userID, strings.TrimSpace(endpoint)).
		Delete(&Subscription{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
