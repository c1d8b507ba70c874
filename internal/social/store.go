package social

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var errMissingDatabase = errors.New("social: database handle is required")

// Store answers the read queries other components need from the content tables.
type Store struct {
	db *gorm.DB
}

// NewStore wraps the database handle.
func NewStore(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errMissingDatabase
	}
	return &Store{db: db}, nil
}

// CandidateLogs returns non-deleted logs newest first with the city of their location.
// A limit of zero or less returns every log.
func (s *Store) CandidateLogs(ctx context.Context, limit int) ([]Candidate, error) {
	query := s.db.WithContext(ctx).
		Table("coffee_logs").
		Select("coffee_logs.log_id, coffee_logs.author_id, coffee_logs.place_name, coffee_logs.location_id, " +
			"COALESCE(locations.city, '') AS city, coffee_logs.rating, coffee_logs.review, coffee_logs.photo_url, " +
			"coffee_logs.photo_removed_at, coffee_logs.created_at").
		Joins("LEFT JOIN locations ON locations.location_id = coffee_logs.location_id").
		Where("coffee_logs.deleted_at IS NULL").
		Order("coffee_logs.created_at DESC").
		Order("coffee_logs.log_id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var candidates []Candidate
	if err := query.Scan(&candidates).Error; err != nil {
		return nil, err
	}
	return candidates, nil
}

// FollowedUserIDs lists the users the follower follows.
func (s *Store) FollowedUserIDs(ctx context.Context, followerID string) ([]string, error) {
	var followed []string
	if err := s.db.WithContext(ctx).
		Model(&Follow{}).
		Where("follower_id = ?", followerID).
		Pluck("followed_id", &followed).Error; err != nil {
		return nil, err
	}
	return followed, nil
}

// FollowerIDs lists the users following the given user.
func (s *Store) FollowerIDs(ctx context.Context, followedID string) ([]string, error) {
	var followers []string
	if err := s.db.WithContext(ctx).
		Model(&Follow{}).
		Where("followed_id = ?", followedID).
		Order("follower_id ASC").
		Pluck("follower_id", &followers).Error; err != nil {
		return nil, err
	}
	return followers, nil
}

// ActiveAuthorIDsSince lists distinct authors with a non-deleted log created at or after since.
func (s *Store) ActiveAuthorIDsSince(ctx context.Context, since time.Time) ([]string, error) {
	var authors []string
	if err := s.db.WithContext(ctx).
		Model(&CoffeeLog{}).
		Distinct("author_id").
		Where("deleted_at IS NULL AND created_at >= ?", since.UTC()).
		Pluck("author_id", &authors).Error; err != nil {
		return nil, err
	}
	return authors, nil
}
