package social

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aradhanasaha/coffee-sub000/internal/ids"
	"github.com/aradhanasaha/coffee-sub000/internal/notifications"
	"github.com/aradhanasaha/coffee-sub000/internal/serviceerror"
	"github.com/aradhanasaha/coffee-sub000/internal/validate"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	errMissingIDProvider = errors.New("social: id provider is required")
	errMissingNotifier   = errors.New("social: notifier is required")
)

const (
	opServiceNew    = "social.service.new"
	opCreateLog     = "social.create_log"
	opToggleLike    = "social.toggle_like"
	opFollow        = "social.follow"
	opUnfollow      = "social.unfollow"
	opCreateList    = "social.create_list"
	opSaveList      = "social.save_list"
	opDeleteLog     = "social.delete_log"
	opSoftDeleteLog = "social.moderation.delete_log"
	opHidePhoto     = "social.moderation.hide_photo"
)

// LogInput is the user-submitted content of a new coffee log.
type LogInput struct {
	PlaceName  string `json:"place_name" validate:"required,max=255"`
	LocationID string `json:"location_id" validate:"omitempty,max=190"`
	City       string `json:"city" validate:"omitempty,max=190"`
	Rating     int    `json:"rating" validate:"min=0,max=5"`
	Review     string `json:"review" validate:"omitempty,max=4000"`
	PhotoURL   string `json:"photo_url" validate:"omitempty,url,max=1024"`
}

// ServiceConfig describes the dependencies of the social actions.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider ids.Provider
	Notifier   notifications.Notifier
	Moderator  Moderator
	Logger     *zap.Logger
}

// Service performs the user actions that produce notifications.
type Service struct {
	db         *gorm.DB
	store      *Store
	clock      func() time.Time
	idProvider ids.Provider
	notifier   notifications.Notifier
	moderator  Moderator
	logger     *zap.Logger
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, serviceerror.New(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, serviceerror.New(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	if cfg.Notifier == nil {
		return nil, serviceerror.New(opServiceNew, "missing_notifier", errMissingNotifier)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	moderator := cfg.Moderator
	if moderator == nil {
		moderator = AllowAll{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	store, err := NewStore(cfg.Database)
	if err != nil {
		return nil, serviceerror.New(opServiceNew, "missing_database", err)
	}
	return &Service{
		db:         cfg.Database,
		store:      store,
		clock:      clock,
		idProvider: cfg.IDProvider,
		notifier:   cfg.Notifier,
		moderator:  moderator,
		logger:     logger,
	}, nil
}

// Store exposes the read queries over the same database.
func (s *Service) Store() *Store {
	return s.store
}

// CreateLog stores a new coffee log and notifies each of the author's followers.
func (s *Service) CreateLog(ctx context.Context, authorID string, input LogInput) (CoffeeLog, error) {
	input.PlaceName = strings.TrimSpace(input.PlaceName)
	input.City = strings.TrimSpace(input.City)
	if err := validate.Struct(input); err != nil {
		return CoffeeLog{}, serviceerror.New(opCreateLog, "invalid_input", fmt.Errorf("%w: %v", ErrInvalidLog, err))
	}
	if review := strings.TrimSpace(input.Review); review != "" {
		verdict, err := s.moderator.Validate(ctx, review)
		if err != nil {
			return CoffeeLog{}, serviceerror.New(opCreateLog, "moderation_failed", err)
		}
		if !verdict.Safe {
			return CoffeeLog{}, serviceerror.New(opCreateLog, "rejected_content", fmt.Errorf("%w: %s", ErrRejectedContent, verdict.Reason))
		}
	}

	logID, err := s.idProvider.NewID()
	if err != nil {
		return CoffeeLog{}, serviceerror.New(opCreateLog, "id_generation_failed", err)
	}
	now := s.clock().UTC()
	entry := CoffeeLog{
		LogID:     logID,
		AuthorID:  authorID,
		PlaceName: input.PlaceName,
		Rating:    input.Rating,
		Review:    optional(input.Review),
		PhotoURL:  optional(input.PhotoURL),
		CreatedAt: now,
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		switch {
		case input.LocationID != "":
			entry.LocationID = optional(input.LocationID)
		case input.City != "":
			locationID, err := s.idProvider.NewID()
			if err != nil {
				return err
			}
			location := Location{LocationID: locationID, Name: input.PlaceName, City: input.City, CreatedAt: now}
			if err := tx.Create(&location).Error; err != nil {
				return err
			}
			entry.LocationID = &location.LocationID
		}
		return tx.Create(&entry).Error
	})
	if txErr != nil {
		s.logError(opCreateLog, "insert_failed", txErr, zap.String("author_id", authorID))
		return CoffeeLog{}, serviceerror.New(opCreateLog, "insert_failed", txErr)
	}

	followers, err := s.store.FollowerIDs(ctx, authorID)
	if err != nil {
		s.logger.Warn("follower lookup failed; post notifications skipped",
			zap.String("author_id", authorID),
			zap.Error(err))
		return entry, nil
	}
	for _, followerID := range followers {
		s.notifier.Notify(ctx, notifications.Request{
			RecipientID: followerID,
			ActorID:     authorID,
			Type:        notifications.TypePost.String(),
			EntityID:    entry.LogID,
		})
	}
	return entry, nil
}

// ToggleLike likes the log when the user has not liked it yet and unlikes it otherwise.
// It returns the resulting state.
func (s *Service) ToggleLike(ctx context.Context, userID, logID string) (bool, error) {
	entry, err := s.liveLog(ctx, logID)
	if err != nil {
		return false, serviceerror.New(opToggleLike, "log_lookup_failed", err)
	}

	removed := s.db.WithContext(ctx).
		Where("user_id = ? AND log_id = ?", userID, logID).
		Delete(&Like{})
	if removed.Error != nil {
		return false, serviceerror.New(opToggleLike, "delete_failed", removed.Error)
	}
	if removed.RowsAffected > 0 {
		return false, nil
	}

	like := Like{UserID: userID, LogID: logID, CreatedAt: s.clock().UTC()}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&like).Error; err != nil {
		return false, serviceerror.New(opToggleLike, "insert_failed", err)
	}
	s.notifier.Notify(ctx, notifications.Request{
		RecipientID: entry.AuthorID,
		ActorID:     userID,
		Type:        notifications.TypeLike.String(),
		EntityID:    logID,
	})
	return true, nil
}

// Follow creates the follow edge. Following someone twice is a no-op and does not notify again.
func (s *Service) Follow(ctx context.Context, followerID, followedID string) error {
	if followerID == followedID {
		return serviceerror.New(opFollow, "self_follow", ErrSelfFollow)
	}
	edge := Follow{FollowerID: followerID, FollowedID: followedID, CreatedAt: s.clock().UTC()}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&edge)
	if result.Error != nil {
		return serviceerror.New(opFollow, "insert_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil
	}
	s.notifier.Notify(ctx, notifications.Request{
		RecipientID: followedID,
		ActorID:     followerID,
		Type:        notifications.TypeFollow.String(),
		EntityID:    followerID,
	})
	return nil
}

// Unfollow removes the follow edge if present.
func (s *Service) Unfollow(ctx context.Context, followerID, followedID string) error {
	if err := s.db.WithContext(ctx).
		Where("follower_id = ? AND followed_id = ?", followerID, followedID).
		Delete(&Follow{}).Error; err != nil {
		return serviceerror.New(opUnfollow, "delete_failed", err)
	}
	return nil
}

// CreateList creates an empty coffee list owned by the user.
func (s *Service) CreateList(ctx context.Context, ownerID, title string) (CoffeeList, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return CoffeeList{}, serviceerror.New(opCreateList, "missing_title", errors.New("social: list title is required"))
	}
	listID, err := s.idProvider.NewID()
	if err != nil {
		return CoffeeList{}, serviceerror.New(opCreateList, "id_generation_failed", err)
	}
	list := CoffeeList{ListID: listID, OwnerID: ownerID, Title: title, CreatedAt: s.clock().UTC()}
	if err := s.db.WithContext(ctx).Create(&list).Error; err != nil {
		return CoffeeList{}, serviceerror.New(opCreateList, "insert_failed", err)
	}
	return list, nil
}

// SaveList saves the list for the user and notifies the owner on the first save.
func (s *Service) SaveList(ctx context.Context, userID, listID string) error {
	var list CoffeeList
	err := s.db.WithContext(ctx).Where("list_id = ?", listID).Take(&list).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return serviceerror.New(opSaveList, "not_found", ErrListNotFound)
	}
	if err != nil {
		return serviceerror.New(opSaveList, "list_lookup_failed", err)
	}

	saved := SavedList{UserID: userID, ListID: listID, CreatedAt: s.clock().UTC()}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&saved)
	if result.Error != nil {
		return serviceerror.New(opSaveList, "insert_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil
	}
	s.notifier.Notify(ctx, notifications.Request{
		RecipientID: list.OwnerID,
		ActorID:     userID,
		Type:        notifications.TypeSaveList.String(),
		EntityID:    listID,
	})
	return nil
}

// DeleteLog soft deletes a log owned by the caller.
func (s *Service) DeleteLog(ctx context.Context, authorID, logID string) error {
	entry, err := s.liveLog(ctx, logID)
	if err != nil {
		return serviceerror.New(opDeleteLog, "log_lookup_failed", err)
	}
	if entry.AuthorID != authorID {
		return serviceerror.New(opDeleteLog, "not_author", ErrNotAuthor)
	}
	return s.markDeleted(ctx, opDeleteLog, logID)
}

// SoftDeleteLog removes a log from every read regardless of its author.
func (s *Service) SoftDeleteLog(ctx context.Context, logID string) error {
	if _, err := s.liveLog(ctx, logID); err != nil {
		return serviceerror.New(opSoftDeleteLog, "log_lookup_failed", err)
	}
	if err := s.markDeleted(ctx, opSoftDeleteLog, logID); err != nil {
		return err
	}
	s.logger.Info("coffee log removed by moderation", zap.String("log_id", logID))
	return nil
}

// HidePhoto marks the log's photo as removed. The URL is kept; readers strip it.
func (s *Service) HidePhoto(ctx context.Context, logID string) error {
	if _, err := s.liveLog(ctx, logID); err != nil {
		return serviceerror.New(opHidePhoto, "log_lookup_failed", err)
	}
	if err := s.db.WithContext(ctx).
		Model(&CoffeeLog{}).
		Where("log_id = ? AND photo_removed_at IS NULL", logID).
		Update("photo_removed_at", s.clock().UTC()).Error; err != nil {
		return serviceerror.New(opHidePhoto, "update_failed", err)
	}
	s.logger.Info("coffee log photo hidden by moderation", zap.String("log_id", logID))
	return nil
}

func (s *Service) markDeleted(ctx context.Context, operation, logID string) error {
	if err := s.db.WithContext(ctx).
		Model(&CoffeeLog{}).
		Where("log_id = ? AND deleted_at IS NULL", logID).
		Update("deleted_at", s.clock().UTC()).Error; err != nil {
		return serviceerror.New(operation, "update_failed", err)
	}
	return nil
}

func (s *Service) liveLog(ctx context.Context, logID string) (CoffeeLog, error) {
	var entry CoffeeLog
	err := s.db.WithContext(ctx).
		Where("log_id = ? AND deleted_at IS NULL", logID).
		Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return CoffeeLog{}, ErrLogNotFound
	}
	return entry, err
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	allFields := append([]zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.Error(err),
	}, fields...)
	s.logger.Error("social operation failed", allFields...)
}

func optional(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
