package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aradhanasaha/coffee-sub000/internal/auth"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrInvalidIdentity indicates the claims did not contain a usable identifier.
var ErrInvalidIdentity = errors.New("users: invalid identity")

// ServiceConfig describes the dependencies required for profile management.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service owns user profiles: creation on first sight, display name lookups and
// the user directory consumed by the inactivity sweep.
type Service struct {
	db     *gorm.DB
	now    func() time.Time
	logger *zap.Logger
}

// NewService constructs the profile service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:     cfg.Database,
		now:    clock,
		logger: logger,
	}, nil
}

// EnsureProfile returns the user id for validated session claims, creating the
// profile on first sight and refreshing display details when the claims carry them.
func (s *Service) EnsureProfile(ctx context.Context, claims auth.SessionClaims) (string, error) {
	userID := normalize(claims.UserID)
	if userID == "" {
		userID = normalize(claims.Subject)
	}
	if userID == "" {
		return "", ErrInvalidIdentity
	}

	var profile Profile
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&profile).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		profile = Profile{
			UserID:      userID,
			DisplayName: normalize(claims.UserDisplayName),
			AvatarURL:   normalize(claims.UserAvatarURL),
			LastSeenAt:  s.now().UTC(),
		}
		if err := s.db.WithContext(ctx).Create(&profile).Error; err != nil {
			return "", err
		}
		return userID, nil
	}
	if err != nil {
		return "", err
	}

	updates := map[string]interface{}{}
	if display := normalize(claims.UserDisplayName); display != "" && display != profile.DisplayName {
		updates["display_name"] = display
	}
	if avatar := normalize(claims.UserAvatarURL); avatar != "" && avatar != profile.AvatarURL {
		updates["avatar_url"] = avatar
	}
	updates["last_seen_at"] = s.now().UTC()
	// A stale profile must not block the request.
	if err := s.db.WithContext(ctx).Model(&Profile{}).
		Where("user_id = ?", userID).
		Updates(updates).
		Error; err != nil {
		s.logger.Warn("failed to refresh user profile",
			zap.String("user_id", userID),
			zap.Error(err))
	}

	return userID, nil
}

// DisplayNames resolves display names for the given user ids in a single query.
// Unknown ids are absent from the result.
func (s *Service) DisplayNames(ctx context.Context, userIDs []string) (map[string]string, error) {
	names := make(map[string]string, len(userIDs))
	unique := uniqueNonEmpty(userIDs)
	if len(unique) == 0 {
		return names, nil
	}

	var profiles []Profile
	if err := s.db.WithContext(ctx).
		Select("user_id", "display_name").
		Where("user_id IN ?", unique).
		Find(&profiles).Error; err != nil {
		return nil, err
	}
	for _, profile := range profiles {
		names[profile.UserID] = profile.DisplayName
	}
	return names, nil
}

// AllUserIDs lists every known user id ordered by id.
func (s *Service) AllUserIDs(ctx context.Context) ([]string, error) {
	var userIDs []string
	if err := s.db.WithContext(ctx).
		Model(&Profile{}).
		Order("user_id ASC").
		Pluck("user_id", &userIDs).Error; err != nil {
		return nil, err
	}
	return userIDs, nil
}

func uniqueNonEmpty(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	unique := make([]string, 0, len(values))
	for _, value := range values {
		value = normalize(value)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		unique = append(unique, value)
	}
	return unique
}
