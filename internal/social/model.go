package social

import (
	"errors"
	"time"
)

const (
	minRating = 0
	maxRating = 5
)

var (
	// ErrSelfFollow indicates a user attempted to follow themselves.
	ErrSelfFollow = errors.New("social: cannot follow yourself")
	// ErrLogNotFound indicates the coffee log does not exist or is deleted.
	ErrLogNotFound = errors.New("social: coffee log not found")
	// ErrListNotFound indicates the coffee list does not exist.
	ErrListNotFound = errors.New("social: coffee list not found")
	// ErrNotAuthor indicates the caller does not own the coffee log.
	ErrNotAuthor = errors.New("social: caller is not the author")
	// ErrRejectedContent indicates the moderator refused the submitted text.
	ErrRejectedContent = errors.New("social: content rejected")
	// ErrInvalidLog indicates the submitted log failed validation.
	ErrInvalidLog = errors.New("social: invalid coffee log")
)

// CoffeeLog is a user's record of a coffee experience.
type CoffeeLog struct {
	LogID          string     `gorm:"column:log_id;primaryKey;size:190;not null" json:"id"`
	AuthorID       string     `gorm:"column:author_id;size:190;not null;index" json:"author_id"`
	PlaceName      string     `gorm:"column:place_name;size:255;not null" json:"place_name"`
	LocationID     *string    `gorm:"column:location_id;size:190;index" json:"location_id"`
	Rating         int        `gorm:"column:rating;not null" json:"rating"`
	Review         *string    `gorm:"column:review;type:text" json:"review"`
	PhotoURL       *string    `gorm:"column:photo_url;size:1024" json:"photo_url"`
	PhotoRemovedAt *time.Time `gorm:"column:photo_removed_at" json:"-"`
	CreatedAt      time.Time  `gorm:"column:created_at;not null;index" json:"created_at"`
	DeletedAt      *time.Time `gorm:"column:deleted_at;index" json:"-"`
}

// TableName provides the explicit table binding for GORM.
func (CoffeeLog) TableName() string {
	return "coffee_logs"
}

// Location is a place referenced by coffee logs.
type Location struct {
	LocationID string    `gorm:"column:location_id;primaryKey;size:190;not null"`
	Name       string    `gorm:"column:name;size:255;not null"`
	City       string    `gorm:"column:city;size:190;not null;default:''"`
	CreatedAt  time.Time `gorm:"column:created_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Location) TableName() string {
	return "locations"
}

// Follow is a directed edge from follower to followed.
type Follow struct {
	FollowerID string    `gorm:"column:follower_id;primaryKey;size:190;not null"`
	FollowedID string    `gorm:"column:followed_id;primaryKey;size:190;not null;index"`
	CreatedAt  time.Time `gorm:"column:created_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Follow) TableName() string {
	return "follows"
}

// Like marks a user's like on a coffee log.
type Like struct {
	UserID    string    `gorm:"column:user_id;primaryKey;size:190;not null"`
	LogID     string    `gorm:"column:log_id;primaryKey;size:190;not null;index"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Like) TableName() string {
	return "likes"
}

// CoffeeList is a curated list owned by a user.
type CoffeeList struct {
	ListID    string    `gorm:"column:list_id;primaryKey;size:190;not null" json:"id"`
	OwnerID   string    `gorm:"column:owner_id;size:190;not null;index" json:"owner_id"`
	Title     string    `gorm:"column:title;size:255;not null" json:"title"`
	CreatedAt time.Time `gorm:"column:created_at;not null" json:"created_at"`
}

// TableName provides the explicit table binding for GORM.
func (CoffeeList) TableName() string {
	return "coffee_lists"
}

// SavedList records that a user saved someone's list.
type SavedList struct {
	UserID    string    `gorm:"column:user_id;primaryKey;size:190;not null"`
	ListID    string    `gorm:"column:list_id;primaryKey;size:190;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (SavedList) TableName() string {
	return "saved_lists"
}

// Candidate is a non-deleted coffee log joined with its location's city, as read by the feed.
type Candidate struct {
	LogID          string     `gorm:"column:log_id"`
	AuthorID       string     `gorm:"column:author_id"`
	PlaceName      string     `gorm:"column:place_name"`
	LocationID     *string    `gorm:"column:location_id"`
	City           string     `gorm:"column:city"`
	Rating         int        `gorm:"column:rating"`
	Review         *string    `gorm:"column:review"`
	PhotoURL       *string    `gorm:"column:photo_url"`
	PhotoRemovedAt *time.Time `gorm:"column:photo_removed_at"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
}

// Models lists every table owned by this package for auto-migration.
func Models() []interface{} {
	return []interface{}{&CoffeeLog{}, &Location{}, &Follow{}, &Like{}, &CoffeeList{}, &SavedList{}}
}
