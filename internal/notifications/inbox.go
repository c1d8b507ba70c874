package notifications

import (
	"context"
	"strings"

	"github.com/aradhanasaha/coffee-sub000/internal/serviceerror"
	"gorm.io/gorm"
)

const (
	opInboxList        = "notifications.list"
	opInboxMarkRead    = "notifications.mark_read"
	opInboxMarkAllRead = "notifications.mark_all_read"
	opInboxUnreadCount = "notifications.unread_count"
	defaultInboxLimit  = 50
	maxInboxLimit      = 200
)

// ListOptions narrows an inbox listing.
type ListOptions struct {
	Limit      int
	UnreadOnly bool
}

// Inbox serves the in-app notification list. Only the read flag is ever mutated.
type Inbox struct {
	db *gorm.DB
}

// NewInbox constructs an Inbox over the notifications table.
func NewInbox(db *gorm.DB) (*Inbox, error) {
	if db == nil {
		return nil, errMissingDatabase
	}
	return &Inbox{db: db}, nil
}

// List returns the recipient's notifications, newest first.
func (i *Inbox) List(ctx context.Context, recipientID string, options ListOptions) ([]Notification, error) {
	recipientID = strings.TrimSpace(recipientID)
	if recipientID == "" {
		return nil, serviceerror.New(opInboxList, "missing_recipient", ErrMissingRecipient)
	}
	limit := options.Limit
	if limit <= 0 {
		limit = defaultInboxLimit
	}
	if limit > maxInboxLimit {
		limit = maxInboxLimit
	}

	query := i.db.WithContext(ctx).Where("recipient_id = ?", recipientID)
	if options.UnreadOnly {
		query = query.Where("read = ?", false)
	}

	notifications := make([]Notification, 0, limit)
	if err := query.Order("created_at DESC").Limit(limit).Find(&notifications).Error; err != nil {
		return nil, serviceerror.New(opInboxList, "query_failed", err)
	}
	return notifications, nil
}

// MarkRead flips the read flag of one notification owned by the recipient.
func (i *Inbox) MarkRead(ctx context.Context, recipientID, notificationID string) error {
	result := i.db.WithContext(ctx).
		Model(&Notification{}).
		Where("notification_id = ? AND recipient_id = ?", notificationID, recipientID).
		Update("read", true)
	if result.Error != nil {
		return serviceerror.New(opInboxMarkRead, "update_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return serviceerror.New(opInboxMarkRead, "not_found", ErrNotFound)
	}
	return nil
}

// MarkAllRead flips every unread notification of the recipient and returns how many changed.
func (i *Inbox) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	result := i.db.WithContext(ctx).
		Model(&Notification{}).
		Where("recipient_id = ? AND read = ?", recipientID, false).
		Update("read", true)
	if result.Error != nil {
		return 0, serviceerror.New(opInboxMarkAllRead, "update_failed", result.Error)
	}
	return result.RowsAffected, nil
}

// UnreadCount returns the exact number of unread notifications for the recipient.
func (i *Inbox) UnreadCount(ctx context.Context, recipientID string) (int64, error) {
	var count int64
	if err := i.db.WithContext(ctx).
		Model(&Notification{}).
		Where("recipient_id = ? AND read = ?", recipientID, false).
		Count(&count).Error; err != nil {
		return 0, serviceerror.New(opInboxUnreadCount, "query_failed", err)
	}
	return count, nil
}
