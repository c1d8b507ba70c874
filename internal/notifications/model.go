package notifications

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Type enumerates the notification kinds.
type Type string

const (
	// TypeLike is sent to a coffee log author when someone likes the log.
	TypeLike Type = "like"
	// TypeFollow is sent to a user when someone starts following them.
	TypeFollow Type = "follow"
	// TypeSaveList is sent to a list owner when someone saves the list.
	TypeSaveList Type = "save_list"
	// TypePost is sent to followers when someone they follow posts a coffee log.
	TypePost Type = "post"
	// TypeNudge is a system re-engagement reminder with no actor.
	TypeNudge Type = "nudge"
)

var (
	// ErrInvalidType indicates an unknown notification type.
	ErrInvalidType = errors.New("notifications: invalid type")
	// ErrMissingRecipient indicates the recipient id is empty.
	ErrMissingRecipient = errors.New("notifications: recipient required")
	// ErrMissingActor indicates an actor-triggered type was written without an actor.
	ErrMissingActor = errors.New("notifications: actor required")
	// ErrNotFound indicates the notification does not exist for the recipient.
	ErrNotFound = errors.New("notifications: not found")
)

// ParseType validates raw input and returns a Type.
func ParseType(raw string) (Type, error) {
	candidate := Type(strings.ToLower(strings.TrimSpace(raw)))
	switch candidate {
	case TypeLike, TypeFollow, TypeSaveList, TypePost, TypeNudge:
		return candidate, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidType, raw)
	}
}

// RequiresActor reports whether the type is triggered by a user action.
func (t Type) RequiresActor() bool {
	return t != TypeNudge
}

// String returns the stored representation.
func (t Type) String() string {
	return string(t)
}

// Notification is a durable inbox row for a single recipient.
type Notification struct {
	NotificationID string    `gorm:"column:notification_id;primaryKey;size:190;not null" json:"id"`
	RecipientID    string    `gorm:"column:recipient_id;size:190;not null;index:idx_notifications_recipient_created,priority:1" json:"recipient_id"`
	ActorID        *string   `gorm:"column:actor_id;size:190" json:"actor_id"`
	Type           Type      `gorm:"column:type;size:32;not null" json:"type"`
	EntityID       *string   `gorm:"column:entity_id;size:190" json:"entity_id"`
	Read           bool      `gorm:"column:read;not null;default:false" json:"read"`
	CreatedAt      time.Time `gorm:"column:created_at;not null;index:idx_notifications_recipient_created,priority:2" json:"created_at"`
}

// TableName provides the explicit table binding for GORM.
func (Notification) TableName() string {
	return "notifications"
}

// Actor returns the actor id or an empty string for system notifications.
func (n Notification) Actor() string {
	if n.ActorID == nil {
		return ""
	}
	return *n.ActorID
}

// Entity returns the related entity id or an empty string.
func (n Notification) Entity() string {
	if n.EntityID == nil {
		return ""
	}
	return *n.EntityID
}

// OutboxStatus tracks the delivery state of an outbox event.
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusDelivered OutboxStatus = "delivered"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// OutboxEvent records that a notification still has to be handed to the push
// dispatcher. It is written in the same transaction as the notification.
type OutboxEvent struct {
	EventID        string       `gorm:"column:event_id;primaryKey;size:190;not null"`
	NotificationID string       `gorm:"column:notification_id;size:190;not null;uniqueIndex"`
	Status         OutboxStatus `gorm:"column:status;size:16;not null;index:idx_outbox_status_available,priority:1"`
	Attempts       int          `gorm:"column:attempts;not null;default:0"`
	LastError      string       `gorm:"column:last_error;type:text;not null;default:''"`
	AvailableAt    time.Time    `gorm:"column:available_at;not null;index:idx_outbox_status_available,priority:2"`
	CreatedAt      time.Time    `gorm:"column:created_at;not null"`
	DeliveredAt    *time.Time   `gorm:"column:delivered_at"`
	StreamedAt     *time.Time   `gorm:"column:streamed_at"`
}

// TableName provides the explicit table binding for GORM.
func (OutboxEvent) TableName() string {
	return "notification_outbox"
}

func optionalString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
