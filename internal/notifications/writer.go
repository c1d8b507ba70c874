package notifications

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/aradhanasaha/coffee-sub000/internal/ids"
	"github.com/aradhanasaha/coffee-sub000/internal/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("notifications: database handle is required")
	errMissingIDProvider = errors.New("notifications: id provider is required")
)

// Request describes a notification to write.
type Request struct {
	RecipientID string
	ActorID     string
	Type        string
	EntityID    string
}

// OutcomeStatus classifies what Notify did with a request.
type OutcomeStatus string

const (
	// OutcomeCreated means a notification row and its outbox event were committed.
	OutcomeCreated OutcomeStatus = "created"
	// OutcomeSuppressed means the request was a self-action and nothing was written.
	OutcomeSuppressed OutcomeStatus = "suppressed"
	// OutcomeRejected means the request failed validation.
	OutcomeRejected OutcomeStatus = "rejected"
	// OutcomeFailed means the store refused the write.
	OutcomeFailed OutcomeStatus = "failed"
)

// NotifyOutcome is the best-effort result of Notify. Business actions are expected
// to discard it: a notification problem never fails the action that caused it.
type NotifyOutcome struct {
	Status       OutcomeStatus
	Notification *Notification
	Err          error
}

// Created reports whether a row was written.
func (o NotifyOutcome) Created() bool {
	return o.Status == OutcomeCreated
}

// Notifier is the contract business actions depend on.
type Notifier interface {
	Notify(ctx context.Context, request Request) NotifyOutcome
}

// WriterConfig describes the dependencies of a Writer.
type WriterConfig struct {
	Database   *gorm.DB
	IDProvider ids.Provider
	Clock      func() time.Time
	Logger     *zap.Logger
	Metrics    *metrics.Collectors
}

// Writer persists notifications together with their outbox events.
type Writer struct {
	db         *gorm.DB
	idProvider ids.Provider
	clock      func() time.Time
	logger     *zap.Logger
	metrics    *metrics.Collectors
}

// NewWriter validates the configuration and constructs a Writer.
func NewWriter(cfg WriterConfig) (*Writer, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{
		db:         cfg.Database,
		idProvider: cfg.IDProvider,
		clock:      clock,
		logger:     logger,
		metrics:    cfg.Metrics,
	}, nil
}

// Notify writes one notification row for the recipient. Self-actions are suppressed
// for actor-triggered types; nudges never carry an actor. Repeated calls produce
// repeated rows.
func (w *Writer) Notify(ctx context.Context, request Request) NotifyOutcome {
	notificationType, err := ParseType(request.Type)
	if err != nil {
		return w.reject(request, err)
	}

	recipientID := strings.TrimSpace(request.RecipientID)
	if recipientID == "" {
		return w.reject(request, ErrMissingRecipient)
	}

	actorID := optionalString(request.ActorID)
	if notificationType.RequiresActor() {
		if actorID == nil {
			return w.reject(request, ErrMissingActor)
		}
		if *actorID == recipientID {
			w.metrics.CountNotification(notificationType.String(), string(OutcomeSuppressed))
			return NotifyOutcome{Status: OutcomeSuppressed}
		}
	} else {
		actorID = nil
	}

	notification, err := w.insert(ctx, Notification{
		RecipientID: recipientID,
		ActorID:     actorID,
		Type:        notificationType,
		EntityID:    optionalString(request.EntityID),
	})
	if err != nil {
		w.logger.Error("notification write failed",
			zap.String("recipient_id", recipientID),
			zap.String("type", notificationType.String()),
			zap.Error(err))
		w.metrics.CountNotification(notificationType.String(), string(OutcomeFailed))
		return NotifyOutcome{Status: OutcomeFailed, Err: err}
	}

	w.metrics.CountNotification(notificationType.String(), string(OutcomeCreated))
	return NotifyOutcome{Status: OutcomeCreated, Notification: &notification}
}

func (w *Writer) insert(ctx context.Context, notification Notification) (Notification, error) {
	notificationID, err := w.idProvider.NewID()
	if err != nil {
		return Notification{}, err
	}
	eventID, err := w.idProvider.NewID()
	if err != nil {
		return Notification{}, err
	}

	now := w.clock().UTC()
	notification.NotificationID = notificationID
	notification.CreatedAt = now
	event := OutboxEvent{
		EventID:        eventID,
		NotificationID: notificationID,
		Status:         OutboxStatusPending,
		AvailableAt:    now,
		CreatedAt:      now,
	}

	err = w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&notification).Error; err != nil {
			return err
		}
		return tx.Create(&event).Error
	})
	if err != nil {
		return Notification{}, err
	}
	return notification, nil
}

func (w *Writer) reject(request Request, err error) NotifyOutcome {
	w.logger.Warn("notification request rejected",
		zap.String("recipient_id", request.RecipientID),
		zap.String("type", request.Type),
		zap.Error(err))
	label := "invalid"
	if parsed, parseErr := ParseType(request.Type); parseErr == nil {
		label = parsed.String()
	}
	w.metrics.CountNotification(label, string(OutcomeRejected))
	return NotifyOutcome{Status: OutcomeRejected, Err: err}
}
