package delivery

import (
	"context"
	"errors"
	"time"

	"github.com/aradhanasaha/coffee-sub000/internal/metrics"
	"github.com/aradhanasaha/coffee-sub000/internal/notifications"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultBatchSize    = 50
	defaultMaxAttempts  = 5
	defaultPollInterval = 2 * time.Second
	defaultBackoff      = 30 * time.Second
	defaultClaimLease   = time.Minute
	maxErrorLength      = 1024
)

var (
	errMissingDatabase = errors.New("delivery: database handle is required")
	errMissingInvoker  = errors.New("delivery: invoker is required")
)

type RelayConfig struct {
	Database     *gorm.DB
	Invoker      Invoker
	Stream       Invoker
	Clock        func() time.Time
	Logger       *zap.Logger
	Metrics      *metrics.Collectors
	BatchSize    int
	MaxAttempts  int
	PollInterval time.Duration
	Backoff      time.Duration
	ClaimLease   time.Duration
}

// Relay drains the notification outbox into an Invoker. Each event is invoked at
// least once; a crash between invoking and marking may invoke it again.
// The optional Stream stage runs once per event, before the first invoker
// attempt, and is not repeated when the invoker is retried.
type Relay struct {
	db           *gorm.DB
	invoker      Invoker
	stream       Invoker
	clock        func() time.Time
	logger       *zap.Logger
	metrics      *metrics.Collectors
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
	backoff      time.Duration
	claimLease   time.Duration
}

func NewRelay(cfg RelayConfig) (*Relay, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.Invoker == nil {
		return nil, errMissingInvoker
	}
	relay := &Relay{
		db:           cfg.Database,
		invoker:      cfg.Invoker,
		stream:       cfg.Stream,
		clock:        cfg.Clock,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		batchSize:    cfg.BatchSize,
		maxAttempts:  cfg.MaxAttempts,
		pollInterval: cfg.PollInterval,
		backoff:      cfg.Backoff,
		claimLease:   cfg.ClaimLease,
	}
	if relay.clock == nil {
		relay.clock = time.Now
	}
	if relay.logger == nil {
		relay.logger = zap.NewNop()
	}
	if relay.batchSize <= 0 {
		relay.batchSize = defaultBatchSize
	}
	if relay.maxAttempts <= 0 {
		relay.maxAttempts = defaultMaxAttempts
	}
	if relay.pollInterval <= 0 {
		relay.pollInterval = defaultPollInterval
	}
	if relay.backoff <= 0 {
		relay.backoff = defaultBackoff
	}
	if relay.claimLease <= 0 {
		relay.claimLease = defaultClaimLease
	}
	return relay, nil
}

// Run drains the outbox every poll interval until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()
	for {
		if _, err := r.DrainOnce(ctx); err != nil && ctx.Err() == nil {
			r.logger.Warn("outbox drain failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// DrainOnce invokes up to one batch of due events and returns how many were delivered.
func (r *Relay) DrainOnce(ctx context.Context) (int, error) {
	now := r.clock().UTC()
	var events []notifications.OutboxEvent
	if err := r.db.WithContext(ctx).
		Where("status = ? AND available_at <= ?", notifications.OutboxStatusPending, now).
		Order("available_at ASC").
		Order("created_at ASC").
		Limit(r.batchSize).
		Find(&events).Error; err != nil {
		return 0, err
	}

	delivered := 0
	for _, event := range events {
		if ctx.Err() != nil {
			return delivered, ctx.Err()
		}
		claimed, err := r.claim(ctx, event, now)
		if err != nil {
			return delivered, err
		}
		if !claimed {
			continue
		}
		if r.process(ctx, event) {
			delivered++
		}
	}
	return delivered, nil
}

func (r *Relay) claim(ctx context.Context, event notifications.OutboxEvent, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&notifications.OutboxEvent{}).
		Where("event_id = ? AND status = ? AND available_at <= ?", event.EventID, notifications.OutboxStatusPending, now).
		Update("available_at", now.Add(r.claimLease))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *Relay) process(ctx context.Context, event notifications.OutboxEvent) bool {
	var notification notifications.Notification
	err := r.db.WithContext(ctx).
		Where("notification_id = ?", event.NotificationID).
		Take(&notification).Error
	if err == nil {
		r.streamOnce(ctx, event, notification)
		err = r.invoker.Invoke(ctx, notification)
	}

	now := r.clock().UTC()
	if err == nil {
		r.metrics.CountRelayInvocation("delivered")
		if updateErr := r.db.WithContext(ctx).
			Model(&notifications.OutboxEvent{}).
			Where("event_id = ?", event.EventID).
			Updates(map[string]interface{}{
				"status":       notifications.OutboxStatusDelivered,
				"attempts":     event.Attempts + 1,
				"last_error":   "",
				"delivered_at": now,
			}).Error; updateErr != nil {
			r.logger.Error("failed to mark outbox event delivered",
				zap.String("event_id", event.EventID),
				zap.Error(updateErr))
		}
		return true
	}

	attempts := event.Attempts + 1
	updates := map[string]interface{}{
		"attempts":     attempts,
		"last_error":   truncateError(err),
		"available_at": now.Add(time.Duration(attempts) * r.backoff),
	}
	result := "retry"
	if attempts >= r.maxAttempts {
		updates["status"] = notifications.OutboxStatusFailed
		result = "failed"
	}
	r.metrics.CountRelayInvocation(result)
	r.logger.Warn("outbox invocation failed",
		zap.String("event_id", event.EventID),
		zap.String("notification_id", event.NotificationID),
		zap.Int("attempts", attempts),
		zap.String("result", result),
		zap.Error(err))
	if updateErr := r.db.WithContext(ctx).
		Model(&notifications.OutboxEvent{}).
		Where("event_id = ?", event.EventID).
		Updates(updates).Error; updateErr != nil {
		r.logger.Error("failed to record outbox failure",
			zap.String("event_id", event.EventID),
			zap.Error(updateErr))
	}
	return false
}

func (r *Relay) streamOnce(ctx context.Context, event notifications.OutboxEvent, notification notifications.Notification) {
	if r.stream == nil || event.StreamedAt != nil {
		return
	}
	if err := r.stream.Invoke(ctx, notification); err != nil {
		r.logger.Warn("outbox stream publish failed",
			zap.String("event_id", event.EventID),
			zap.Error(err))
		return
	}
	if err := r.db.WithContext(ctx).
		Model(&notifications.OutboxEvent{}).
		Where("event_id = ?", event.EventID).
		Update("streamed_at", r.clock().UTC()).Error; err != nil {
		r.logger.Error("failed to mark outbox event streamed",
			zap.String("event_id", event.EventID),
			zap.Error(err))
	}
}

func truncateError(err error) string {
	message := err.Error()
	if len(message) > maxErrorLength {
		return message[:maxErrorLength]
	}
	return message
}
