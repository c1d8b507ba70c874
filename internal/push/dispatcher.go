package push

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/aradhanasaha/coffee-sub000/internal/metrics"
	"github.com/aradhanasaha/coffee-sub000/internal/notifications"
	"github.com/aradhanasaha/coffee-sub000/internal/serviceerror"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	opDispatch = "push.dispatch"

	defaultSendTimeout    = 10 * time.Second
	defaultMaxConcurrency = 8
	endpointLogLength     = 50
)

var (
	errMissingSubscriptions = errors.New("push: subscription repository is required")
	errMissingTransport     = errors.New("push: transport is required")
)

// Outcome is the final state of one subscription after a dispatch.
type Outcome string

const (
	OutcomeDelivered Outcome = "delivered"
	OutcomePruned    Outcome = "pruned"
	OutcomeFailed    Outcome = "failed"
)

// Result reports what happened to one subscription.
type Result struct {
	SubscriptionID string  `json:"subscription_id"`
	Outcome        Outcome `json:"outcome"`
	StatusCode     int     `json:"status_code,omitempty"`
	Error          string  `json:"error,omitempty"`
}

// Report aggregates the per-subscription results of one dispatch.
type Report struct {
	NotificationID string   `json:"notification_id"`
	RecipientID    string   `json:"recipient_id"`
	Results        []Result `json:"results"`
}

// Count returns how many results ended with outcome.
func (r Report) Count(outcome Outcome) int {
	count := 0
	for _, result := range r.Results {
		if result.Outcome == outcome {
			count++
		}
	}
	return count
}

// SubscriptionRepository is the slice of the subscription store the dispatcher needs.
type SubscriptionRepository interface {
	ForUser(ctx context.Context, userID string) ([]Subscription, error)
	Delete(ctx context.Context, subscriptionID string) error
}

// NameResolver batch-resolves display names.
type NameResolver interface {
	DisplayNames(ctx context.Context, userIDs []string) (map[string]string, error)
}

type DispatcherConfig struct {
	Subscriptions  SubscriptionRepository
	Transport      Transport
	Names          NameResolver
	SendTimeout    time.Duration
	MaxConcurrency int
	Logger         *zap.Logger
	Metrics        *metrics.Collectors
}

// Dispatcher fans a notification out to every subscription of its recipient.
type Dispatcher struct {
	subscriptions  SubscriptionRepository
	transport      Transport
	names          NameResolver
	sendTimeout    time.Duration
	maxConcurrency int
	logger         *zap.Logger
	metrics        *metrics.Collectors
}

func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	if cfg.Subscriptions == nil {
		return nil, errMissingSubscriptions
	}
	if cfg.Transport == nil {
		return nil, errMissingTransport
	}
	sendTimeout := cfg.SendTimeout
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}
	maxConcurrency := cfg.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = defaultMaxConcurrency
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		subscriptions:  cfg.Subscriptions,
		transport:      cfg.Transport,
		names:          cfg.Names,
		sendTimeout:    sendTimeout,
		maxConcurrency: maxConcurrency,
		logger:         logger,
		metrics:        cfg.Metrics,
	}, nil
}

// Dispatch sends the notification to each of the recipient's subscriptions concurrently.
// Individual send failures are reported in the Report; only a failure to load the
// subscriptions is returned as an error.
func (d *Dispatcher) Dispatch(ctx context.Context, notification notifications.Notification) (Report, error) {
	report := Report{
		NotificationID: notification.NotificationID,
		RecipientID:    notification.RecipientID,
		Results:        []Result{},
	}

	subscriptions, err := d.subscriptions.ForUser(ctx, notification.RecipientID)
	if err != nil {
		return report, serviceerror.New(opDispatch, "subscription_query_failed", err)
	}
	if len(subscriptions) == 0 {
		return report, nil
	}

	body, err := json.Marshal(Compose(notification, d.actorName(ctx, notification)))
	if err != nil {
		return report, serviceerror.New(opDispatch, "payload_encode_failed", err)
	}

	results := make([]Result, len(subscriptions))
	var group errgroup.Group
	group.SetLimit(d.maxConcurrency)
	for index, subscription := range subscriptions {
		group.Go(func() error {
			results[index] = d.sendOne(ctx, subscription, body)
			return nil
		})
	}
	_ = group.Wait()

	for _, result := range results {
		d.metrics.CountPushResult(string(result.Outcome))
	}
	report.Results = results
	return report, nil
}

func (d *Dispatcher) sendOne(ctx context.Context, subscription Subscription, body []byte) Result {
	result := Result{SubscriptionID: subscription.SubscriptionID}
	endpoint := truncate(subscription.Endpoint, endpointLogLength)

	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	sent, err := d.transport.Send(sendCtx, Target{
		Endpoint: subscription.Endpoint,
		Keys:     Keys{P256dh: subscription.P256dh, Auth: subscription.Auth},
	}, body)
	cancel()
	result.StatusCode = sent.StatusCode

	if err == nil && sent.Status == SendDelivered {
		result.Outcome = OutcomeDelivered
		return result
	}
	if err == nil && sent.Status == SendGone {
		if deleteErr := d.subscriptions.Delete(ctx, subscription.SubscriptionID); deleteErr != nil {
			d.logger.Warn("failed to prune push subscription",
				zap.String("subscription_id", subscription.SubscriptionID),
				zap.Error(deleteErr))
			result.Outcome = OutcomeFailed
			result.Error = deleteErr.Error()
			return result
		}
		d.logger.Info("pruned expired push subscription",
			zap.String("subscription_id", subscription.SubscriptionID),
			zap.String("endpoint", endpoint),
			zap.Int("status_code", sent.StatusCode))
		result.Outcome = OutcomePruned
		return result
	}

	if err == nil {
		err = errors.New("push: transport reported failure")
	}
	d.logger.Warn("push send failed",
		zap.String("subscription_id", subscription.SubscriptionID),
		zap.String("endpoint", endpoint),
		zap.Int("status_code", sent.StatusCode),
		zap.Error(err))
	result.Outcome = OutcomeFailed
	result.Error = err.Error()
	return result
}

func (d *Dispatcher) actorName(ctx context.Context, notification notifications.Notification) string {
	actorID := notification.Actor()
	if actorID == "" || d.names == nil {
		return ""
	}
	names, err := d.names.DisplayNames(ctx, []string{actorID})
	if err != nil {
		d.logger.Warn("actor name lookup failed",
			zap.String("actor_id", actorID),
			zap.Error(err))
		return ""
	}
	return names[actorID]
}

func truncate(value string, length int) string {
	if len(value) <= length {
		return value
	}
	return value[:length]
}
