package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aradhanasaha/coffee-sub000/internal/notifications"
	"github.com/aradhanasaha/coffee-sub000/internal/push"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const defaultWebhookTimeout = 15 * time.Second

var (
	errMissingWebhookURL    = errors.New("delivery: webhook url is required")
	errMissingWebhookSecret = errors.New("delivery: webhook secret is required")
	errMissingDispatcher    = errors.New("delivery: dispatcher is required")
)

// Invoker hands one committed notification to whatever delivers it.
type Invoker interface {
	Invoke(ctx context.Context, notification notifications.Notification) error
}

// InvokerFunc adapts a function to Invoker.
type InvokerFunc func(ctx context.Context, notification notifications.Notification) error

func (f InvokerFunc) Invoke(ctx context.Context, notification notifications.Notification) error {
	return f(ctx, notification)
}

// WebhookEvent is the database-webhook shaped body posted to the dispatch endpoint.
type WebhookEvent struct {
	Type   string                     `json:"type"`
	Table  string                     `json:"table"`
	Record notifications.Notification `json:"record"`
}

// NewInsertEvent wraps a notification as an insert event on the notifications table.
func NewInsertEvent(notification notifications.Notification) WebhookEvent {
	return WebhookEvent{Type: "INSERT", Table: notifications.Notification{}.TableName(), Record: notification}
}

// WebhookInvoker posts insert events to a remote dispatch endpoint.
type WebhookInvoker struct {
	client *resty.Client
	url    string
	logger *zap.Logger
}

func NewWebhookInvoker(url, secret string, timeout time.Duration, logger *zap.Logger) (*WebhookInvoker, error) {
	if url == "" {
		return nil, errMissingWebhookURL
	}
	if secret == "" {
		return nil, errMissingWebhookSecret
	}
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "brewlog-relay/1").
		SetHeader(push.DispatchSecretHeader, secret)
	client.OnAfterResponse(func(_ *resty.Client, response *resty.Response) error {
		logger.Debug("dispatch webhook response",
			zap.Int("status", response.StatusCode()),
			zap.Duration("elapsed", response.Time()))
		return nil
	})
	return &WebhookInvoker{client: client, url: url, logger: logger}, nil
}

func (w *WebhookInvoker) Invoke(ctx context.Context, notification notifications.Notification) error {
	response, err := w.client.R().
		SetContext(ctx).
		SetBody(NewInsertEvent(notification)).
		Post(w.url)
	if err != nil {
		return fmt.Errorf("delivery: webhook request failed: %w", err)
	}
	if !response.IsSuccess() {
		return fmt.Errorf("delivery: webhook returned %d: %s", response.StatusCode(), truncateBody(response.String()))
	}
	return nil
}

// Dispatcher is satisfied by push.Dispatcher.
type Dispatcher interface {
	Dispatch(ctx context.Context, notification notifications.Notification) (push.Report, error)
}

// LocalInvoker calls the push dispatcher in process.
type LocalInvoker struct {
	dispatcher Dispatcher
	logger     *zap.Logger
}

func NewLocalInvoker(dispatcher Dispatcher, logger *zap.Logger) (*LocalInvoker, error) {
	if dispatcher == nil {
		return nil, errMissingDispatcher
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalInvoker{dispatcher: dispatcher, logger: logger}, nil
}

func (l *LocalInvoker) Invoke(ctx context.Context, notification notifications.Notification) error {
	report, err := l.dispatcher.Dispatch(ctx, notification)
	if err != nil {
		return err
	}
	l.logger.Debug("push dispatch finished",
		zap.String("notification_id", notification.NotificationID),
		zap.Int("delivered", report.Count(push.OutcomeDelivered)),
		zap.Int("pruned", report.Count(push.OutcomePruned)),
		zap.Int("failed", report.Count(push.OutcomeFailed)))
	return nil
}

func truncateBody(body string) string {
	const maxBody = 256
	if len(body) <= maxBody {
		return body
	}
	return body[:maxBody]
}
