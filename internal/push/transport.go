package push

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// SendStatus classifies a single push attempt.
type SendStatus string

const (
	// SendDelivered means the push service accepted the message.
	SendDelivered SendStatus = "delivered"
	// SendGone means the endpoint will never accept messages again.
	SendGone SendStatus = "gone"
	// SendTransient means the attempt failed but may succeed later.
	SendTransient SendStatus = "transient"
)

// ErrPushDisabled indicates no VAPID keys are configured.
var ErrPushDisabled = errors.New("push: vapid keys are not configured")

// Keys are the client keys of a subscription.
type Keys struct {
	P256dh string
	Auth   string
}

// Target is one delivery endpoint.
type Target struct {
	Endpoint string
	Keys     Keys
}

// SendResult is the transport's verdict on one attempt.
type SendResult struct {
	Status     SendStatus
	StatusCode int
}

// Transport delivers an encrypted payload to one endpoint. A returned error always
// accompanies a transient result.
type Transport interface {
	Send(ctx context.Context, target Target, payload []byte) (SendResult, error)
}

// VAPIDConfig holds the application server identity.
type VAPIDConfig struct {
	PublicKey  string
	PrivateKey string
	Subscriber string
	TTLSeconds int
}

// Enabled reports whether both keys are present.
func (c VAPIDConfig) Enabled() bool {
	return strings.TrimSpace(c.PublicKey) != "" && strings.TrimSpace(c.PrivateKey) != ""
}

// WebPushTransport sends through the Web Push protocol with VAPID authentication.
type WebPushTransport struct {
	options webpush.Options
}

func NewWebPushTransport(cfg VAPIDConfig, client *http.Client) (*WebPushTransport, error) {
	if !cfg.Enabled() {
		return nil, ErrPushDisabled
	}
	ttl := cfg.TTLSeconds
	if ttl <= 0 {
		ttl = 60 * 60 * 24
	}
	options := webpush.Options{
		Subscriber:      cfg.Subscriber,
		VAPIDPublicKey:  cfg.PublicKey,
		VAPIDPrivateKey: cfg.PrivateKey,
		TTL:             ttl,
		Urgency:         webpush.UrgencyNormal,
	}
	if client != nil {
		options.HTTPClient = client
	}
	return &WebPushTransport{options: options}, nil
}

func (t *WebPushTransport) Send(ctx context.Context, target Target, payload []byte) (SendResult, error) {
	subscription := &webpush.Subscription{
		Endpoint: target.Endpoint,
		Keys: webpush.Keys{
			P256dh: target.Keys.P256dh,
			Auth:   target.Keys.Auth,
		},
	}
	options := t.options
	response, err := webpush.SendNotificationWithContext(ctx, payload, subscription, &options)
	if err != nil {
		return SendResult{Status: SendTransient}, err
	}
	defer response.Body.Close()

	switch {
	case response.StatusCode >= 200 && response.StatusCode < 300:
		return SendResult{Status: SendDelivered, StatusCode: response.StatusCode}, nil
	case response.StatusCode == http.StatusGone || response.StatusCode == http.StatusNotFound:
		return SendResult{Status: SendGone, StatusCode: response.StatusCode}, nil
	default:
		body, _ := io.ReadAll(io.LimitReader(response.Body, 512))
		return SendResult{Status: SendTransient, StatusCode: response.StatusCode},
			fmt.Errorf("push: unexpected status %d: %s", response.StatusCode, strings.TrimSpace(string(body)))
	}
}

// DisabledTransport fails every attempt transiently so subscriptions survive until keys are configured.
type DisabledTransport struct{}

func (DisabledTransport) Send(context.Context, Target, []byte) (SendResult, error) {
	return SendResult{Status: SendTransient}, ErrPushDisabled
}

// GenerateVAPIDKeys creates a new application server key pair.
func GenerateVAPIDKeys() (publicKey, privateKey string, err error) {
	privateKey, publicKey, err = webpush.GenerateVAPIDKeys()
	return publicKey, privateKey, err
}
