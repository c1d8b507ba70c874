package push

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func clientKeys(t *testing.T) Keys {
	t.Helper()
	privateKey, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate client key: %v", err)
	}
	authSecret := make([]byte, 16)
	if _, err := rand.Read(authSecret); err != nil {
		t.Fatalf("failed to generate auth secret: %v", err)
	}
	return Keys{
		P256dh: base64.RawURLEncoding.EncodeToString(privateKey.PublicKey().Bytes()),
		Auth:   base64.RawURLEncoding.EncodeToString(authSecret),
	}
}

func TestWebPushTransportClassifiesStatus(t *testing.T) {
	publicKey, privateKey, err := GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("failed to generate vapid keys: %v", err)
	}
	transport, err := NewWebPushTransport(VAPIDConfig{
		PublicKey:  publicKey,
		PrivateKey: privateKey,
		Subscriber: "ops@brewlog.example",
	}, nil)
	if err != nil {
		t.Fatalf("failed to build transport: %v", err)
	}

	testCases := []struct {
		name       string
		statusCode int
		expected   SendStatus
		wantErr    bool
	}{
		{name: "created", statusCode: http.StatusCreated, expected: SendDelivered},
		{name: "gone", statusCode: http.StatusGone, expected: SendGone},
		{name: "not-found", statusCode: http.StatusNotFound, expected: SendGone},
		{name: "rate-limited", statusCode: http.StatusTooManyRequests, expected: SendTransient, wantErr: true},
		{name: "server-error", statusCode: http.StatusInternalServerError, expected: SendTransient, wantErr: true},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("Authorization") == "" {
					t.Errorf("expected a vapid authorization header")
				}
				w.WriteHeader(testCase.statusCode)
			}))
			defer server.Close()

			result, err := transport.Send(context.Background(), Target{Endpoint: server.URL, Keys: clientKeys(t)}, []byte(`{"title":"t"}`))
			if testCase.wantErr != (err != nil) {
				t.Fatalf("unexpected error state: %v", err)
			}
			if result.Status != testCase.expected || result.StatusCode != testCase.statusCode {
				t.Fatalf("expected %s/%d, got %#v", testCase.expected, testCase.statusCode, result)
			}
		})
	}
}

func TestNewWebPushTransportRequiresKeys(t *testing.T) {
	if _, err := NewWebPushTransport(VAPIDConfig{}, nil); !errors.Is(err, ErrPushDisabled) {
		t.Fatalf("expected ErrPushDisabled, got %v", err)
	}
	result, err := DisabledTransport{}.Send(context.Background(), Target{}, nil)
	if !errors.Is(err, ErrPushDisabled) || result.Status != SendTransient {
		t.Fatalf("disabled transport must fail transiently, got %#v %v", result, err)
	}
}
