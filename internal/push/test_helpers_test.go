package push

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aradhanasaha/coffee-sub000/internal/ids"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)

func openTestStore(t *testing.T) (*gorm.DB, *SubscriptionStore) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "push.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&Subscription{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	store, err := NewSubscriptionStore(db, ids.NewUUIDProvider(), func() time.Time { return testNow })
	if err != nil {
		t.Fatalf("failed to build store: %v", err)
	}
	return db, store
}

func registration(endpoint string) Registration {
	return Registration{
		Endpoint: endpoint,
		Keys:     RegistrationKeys{P256dh: "p256dh-" + endpoint, Auth: "auth-" + endpoint},
	}
}

type scriptedResponse struct {
	result SendResult
	err    error
	block  bool
}

type scriptedTransport struct {
	mu        sync.Mutex
	responses map[string]scriptedResponse
	payloads  [][]byte
}

func (s *scriptedTransport) Send(ctx context.Context, target Target, payload []byte) (SendResult, error) {
	s.mu.Lock()
	s.payloads = append(s.payloads, payload)
	response, ok := s.responses[target.Endpoint]
	s.mu.Unlock()
	if !ok {
		return SendResult{Status: SendDelivered, StatusCode: 201}, nil
	}
	if response.block {
		<-ctx.Done()
		return SendResult{Status: SendTransient}, ctx.Err()
	}
	return response.result, response.err
}

type staticNames map[string]string

func (n staticNames) DisplayNames(_ context.Context, userIDs []string) (map[string]string, error) {
	result := map[string]string{}
	for _, id := range userIDs {
		if name, ok := n[id]; ok {
			result[id] = name
		}
	}
	return result, nil
}
