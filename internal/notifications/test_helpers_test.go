package notifications

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/aradhanasaha/coffee-sub000/internal/ids"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)

func openTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "notifications.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&Notification{}, &OutboxEvent{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func newTestWriter(t *testing.T, db *gorm.DB) *Writer {
	t.Helper()
	writer, err := NewWriter(WriterConfig{
		Database:   db,
		IDProvider: ids.NewUUIDProvider(),
		Clock:      func() time.Time { return testNow },
		Logger:     zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("failed to build writer: %v", err)
	}
	return writer
}

func countRows(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var count int64
	if err := db.Model(model).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	return count
}
