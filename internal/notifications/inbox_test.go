package notifications

import (
	"context"
	"errors"
	"testing"
)

func TestInboxListsMarksAndCounts(t *testing.T) {
	db := openTestDatabase(t)
	writer := newTestWriter(t, db)
	inbox, err := NewInbox(db)
	if err != nil {
		t.Fatalf("failed to build inbox: %v", err)
	}
	ctx := context.Background()

	first := writer.Notify(ctx, Request{RecipientID: "r", ActorID: "a", Type: "like", EntityID: "log-1"})
	writer.Notify(ctx, Request{RecipientID: "r", ActorID: "b", Type: "follow"})
	writer.Notify(ctx, Request{RecipientID: "other", ActorID: "b", Type: "follow"})

	listed, err := inbox.List(ctx, "r", ListOptions{})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 notifications for recipient, got %d", len(listed))
	}

	if err := inbox.MarkRead(ctx, "r", first.Notification.NotificationID); err != nil {
		t.Fatalf("mark read failed: %v", err)
	}
	unread, err := inbox.UnreadCount(ctx, "r")
	if err != nil {
		t.Fatalf("unread count failed: %v", err)
	}
	if unread != 1 {
		t.Fatalf("expected 1 unread, got %d", unread)
	}

	unreadOnly, err := inbox.List(ctx, "r", ListOptions{UnreadOnly: true})
	if err != nil {
		t.Fatalf("list unread failed: %v", err)
	}
	if len(unreadOnly) != 1 || unreadOnly[0].Type != TypeFollow {
		t.Fatalf("unexpected unread listing %#v", unreadOnly)
	}

	changed, err := inbox.MarkAllRead(ctx, "r")
	if err != nil {
		t.Fatalf("mark all read failed: %v", err)
	}
	if changed != 1 {
		t.Fatalf("expected 1 row changed, got %d", changed)
	}
	if count := countRows(t, db, &Notification{}); count != 3 {
		t.Fatalf("marking read must never delete rows, got %d", count)
	}
}

func TestInboxMarkReadRequiresOwnership(t *testing.T) {
	db := openTestDatabase(t)
	writer := newTestWriter(t, db)
	inbox, err := NewInbox(db)
	if err != nil {
		t.Fatalf("failed to build inbox: %v", err)
	}
	outcome := writer.Notify(context.Background(), Request{RecipientID: "owner", ActorID: "a", Type: "like"})

	err = inbox.MarkRead(context.Background(), "intruder", outcome.Notification.NotificationID)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for foreign notification, got %v", err)
	}
}
