package push

import (
	"testing"

	"github.com/aradhanasaha/coffee-sub000/internal/notifications"
)

func TestCompose(t *testing.T) {
	actor := "actor-1"
	entity := "entity-1"

	testCases := []struct {
		name         string
		notification notifications.Notification
		actorName    string
		expectedBody string
		expectedURL  string
	}{
		{
			name:         "like",
			notification: notifications.Notification{Type: notifications.TypeLike, ActorID: &actor, EntityID: &entity},
			actorName:    "Asha",
			expectedBody: "Asha liked your coffee log",
			expectedURL:  "/logs/entity-1",
		},
		{
			name:         "follow-links-to-actor",
			notification: notifications.Notification{Type: notifications.TypeFollow, ActorID: &actor},
			actorName:    "Asha",
			expectedBody: "Asha started following you",
			expectedURL:  "/users/actor-1",
		},
		{
			name:         "save-list",
			notification: notifications.Notification{Type: notifications.TypeSaveList, ActorID: &actor, EntityID: &entity},
			actorName:    "Asha",
			expectedBody: "Asha saved your list",
			expectedURL:  "/lists/entity-1",
		},
		{
			name:         "post-without-name",
			notification: notifications.Notification{Type: notifications.TypePost, ActorID: &actor, EntityID: &entity},
			expectedBody: "Someone posted a new coffee log",
			expectedURL:  "/logs/entity-1",
		},
		{
			name:         "nudge",
			notification: notifications.Notification{Type: notifications.TypeNudge},
			expectedBody: "You haven't logged a coffee in a while. What are you drinking today?",
			expectedURL:  "/logs/new",
		},
		{
			name:         "unknown-type",
			notification: notifications.Notification{Type: notifications.Type("mystery")},
			expectedBody: "You have a new notification",
			expectedURL:  "/notifications",
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			payload := Compose(testCase.notification, testCase.actorName)
			if payload.Body != testCase.expectedBody {
				t.Fatalf("expected body %q, got %q", testCase.expectedBody, payload.Body)
			}
			if payload.URL != testCase.expectedURL {
				t.Fatalf("expected url %q, got %q", testCase.expectedURL, payload.URL)
			}
			if payload.Title == "" {
				t.Fatalf("expected a title")
			}
		})
	}
}

func TestSecretVerifier(t *testing.T) {
	if _, err := NewSecretVerifier("  "); err != ErrMissingSecret {
		t.Fatalf("expected ErrMissingSecret, got %v", err)
	}
	verifier, err := NewSecretVerifier("s3cret")
	if err != nil {
		t.Fatalf("failed to build verifier: %v", err)
	}
	testCases := []struct {
		presented string
		wantErr   bool
	}{
		{presented: "s3cret"},
		{presented: "", wantErr: true},
		{presented: "s3cre", wantErr: true},
		{presented: "S3CRET", wantErr: true},
	}
	for _, testCase := range testCases {
		err := verifier.Verify(testCase.presented)
		if testCase.wantErr != (err != nil) {
			t.Fatalf("Verify(%q) returned %v", testCase.presented, err)
		}
	}
}
