package push

import (
	"fmt"
	"strings"

	"github.com/aradhanasaha/coffee-sub000/internal/notifications"
)

const fallbackActorName = "Someone"

// Payload is the JSON document delivered to the service worker.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url"`
	Tag   string `json:"tag"`
}

// Compose renders the human-readable payload for a notification. Unknown types get
// generic copy instead of an error.
func Compose(notification notifications.Notification, actorName string) Payload {
	actor := strings.TrimSpace(actorName)
	if actor == "" {
		actor = fallbackActorName
	}
	payload := Payload{Title: "Brewlog", Tag: "brewlog-" + notification.NotificationID}

	switch notification.Type {
	case notifications.TypeLike:
		payload.Body = fmt.Sprintf("%s liked your coffee log", actor)
		payload.URL = "/logs/" + notification.Entity()
	case notifications.TypeFollow:
		payload.Body = fmt.Sprintf("%s started following you", actor)
		payload.URL = "/users/" + notification.Actor()
	case notifications.TypeSaveList:
		payload.Body = fmt.Sprintf("%s saved your list", actor)
		payload.URL = "/lists/" + notification.Entity()
	case notifications.TypePost:
		payload.Body = fmt.Sprintf("%s posted a new coffee log", actor)
		payload.URL = "/logs/" + notification.Entity()
	case notifications.TypeNudge:
		payload.Title = "Time for a coffee?"
		payload.Body = "You haven't logged a coffee in a while. What are you drinking today?"
		payload.URL = "/logs/new"
	default:
		payload.Body = "You have a new notification"
		payload.URL = "/notifications"
	}
	return payload
}
