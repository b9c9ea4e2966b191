package models

import "time"

// Keys a push payload uses to reference its target.
const (
	DataKeyPostID         = "postId"
	DataKeyConversationID = "conversationId"
)

// PushMessage is a foreground message as handed over by the push provider.
type PushMessage struct {
	Title string            `json:"title,omitempty"`
	Body  string            `json:"body,omitempty"`
	Data  map[string]string `json:"data,omitempty"`
}

// NotificationRecord is the in-app copy of a delivered push notification.
type NotificationRecord struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data"`
	Read  bool              `json:"read"`
	Date  time.Time         `json:"date"`
}
