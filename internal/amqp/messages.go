package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// PushMessage asks the push worker to deliver one notification to a device.
// LogID points at the notification_logs row the worker marks sent or failed.
type PushMessage struct {
	LogID     int64     `json:"log_id"`
	UserID    int64     `json:"user_id"`
	Token     string    `json:"token"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Category  string    `json:"category"`
	Timestamp time.Time `json:"timestamp"`
}

// NewPushMessage creates a push message stamped with the current time.
func NewPushMessage(logID, userID int64, token, title, body, category string) *PushMessage {
	return &PushMessage{
		LogID:     logID,
		UserID:    userID,
		Token:     token,
		Title:     title,
		Body:      body,
		Category:  category,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *PushMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// PushMessageFromJSON decodes and validates a message body.
func PushMessageFromJSON(data []byte) (*PushMessage, error) {
	var msg PushMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.LogID <= 0 {
		return nil, errors.New("push message without log id")
	}
	return &msg, nil
}
