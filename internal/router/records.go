package router

import "encoding/json"

// chatRecord is the persisted shape at chat:{room_id} (§6 Persisted layout).
// Content is stored encrypted; Router.ChatHistory decrypts on read.
type chatRecord struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// whiteboardRecord is the persisted shape at whiteboard:{room_id}.
type whiteboardRecord struct {
	EventType string          `json:"event_type"`
	UserID    string          `json:"user_id"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp"`
}
