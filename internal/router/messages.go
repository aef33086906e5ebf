package router

import (
	"encoding/json"
	"time"
)

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		// Every payload built here comes from known-serializable fields.
		panic(err)
	}
	return data
}

func signalPayload(signalType, fromUser string, data json.RawMessage) []byte {
	return mustMarshal(struct {
		Type       string          `json:"type"`
		SignalType string          `json:"signal_type"`
		FromUser   string          `json:"from_user"`
		Data       json.RawMessage `json:"data"`
		Timestamp  string          `json:"timestamp"`
	}{"webrtc_signal", signalType, fromUser, data, timestamp()})
}

func chatMessagePayload(id, userID, username, content string) []byte {
	return mustMarshal(struct {
		Type      string `json:"type"`
		ID        string `json:"id"`
		UserID    string `json:"user_id"`
		Username  string `json:"username"`
		Content   string `json:"content"`
		Timestamp string `json:"timestamp"`
	}{"chat_message", id, userID, username, content, timestamp()})
}

func whiteboardEventPayload(eventType, userID string, data json.RawMessage) []byte {
	return mustMarshal(struct {
		Type      string          `json:"type"`
		EventType string          `json:"event_type"`
		UserID    string          `json:"user_id"`
		Data      json.RawMessage `json:"data"`
		Timestamp string          `json:"timestamp"`
	}{"whiteboard_event", eventType, userID, data, timestamp()})
}

func fileSharePayload(userID string, fileInfo json.RawMessage) []byte {
	return mustMarshal(struct {
		Type      string          `json:"type"`
		FileInfo  json.RawMessage `json:"file_info"`
		UserID    string          `json:"user_id"`
		Timestamp string          `json:"timestamp"`
	}{"file_share", fileInfo, userID, timestamp()})
}

func videoQualityChangedPayload(userID, quality string) []byte {
	return mustMarshal(struct {
		Type         string `json:"type"`
		UserID       string `json:"user_id"`
		VideoQuality string `json:"video_quality"`
		Timestamp    string `json:"timestamp"`
	}{"video_quality_changed", userID, quality, timestamp()})
}

func screenShareStatusPayload(userID string, sharing bool) []byte {
	return mustMarshal(struct {
		Type            string `json:"type"`
		UserID          string `json:"user_id"`
		IsScreenSharing bool   `json:"is_screen_sharing"`
		Timestamp       string `json:"timestamp"`
	}{"screen_share_status", userID, sharing, timestamp()})
}

func audioMuteStatusPayload(userID string, muted bool) []byte {
	return mustMarshal(struct {
		Type      string `json:"type"`
		UserID    string `json:"user_id"`
		IsMuted   bool   `json:"is_muted"`
		Timestamp string `json:"timestamp"`
	}{"audio_mute_status", userID, muted, timestamp()})
}

func videoMuteStatusPayload(userID string, muted bool) []byte {
	return mustMarshal(struct {
		Type      string `json:"type"`
		UserID    string `json:"user_id"`
		IsMuted   bool   `json:"is_muted"`
		Timestamp string `json:"timestamp"`
	}{"video_mute_status", userID, muted, timestamp()})
}
