package room

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
		// All payloads here are built from known-serializable types.
		panic(err)
	}
	return data
}

func userJoinedPayload(p ParticipantView) []byte {
	return mustMarshal(struct {
		Type      string `json:"type"`
		UserID    string `json:"user_id"`
		Username  string `json:"username"`
		Timestamp string `json:"timestamp"`
	}{"user_joined", p.UserID, p.Username, timestamp()})
}

func userLeftPayload(userID, username string) []byte {
	return mustMarshal(struct {
		Type      string `json:"type"`
		UserID    string `json:"user_id"`
		Username  string `json:"username"`
		Timestamp string `json:"timestamp"`
	}{"user_left", userID, username, timestamp()})
}

// participantListEntry is the participants_list snapshot shape: user_id,
// username, video_quality, is_screen_sharing, is_audio_muted, is_video_muted.
// Unlike ParticipantView, it omits joined_at, which is only ever surfaced
// through the HTTP room snapshot, not this socket frame.
type participantListEntry struct {
	UserID          string `json:"user_id"`
	Username        string `json:"username"`
	VideoQuality    string `json:"video_quality"`
	IsScreenSharing bool   `json:"is_screen_sharing"`
	IsAudioMuted    bool   `json:"is_audio_muted"`
	IsVideoMuted    bool   `json:"is_video_muted"`
}

func participantsListPayload(views []ParticipantView) []byte {
	entries := make([]participantListEntry, len(views))
	for i, v := range views {
		entries[i] = participantListEntry{
			UserID:          v.UserID,
			Username:        v.Username,
			VideoQuality:    v.VideoQuality,
			IsScreenSharing: v.IsScreenSharing,
			IsAudioMuted:    v.IsAudioMuted,
			IsVideoMuted:    v.IsVideoMuted,
		}
	}
	return mustMarshal(struct {
		Type         string                 `json:"type"`
		Participants []participantListEntry `json:"participants"`
		Timestamp    string                 `json:"timestamp"`
	}{"participants_list", entries, timestamp()})
}
