// Package router implements the Message Router (§4.H): it dispatches
// inbound socket frames by their "type" field, mutates participant state in
// the registry on behalf of the authenticated sender only, persists chat
// and whiteboard history through the KV store, and fans frames back out
// through the registry. A handler failure or an unrecognized type is logged
// and never tears down the session.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/velahub/signalcore/internal/cipher"
	"github.com/velahub/signalcore/internal/kvstore"
	"github.com/velahub/signalcore/internal/logging"
	"github.com/velahub/signalcore/internal/metrics"
	"github.com/velahub/signalcore/internal/room"
)

const (
	maxChatHistory       = 100
	maxWhiteboardHistory = 1000
)

// Router dispatches inbound frames for one process-wide registry. A single
// Router instance is shared across every session.
type Router struct {
	registry *room.Registry
	store    kvstore.Store
	cipher   *cipher.ChatCipher
}

// New builds a Router. store may be a kvstore.NewMemoryStore() fallback;
// both implementations satisfy the same degrade-on-failure contract.
func New(registry *room.Registry, store kvstore.Store, chatCipher *cipher.ChatCipher) *Router {
	return &Router{registry: registry, store: store, cipher: chatCipher}
}

type inboundEnvelope struct {
	Type string `json:"type"`
}

// Route parses raw as a JSON frame and dispatches it per §4.H. roomID and
// userID come from the authenticated session, never from the frame itself.
func (r *Router) Route(ctx context.Context, roomID, userID string, raw []byte) {
	var env inboundEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		logging.Warn(ctx, "router: malformed frame, dropping", zap.Error(err))
		return
	}

	switch env.Type {
	case "webrtc_signal":
		r.handleSignal(ctx, roomID, userID, raw)
	case "chat_message":
		r.handleChatMessage(ctx, roomID, userID, raw)
	case "whiteboard_event":
		r.handleWhiteboardEvent(ctx, roomID, userID, raw)
	case "file_share":
		r.handleFileShare(ctx, roomID, userID, raw)
	case "video_quality_change":
		r.handleVideoQualityChange(ctx, roomID, userID, raw)
	case "screen_share":
		r.handleScreenShare(ctx, roomID, userID, raw)
	case "audio_mute":
		r.handleAudioMute(ctx, roomID, userID, raw)
	case "video_mute":
		r.handleVideoMute(ctx, roomID, userID, raw)
	default:
		logging.Warn(ctx, "router: unknown frame type, ignoring", zap.String("type", env.Type))
	}
}

type signalFrame struct {
	ToUser string          `json:"to_user"`
	Data   json.RawMessage `json:"data"`
}

type signalData struct {
	Type string `json:"type"`
}

// handleSignal implements the WebRTC relay contract: unicast if to_user
// names a peer currently in the room, drop (not broadcast) if to_user names
// someone not present, broadcast-minus-sender if to_user is absent. The
// backend never inspects or rewrites the signal's type or data, except to
// read data.type (as the relay's own signal_type label) for routing metrics.
func (r *Router) handleSignal(ctx context.Context, roomID, userID string, raw []byte) {
	var f signalFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		logging.Warn(ctx, "router: malformed webrtc_signal, dropping", zap.Error(err))
		return
	}

	var d signalData
	if err := json.Unmarshal(f.Data, &d); err != nil {
		logging.Warn(ctx, "router: malformed webrtc_signal data, dropping", zap.Error(err))
		return
	}

	payload := signalPayload(d.Type, userID, f.Data)

	if f.ToUser != "" {
		if !r.registry.Contains(roomID, f.ToUser) {
			logging.Warn(ctx, "router: webrtc_signal target not in room, dropping",
				zap.String("to_user", f.ToUser), zap.String("room_id", roomID))
			return
		}
		r.registry.SendTo(ctx, roomID, f.ToUser, payload)
		metrics.SignalsRelayed.WithLabelValues(d.Type, "unicast").Inc()
		return
	}

	r.registry.Broadcast(ctx, roomID, payload, userID)
	metrics.SignalsRelayed.WithLabelValues(d.Type, "broadcast").Inc()
}

type chatFrame struct {
	Content string `json:"content"`
}

func chatKey(roomID string) string { return fmt.Sprintf("chat:%s", roomID) }

func (r *Router) handleChatMessage(ctx context.Context, roomID, userID string, raw []byte) {
	var f chatFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		logging.Warn(ctx, "router: malformed chat_message, dropping", zap.Error(err))
		return
	}
	content := strings.TrimSpace(f.Content)
	if content == "" {
		logging.Warn(ctx, "router: empty chat_message content, dropping")
		return
	}

	username, ok := r.registry.Username(roomID, userID)
	if !ok {
		return
	}

	ciphertext, err := r.cipher.EncryptNonEmpty(content)
	if err != nil {
		logging.Error(ctx, "router: failed to encrypt chat content", zap.Error(err))
		return
	}

	record := chatRecord{
		ID:        uuid.NewString(),
		UserID:    userID,
		Username:  username,
		Content:   ciphertext,
		Timestamp: timestamp(),
	}
	if err := r.store.PushTrim(ctx, chatKey(roomID), string(mustMarshal(record)), maxChatHistory); err != nil {
		logging.Error(ctx, "router: failed to persist chat message", zap.Error(err))
	}

	metrics.ChatMessagesTotal.WithLabelValues(roomID).Inc()
	r.registry.Broadcast(ctx, roomID, chatMessagePayload(record.ID, userID, username, content), "")
}

type whiteboardFrame struct {
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
}

func whiteboardKey(roomID string) string { return fmt.Sprintf("whiteboard:%s", roomID) }

func (r *Router) handleWhiteboardEvent(ctx context.Context, roomID, userID string, raw []byte) {
	var f whiteboardFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		logging.Warn(ctx, "router: malformed whiteboard_event, dropping", zap.Error(err))
		return
	}

	record := whiteboardRecord{
		EventType: f.EventType,
		UserID:    userID,
		Data:      f.Data,
		Timestamp: timestamp(),
	}
	if err := r.store.PushTrim(ctx, whiteboardKey(roomID), string(mustMarshal(record)), maxWhiteboardHistory); err != nil {
		logging.Error(ctx, "router: failed to persist whiteboard event", zap.Error(err))
	}

	r.registry.Broadcast(ctx, roomID, whiteboardEventPayload(f.EventType, userID, f.Data), userID)
}

type fileShareFrame struct {
	FileInfo json.RawMessage `json:"file_info"`
}

func (r *Router) handleFileShare(ctx context.Context, roomID, userID string, raw []byte) {
	var f fileShareFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		logging.Warn(ctx, "router: malformed file_share, dropping", zap.Error(err))
		return
	}
	r.registry.Broadcast(ctx, roomID, fileSharePayload(userID, f.FileInfo), "")
}

type videoQualityFrame struct {
	VideoQuality string `json:"video_quality"`
}

func (r *Router) handleVideoQualityChange(ctx context.Context, roomID, userID string, raw []byte) {
	var f videoQualityFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		logging.Warn(ctx, "router: malformed video_quality_change, dropping", zap.Error(err))
		return
	}
	if _, ok := r.registry.MutateAndView(roomID, userID, func(p *room.Participant) {
		p.SetVideoQuality(f.VideoQuality)
	}); !ok {
		return
	}
	r.registry.Broadcast(ctx, roomID, videoQualityChangedPayload(userID, f.VideoQuality), "")
}

type screenShareFrame struct {
	IsScreenSharing bool `json:"is_screen_sharing"`
}

func (r *Router) handleScreenShare(ctx context.Context, roomID, userID string, raw []byte) {
	var f screenShareFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		logging.Warn(ctx, "router: malformed screen_share, dropping", zap.Error(err))
		return
	}
	if _, ok := r.registry.MutateAndView(roomID, userID, func(p *room.Participant) {
		p.SetScreenSharing(f.IsScreenSharing)
	}); !ok {
		return
	}
	r.registry.Broadcast(ctx, roomID, screenShareStatusPayload(userID, f.IsScreenSharing), "")
}

type audioMuteFrame struct {
	IsMuted bool `json:"is_muted"`
}

func (r *Router) handleAudioMute(ctx context.Context, roomID, userID string, raw []byte) {
	var f audioMuteFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		logging.Warn(ctx, "router: malformed audio_mute, dropping", zap.Error(err))
		return
	}
	if _, ok := r.registry.MutateAndView(roomID, userID, func(p *room.Participant) {
		p.SetAudioMuted(f.IsMuted)
	}); !ok {
		return
	}
	r.registry.Broadcast(ctx, roomID, audioMuteStatusPayload(userID, f.IsMuted), "")
}

type videoMuteFrame struct {
	IsMuted bool `json:"is_muted"`
}

func (r *Router) handleVideoMute(ctx context.Context, roomID, userID string, raw []byte) {
	var f videoMuteFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		logging.Warn(ctx, "router: malformed video_mute, dropping", zap.Error(err))
		return
	}
	if _, ok := r.registry.MutateAndView(roomID, userID, func(p *room.Participant) {
		p.SetVideoMuted(f.IsMuted)
	}); !ok {
		return
	}
	r.registry.Broadcast(ctx, roomID, videoMuteStatusPayload(userID, f.IsMuted), "")
}

// ChatEntry is the decrypted shape returned by the HTTP history endpoint.
type ChatEntry struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// ChatHistory returns up to limit of the most recent chat records for
// roomID, oldest-first, with content decrypted (§4.I GET .../messages).
func (r *Router) ChatHistory(ctx context.Context, roomID string, limit int64) ([]ChatEntry, error) {
	raw, err := r.store.LRange(ctx, chatKey(roomID), limit)
	if err != nil {
		return nil, fmt.Errorf("load chat history: %w", err)
	}
	entries := make([]ChatEntry, 0, len(raw))
	for _, item := range raw {
		var record chatRecord
		if err := json.Unmarshal([]byte(item), &record); err != nil {
			logging.Warn(ctx, "router: skipping corrupt chat record", zap.Error(err))
			continue
		}
		entries = append(entries, ChatEntry{
			ID:        record.ID,
			UserID:    record.UserID,
			Username:  record.Username,
			Content:   r.cipher.Decrypt(ctx, record.Content),
			Timestamp: record.Timestamp,
		})
	}
	return entries, nil
}

// WhiteboardEntry is the shape returned by the HTTP whiteboard endpoint.
type WhiteboardEntry struct {
	EventType string          `json:"event_type"`
	UserID    string          `json:"user_id"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp"`
}

// WhiteboardHistory returns the persisted whiteboard events for roomID,
// oldest-first (§4.I GET .../whiteboard).
func (r *Router) WhiteboardHistory(ctx context.Context, roomID string) ([]WhiteboardEntry, error) {
	raw, err := r.store.LRange(ctx, whiteboardKey(roomID), maxWhiteboardHistory)
	if err != nil {
		return nil, fmt.Errorf("load whiteboard history: %w", err)
	}
	entries := make([]WhiteboardEntry, 0, len(raw))
	for _, item := range raw {
		var record whiteboardRecord
		if err := json.Unmarshal([]byte(item), &record); err != nil {
			logging.Warn(ctx, "router: skipping corrupt whiteboard record", zap.Error(err))
			continue
		}
		entries = append(entries, WhiteboardEntry{
			EventType: record.EventType,
			UserID:    record.UserID,
			Data:      record.Data,
			Timestamp: record.Timestamp,
		})
	}
	return entries, nil
}
