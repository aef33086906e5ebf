package room

import (
	"context"
	"sync"

	"github.com/velahub/signalcore/internal/logging"
	"github.com/velahub/signalcore/internal/metrics"
	"go.uber.org/zap"
	"k8s.io/utils/set"
)

// Registry implements §4.D (Room Registry) and §4.E (Fan-out Engine). A
// single registry-wide mutex guards both indices (rooms, userRooms) and
// every room's membership map. The spec explicitly allows this grain
// ("a single registry-wide mutex is acceptable but discouraged") and it
// trivially satisfies the per-room broadcast ordering guarantee in §5,
// since admit/evict/broadcast for every room are already serialized
// relative to one another.
type Registry struct {
	mu        sync.Mutex
	rooms     map[string]*Room
	userRooms map[string]string
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms:     make(map[string]*Room),
		userRooms: make(map[string]string),
	}
}

// Admit implements §4.D admit. If the newcomer's user_id already appears
// elsewhere in the registry, the prior session is evicted first so I1/I2/I5
// are never violated, even transiently.
func (r *Registry) Admit(ctx context.Context, roomID, userID, username string, socket Socket, maxParticipants int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.userRooms[userID]; exists {
		r.evictLocked(ctx, userID, 1000, "Replaced by new session")
	}

	room, ok := r.rooms[roomID]
	if !ok {
		room = &Room{ID: roomID, Participants: make(map[string]*Participant), MaxParticipants: maxParticipants}
	} else if maxParticipants > 0 {
		room.MaxParticipants = maxParticipants
	}

	if len(room.Participants) >= room.effectiveMax() {
		_ = socket.Close(1000, "Room is full")
		logging.Warn(ctx, "admit refused: room at capacity", zap.String("room_id", roomID), zap.String("user_id", userID))
		return false
	}

	p := newParticipant(userID, username, socket, func(uid string) {
		r.Evict(context.Background(), uid, 1011, "write failure")
	})
	room.Participants[userID] = p
	r.rooms[roomID] = room
	r.userRooms[userID] = roomID

	metrics.RoomParticipants.WithLabelValues(roomID).Set(float64(len(room.Participants)))
	metrics.ActiveRooms.Set(float64(len(r.rooms)))

	r.broadcastLocked(roomID, userJoinedPayload(p.View()), userID)

	views := make([]ParticipantView, 0, len(room.Participants)-1)
	for uid, other := range room.Participants {
		if uid == userID {
			continue
		}
		views = append(views, other.View())
	}
	p.enqueue(participantsListPayload(views))

	return true
}

// Evict implements §4.D evict. It is idempotent: evicting an unknown
// user_id is a no-op.
func (r *Registry) Evict(ctx context.Context, userID string, closeCode int, closeReason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evictLocked(ctx, userID, closeCode, closeReason)
}

func (r *Registry) evictLocked(ctx context.Context, userID string, closeCode int, closeReason string) {
	roomID, ok := r.userRooms[userID]
	if !ok {
		return
	}
	delete(r.userRooms, userID)

	room := r.rooms[roomID]
	if room == nil {
		return
	}

	p := room.Participants[userID]
	delete(room.Participants, userID)
	username := ""
	if p != nil {
		username = p.Username
		p.close(closeCode, closeReason)
	}

	if len(room.Participants) == 0 {
		delete(r.rooms, roomID)
		metrics.ActiveRooms.Set(float64(len(r.rooms)))
		metrics.RoomParticipants.DeleteLabelValues(roomID)
		return
	}

	metrics.RoomParticipants.WithLabelValues(roomID).Set(float64(len(room.Participants)))
	metrics.ParticipantsEvicted.WithLabelValues("disconnect").Inc()
	r.broadcastLocked(roomID, userLeftPayload(userID, username), "")
}

// Snapshot implements §4.D snapshot, used by the HTTP query surface.
func (r *Registry) Snapshot(roomID string) []ParticipantView {
	r.mu.Lock()
	defer r.mu.Unlock()

	room := r.rooms[roomID]
	if room == nil {
		return nil
	}
	views := make([]ParticipantView, 0, len(room.Participants))
	for _, p := range room.Participants {
		views = append(views, p.View())
	}
	return views
}

// Contains reports whether userID currently holds a live session in roomID,
// used by the webrtc_signal relay to decide unicast-vs-drop.
func (r *Registry) Contains(roomID, userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	room := r.rooms[roomID]
	if room == nil {
		return false
	}
	_, ok := room.Participants[userID]
	return ok
}

// Username returns the current username on record for userID in roomID,
// used by the router to stamp chat records with the session's live name.
func (r *Registry) Username(roomID, userID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room := r.rooms[roomID]
	if room == nil {
		return "", false
	}
	p, ok := room.Participants[userID]
	if !ok {
		return "", false
	}
	return p.Username, true
}

// MutateAndView applies fn to the participant's own mutable flags and
// returns the resulting view, used by the router's flag-change handlers
// (§4.H video_quality_change, screen_share, audio_mute, video_mute). fn
// must not call back into the Registry.
func (r *Registry) MutateAndView(roomID, userID string, fn func(p *Participant)) (ParticipantView, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room := r.rooms[roomID]
	if room == nil {
		return ParticipantView{}, false
	}
	p, ok := room.Participants[userID]
	if !ok {
		return ParticipantView{}, false
	}
	fn(p)
	return p.View(), true
}

// RoomCount reports the number of active rooms, for diagnostics.
func (r *Registry) RoomCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// SendTo implements §4.E send_to.
func (r *Registry) SendTo(ctx context.Context, roomID, userID string, payload []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	room := r.rooms[roomID]
	if room == nil {
		return false
	}
	p, ok := room.Participants[userID]
	if !ok {
		return false
	}
	if !p.enqueue(payload) {
		r.evictLocked(ctx, userID, 1011, "send failure")
		return false
	}
	return true
}

// Broadcast implements §4.E broadcast: it delivers payload to every member
// of roomID except excludeUserID, collecting and evicting dead peers only
// after the full iteration completes so one dead peer cannot abort
// delivery to the rest.
func (r *Registry) Broadcast(ctx context.Context, roomID string, payload []byte, excludeUserID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcastLocked(roomID, payload, excludeUserID)
}

func (r *Registry) broadcastLocked(roomID string, payload []byte, excludeUserID string) {
	room := r.rooms[roomID]
	if room == nil {
		return
	}

	dead := set.New[string]()
	for uid, p := range room.Participants {
		if uid == excludeUserID {
			continue
		}
		if !p.enqueue(payload) {
			dead.Insert(uid)
		}
	}

	for _, uid := range dead.UnsortedList() {
		r.evictLocked(context.Background(), uid, 1011, "send failure")
	}
}

// CloseAll evicts every participant in every room, used during graceful
// shutdown.
func (r *Registry) CloseAll(ctx context.Context) {
	r.mu.Lock()
	userIDs := make([]string, 0, len(r.userRooms))
	for uid := range r.userRooms {
		userIDs = append(userIDs, uid)
	}
	r.mu.Unlock()

	for _, uid := range userIDs {
		r.Evict(ctx, uid, 1001, "server shutting down")
	}
}
