// Package room implements the Connection Manager: the in-memory room
// registry and fan-out engine that hold every participant's live
// bidirectional socket. It owns concurrent mutable state (rooms ×
// participants × sockets) and the presence broadcasts (user_joined,
// user_left, participants_list) that accompany membership changes.
package room

import (
	"sync"
	"time"
)

const (
	// DefaultMaxParticipants is used when a room's descriptor does not
	// specify max_participants.
	DefaultMaxParticipants = 10

	// sendBufferSize bounds the per-participant outbound queue. A full
	// buffer is treated the same as a write failure (§4.E).
	sendBufferSize = 32
)

// Socket is the minimal write-side contract the registry depends on. The
// transport package's Client satisfies this by wrapping a
// *gorilla/websocket.Conn; tests use an in-memory fake.
type Socket interface {
	// WriteMessage writes one framed text payload. An error means the
	// connection is no longer usable.
	WriteMessage(data []byte) error
	// Close closes the connection with a WebSocket close code and reason.
	Close(code int, reason string) error
}

// ParticipantView is the externally-visible snapshot of a Participant,
// used both for the participants_list socket frame and the HTTP room
// snapshot (§4.D snapshot, §4.I GET /rooms/{id}).
type ParticipantView struct {
	UserID          string    `json:"user_id"`
	Username        string    `json:"username"`
	JoinedAt        time.Time `json:"joined_at"`
	VideoQuality    string    `json:"video_quality"`
	IsScreenSharing bool      `json:"is_screen_sharing"`
	IsAudioMuted    bool      `json:"is_audio_muted"`
	IsVideoMuted    bool      `json:"is_video_muted"`
}

// Participant is a single authenticated user's live session within one
// room (§3). Flags are mutated only by the Message Router on behalf of
// this participant; peers cannot reach another participant's fields.
type Participant struct {
	UserID   string
	Username string
	JoinedAt time.Time

	mu              sync.RWMutex
	videoQuality    string
	isScreenSharing bool
	isAudioMuted    bool
	isVideoMuted    bool

	socket Socket
	send   chan []byte
	closed chan struct{}
	once   sync.Once

	// onWriteFailure is invoked at most once, from the writer goroutine, if
	// a queued frame fails to write. It asynchronously triggers eviction
	// (§4.E dead-peer reaping) since the writer runs independently of any
	// in-flight broadcast.
	onWriteFailure func(userID string)
}

func newParticipant(userID, username string, socket Socket, onWriteFailure func(string)) *Participant {
	p := &Participant{
		UserID:         userID,
		Username:       username,
		JoinedAt:       time.Now().UTC(),
		videoQuality:   "medium",
		socket:         socket,
		send:           make(chan []byte, sendBufferSize),
		closed:         make(chan struct{}),
		onWriteFailure: onWriteFailure,
	}
	go p.writeLoop()
	return p
}

// writeLoop is the per-participant single-consumer goroutine that owns all
// writes to the socket, per the "per-socket write serialization" design
// note: broadcast/send_to only ever enqueue, never write directly.
func (p *Participant) writeLoop() {
	for {
		select {
		case msg, ok := <-p.send:
			if !ok {
				return
			}
			if err := p.socket.WriteMessage(msg); err != nil {
				if p.onWriteFailure != nil {
					p.onWriteFailure(p.UserID)
				}
				return
			}
		case <-p.closed:
			return
		}
	}
}

// enqueue attempts to hand msg to the writer goroutine. It returns false if
// the outbound buffer is full or the participant is already closed, both of
// which the caller treats as the write-failure path in §4.E.
func (p *Participant) enqueue(msg []byte) bool {
	select {
	case <-p.closed:
		return false
	default:
	}
	select {
	case p.send <- msg:
		return true
	default:
		return false
	}
}

// close tears down the participant exactly once: it is the single code
// path allowed to close the socket (§5 resource ownership).
func (p *Participant) close(code int, reason string) {
	p.once.Do(func() {
		close(p.closed)
		_ = p.socket.Close(code, reason)
	})
}

func (p *Participant) View() ParticipantView {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return ParticipantView{
		UserID:          p.UserID,
		Username:        p.Username,
		JoinedAt:        p.JoinedAt,
		VideoQuality:    p.videoQuality,
		IsScreenSharing: p.isScreenSharing,
		IsAudioMuted:    p.isAudioMuted,
		IsVideoMuted:    p.isVideoMuted,
	}
}

func (p *Participant) SetVideoQuality(q string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.videoQuality = q
}

func (p *Participant) SetScreenSharing(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.isScreenSharing = v
}

func (p *Participant) SetAudioMuted(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.isAudioMuted = v
}

func (p *Participant) SetVideoMuted(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.isVideoMuted = v
}

// Room is the runtime part of §3's Room: a membership map. The persisted
// descriptor (id, name, created_by, ...) lives in the KV store and outlives
// this struct, which is destroyed when its participant set becomes empty.
type Room struct {
	ID              string
	Participants    map[string]*Participant
	MaxParticipants int
}

func (r *Room) effectiveMax() int {
	if r.MaxParticipants <= 0 {
		return DefaultMaxParticipants
	}
	return r.MaxParticipants
}
