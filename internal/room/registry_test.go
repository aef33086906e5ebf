package room

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeSocket struct {
	mu       sync.Mutex
	written  [][]byte
	closed   bool
	closeErr error
	writeErr error
}

func (f *fakeSocket) WriteMessage(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	cp := append([]byte(nil), data...)
	f.written = append(f.written, cp)
	return nil
}

func (f *fakeSocket) Close(code int, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return f.closeErr
}

func (f *fakeSocket) messages() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.written))
	copy(out, f.written)
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func decodeType(t *testing.T, raw []byte) string {
	t.Helper()
	var env struct {
		Type string `json:"type"`
	}
	require.NoError(t, json.Unmarshal(raw, &env))
	return env.Type
}

func TestAdmit_FirstParticipantSucceeds(t *testing.T) {
	r := NewRegistry()
	sock := &fakeSocket{}

	ok := r.Admit(context.Background(), "room1", "u1", "Alice", sock, 10)
	assert.True(t, ok)
	assert.True(t, r.Contains("room1", "u1"))
}

func TestAdmit_SecondParticipantGetsJoinedBroadcastAndSnapshot(t *testing.T) {
	r := NewRegistry()
	s1 := &fakeSocket{}
	s2 := &fakeSocket{}

	require.True(t, r.Admit(context.Background(), "room1", "u1", "Alice", s1, 10))
	require.True(t, r.Admit(context.Background(), "room1", "u2", "Bob", s2, 10))

	waitFor(t, func() bool { return len(s1.messages()) >= 2 })
	waitFor(t, func() bool { return len(s2.messages()) >= 1 })

	// s1's first frame is its own (empty) participants_list from its admission.
	assert.Equal(t, "user_joined", decodeType(t, s1.messages()[1]))
	assert.Equal(t, "participants_list", decodeType(t, s2.messages()[0]))
}

func TestAdmit_CapacityRefusalClosesSocket(t *testing.T) {
	r := NewRegistry()
	s1 := &fakeSocket{}
	s2 := &fakeSocket{}

	require.True(t, r.Admit(context.Background(), "room1", "u1", "Alice", s1, 1))
	ok := r.Admit(context.Background(), "room1", "u2", "Bob", s2, 1)

	assert.False(t, ok)
	assert.True(t, s2.closed)
	assert.False(t, r.Contains("room1", "u2"))
}

func TestAdmit_ReconnectEvictsPriorSession(t *testing.T) {
	r := NewRegistry()
	s1 := &fakeSocket{}
	s2 := &fakeSocket{}

	require.True(t, r.Admit(context.Background(), "room1", "u1", "Alice", s1, 10))
	require.True(t, r.Admit(context.Background(), "room1", "u1", "Alice-reconnected", s2, 10))

	waitFor(t, func() bool { return s1.closed })
	assert.True(t, r.Contains("room1", "u1"))
	assert.False(t, s2.closed)
}

func TestEvict_IsIdempotent(t *testing.T) {
	r := NewRegistry()
	r.Evict(context.Background(), "ghost", 1000, "")
	// No panic, no-op.
}

func TestEvict_RemovesRoomWhenEmpty(t *testing.T) {
	r := NewRegistry()
	sock := &fakeSocket{}
	require.True(t, r.Admit(context.Background(), "room1", "u1", "Alice", sock, 10))

	r.Evict(context.Background(), "u1", 1000, "bye")

	assert.Equal(t, 0, r.RoomCount())
	assert.False(t, r.Contains("room1", "u1"))
}

func TestEvict_BroadcastsUserLeftToRemainingMembers(t *testing.T) {
	r := NewRegistry()
	s1 := &fakeSocket{}
	s2 := &fakeSocket{}
	require.True(t, r.Admit(context.Background(), "room1", "u1", "Alice", s1, 10))
	require.True(t, r.Admit(context.Background(), "room1", "u2", "Bob", s2, 10))

	r.Evict(context.Background(), "u1", 1000, "bye")

	waitFor(t, func() bool {
		for _, m := range s2.messages() {
			if decodeType(t, m) == "user_left" {
				return true
			}
		}
		return false
	})
}

func TestSnapshot_ReflectsCurrentFlags(t *testing.T) {
	r := NewRegistry()
	sock := &fakeSocket{}
	require.True(t, r.Admit(context.Background(), "room1", "u1", "Alice", sock, 10))

	view, ok := r.MutateAndView("room1", "u1", func(p *Participant) {
		p.SetAudioMuted(true)
	})
	require.True(t, ok)
	assert.True(t, view.IsAudioMuted)

	snap := r.Snapshot("room1")
	require.Len(t, snap, 1)
	assert.True(t, snap[0].IsAudioMuted)
}

func TestBroadcast_DeadPeerDoesNotAbortDeliveryToOthers(t *testing.T) {
	r := NewRegistry()
	dead := &fakeSocket{writeErr: assertErr}
	alive := &fakeSocket{}

	require.True(t, r.Admit(context.Background(), "room1", "dead", "Dead", dead, 10))
	require.True(t, r.Admit(context.Background(), "room1", "alive", "Alive", alive, 10))

	r.Broadcast(context.Background(), "room1", []byte(`{"type":"chat_message"}`), "")

	waitFor(t, func() bool {
		for _, m := range alive.messages() {
			if decodeType(t, m) == "chat_message" {
				return true
			}
		}
		return false
	})
}

func TestSendTo_UnknownUserReturnsFalse(t *testing.T) {
	r := NewRegistry()
	ok := r.SendTo(context.Background(), "room1", "nobody", []byte("{}"))
	assert.False(t, ok)
}

func TestCloseAll_EvictsEveryone(t *testing.T) {
	r := NewRegistry()
	s1 := &fakeSocket{}
	require.True(t, r.Admit(context.Background(), "room1", "u1", "Alice", s1, 10))

	r.CloseAll(context.Background())

	waitFor(t, func() bool { return s1.closed })
	assert.Equal(t, 0, r.RoomCount())
}

func TestParticipantWriterGoroutine_ExitsOnEviction(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	r := NewRegistry()
	sock := &fakeSocket{}
	require.True(t, r.Admit(context.Background(), "room1", "u1", "Alice", sock, 10))
	r.Evict(context.Background(), "u1", 1000, "done")

	// Allow the writer goroutine's select to observe the closed channel.
	time.Sleep(20 * time.Millisecond)
}

var assertErr = &writeError{"boom"}

type writeError struct{ msg string }

func (w *writeError) Error() string { return w.msg }
