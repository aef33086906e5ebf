package httpapi

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velahub/signalcore/internal/auth"
	"github.com/velahub/signalcore/internal/cipher"
	"github.com/velahub/signalcore/internal/config"
	"github.com/velahub/signalcore/internal/kvstore"
	"github.com/velahub/signalcore/internal/room"
	"github.com/velahub/signalcore/internal/router"
)

const testToken = "test-token"

func newTestAPI(t *testing.T) (*gin.Engine, *API) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := kvstore.NewMemoryStore()
	reg := room.NewRegistry()
	c, err := cipher.New()
	require.NoError(t, err)
	rtr := router.New(reg, store, c)

	cfg := &config.Config{
		SecretKey:          "test-secret-key-at-least-32-bytes-long",
		Algorithm:          "HS256",
		AccessTokenExpMins: 30,
		StunServers:        []string{"stun:stun.example.com:3478"},
		TurnServers: []config.TurnServer{
			{URLs: "turn:turn.example.com:3478", Username: "u", Credential: "p"},
		},
		UploadDirectory: t.TempDir(),
		MaxFileSize:     1024,
	}

	api := New(store, reg, rtr, &auth.MockValidator{}, cfg)
	engine := gin.New()
	api.Register(engine)
	return engine, api
}

func authedRequest(method, path string, body []byte) *http.Request {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestCreateRoom_PersistsDescriptor(t *testing.T) {
	engine, _ := newTestAPI(t)

	body, _ := json.Marshal(map[string]any{"name": "standup", "max_participants": 5})
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, authedRequest(http.MethodPost, "/rooms/", body))

	require.Equal(t, http.StatusCreated, w.Code)
	var desc roomDescriptor
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &desc))
	assert.Equal(t, "standup", desc.Name)
	assert.Equal(t, 5, desc.MaxParticipants)
	assert.NotEmpty(t, desc.ID)
	assert.Equal(t, "dev-user-123", desc.CreatedBy)
}

func TestCreateRoom_MissingNameRejected(t *testing.T) {
	engine, _ := newTestAPI(t)

	body, _ := json.Marshal(map[string]any{})
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, authedRequest(http.MethodPost, "/rooms/", body))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateRoom_NoTokenRejected(t *testing.T) {
	engine, _ := newTestAPI(t)

	body, _ := json.Marshal(map[string]any{"name": "standup"})
	req := httptest.NewRequest(http.MethodPost, "/rooms/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetRoom_NotFound(t *testing.T) {
	engine, _ := newTestAPI(t)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, authedRequest(http.MethodGet, "/rooms/missing", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetRoom_EnrichedWithLiveParticipants(t *testing.T) {
	engine, api := newTestAPI(t)

	body, _ := json.Marshal(map[string]any{"name": "standup"})
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, authedRequest(http.MethodPost, "/rooms/", body))
	var desc roomDescriptor
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &desc))

	sock := &noopSocket{}
	api.registry.Admit(t.Context(), desc.ID, "u1", "Alice", sock, 10)

	w2 := httptest.NewRecorder()
	engine.ServeHTTP(w2, authedRequest(http.MethodGet, "/rooms/"+desc.ID, nil))
	require.Equal(t, http.StatusOK, w2.Code)

	var enriched map[string]any
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &enriched))
	assert.Equal(t, float64(1), enriched["participant_count"])
}

func TestListRooms_NotImplemented(t *testing.T) {
	engine, _ := newTestAPI(t)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, authedRequest(http.MethodGet, "/rooms", nil))

	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestICEServers_ReturnsConfiguredList(t *testing.T) {
	engine, _ := newTestAPI(t)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, authedRequest(http.MethodGet, "/rooms/r1/ice-servers", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "stun.example.com")
	assert.Contains(t, w.Body.String(), "turn.example.com")
}

func TestChatHistory_DecryptsRecords(t *testing.T) {
	engine, api := newTestAPI(t)
	ctx := t.Context()

	sock := &noopSocket{}
	require.True(t, api.registry.Admit(ctx, "r1", "u1", "Alice", sock, 10))
	api.router.Route(ctx, "r1", "u1", []byte(`{"type":"chat_message","content":"hello"}`))

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, authedRequest(http.MethodGet, "/rooms/r1/messages?limit=5", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Messages []router.ChatEntry `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "hello", resp.Messages[0].Content)
	assert.Equal(t, "Alice", resp.Messages[0].Username)
}

func TestWhiteboardHistory_EmptyRoomReturnsEmptyList(t *testing.T) {
	engine, _ := newTestAPI(t)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, authedRequest(http.MethodGet, "/rooms/r1/whiteboard", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Events []any `json:"events"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Events)
}

func TestUploadFile_RejectsOversize(t *testing.T) {
	engine, _ := newTestAPI(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "big.bin")
	require.NoError(t, err)
	_, err = part.Write(bytes.Repeat([]byte("x"), 4096))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/rooms/r1/upload", &buf)
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestUploadThenDownload_RoundTrips(t *testing.T) {
	engine, api := newTestAPI(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("hello room"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/rooms/r1/upload", &buf)
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	assert.FileExists(t, filepath.Join(api.uploadsDir, "r1", "notes.txt"))

	w2 := httptest.NewRecorder()
	engine.ServeHTTP(w2, authedRequest(http.MethodGet, "/rooms/r1/download/notes.txt", nil))
	require.Equal(t, http.StatusOK, w2.Code)
	assert.Equal(t, "hello room", w2.Body.String())
}

func TestDownloadFile_MissingReturns404(t *testing.T) {
	engine, _ := newTestAPI(t)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, authedRequest(http.MethodGet, "/rooms/r1/download/nope.txt", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLogin_AnyNonEmptyCredentialsSucceed(t *testing.T) {
	engine, _ := newTestAPI(t)

	body, _ := json.Marshal(map[string]string{"username": "alice", "password": "secret"})
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp loginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "alice", resp.Username)
	assert.Equal(t, "bearer", resp.TokenType)
	assert.NotEmpty(t, resp.AccessToken)
}

func TestLogin_MissingPasswordRejected(t *testing.T) {
	engine, _ := newTestAPI(t)

	body, _ := json.Marshal(map[string]string{"username": "alice"})
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMe_ReturnsClaimsFromToken(t *testing.T) {
	engine, _ := newTestAPI(t)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, authedRequest(http.MethodGet, "/auth/me", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "dev-user-123", resp["user_id"])
}

type noopSocket struct{}

func (noopSocket) WriteMessage([]byte) error { return nil }
func (noopSocket) Close(int, string) error   { return nil }
