package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/velahub/signalcore/internal/logging"
	"github.com/velahub/signalcore/internal/middleware"
)

// roomDescriptor is the JSON shape persisted under room:{id} and returned
// from the room endpoints, matching core_backend/models.py's Room.
type roomDescriptor struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	CreatedBy       string `json:"created_by"`
	CreatedAt       string `json:"created_at"`
	MaxParticipants int    `json:"max_participants"`
	IsActive        bool   `json:"is_active"`
	IsPublic        bool   `json:"is_public"`
}

type createRoomRequest struct {
	Name            string `json:"name" binding:"required"`
	MaxParticipants int    `json:"max_participants"`
	IsPublic        *bool  `json:"is_public"`
}

func roomKey(roomID string) string { return fmt.Sprintf("room:%s", roomID) }

func (a *API) createRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.MaxParticipants <= 0 {
		req.MaxParticipants = 10
	}
	isPublic := true
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}

	claims, _ := middleware.ClaimsFromContext(c)
	createdBy := ""
	if claims != nil {
		createdBy = claims.Subject
	}

	desc := roomDescriptor{
		ID:              uuid.NewString(),
		Name:            req.Name,
		CreatedBy:       createdBy,
		CreatedAt:       time.Now().UTC().Format(time.RFC3339),
		MaxParticipants: req.MaxParticipants,
		IsActive:        true,
		IsPublic:        isPublic,
	}

	raw, err := json.Marshal(desc)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode room"})
		return
	}
	if err := a.store.Set(c.Request.Context(), roomKey(desc.ID), string(raw)); err != nil {
		logging.Error(c.Request.Context(), "failed to persist room descriptor", zap.Error(err))
	}

	c.JSON(http.StatusCreated, desc)
}

func (a *API) getRoom(c *gin.Context) {
	roomID := c.Param("id")
	raw, found, err := a.store.Get(c.Request.Context(), roomKey(roomID))
	if err != nil {
		logging.Error(c.Request.Context(), "failed to read room descriptor", zap.Error(err))
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}

	var enriched map[string]any
	if err := json.Unmarshal([]byte(raw), &enriched); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "corrupt room descriptor"})
		return
	}

	participants := a.registry.Snapshot(roomID)
	enriched["current_participants"] = participants
	enriched["participant_count"] = len(participants)
	c.JSON(http.StatusOK, enriched)
}

// listRooms is deliberately unimplemented: the registry only knows about
// live rooms, and room:* descriptors have no secondary index to scan
// without a real database backing the KV store.
func (a *API) listRooms(c *gin.Context) {
	c.JSON(http.StatusNotImplemented, gin.H{"message": "public room listing requires a proper database"})
}

func (a *API) iceServers(c *gin.Context) {
	servers := make([]map[string]any, 0, len(a.stun)+len(a.turn))
	for _, url := range a.stun {
		servers = append(servers, map[string]any{"urls": url})
	}
	for _, t := range a.turn {
		servers = append(servers, map[string]any{
			"urls":       t.URLs,
			"username":   t.Username,
			"credential": t.Credential,
		})
	}
	c.JSON(http.StatusOK, gin.H{"iceServers": servers})
}

func (a *API) chatHistory(c *gin.Context) {
	roomID := c.Param("id")
	limit := int64(50)
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil && n > 0 {
			limit = n
		}
	}

	entries, err := a.router.ChatHistory(c.Request.Context(), roomID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chat history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": entries})
}

func (a *API) whiteboardHistory(c *gin.Context) {
	roomID := c.Param("id")
	entries, err := a.router.WhiteboardHistory(c.Request.Context(), roomID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load whiteboard history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": entries})
}

type fileSharedInfo struct {
	Filename    string `json:"filename"`
	FileSize    int64  `json:"file_size"`
	FileType    string `json:"file_type"`
	UploadedBy  string `json:"uploaded_by"`
	DownloadURL string `json:"download_url"`
}

func (a *API) uploadFile(c *gin.Context) {
	roomID := c.Param("id")

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file field is required"})
		return
	}
	if fileHeader.Size > a.maxUpload {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}

	uploadDir := filepath.Join(a.uploadsDir, roomID)
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		logging.Error(c.Request.Context(), "failed to create upload directory", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store file"})
		return
	}

	destPath := filepath.Join(uploadDir, filepath.Base(fileHeader.Filename))
	if err := c.SaveUploadedFile(fileHeader, destPath); err != nil {
		logging.Error(c.Request.Context(), "failed to save uploaded file", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store file"})
		return
	}

	claims, _ := middleware.ClaimsFromContext(c)
	uploadedBy := ""
	if claims != nil {
		uploadedBy = claims.Subject
	}

	info := fileSharedInfo{
		Filename:    filepath.Base(fileHeader.Filename),
		FileSize:    fileHeader.Size,
		FileType:    fileHeader.Header.Get("Content-Type"),
		UploadedBy:  uploadedBy,
		DownloadURL: fmt.Sprintf("/rooms/%s/download/%s", roomID, filepath.Base(fileHeader.Filename)),
	}

	payload, err := json.Marshal(struct {
		Type      string         `json:"type"`
		FileInfo  fileSharedInfo `json:"file_info"`
		Timestamp string         `json:"timestamp"`
	}{Type: "file_shared", FileInfo: info, Timestamp: time.Now().UTC().Format(time.RFC3339)})
	if err != nil {
		logging.Error(c.Request.Context(), "failed to encode file_shared broadcast", zap.Error(err))
	} else {
		a.registry.Broadcast(c.Request.Context(), roomID, payload, "")
	}

	c.JSON(http.StatusOK, gin.H{"message": "file uploaded successfully", "file_info": info})
}

func (a *API) downloadFile(c *gin.Context) {
	roomID := c.Param("id")
	filename := filepath.Base(c.Param("filename"))
	path := filepath.Join(a.uploadsDir, roomID, filename)

	f, err := os.Open(path)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}
	defer f.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, f); err != nil {
		logging.Warn(c.Request.Context(), "download stream interrupted", zap.Error(err))
	}
}
