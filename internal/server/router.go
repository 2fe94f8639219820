package server

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Kamalennam/notes-app-backend/internal/digest"
	"github.com/Kamalennam/notes-app-backend/internal/notes"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	digestTokenHeader      = "X-Digest-Token"
	invalidScheduleMessage = "Invalid schedule_date format"
)

var errMissingNotesStore = errors.New("notes store dependency required")

// Dependencies wires the HTTP handler. Dispatcher and TriggerToken are
// optional; the digest trigger route is registered only when both are set,
// so no unauthenticated send path ever exists.
type Dependencies struct {
	NotesStore   *notes.Store
	Dispatcher   *digest.Dispatcher
	TriggerToken string
	Logger       *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.NotesStore == nil {
		return nil, errMissingNotesStore
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		store:        deps.NotesStore,
		dispatcher:   deps.Dispatcher,
		triggerToken: deps.TriggerToken,
		logger:       logger,
	}

	api := router.Group("/api")
	api.POST("/notes", handler.handleCreateNote)
	api.GET("/notes", handler.handleListNotes)
	api.GET("/notes/:id", handler.handleGetNote)
	api.PUT("/notes/:id", handler.handleUpdateNote)
	api.DELETE("/notes/:id", handler.handleDeleteNote)

	if deps.Dispatcher != nil && deps.TriggerToken != "" {
		api.POST("/digest/run", handler.handleRunDigest)
	}

	return router, nil
}

type httpHandler struct {
	store        *notes.Store
	dispatcher   *digest.Dispatcher
	triggerToken string
	logger       *zap.Logger
}

type notePayload struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Content      string  `json:"content"`
	ScheduleDate *string `json:"schedule_date"`
	CreatedAt    string  `json:"created_at"`
}

func renderNote(note notes.Note) notePayload {
	payload := notePayload{
		ID:        note.ID,
		Title:     note.Title,
		Content:   note.Content,
		CreatedAt: note.CreatedAt.UTC().Format(time.RFC3339),
	}
	if note.ScheduleAt != nil {
		rendered := note.ScheduleAt.UTC().Format(time.RFC3339)
		payload.ScheduleDate = &rendered
	}
	return payload
}

type createNotePayload struct {
	Title        string `json:"title"`
	Content      string `json:"content"`
	ScheduleDate string `json:"schedule_date"`
}

func (h *httpHandler) handleCreateNote(c *gin.Context) {
	var request createNotePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	scheduleAt, err := notes.ParseScheduleTime(request.ScheduleDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": invalidScheduleMessage})
		return
	}

	note, err := h.store.Insert(c.Request.Context(), request.Title, request.Content, scheduleAt)
	if err != nil {
		h.logger.Error("failed to create note", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage_unavailable"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Note added", "id": note.ID})
}

func (h *httpHandler) handleListNotes(c *gin.Context) {
	page := parsePositiveInt(c.Query("page"), 1)
	limit := parsePositiveInt(c.Query("limit"), 5)

	result, err := h.store.ListPage(c.Request.Context(), page, limit)
	if err != nil {
		h.logger.Error("failed to list notes", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage_unavailable"})
		return
	}

	payloads := make([]notePayload, 0, len(result.Notes))
	for _, note := range result.Notes {
		payloads = append(payloads, renderNote(note))
	}

	c.JSON(http.StatusOK, gin.H{
		"notes":        payloads,
		"total_pages":  result.TotalPages,
		"current_page": result.CurrentPage,
	})
}

func (h *httpHandler) handleGetNote(c *gin.Context) {
	id, ok := parseNoteID(c)
	if !ok {
		return
	}

	note, err := h.store.GetByID(c.Request.Context(), id)
	if errors.Is(err, notes.ErrNoteNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Note not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to load note", zap.Error(err), zap.Int64("note_id", id))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage_unavailable"})
		return
	}

	c.JSON(http.StatusOK, renderNote(note))
}

type updateNotePayload struct {
	Title        *string         `json:"title"`
	Content      *string         `json:"content"`
	ScheduleDate json.RawMessage `json:"schedule_date"`
}

func (h *httpHandler) handleUpdateNote(c *gin.Context) {
	id, ok := parseNoteID(c)
	if !ok {
		return
	}

	var request updateNotePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	fields := notes.UpdateFields{Title: request.Title, Content: request.Content}
	if len(request.ScheduleDate) > 0 {
		var raw *string
		if err := json.Unmarshal(request.ScheduleDate, &raw); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": invalidScheduleMessage})
			return
		}
		if raw == nil {
			fields.ClearSchedule = true
		} else {
			scheduleAt, err := notes.ParseScheduleTime(*raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": invalidScheduleMessage})
				return
			}
			if scheduleAt == nil {
				fields.ClearSchedule = true
			} else {
				fields.ScheduleAt = scheduleAt
			}
		}
	}

	note, err := h.store.Update(c.Request.Context(), id, fields)
	if errors.Is(err, notes.ErrNoteNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Note not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to update note", zap.Error(err), zap.Int64("note_id", id))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage_unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Note updated successfully", "note": renderNote(note)})
}

func (h *httpHandler) handleDeleteNote(c *gin.Context) {
	id, ok := parseNoteID(c)
	if !ok {
		return
	}

	err := h.store.DeleteByID(c.Request.Context(), id)
	if errors.Is(err, notes.ErrNoteNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Note not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to delete note", zap.Error(err), zap.Int64("note_id", id))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage_unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Note deleted successfully"})
}

func (h *httpHandler) handleRunDigest(c *gin.Context) {
	supplied := c.GetHeader(digestTokenHeader)
	if supplied == "" || subtle.ConstantTimeCompare([]byte(supplied), []byte(h.triggerToken)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	outcome, err := h.dispatcher.Run(c.Request.Context())
	response := gin.H{"status": digestStatus(outcome), "detail": string(outcome)}
	if err != nil {
		h.logger.Warn("digest run reported failure", zap.String("outcome", string(outcome)), zap.Error(err))
	}
	if outcome.Succeeded() {
		c.JSON(http.StatusOK, response)
		return
	}
	c.JSON(http.StatusBadGateway, response)
}

func digestStatus(outcome digest.Outcome) string {
	switch outcome {
	case digest.OutcomeSent:
		return "sent"
	case digest.OutcomeNoneScheduled:
		return "skipped"
	default:
		return "error"
	}
}

func parseNoteID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Note not found"})
		return 0, false
	}
	return id, true
}

func parsePositiveInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return fallback
	}
	return value
}
