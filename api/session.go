package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"log/slog"

	"github.com/quillhq/quill/internal/conversation"
)

// Session validation constants.
const (
	MaxTitleLength      = 100
	MaxContextDocuments = 50
	DefaultListLimit    = 100
	MaxListLimit        = 1000
	MaxListOffset       = 100000 // Reasonable upper bound for pagination offset
)

// SessionHandler handles session-related HTTP endpoints.
type SessionHandler struct {
	store     *conversation.Store
	integrity *conversation.IntegrityManager
	logger    *slog.Logger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(store *conversation.Store, integrity *conversation.IntegrityManager, logger *slog.Logger) *SessionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionHandler{store: store, integrity: integrity, logger: logger}
}

// RegisterRoutes registers session routes on the given mux.
func (h *SessionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/sessions", h.list)
	mux.HandleFunc("POST /api/sessions", h.create)
	mux.HandleFunc("GET /api/sessions/{id}", h.get)
	mux.HandleFunc("GET /api/sessions/{id}/messages", h.messages)
	mux.HandleFunc("PUT /api/sessions/{id}/documents", h.setDocuments)
	mux.HandleFunc("POST /api/sessions/{id}/repair", h.repair)
}

// SessionResponse is the JSON shape of a session.
type SessionResponse struct {
	ID                 string    `json:"id"`
	Title              string    `json:"title,omitempty"`
	ContextDocumentIDs []string  `json:"context_document_ids"`
	MessageCount       int       `json:"message_count"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// MessageResponse is the JSON shape of a message.
type MessageResponse struct {
	ID             string    `json:"id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	Recovered      bool      `json:"recovered,omitempty"`
	SequenceNumber int       `json:"sequence_number"`
	CreatedAt      time.Time `json:"created_at"`
}

func sessionResponse(s *conversation.Session) SessionResponse {
	docs := s.ContextDocumentIDs
	if docs == nil {
		docs = []string{}
	}
	return SessionResponse{
		ID:                 s.ID.String(),
		Title:              s.Title,
		ContextDocumentIDs: docs,
		MessageCount:       s.MessageCount,
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
	}
}

func messageResponse(m *conversation.Message) MessageResponse {
	return MessageResponse{
		ID:             m.ID.String(),
		Role:           m.Role,
		Content:        m.Content,
		Recovered:      m.Recovered,
		SequenceNumber: m.SequenceNumber,
		CreatedAt:      m.CreatedAt,
	}
}

// ownerID extracts the caller identity from the X-Owner-ID header. An empty
// return means the request was already answered with 400.
func ownerID(w http.ResponseWriter, r *http.Request) string {
	owner := r.Header.Get("X-Owner-ID")
	if owner == "" {
		writeError(w, http.StatusBadRequest, "missing_owner", "X-Owner-ID header is required")
	}
	return owner
}

// sessionID parses the {id} path value. A nil-UUID return means the request
// was already answered with 400.
func sessionID(w http.ResponseWriter, r *http.Request) uuid.UUID {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_session_id", "session id must be a UUID")
		return uuid.Nil
	}
	return id
}

// loadOwned fetches a session and enforces owner scoping. Sessions belonging
// to a different owner read as not found, so session ids leak nothing.
func (h *SessionHandler) loadOwned(w http.ResponseWriter, r *http.Request, owner string, id uuid.UUID) *conversation.Session {
	session, err := h.store.Session(r.Context(), id)
	if err != nil {
		if errors.Is(err, conversation.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session_not_found", "no such session")
			return nil
		}
		h.logger.Error("failed to load session", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load session")
		return nil
	}
	if session.OwnerID != owner {
		writeError(w, http.StatusNotFound, "session_not_found", "no such session")
		return nil
	}
	return session
}

// list returns the caller's sessions with pagination support.
// Query parameters:
//   - limit: Maximum number of sessions to return (default: 100, max: 1000)
//   - offset: Number of sessions to skip (default: 0)
func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(w, r)
	if owner == "" {
		return
	}

	limit := parseIntParam(r, "limit", DefaultListLimit, 1, MaxListLimit)
	offset := parseIntParam(r, "offset", 0, 0, MaxListOffset)

	// #nosec G115 -- limit and offset are bounded by MaxListLimit (1000) and MaxListOffset (100000)
	sessions, err := h.store.Sessions(r.Context(), owner, int32(limit), int32(offset))
	if err != nil {
		h.logger.Error("failed to list sessions", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list sessions")
		return
	}

	out := make([]SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, sessionResponse(s))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": out,
		"total":    len(out),
		"limit":    limit,
		"offset":   offset,
	})
}

// parseIntParam parses an integer query parameter with bounds checking.
func parseIntParam(r *http.Request, name string, defaultVal, min, max int) int {
	str := r.URL.Query().Get(name)
	if str == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return defaultVal
	}
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

// CreateSessionRequest is the request body for creating a session.
type CreateSessionRequest struct {
	Title              string   `json:"title"`
	ContextDocumentIDs []string `json:"context_document_ids"`
}

// create creates a new session.
func (h *SessionHandler) create(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(w, r)
	if owner == "" {
		return
	}

	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	if len(req.Title) > MaxTitleLength {
		writeError(w, http.StatusBadRequest, "invalid_request", "title too long (max 100 characters)")
		return
	}
	if len(req.ContextDocumentIDs) > MaxContextDocuments {
		writeError(w, http.StatusBadRequest, "invalid_request", "too many context documents (max 50)")
		return
	}

	session, err := h.store.CreateSession(r.Context(), owner, req.Title, req.ContextDocumentIDs)
	if err != nil {
		h.logger.Error("failed to create session", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to create session")
		return
	}

	writeJSON(w, http.StatusCreated, sessionResponse(session))
}

// get returns one session.
func (h *SessionHandler) get(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(w, r)
	if owner == "" {
		return
	}
	id := sessionID(w, r)
	if id == uuid.Nil {
		return
	}

	session := h.loadOwned(w, r, owner, id)
	if session == nil {
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(session))
}

// messages returns a session's messages in sequence order.
func (h *SessionHandler) messages(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(w, r)
	if owner == "" {
		return
	}
	id := sessionID(w, r)
	if id == uuid.Nil {
		return
	}
	if h.loadOwned(w, r, owner, id) == nil {
		return
	}

	limit := parseIntParam(r, "limit", DefaultListLimit, 1, MaxListLimit)
	offset := parseIntParam(r, "offset", 0, 0, MaxListOffset)

	// #nosec G115 -- bounded by parseIntParam
	messages, err := h.store.Messages(r.Context(), id, int32(limit), int32(offset))
	if err != nil {
		h.logger.Error("failed to list messages", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list messages")
		return
	}

	out := make([]MessageResponse, 0, len(messages))
	for _, m := range messages {
		out = append(out, messageResponse(m))
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": out, "total": len(out)})
}

// SetDocumentsRequest is the request body for replacing a session's context
// document set.
type SetDocumentsRequest struct {
	ContextDocumentIDs []string `json:"context_document_ids"`
}

// setDocuments replaces the session's context document set. The new set
// applies from the next turn; passages already extracted stay resolvable.
func (h *SessionHandler) setDocuments(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(w, r)
	if owner == "" {
		return
	}
	id := sessionID(w, r)
	if id == uuid.Nil {
		return
	}
	if h.loadOwned(w, r, owner, id) == nil {
		return
	}

	var req SetDocumentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if len(req.ContextDocumentIDs) > MaxContextDocuments {
		writeError(w, http.StatusBadRequest, "invalid_request", "too many context documents (max 50)")
		return
	}

	if err := h.store.SetContextDocuments(r.Context(), id, req.ContextDocumentIDs); err != nil {
		h.logger.Error("failed to set context documents", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to set context documents")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// repair closes an orphaned exchange in the session, if any. Responds with
// the recovered assistant message, or 204 when the session is healthy.
func (h *SessionHandler) repair(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(w, r)
	if owner == "" {
		return
	}
	id := sessionID(w, r)
	if id == uuid.Nil {
		return
	}
	if h.loadOwned(w, r, owner, id) == nil {
		return
	}

	recovered, err := h.integrity.RepairSession(r.Context(), id)
	if err != nil {
		h.logger.Error("session repair failed", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "repair failed")
		return
	}
	if recovered == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse(recovered))
}
