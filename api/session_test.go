package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillhq/quill/internal/conversation"
	"github.com/quillhq/quill/internal/log"
	"github.com/quillhq/quill/internal/sqlc"
)

// fakeQuerier backs a real conversation.Store in handler tests. The embedded
// interface panics on methods a test never reaches.
type fakeQuerier struct {
	conversation.Querier

	mu       sync.Mutex
	sessions map[uuid.UUID]*sqlc.Session
	messages []sqlc.Message
	usage    map[string]int32
}

func newFakeQuerier() *fakeQuerier {
	return &fakeQuerier{
		sessions: make(map[uuid.UUID]*sqlc.Session),
		usage:    make(map[string]int32),
	}
}

func (f *fakeQuerier) addSession(ownerID string, docIDs ...string) uuid.UUID {
	id := uuid.New()
	f.sessions[id] = &sqlc.Session{
		ID:                 pgtype.UUID{Bytes: id, Valid: true},
		OwnerID:            ownerID,
		ContextDocumentIds: docIDs,
		CreatedAt:          pgtype.Timestamptz{Time: time.Now(), Valid: true},
		UpdatedAt:          pgtype.Timestamptz{Time: time.Now(), Valid: true},
	}
	return id
}

func (f *fakeQuerier) CreateSession(_ context.Context, arg sqlc.CreateSessionParams) (sqlc.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.New()
	row := sqlc.Session{
		ID:                 pgtype.UUID{Bytes: id, Valid: true},
		OwnerID:            arg.OwnerID,
		Title:              arg.Title,
		ContextDocumentIds: arg.ContextDocumentIds,
	}
	f.sessions[id] = &row
	return row, nil
}

func (f *fakeQuerier) GetSession(_ context.Context, id pgtype.UUID) (sqlc.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.sessions[uuid.UUID(id.Bytes)]
	if !ok {
		return sqlc.Session{}, pgx.ErrNoRows
	}
	return *row, nil
}

func (f *fakeQuerier) ListSessionsByOwner(_ context.Context, arg sqlc.ListSessionsByOwnerParams) ([]sqlc.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var rows []sqlc.Session
	for _, row := range f.sessions {
		if row.OwnerID == arg.OwnerID {
			rows = append(rows, *row)
		}
	}
	return rows, nil
}

func (f *fakeQuerier) SetContextDocuments(_ context.Context, arg sqlc.SetContextDocumentsParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[uuid.UUID(arg.SessionID.Bytes)].ContextDocumentIds = arg.ContextDocumentIds
	return nil
}

func (f *fakeQuerier) LockSession(_ context.Context, id pgtype.UUID) (pgtype.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[uuid.UUID(id.Bytes)]; !ok {
		return pgtype.UUID{}, pgx.ErrNoRows
	}
	return id, nil
}

func (f *fakeQuerier) UpdateSessionActivity(_ context.Context, arg sqlc.UpdateSessionActivityParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[uuid.UUID(arg.SessionID.Bytes)].MessageCount = arg.MessageCount
	return nil
}

func (f *fakeQuerier) AddMessage(_ context.Context, arg sqlc.AddMessageParams) (sqlc.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	createdAt := arg.CreatedAt
	if !createdAt.Valid {
		createdAt = pgtype.Timestamptz{Time: time.Now(), Valid: true}
	}
	row := sqlc.Message{
		ID:             pgtype.UUID{Bytes: uuid.New(), Valid: true},
		SessionID:      arg.SessionID,
		Role:           arg.Role,
		Content:        arg.Content,
		Recovered:      arg.Recovered,
		SequenceNumber: arg.SequenceNumber,
		CreatedAt:      createdAt,
	}
	f.messages = append(f.messages, row)
	return row, nil
}

func (f *fakeQuerier) GetMessages(_ context.Context, arg sqlc.GetMessagesParams) ([]sqlc.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var rows []sqlc.Message
	for _, m := range f.messages {
		if m.SessionID == arg.SessionID {
			rows = append(rows, m)
		}
	}
	if int(arg.ResultOffset) < len(rows) {
		rows = rows[arg.ResultOffset:]
	} else {
		rows = nil
	}
	if int(arg.ResultLimit) < len(rows) {
		rows = rows[:arg.ResultLimit]
	}
	return rows, nil
}

func (f *fakeQuerier) GetMaxSequenceNumber(_ context.Context, sessionID pgtype.UUID) (int32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var maxSeq int32
	for _, m := range f.messages {
		if m.SessionID == sessionID && m.SequenceNumber > maxSeq {
			maxSeq = m.SequenceNumber
		}
	}
	return maxSeq, nil
}

func (f *fakeQuerier) CountMessagesByRole(_ context.Context, arg sqlc.CountMessagesByRoleParams) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, m := range f.messages {
		if m.SessionID == arg.SessionID && m.Role == arg.Role {
			n++
		}
	}
	return n, nil
}

func (f *fakeQuerier) ListSessionSummaries(_ context.Context, sessionID pgtype.UUID) ([]*string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*string
	for _, m := range f.messages {
		if m.SessionID == sessionID {
			out = append(out, m.Summary)
		}
	}
	return out, nil
}

func (f *fakeQuerier) GetMessagePassages(_ context.Context, _ pgtype.UUID) ([]sqlc.Passage, error) {
	return nil, nil
}

func (f *fakeQuerier) GetSessionPassages(_ context.Context, _ pgtype.UUID) ([]sqlc.Passage, error) {
	return nil, nil
}

func (f *fakeQuerier) IncrementMessageCount(_ context.Context, ownerID string) (int32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.usage[ownerID]++
	return f.usage[ownerID], nil
}

func newSessionHandler(f *fakeQuerier) (*SessionHandler, *http.ServeMux) {
	logger := log.NewNop()
	store := conversation.NewStore(f, nil, logger)
	h := NewSessionHandler(store, conversation.NewIntegrityManager(store, nil, logger), logger)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return h, mux
}

func doRequest(mux *http.ServeMux, method, path, owner, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if owner != "" {
		req.Header.Set("X-Owner-ID", owner)
	}
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestSessionHandler_Create(t *testing.T) {
	f := newFakeQuerier()
	_, mux := newSessionHandler(f)

	w := doRequest(mux, http.MethodPost, "/api/sessions", "owner-1",
		`{"title": "Salmon study", "context_document_ids": ["doc-1", "doc-2"]}`)

	require.Equal(t, http.StatusCreated, w.Code)
	var resp SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "Salmon study", resp.Title)
	assert.Equal(t, []string{"doc-1", "doc-2"}, resp.ContextDocumentIDs)
	assert.Len(t, f.sessions, 1)
}

func TestSessionHandler_Create_InvalidJSON(t *testing.T) {
	f := newFakeQuerier()
	_, mux := newSessionHandler(f)

	w := doRequest(mux, http.MethodPost, "/api/sessions", "owner-1", `{invalid json}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid request body")
	assert.Empty(t, f.sessions)
}

func TestSessionHandler_Create_TitleTooLong(t *testing.T) {
	f := newFakeQuerier()
	_, mux := newSessionHandler(f)

	w := doRequest(mux, http.MethodPost, "/api/sessions", "owner-1",
		`{"title": "`+strings.Repeat("x", MaxTitleLength+1)+`"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "title too long")
}

func TestSessionHandler_List_ScopedToOwner(t *testing.T) {
	f := newFakeQuerier()
	f.addSession("owner-1")
	f.addSession("owner-1")
	f.addSession("owner-2")
	_, mux := newSessionHandler(f)

	w := doRequest(mux, http.MethodGet, "/api/sessions", "owner-1", "")

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Sessions []SessionResponse `json:"sessions"`
		Total    int               `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)
}

func TestSessionHandler_Get(t *testing.T) {
	f := newFakeQuerier()
	id := f.addSession("owner-1", "doc-1")
	_, mux := newSessionHandler(f)

	t.Run("own session", func(t *testing.T) {
		w := doRequest(mux, http.MethodGet, "/api/sessions/"+id.String(), "owner-1", "")

		require.Equal(t, http.StatusOK, w.Code)
		var resp SessionResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, id.String(), resp.ID)
	})

	t.Run("foreign session reads as not found", func(t *testing.T) {
		w := doRequest(mux, http.MethodGet, "/api/sessions/"+id.String(), "owner-2", "")

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		w := doRequest(mux, http.MethodGet, "/api/sessions/not-a-uuid", "owner-1", "")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "invalid_session_id")
	})

	t.Run("unknown id", func(t *testing.T) {
		w := doRequest(mux, http.MethodGet, "/api/sessions/"+uuid.NewString(), "owner-1", "")

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestSessionHandler_SetDocuments(t *testing.T) {
	f := newFakeQuerier()
	id := f.addSession("owner-1", "doc-1")
	_, mux := newSessionHandler(f)

	w := doRequest(mux, http.MethodPut, "/api/sessions/"+id.String()+"/documents", "owner-1",
		`{"context_document_ids": ["doc-2", "doc-3"]}`)

	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{"doc-2", "doc-3"}, f.sessions[id].ContextDocumentIds)
}

func TestSessionHandler_Messages(t *testing.T) {
	f := newFakeQuerier()
	id := f.addSession("owner-1")
	sid := pgtype.UUID{Bytes: id, Valid: true}
	f.messages = append(f.messages,
		sqlc.Message{ID: pgtype.UUID{Bytes: uuid.New(), Valid: true}, SessionID: sid, Role: conversation.RoleUser, Content: "question", SequenceNumber: 1},
		sqlc.Message{ID: pgtype.UUID{Bytes: uuid.New(), Valid: true}, SessionID: sid, Role: conversation.RoleAssistant, Content: "answer", SequenceNumber: 2},
	)
	_, mux := newSessionHandler(f)

	w := doRequest(mux, http.MethodGet, "/api/sessions/"+id.String()+"/messages", "owner-1", "")

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Messages []MessageResponse `json:"messages"`
		Total    int               `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Total)
	assert.Equal(t, conversation.RoleUser, resp.Messages[0].Role)
	assert.Equal(t, "answer", resp.Messages[1].Content)
}

func TestSessionHandler_Repair(t *testing.T) {
	f := newFakeQuerier()
	id := f.addSession("owner-1")
	sid := pgtype.UUID{Bytes: id, Valid: true}
	_, mux := newSessionHandler(f)

	t.Run("healthy session returns no content", func(t *testing.T) {
		w := doRequest(mux, http.MethodPost, "/api/sessions/"+id.String()+"/repair", "owner-1", "")

		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("orphaned exchange is closed", func(t *testing.T) {
		f.messages = append(f.messages, sqlc.Message{
			ID:             pgtype.UUID{Bytes: uuid.New(), Valid: true},
			SessionID:      sid,
			Role:           conversation.RoleUser,
			Content:        "unanswered question",
			SequenceNumber: 1,
			CreatedAt:      pgtype.Timestamptz{Time: time.Now(), Valid: true},
		})

		w := doRequest(mux, http.MethodPost, "/api/sessions/"+id.String()+"/repair", "owner-1", "")

		require.Equal(t, http.StatusOK, w.Code)
		var resp MessageResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, conversation.RoleAssistant, resp.Role)
		assert.True(t, resp.Recovered)
	})
}
