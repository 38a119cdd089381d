package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/quillhq/quill/internal/answer"
	"github.com/quillhq/quill/internal/conversation"
)

// MaxQuestionLength bounds the request body's question field.
const MaxQuestionLength = 10000

// AnswerHandler handles the streaming answer endpoint.
//
// The endpoint is SSE only. Message-id events arrive out of band with the
// text chunks so a client can correlate the stream with the persisted
// conversation as soon as each side of the exchange is durable.
type AnswerHandler struct {
	pipeline *answer.Pipeline
	logger   *slog.Logger
}

// NewAnswerHandler creates a new answer handler.
func NewAnswerHandler(pipeline *answer.Pipeline, logger *slog.Logger) *AnswerHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnswerHandler{pipeline: pipeline, logger: logger}
}

// RegisterRoutes registers answer routes on the given mux.
func (h *AnswerHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/sessions/{id}/answer", h.handleAnswer)
}

// AnswerRequest is the request body for the answer endpoint.
type AnswerRequest struct {
	Question string `json:"question"`
}

// SSE event types:
//   - user_message:      {"id": "..."} the question is durable
//   - chunk:             {"text": "..."} partial answer text
//   - assistant_message: {"id": "..."} the answer is durable
//   - done:              final summary of the turn
//   - error:             {"code": "...", "message": "..."}

// SSEMessageData is the data for "user_message" and "assistant_message" events.
type SSEMessageData struct {
	ID string `json:"id"`
}

// SSEChunkData is the data for "chunk" events.
type SSEChunkData struct {
	Text string `json:"text"`
}

// SSECitationData is one resolved citation inside a "done" event.
type SSECitationData struct {
	ReferenceID string `json:"reference_id"`
	DisplayText string `json:"display_text"`
}

// SSEDoneData is the data for "done" events.
type SSEDoneData struct {
	AssistantMessageID string            `json:"assistant_message_id"`
	Citations          []SSECitationData `json:"citations"`
	MessagesUsed       int               `json:"messages_used"`
}

// SSEErrorData is the data for "error" events.
type SSEErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// handleAnswer runs one full answering turn and streams its progress as
// Server-Sent Events.
func (h *AnswerHandler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(w, r)
	if owner == "" {
		return
	}
	id := sessionID(w, r)
	if id == uuid.Nil {
		return
	}

	var req AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if len(req.Question) > MaxQuestionLength {
		writeError(w, http.StatusBadRequest, "invalid_request", "question too long (max 10000 characters)")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.logger.Error("streaming not supported")
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	h.logger.Info("answer stream started", "session_id", id, "owner_id", owner)

	events := answer.Events{
		UserMessage: func(msgID uuid.UUID) {
			h.writeSSE(w, flusher, "user_message", SSEMessageData{ID: msgID.String()})
		},
		Chunk: func(chunkCtx context.Context, text string) error {
			select {
			case <-chunkCtx.Done():
				return chunkCtx.Err()
			default:
			}
			h.writeSSE(w, flusher, "chunk", SSEChunkData{Text: text})
			return nil
		},
		AssistantMessage: func(msgID uuid.UUID) {
			h.writeSSE(w, flusher, "assistant_message", SSEMessageData{ID: msgID.String()})
		},
	}

	result, err := h.pipeline.Answer(ctx, answer.TurnRequest{
		SessionID: id,
		OwnerID:   owner,
		Text:      req.Question,
	}, events)
	if err != nil {
		code, msg := errorEvent(err)
		h.logger.Error("answer turn failed", "session_id", id, "code", code, "error", err)
		h.writeSSE(w, flusher, "error", SSEErrorData{Code: code, Message: msg})
		return
	}

	citations := make([]SSECitationData, 0, len(result.Citations))
	for _, c := range result.Citations {
		citations = append(citations, SSECitationData{
			ReferenceID: c.ReferenceID,
			DisplayText: c.DisplayText,
		})
	}
	h.writeSSE(w, flusher, "done", SSEDoneData{
		AssistantMessageID: result.AssistantMessage.ID.String(),
		Citations:          citations,
		MessagesUsed:       result.MessagesUsed,
	})
	h.logger.Info("answer stream completed",
		"session_id", id,
		"citations", len(citations),
		"response_len", len(result.AssistantMessage.Content))
}

// errorEvent maps a turn failure to an SSE error code and client message.
func errorEvent(err error) (code, message string) {
	if errors.Is(err, conversation.ErrSessionNotFound) {
		return "session_not_found", "no such session"
	}
	var te *answer.TurnError
	if !errors.As(err, &te) {
		return "internal_error", "answer failed"
	}
	switch te.Kind {
	case answer.FailEmptyInput:
		return "empty_input", "question must not be empty"
	case answer.FailCanceled:
		return "canceled", "turn canceled; partial answer kept"
	case answer.FailUpstream:
		return "upstream_error", "model generation failed"
	case answer.FailPersistence:
		return "persistence_error", "failed to persist the exchange"
	default:
		return "internal_error", "answer failed"
	}
}

// writeSSE writes one event to the SSE stream.
func (h *AnswerHandler) writeSSE(w http.ResponseWriter, flusher http.Flusher, event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("failed to encode SSE payload", "event", event, "error", err)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	flusher.Flush()
}
