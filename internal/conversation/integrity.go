package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quillhq/quill/internal/genai"
)

// maxScanMessages bounds the history scan during orphan detection.
const maxScanMessages = 10000

const recoverySystem = `You are completing an answer that was interrupted before it could be saved.
Answer the user's question using only the source passages provided.
Each passage is labeled with a reference number in square brackets; cite it as [n] where you rely on it.
If the passages do not cover the question, say so plainly.`

// IntegrityManager restores the user/assistant alternation of sessions that
// were interrupted mid-exchange. A session whose last message is a user
// message is orphaned: the question was persisted and acknowledged, but the
// process died before the answer landed. Repair synthesizes an assistant
// message from whatever the interrupted exchange already persisted, marks it
// recovered, and charges usage the same way a live exchange would.
type IntegrityManager struct {
	store  *Store
	client genai.Client
	logger *slog.Logger
}

// NewIntegrityManager creates an IntegrityManager. The client may be a
// disabled implementation; repair then falls back to a deterministic answer
// built from the orphan's passages.
func NewIntegrityManager(store *Store, client genai.Client, logger *slog.Logger) *IntegrityManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &IntegrityManager{
		store:  store,
		client: client,
		logger: logger,
	}
}

// CheckSession reports the orphaned user message of a session, or nil when
// the session is healthy (empty, or ending in an assistant message).
func (m *IntegrityManager) CheckSession(ctx context.Context, sessionID uuid.UUID) (*Message, error) {
	messages, err := m.store.Messages(ctx, sessionID, maxScanMessages, 0)
	if err != nil {
		return nil, fmt.Errorf("scanning session %s: %w", sessionID, err)
	}
	if len(messages) == 0 {
		return nil, nil
	}

	last := messages[len(messages)-1]
	if last.Role != RoleUser {
		return nil, nil
	}
	return last, nil
}

// RepairSession repairs a single session if it is orphaned. It returns the
// recovered assistant message, or nil when no repair was needed. Calling it
// on a healthy session is a no-op, so repeated repairs are safe.
func (m *IntegrityManager) RepairSession(ctx context.Context, sessionID uuid.UUID) (*Message, error) {
	orphan, err := m.CheckSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if orphan == nil {
		return nil, nil
	}

	session, err := m.store.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	passages, err := m.store.MessagePassages(ctx, orphan.ID)
	if err != nil {
		return nil, fmt.Errorf("loading orphan passages: %w", err)
	}

	content := m.recoverAnswer(ctx, orphan, passages)

	// Place the recovered answer just after the question it repairs, not at
	// repair time, so conversation order reads correctly.
	msg, _, err := m.store.CompleteExchange(ctx, CompleteExchangeParams{
		SessionID: sessionID,
		OwnerID:   session.OwnerID,
		Content:   content,
		Recovered: true,
		CreatedAt: orphan.CreatedAt.Add(time.Millisecond),
	})
	if err != nil {
		return nil, fmt.Errorf("persisting recovered answer: %w", err)
	}

	m.logger.Info("repaired orphaned exchange",
		"session_id", sessionID,
		"orphan_message_id", orphan.ID,
		"recovered_message_id", msg.ID,
		"passages", len(passages))
	return msg, nil
}

// RepairAll sweeps every session and repairs the orphaned ones. It returns
// the number of sessions repaired. A failure on one session is logged and
// does not stop the sweep.
func (m *IntegrityManager) RepairAll(ctx context.Context) (int, error) {
	ids, err := m.store.SessionIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing sessions for repair: %w", err)
	}

	repaired := 0
	for _, id := range ids {
		msg, err := m.RepairSession(ctx, id)
		if err != nil {
			m.logger.Warn("session repair failed", "session_id", id, "error", err)
			continue
		}
		if msg != nil {
			repaired++
		}
	}

	m.logger.Info("integrity sweep complete", "sessions", len(ids), "repaired", repaired)
	return repaired, nil
}

// recoverAnswer produces the recovered answer text. It asks the model when
// one is available and falls back to a deterministic summary of the orphan's
// passages when generation is unavailable or fails.
func (m *IntegrityManager) recoverAnswer(ctx context.Context, orphan *Message, passages []*Passage) string {
	if m.client != nil && len(passages) > 0 {
		answer, err := m.client.Generate(ctx, genai.GenerateRequest{
			System: recoverySystem,
			Messages: []genai.Message{
				{Role: genai.RoleUser, Text: recoveryPrompt(orphan.Content, passages)},
			},
		})
		if err == nil && strings.TrimSpace(answer) != "" {
			return answer
		}
		if err != nil {
			m.logger.Debug("recovery generation unavailable, using fallback", "error", err)
		}
	}
	return fallbackAnswer(passages)
}

func recoveryPrompt(question string, passages []*Passage) string {
	var b strings.Builder
	b.WriteString("Question:\n")
	b.WriteString(question)
	b.WriteString("\n\nSource passages:\n")
	for _, p := range passages {
		fmt.Fprintf(&b, "[%d] (%s) %s\n", p.ReferenceNumber, p.DocumentName, p.Content)
	}
	return b.String()
}

// fallbackAnswer builds a recovery answer without a model. It presents the
// passages the interrupted exchange retrieved, or admits the interruption
// when nothing was retrieved.
func fallbackAnswer(passages []*Passage) string {
	if len(passages) == 0 {
		return "This answer was interrupted before it could be completed, and no source material was retrieved for the question. Please ask again."
	}

	var b strings.Builder
	b.WriteString("This answer was interrupted before it could be completed. The following passages were retrieved for the question:\n")
	for _, p := range passages {
		fmt.Fprintf(&b, "\n[%d] %s: %s", p.ReferenceNumber, p.DocumentName, p.Content)
	}
	return b.String()
}
