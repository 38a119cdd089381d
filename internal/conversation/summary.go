package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/quillhq/quill/internal/genai"
)

const summaryPromptHeader = `Condense the following conversation excerpt into a short factual summary.
Keep concrete facts, decisions, and open questions. Write at most three sentences.
Do not mention that this is a summary.

Conversation:
`

// Summarizer condenses conversation history on a fixed cadence so long
// sessions keep a bounded prompt. Every N completed exchanges it summarizes
// the block since the previous summary and stores the result on the
// assistant message that closes the block.
type Summarizer struct {
	store  *Store
	client genai.Client
	every  int
	logger *slog.Logger
}

// NewSummarizer creates a Summarizer that summarizes every `every`
// completed exchanges.
func NewSummarizer(store *Store, client genai.Client, every int, logger *slog.Logger) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{
		store:  store,
		client: client,
		every:  every,
		logger: logger,
	}
}

// MaybeSummarize summarizes the block that closingMessageID completes, if
// the session has reached the cadence boundary. Summarization is a quality
// optimization, never a correctness requirement: any failure is logged and
// swallowed so the exchange it trails stays successful.
func (s *Summarizer) MaybeSummarize(ctx context.Context, sessionID, closingMessageID uuid.UUID) {
	count, err := s.store.CountExchanges(ctx, sessionID)
	if err != nil {
		s.logger.Warn("summary cadence check failed", "session_id", sessionID, "error", err)
		return
	}
	if s.every <= 0 || count == 0 || count%s.every != 0 {
		return
	}

	block, err := s.summaryBlock(ctx, sessionID)
	if err != nil {
		s.logger.Warn("summary block load failed", "session_id", sessionID, "error", err)
		return
	}
	if block == "" {
		return
	}

	summary, err := s.client.Complete(ctx, summaryPromptHeader+block)
	if err != nil {
		s.logger.Warn("summary generation failed", "session_id", sessionID, "error", err)
		return
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return
	}

	if err := s.store.SetSummary(ctx, closingMessageID, summary); err != nil {
		s.logger.Warn("summary persistence failed",
			"session_id", sessionID, "message_id", closingMessageID, "error", err)
		return
	}

	s.logger.Debug("stored block summary",
		"session_id", sessionID, "message_id", closingMessageID, "exchanges", count)
}

// summaryBlock renders the messages since the last stored summary as a
// transcript for the summarization prompt.
func (s *Summarizer) summaryBlock(ctx context.Context, sessionID uuid.UUID) (string, error) {
	messages, err := s.store.Messages(ctx, sessionID, maxScanMessages, 0)
	if err != nil {
		return "", err
	}

	// Start after the most recent message that already carries a summary.
	start := 0
	for i, msg := range messages {
		if msg.Summary != "" {
			start = i + 1
		}
	}

	var b strings.Builder
	for _, msg := range messages[start:] {
		fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
	}
	return strings.TrimSpace(b.String()), nil
}
