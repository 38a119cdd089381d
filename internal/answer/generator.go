package answer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/quillhq/quill/internal/conversation"
	"github.com/quillhq/quill/internal/genai"
)

// State is the generator's lifecycle position for one turn.
type State int32

const (
	StateNotStarted State = iota
	StateStreaming
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

const generateSystem = `You answer questions using only the source passages and conversation context provided.

Citation contract:
- After every statement drawn from a passage, append a marker of the form [REF]{"id":"N"}[/REF], where N is that passage's reference number.
- Use only the reference numbers listed in the passages. Never invent numbers.
- Statements that come from conversation context alone carry no marker.
- If the passages do not cover the question, say so; do not answer from outside knowledge.`

// GenerateParams carries everything one generation call sees.
type GenerateParams struct {
	// Question is the user message being answered.
	Question string

	// History is the session's recent messages, oldest first, excluding the
	// question itself.
	History []genai.Message

	// Summaries are accumulated block summaries standing in for older
	// history that is no longer replayed in full.
	Summaries []string

	// Passages are this turn's extracted passages with their reference
	// numbers.
	Passages []*conversation.Passage
}

// Result is the outcome of one streamed generation.
type Result struct {
	// Text is the accumulated answer, including any inline reference
	// markers. On failure it holds whatever was emitted before the cut.
	Text string

	// State is Completed or Failed.
	State State
}

// Generator drives the generation service for one turn, forwarding every
// chunk to the caller the moment it arrives while accumulating the full
// text.
type Generator struct {
	client genai.Client
	logger *slog.Logger
}

// NewGenerator creates a Generator.
func NewGenerator(client genai.Client, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{client: client, logger: logger}
}

// Stream runs one generation. Chunks reach forward in upstream emission
// order with no buffering, reordering, or merging; simultaneously each chunk
// is appended to the accumulator that becomes Result.Text. Errors never
// panic past the caller: the stream terminates and the failure comes back
// alongside the partial result.
func (g *Generator) Stream(ctx context.Context, params GenerateParams, forward genai.StreamCallback) (Result, error) {
	var acc strings.Builder

	messages := buildMessages(params)
	_, err := g.client.GenerateStream(ctx, genai.GenerateRequest{
		System:   generateSystem,
		Messages: messages,
	}, func(ctx context.Context, chunk string) error {
		if err := forward(ctx, chunk); err != nil {
			return err
		}
		acc.WriteString(chunk)
		return nil
	})

	result := Result{Text: acc.String()}
	if err != nil {
		result.State = StateFailed
		g.logger.Debug("generation stream failed",
			"state", StateFailed.String(), "partial_len", len(result.Text), "error", err)
		return result, fmt.Errorf("generation stream: %w", err)
	}

	result.State = StateCompleted
	return result, nil
}

// buildMessages assembles the model-visible conversation: summaries and
// passages as leading context, then recent history, then the question.
func buildMessages(params GenerateParams) []genai.Message {
	var messages []genai.Message

	if ctx := contextBlock(params); ctx != "" {
		messages = append(messages, genai.Message{Role: genai.RoleUser, Text: ctx})
		messages = append(messages, genai.Message{
			Role: genai.RoleAssistant,
			Text: "Understood. I will answer from these passages and cite them by reference number.",
		})
	}

	messages = append(messages, params.History...)
	messages = append(messages, genai.Message{Role: genai.RoleUser, Text: params.Question})
	return messages
}

func contextBlock(params GenerateParams) string {
	var b strings.Builder

	if len(params.Summaries) > 0 {
		b.WriteString("Conversation so far, condensed:\n")
		for _, s := range params.Summaries {
			b.WriteString("- ")
			b.WriteString(s)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if len(params.Passages) > 0 {
		b.WriteString("Source passages:\n")
		for _, p := range params.Passages {
			fmt.Fprintf(&b, "[%d] %s: %s\n", p.ReferenceNumber, p.DocumentName, p.Content)
		}
	}

	return strings.TrimSpace(b.String())
}
