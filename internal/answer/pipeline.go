// Package answer drives one conversational turn end to end: persist the
// question, plan and run retrieval, stream the generated answer, resolve
// citations, and complete the exchange transactionally.
package answer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quillhq/quill/internal/conversation"
	"github.com/quillhq/quill/internal/document"
	"github.com/quillhq/quill/internal/genai"
	"github.com/quillhq/quill/internal/planner"
	"github.com/quillhq/quill/internal/retrieval"
)

// historyTail bounds how many recent messages are replayed in full; older
// blocks are represented by their accumulated summaries.
const historyTail = 10

// persistPartialTimeout bounds the best-effort write of a partial answer
// after the caller's context is already gone.
const persistPartialTimeout = 5 * time.Second

// Events receives a turn's streaming output. Callbacks run on the turn's
// goroutine; a nil callback is skipped.
type Events struct {
	// UserMessage delivers the persisted user-message id, before any
	// retrieval or generation work starts.
	UserMessage func(id uuid.UUID)

	// Chunk delivers one raw answer fragment in emission order.
	Chunk func(ctx context.Context, chunk string) error

	// AssistantMessage delivers the persisted assistant-message id after
	// the exchange commits.
	AssistantMessage func(id uuid.UUID)
}

// TurnRequest is one user turn.
type TurnRequest struct {
	SessionID uuid.UUID
	OwnerID   string
	Text      string
}

// TurnResult is the completed exchange.
type TurnResult struct {
	UserMessage      *conversation.Message
	AssistantMessage *conversation.Message
	Citations        []conversation.Citation
	Passages         []*conversation.Passage
	MessagesUsed     int
}

// turnContext carries turn-scoped state between stages. Each stage returns
// a new value instead of mutating shared state.
type turnContext struct {
	session   *conversation.Session
	userMsg   *conversation.Message
	tail      []*conversation.Message
	plan      planner.Plan
	documents []*document.Document
	passages  []*conversation.Passage
	answer    string
	citations []conversation.Citation
}

// Pipeline wires the turn stages together.
type Pipeline struct {
	store        *conversation.Store
	planner      *planner.Planner
	orchestrator *retrieval.Orchestrator
	generator    *Generator
	resolver     *Resolver
	summarizer   *conversation.Summarizer
	catalog      *document.Catalog
	logger       *slog.Logger
}

// NewPipeline creates a Pipeline.
func NewPipeline(
	store *conversation.Store,
	pl *planner.Planner,
	orchestrator *retrieval.Orchestrator,
	generator *Generator,
	resolver *Resolver,
	summarizer *conversation.Summarizer,
	catalog *document.Catalog,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		store:        store,
		planner:      pl,
		orchestrator: orchestrator,
		generator:    generator,
		resolver:     resolver,
		summarizer:   summarizer,
		catalog:      catalog,
		logger:       logger,
	}
}

// Answer runs one full turn. Any error it returns is a *TurnError; partial
// failures inside retrieval degrade silently per stage policy, so the error
// classes that surface are empty input, upstream generation failure,
// cancellation, and persistence failure.
func (p *Pipeline) Answer(ctx context.Context, req TurnRequest, events Events) (*TurnResult, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, newTurnError(FailEmptyInput, conversation.ErrEmptyContent)
	}

	tc, err := p.persistQuestion(ctx, req, events)
	if err != nil {
		return nil, normalizeError(err)
	}

	tc, err = p.retrieve(ctx, req, tc)
	if err != nil {
		return nil, normalizeError(err)
	}

	tc, err = p.generate(ctx, req, tc, events)
	if err != nil {
		return nil, normalizeError(err)
	}

	tc = p.resolveCitations(ctx, req, tc)

	result, err := p.completeExchange(ctx, req, tc, events)
	if err != nil {
		return nil, normalizeError(err)
	}
	return result, nil
}

// persistQuestion makes the user message durable and acknowledges its id
// before any model work begins.
func (p *Pipeline) persistQuestion(ctx context.Context, req TurnRequest, events Events) (turnContext, error) {
	session, err := p.store.Session(ctx, req.SessionID)
	if err != nil {
		return turnContext{}, err
	}
	// A session id alone grants nothing. Foreign sessions look exactly
	// like missing ones to the caller.
	if session.OwnerID != req.OwnerID {
		return turnContext{}, fmt.Errorf("session %s: %w", req.SessionID, conversation.ErrSessionNotFound)
	}

	userMsg, err := p.store.AppendUserMessage(ctx, req.SessionID, req.Text)
	if err != nil {
		return turnContext{}, err
	}
	if events.UserMessage != nil {
		events.UserMessage(userMsg.ID)
	}

	tail, err := p.conversationTail(ctx, req.SessionID, userMsg.SequenceNumber)
	if err != nil {
		return turnContext{}, err
	}

	return turnContext{session: session, userMsg: userMsg, tail: tail}, nil
}

// retrieve plans sub-queries and gathers passages. Retrieval degradation is
// silent; only audit or reference-number persistence failures surface.
func (p *Pipeline) retrieve(ctx context.Context, req TurnRequest, tc turnContext) (turnContext, error) {
	tc.plan = p.planner.Decompose(ctx, req.Text, messageLines(tc.tail))

	var err error
	tc.documents, err = p.catalog.Documents(ctx, req.OwnerID, tc.session.ContextDocumentIDs)
	if err != nil {
		return tc, err
	}

	drafts, err := p.orchestrator.Retrieve(ctx, retrieval.RetrieveParams{
		SessionID: req.SessionID,
		MessageID: tc.userMsg.ID,
		OwnerID:   req.OwnerID,
		Plan:      tc.plan,
		Documents: tc.documents,
	})
	if err != nil {
		return tc, err
	}

	tc.passages, err = p.store.AddPassages(ctx, req.SessionID, tc.userMsg.ID, drafts)
	if err != nil {
		return tc, err
	}
	return tc, nil
}

// generate streams the answer. On cancellation mid-stream, the accumulated
// partial text is persisted best-effort before the error surfaces, so the
// caller keeps what was already shown.
func (p *Pipeline) generate(ctx context.Context, req TurnRequest, tc turnContext, events Events) (turnContext, error) {
	summaries, err := p.store.Summaries(ctx, req.SessionID)
	if err != nil {
		return tc, err
	}

	forward := func(ctx context.Context, chunk string) error {
		if events.Chunk == nil {
			return nil
		}
		return events.Chunk(ctx, chunk)
	}

	result, err := p.generator.Stream(ctx, GenerateParams{
		Question:  req.Text,
		History:   historyMessages(tc.tail),
		Summaries: summaries,
		Passages:  tc.passages,
	}, forward)
	if err != nil {
		if canceled(err) && strings.TrimSpace(result.Text) != "" {
			p.persistPartial(req, result.Text, events)
			return tc, newTurnError(FailCanceled, err)
		}
		return tc, newTurnError(FailUpstream, err)
	}
	if strings.TrimSpace(result.Text) == "" {
		return tc, newTurnError(FailUpstream, genai.ErrEmptyResponse)
	}

	tc.answer = result.Text
	return tc, nil
}

// resolveCitations never fails a turn; unresolvable markers are already
// dropped inside the resolver.
func (p *Pipeline) resolveCitations(ctx context.Context, req TurnRequest, tc turnContext) turnContext {
	tc.citations = p.resolver.Resolve(ctx, req.SessionID, tc.answer)
	return tc
}

// completeExchange commits the assistant message and the usage charge, then
// runs the summarization cadence.
func (p *Pipeline) completeExchange(ctx context.Context, req TurnRequest, tc turnContext, events Events) (*TurnResult, error) {
	assistantMsg, used, err := p.store.CompleteExchange(ctx, conversation.CompleteExchangeParams{
		SessionID: req.SessionID,
		OwnerID:   req.OwnerID,
		Content:   tc.answer,
	})
	if err != nil {
		return nil, newTurnError(FailPersistence, err)
	}
	if events.AssistantMessage != nil {
		events.AssistantMessage(assistantMsg.ID)
	}

	p.summarizer.MaybeSummarize(ctx, req.SessionID, assistantMsg.ID)

	p.logger.Info("turn completed",
		"session_id", req.SessionID,
		"user_message_id", tc.userMsg.ID,
		"assistant_message_id", assistantMsg.ID,
		"passages", len(tc.passages),
		"citations", len(tc.citations))

	return &TurnResult{
		UserMessage:      tc.userMsg,
		AssistantMessage: assistantMsg,
		Citations:        tc.citations,
		Passages:         tc.passages,
		MessagesUsed:     used,
	}, nil
}

// persistPartial stores whatever streamed before a cancellation. Failures
// are logged only; the turn already failed and the integrity manager covers
// the orphan if this write loses too.
func (p *Pipeline) persistPartial(req TurnRequest, text string, events Events) {
	ctx, cancel := context.WithTimeout(context.Background(), persistPartialTimeout)
	defer cancel()

	msg, _, err := p.store.CompleteExchange(ctx, conversation.CompleteExchangeParams{
		SessionID: req.SessionID,
		OwnerID:   req.OwnerID,
		Content:   text,
	})
	if err != nil {
		p.logger.Warn("partial answer persistence failed",
			"session_id", req.SessionID, "error", err)
		return
	}
	if events.AssistantMessage != nil {
		events.AssistantMessage(msg.ID)
	}
	p.logger.Info("persisted partial answer",
		"session_id", req.SessionID, "message_id", msg.ID, "len", len(text))
}

// conversationTail loads the last messages before the current question.
func (p *Pipeline) conversationTail(ctx context.Context, sessionID uuid.UUID, beforeSeq int) ([]*conversation.Message, error) {
	offset := beforeSeq - 1 - historyTail
	limit := historyTail
	if offset < 0 {
		limit += offset
		offset = 0
	}
	if limit <= 0 {
		return nil, nil
	}

	messages, err := p.store.Messages(ctx, sessionID, int32(limit), int32(offset)) // #nosec G115
	if err != nil {
		return nil, fmt.Errorf("loading conversation tail: %w", err)
	}
	return messages, nil
}

func messageLines(messages []*conversation.Message) []string {
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		lines = append(lines, fmt.Sprintf("%s: %s", m.Role, m.Content))
	}
	return lines
}

func historyMessages(messages []*conversation.Message) []genai.Message {
	out := make([]genai.Message, 0, len(messages))
	for _, m := range messages {
		role := genai.RoleUser
		if m.Role == conversation.RoleAssistant {
			role = genai.RoleAssistant
		}
		out = append(out, genai.Message{Role: role, Text: m.Content})
	}
	return out
}

func canceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
