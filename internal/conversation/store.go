package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quillhq/quill/internal/sqlc"
)

// Querier defines the database operations the store needs. Defined on the
// consumer side so tests can substitute a mock for the sqlc implementation.
type Querier interface {
	// Session operations
	CreateSession(ctx context.Context, arg sqlc.CreateSessionParams) (sqlc.Session, error)
	GetSession(ctx context.Context, id pgtype.UUID) (sqlc.Session, error)
	ListSessionIDs(ctx context.Context) ([]pgtype.UUID, error)
	ListSessionsByOwner(ctx context.Context, arg sqlc.ListSessionsByOwnerParams) ([]sqlc.Session, error)
	LockSession(ctx context.Context, id pgtype.UUID) (pgtype.UUID, error)
	AllocateReferenceNumbers(ctx context.Context, arg sqlc.AllocateReferenceNumbersParams) (int32, error)
	SetContextDocuments(ctx context.Context, arg sqlc.SetContextDocumentsParams) error
	UpdateSessionActivity(ctx context.Context, arg sqlc.UpdateSessionActivityParams) error

	// Message operations
	AddMessage(ctx context.Context, arg sqlc.AddMessageParams) (sqlc.Message, error)
	GetMessages(ctx context.Context, arg sqlc.GetMessagesParams) ([]sqlc.Message, error)
	GetMaxSequenceNumber(ctx context.Context, sessionID pgtype.UUID) (int32, error)
	CountMessagesByRole(ctx context.Context, arg sqlc.CountMessagesByRoleParams) (int64, error)
	ListSessionSummaries(ctx context.Context, sessionID pgtype.UUID) ([]*string, error)
	SetMessageSummary(ctx context.Context, arg sqlc.SetMessageSummaryParams) error

	// Passage operations
	AddPassage(ctx context.Context, arg sqlc.AddPassageParams) (sqlc.Passage, error)
	GetMessagePassages(ctx context.Context, messageID pgtype.UUID) ([]sqlc.Passage, error)
	GetPassageByReference(ctx context.Context, arg sqlc.GetPassageByReferenceParams) (sqlc.Passage, error)
	GetSessionPassages(ctx context.Context, sessionID pgtype.UUID) ([]sqlc.Passage, error)

	// Audit operations
	AddSearchHit(ctx context.Context, arg sqlc.AddSearchHitParams) error

	// Usage operations
	IncrementMessageCount(ctx context.Context, ownerID string) (int32, error)
}

// Store manages conversation persistence with a PostgreSQL backend.
//
// Store is safe for concurrent use by multiple goroutines. Every write that
// touches sequence numbers or reference numbers runs inside a transaction
// that first locks the session row, so concurrent exchanges on the same
// session serialize instead of racing.
type Store struct {
	querier Querier
	pool    *pgxpool.Pool
	logger  *slog.Logger
}

// NewStore creates a Store. The pool is used for transaction support and may
// be nil in tests with a mock querier; the store then runs each operation
// against the querier directly, without transactional guarantees.
func NewStore(querier Querier, pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		querier: querier,
		pool:    pool,
		logger:  logger,
	}
}

// inTx runs fn inside a database transaction, or directly against the
// querier when no pool is configured.
func (s *Store) inTx(ctx context.Context, fn func(q Querier) error) error {
	if s.pool == nil {
		return fn(s.querier)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			s.logger.Debug("transaction rollback", "error", err)
		}
	}()

	if err := fn(sqlc.New(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// CreateSession creates a new conversation session for owner, optionally
// scoped to a set of context documents.
func (s *Store) CreateSession(ctx context.Context, ownerID, title string, contextDocumentIDs []string) (*Session, error) {
	var titlePtr *string
	if title != "" {
		titlePtr = &title
	}

	row, err := s.querier.CreateSession(ctx, sqlc.CreateSessionParams{
		OwnerID:            ownerID,
		Title:              titlePtr,
		ContextDocumentIds: contextDocumentIDs,
	})
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	session := sessionFromRow(row)
	s.logger.Debug("created session", "id", session.ID, "owner_id", ownerID)
	return session, nil
}

// Session retrieves a session by id.
func (s *Store) Session(ctx context.Context, sessionID uuid.UUID) (*Session, error) {
	row, err := s.querier.GetSession(ctx, uuidToPg(sessionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("session %s: %w", sessionID, ErrSessionNotFound)
		}
		return nil, fmt.Errorf("getting session %s: %w", sessionID, err)
	}
	return sessionFromRow(row), nil
}

// Sessions lists an owner's sessions ordered by most recent activity.
func (s *Store) Sessions(ctx context.Context, ownerID string, limit, offset int32) ([]*Session, error) {
	rows, err := s.querier.ListSessionsByOwner(ctx, sqlc.ListSessionsByOwnerParams{
		OwnerID:      ownerID,
		ResultLimit:  limit,
		ResultOffset: offset,
	})
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}

	sessions := make([]*Session, 0, len(rows))
	for _, row := range rows {
		sessions = append(sessions, sessionFromRow(row))
	}
	return sessions, nil
}

// SessionIDs returns the ids of every session. Used by the integrity
// manager during the startup sweep.
func (s *Store) SessionIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.querier.ListSessionIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing session ids: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, pgToUUID(row))
	}
	return ids, nil
}

// SetContextDocuments replaces the set of documents the session draws
// retrieval from.
func (s *Store) SetContextDocuments(ctx context.Context, sessionID uuid.UUID, documentIDs []string) error {
	if err := s.querier.SetContextDocuments(ctx, sqlc.SetContextDocumentsParams{
		SessionID:          uuidToPg(sessionID),
		ContextDocumentIds: documentIDs,
	}); err != nil {
		return fmt.Errorf("setting context documents: %w", err)
	}
	return nil
}

// AppendUserMessage persists a user message at the next sequence number.
// The message is durable once this returns, before any retrieval or
// generation work begins, so a crash mid-exchange can never lose it.
func (s *Store) AppendUserMessage(ctx context.Context, sessionID uuid.UUID, content string) (*Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}

	var msg *Message
	err := s.inTx(ctx, func(q Querier) error {
		if _, err := q.LockSession(ctx, uuidToPg(sessionID)); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("session %s: %w", sessionID, ErrSessionNotFound)
			}
			return fmt.Errorf("locking session: %w", err)
		}

		maxSeq, err := q.GetMaxSequenceNumber(ctx, uuidToPg(sessionID))
		if err != nil {
			return fmt.Errorf("getting max sequence number: %w", err)
		}

		row, err := q.AddMessage(ctx, sqlc.AddMessageParams{
			SessionID:      uuidToPg(sessionID),
			Role:           RoleUser,
			Content:        content,
			SequenceNumber: maxSeq + 1,
		})
		if err != nil {
			return fmt.Errorf("inserting user message: %w", err)
		}

		if err := q.UpdateSessionActivity(ctx, sqlc.UpdateSessionActivityParams{
			SessionID:    uuidToPg(sessionID),
			MessageCount: maxSeq + 1,
		}); err != nil {
			return fmt.Errorf("updating session activity: %w", err)
		}

		msg = messageFromRow(row)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("appended user message",
		"session_id", sessionID, "message_id", msg.ID, "sequence", msg.SequenceNumber)
	return msg, nil
}

// AddPassages persists extracted passages for a user message, assigning
// each a reference number from the session's monotonic counter. Numbers are
// allocated as a contiguous block inside the transaction, so they are unique
// within the session even under concurrent exchanges, and are never reused
// after rollback of a later transaction.
func (s *Store) AddPassages(ctx context.Context, sessionID, messageID uuid.UUID, drafts []PassageDraft) ([]*Passage, error) {
	if len(drafts) == 0 {
		return nil, nil
	}

	var passages []*Passage
	err := s.inTx(ctx, func(q Querier) error {
		if _, err := q.LockSession(ctx, uuidToPg(sessionID)); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("session %s: %w", sessionID, ErrSessionNotFound)
			}
			return fmt.Errorf("locking session: %w", err)
		}

		upper, err := q.AllocateReferenceNumbers(ctx, sqlc.AllocateReferenceNumbersParams{
			SessionID: uuidToPg(sessionID),
			Count:     int32(len(drafts)), // #nosec G115 -- draft count bounded by search width
		})
		if err != nil {
			return fmt.Errorf("allocating reference numbers: %w", err)
		}

		first := upper - int32(len(drafts)) + 1 // #nosec G115
		passages = make([]*Passage, 0, len(drafts))
		for i, draft := range drafts {
			row, err := q.AddPassage(ctx, sqlc.AddPassageParams{
				SessionID:       uuidToPg(sessionID),
				MessageID:       uuidToPg(messageID),
				DocumentID:      draft.DocumentID,
				DocumentName:    draft.DocumentName,
				Content:         draft.Content,
				ReferenceNumber: first + int32(i), // #nosec G115
			})
			if err != nil {
				return fmt.Errorf("inserting passage %d: %w", i, err)
			}
			passages = append(passages, passageFromRow(row))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("added passages",
		"session_id", sessionID, "message_id", messageID, "count", len(passages))
	return passages, nil
}

// RecordSearchHits appends raw search results to the audit trail. Hits are
// recorded before any filtering or extraction, so the trail shows what the
// search returned even when nothing survived to become a passage.
func (s *Store) RecordSearchHits(ctx context.Context, sessionID, messageID uuid.UUID, hits []HitRecord) error {
	for i, hit := range hits {
		if err := s.querier.AddSearchHit(ctx, sqlc.AddSearchHitParams{
			SessionID:    uuidToPg(sessionID),
			MessageID:    uuidToPg(messageID),
			SubQuery:     hit.SubQuery,
			DocumentID:   hit.DocumentID,
			DocumentName: hit.DocumentName,
			ChunkText:    hit.ChunkText,
			Rank:         int32(hit.Rank), // #nosec G115 -- rank bounded by top-k
		}); err != nil {
			return fmt.Errorf("recording search hit %d: %w", i, err)
		}
	}
	return nil
}

// PassageByReference resolves a reference number to its passage within a
// session.
func (s *Store) PassageByReference(ctx context.Context, sessionID uuid.UUID, referenceNumber int) (*Passage, error) {
	row, err := s.querier.GetPassageByReference(ctx, sqlc.GetPassageByReferenceParams{
		SessionID:       uuidToPg(sessionID),
		ReferenceNumber: int32(referenceNumber), // #nosec G115
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("reference %d in session %s: %w", referenceNumber, sessionID, ErrPassageNotFound)
		}
		return nil, fmt.Errorf("getting passage by reference: %w", err)
	}
	return passageFromRow(row), nil
}

// MessagePassages returns the passages extracted for a user message,
// ordered by reference number.
func (s *Store) MessagePassages(ctx context.Context, messageID uuid.UUID) ([]*Passage, error) {
	rows, err := s.querier.GetMessagePassages(ctx, uuidToPg(messageID))
	if err != nil {
		return nil, fmt.Errorf("getting message passages: %w", err)
	}
	return passagesFromRows(rows), nil
}

// SessionPassages returns every passage in a session, ordered by reference
// number.
func (s *Store) SessionPassages(ctx context.Context, sessionID uuid.UUID) ([]*Passage, error) {
	rows, err := s.querier.GetSessionPassages(ctx, uuidToPg(sessionID))
	if err != nil {
		return nil, fmt.Errorf("getting session passages: %w", err)
	}
	return passagesFromRows(rows), nil
}

// Messages retrieves a session's messages ordered by sequence number.
func (s *Store) Messages(ctx context.Context, sessionID uuid.UUID, limit, offset int32) ([]*Message, error) {
	rows, err := s.querier.GetMessages(ctx, sqlc.GetMessagesParams{
		SessionID:    uuidToPg(sessionID),
		ResultLimit:  limit,
		ResultOffset: offset,
	})
	if err != nil {
		return nil, fmt.Errorf("getting messages for session %s: %w", sessionID, err)
	}

	messages := make([]*Message, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, messageFromRow(row))
	}
	return messages, nil
}

// CompleteExchangeParams carries everything persisted when an exchange
// finishes.
type CompleteExchangeParams struct {
	SessionID uuid.UUID
	OwnerID   string
	Content   string

	// Recovered marks assistant messages synthesized by the integrity
	// manager rather than produced live.
	Recovered bool

	// CreatedAt overrides the message timestamp. Zero means now. The
	// integrity manager sets it to place recovered answers just after the
	// orphaned question they repair.
	CreatedAt time.Time
}

// CompleteExchange persists the assistant message and charges the owner's
// usage counter in a single transaction. Either both happen or neither
// does; an exchange is never billed without its answer being durable.
func (s *Store) CompleteExchange(ctx context.Context, params CompleteExchangeParams) (*Message, int, error) {
	if strings.TrimSpace(params.Content) == "" {
		return nil, 0, ErrEmptyContent
	}

	var (
		msg  *Message
		used int32
	)
	err := s.inTx(ctx, func(q Querier) error {
		if _, err := q.LockSession(ctx, uuidToPg(params.SessionID)); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("session %s: %w", params.SessionID, ErrSessionNotFound)
			}
			return fmt.Errorf("locking session: %w", err)
		}

		maxSeq, err := q.GetMaxSequenceNumber(ctx, uuidToPg(params.SessionID))
		if err != nil {
			return fmt.Errorf("getting max sequence number: %w", err)
		}

		var createdAt pgtype.Timestamptz
		if !params.CreatedAt.IsZero() {
			createdAt = pgtype.Timestamptz{Time: params.CreatedAt, Valid: true}
		}

		row, err := q.AddMessage(ctx, sqlc.AddMessageParams{
			SessionID:      uuidToPg(params.SessionID),
			Role:           RoleAssistant,
			Content:        params.Content,
			Recovered:      params.Recovered,
			SequenceNumber: maxSeq + 1,
			CreatedAt:      createdAt,
		})
		if err != nil {
			return fmt.Errorf("inserting assistant message: %w", err)
		}

		used, err = q.IncrementMessageCount(ctx, params.OwnerID)
		if err != nil {
			return fmt.Errorf("incrementing usage count: %w", err)
		}

		if err := q.UpdateSessionActivity(ctx, sqlc.UpdateSessionActivityParams{
			SessionID:    uuidToPg(params.SessionID),
			MessageCount: maxSeq + 1,
		}); err != nil {
			return fmt.Errorf("updating session activity: %w", err)
		}

		msg = messageFromRow(row)
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	s.logger.Debug("completed exchange",
		"session_id", params.SessionID,
		"message_id", msg.ID,
		"recovered", params.Recovered,
		"messages_used", used)
	return msg, int(used), nil
}

// SetSummary stores a condensed summary on the message that closes a
// conversation block.
func (s *Store) SetSummary(ctx context.Context, messageID uuid.UUID, summary string) error {
	if err := s.querier.SetMessageSummary(ctx, sqlc.SetMessageSummaryParams{
		MessageID: uuidToPg(messageID),
		Summary:   &summary,
	}); err != nil {
		return fmt.Errorf("setting message summary: %w", err)
	}
	return nil
}

// CountExchanges returns the number of completed exchanges in a session,
// which equals the number of assistant messages.
func (s *Store) CountExchanges(ctx context.Context, sessionID uuid.UUID) (int, error) {
	count, err := s.querier.CountMessagesByRole(ctx, sqlc.CountMessagesByRoleParams{
		SessionID: uuidToPg(sessionID),
		Role:      RoleAssistant,
	})
	if err != nil {
		return 0, fmt.Errorf("counting exchanges: %w", err)
	}
	return int(count), nil
}

// Summaries returns the accumulated block summaries of a session in
// chronological order.
func (s *Store) Summaries(ctx context.Context, sessionID uuid.UUID) ([]string, error) {
	rows, err := s.querier.ListSessionSummaries(ctx, uuidToPg(sessionID))
	if err != nil {
		return nil, fmt.Errorf("listing session summaries: %w", err)
	}

	summaries := make([]string, 0, len(rows))
	for _, row := range rows {
		if row != nil && *row != "" {
			summaries = append(summaries, *row)
		}
	}
	return summaries, nil
}

func sessionFromRow(row sqlc.Session) *Session {
	session := &Session{
		ID:                 pgToUUID(row.ID),
		OwnerID:            row.OwnerID,
		NextReferenceID:    int(row.NextReferenceID),
		ContextDocumentIDs: row.ContextDocumentIds,
		MessageCount:       int(row.MessageCount),
		CreatedAt:          row.CreatedAt.Time,
		UpdatedAt:          row.UpdatedAt.Time,
	}
	if row.Title != nil {
		session.Title = *row.Title
	}
	return session
}

func messageFromRow(row sqlc.Message) *Message {
	msg := &Message{
		ID:             pgToUUID(row.ID),
		SessionID:      pgToUUID(row.SessionID),
		Role:           row.Role,
		Content:        row.Content,
		Recovered:      row.Recovered,
		SequenceNumber: int(row.SequenceNumber),
		CreatedAt:      row.CreatedAt.Time,
	}
	if row.Summary != nil {
		msg.Summary = *row.Summary
	}
	return msg
}

func passageFromRow(row sqlc.Passage) *Passage {
	return &Passage{
		ID:              pgToUUID(row.ID),
		SessionID:       pgToUUID(row.SessionID),
		MessageID:       pgToUUID(row.MessageID),
		DocumentID:      row.DocumentID,
		DocumentName:    row.DocumentName,
		Content:         row.Content,
		ReferenceNumber: int(row.ReferenceNumber),
		CreatedAt:       row.CreatedAt.Time,
	}
}

func passagesFromRows(rows []sqlc.Passage) []*Passage {
	passages := make([]*Passage, 0, len(rows))
	for _, row := range rows {
		passages = append(passages, passageFromRow(row))
	}
	return passages
}

func uuidToPg(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

func pgToUUID(id pgtype.UUID) uuid.UUID {
	if !id.Valid {
		return uuid.Nil
	}
	return id.Bytes
}
