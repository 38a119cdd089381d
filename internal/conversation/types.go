package conversation

import (
	"time"

	"github.com/google/uuid"
)

// Message roles. Within a session, roles alternate strictly in steady
// state; the integrity manager restores alternation after a crash.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Session represents one conversation session. Messages and passages are
// looked up by session id, never embedded, so entity relationships stay
// acyclic.
type Session struct {
	ID                 uuid.UUID
	OwnerID            string
	Title              string
	NextReferenceID    int
	ContextDocumentIDs []string
	MessageCount       int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Message is a single persisted conversation turn.
type Message struct {
	ID             uuid.UUID
	SessionID      uuid.UUID
	Role           string
	Content        string
	Summary        string // condensed summary of the block this message closes, if any
	Recovered      bool   // true for assistant messages synthesized by the integrity manager
	SequenceNumber int
	CreatedAt      time.Time
}

// Passage is a verbatim text span extracted from a source document during
// retrieval. It is owned by the user message whose retrieval produced it
// and is immutable once created.
type Passage struct {
	ID              uuid.UUID
	SessionID       uuid.UUID
	MessageID       uuid.UUID
	DocumentID      string
	DocumentName    string
	Content         string
	ReferenceNumber int
	CreatedAt       time.Time
}

// PassageDraft is an extracted passage awaiting a reference number.
type PassageDraft struct {
	DocumentID   string
	DocumentName string
	Content      string
}

// HitRecord is one raw search hit persisted for audit before filtering.
type HitRecord struct {
	SubQuery     string
	DocumentID   string
	DocumentName string
	ChunkText    string
	Rank         int
}

// Citation links an inline reference marker in an assistant message to the
// passage it cites. Derived from persisted passages, never independently
// stored.
type Citation struct {
	ReferenceID string // string form of the passage's reference number
	DisplayText string // source document name
}
