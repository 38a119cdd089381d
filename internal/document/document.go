// Package document exposes the catalog of source documents a session can
// draw retrieval from. Documents are ingested elsewhere; this package reads
// their metadata and maintains the cached probe questions the retrieval
// orchestrator reuses across turns.
package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/quillhq/quill/internal/sqlc"
)

// ErrNotFound indicates the requested document does not exist.
var ErrNotFound = errors.New("document not found")

// Document is a retrievable source document. Outline describes the
// document's structure and Digest condenses its content; both feed probe
// question synthesis without loading full text.
type Document struct {
	ID             string
	OwnerID        string
	Name           string
	Outline        string
	Digest         string
	ProbeQuestions []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Querier is the database surface the catalog needs.
type Querier interface {
	GetDocument(ctx context.Context, id string) (sqlc.Document, error)
	ListDocumentsByIDs(ctx context.Context, arg sqlc.ListDocumentsByIDsParams) ([]sqlc.Document, error)
	UpdateProbeQuestions(ctx context.Context, arg sqlc.UpdateProbeQuestionsParams) error
}

// Catalog reads document metadata and persists probe questions.
type Catalog struct {
	querier Querier
	logger  *slog.Logger
}

// NewCatalog creates a Catalog.
func NewCatalog(querier Querier, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{querier: querier, logger: logger}
}

// Document retrieves a single document by id.
func (c *Catalog) Document(ctx context.Context, id string) (*Document, error) {
	row, err := c.querier.GetDocument(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("getting document %s: %w", id, err)
	}
	return documentFromRow(row)
}

// Documents resolves a set of document ids for an owner. Unknown ids are
// silently absent from the result; the caller decides whether that matters.
func (c *Catalog) Documents(ctx context.Context, ownerID string, ids []string) ([]*Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := c.querier.ListDocumentsByIDs(ctx, sqlc.ListDocumentsByIDsParams{
		OwnerID:     ownerID,
		DocumentIds: ids,
	})
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}

	docs := make([]*Document, 0, len(rows))
	for _, row := range rows {
		doc, err := documentFromRow(row)
		if err != nil {
			c.logger.Warn("skipping document with malformed probe questions",
				"document_id", row.ID, "error", err)
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// SaveProbeQuestions replaces a document's cached probe questions.
func (c *Catalog) SaveProbeQuestions(ctx context.Context, documentID string, questions []string) error {
	payload, err := json.Marshal(questions)
	if err != nil {
		return fmt.Errorf("encoding probe questions: %w", err)
	}
	if err := c.querier.UpdateProbeQuestions(ctx, sqlc.UpdateProbeQuestionsParams{
		DocumentID:     documentID,
		ProbeQuestions: payload,
	}); err != nil {
		return fmt.Errorf("saving probe questions for %s: %w", documentID, err)
	}

	c.logger.Debug("saved probe questions", "document_id", documentID, "count", len(questions))
	return nil
}

func documentFromRow(row sqlc.Document) (*Document, error) {
	doc := &Document{
		ID:        row.ID,
		OwnerID:   row.OwnerID,
		Name:      row.Name,
		Outline:   row.Outline,
		Digest:    row.Digest,
		CreatedAt: row.CreatedAt.Time,
		UpdatedAt: row.UpdatedAt.Time,
	}
	if len(row.ProbeQuestions) > 0 {
		if err := json.Unmarshal(row.ProbeQuestions, &doc.ProbeQuestions); err != nil {
			return nil, fmt.Errorf("decoding probe questions: %w", err)
		}
	}
	return doc, nil
}
