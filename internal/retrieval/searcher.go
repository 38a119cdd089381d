package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	pgvector "github.com/pgvector/pgvector-go"

	"github.com/quillhq/quill/internal/genai"
	"github.com/quillhq/quill/internal/sqlc"
)

// SearchRequest is one similarity-search call.
type SearchRequest struct {
	OwnerID string
	Query   string
	TopK    int

	// DocumentID scopes the search to a single document when non-empty.
	DocumentID string
}

// Hit is one similarity-search match.
type Hit struct {
	DocumentID   string
	DocumentName string
	Content      string
	Similarity   float64
}

// Searcher is the vector-search capability the orchestrator fans out over.
type Searcher interface {
	Search(ctx context.Context, req SearchRequest) ([]Hit, error)
}

// SearchQuerier is the database surface VectorSearcher needs.
type SearchQuerier interface {
	SearchChunks(ctx context.Context, arg sqlc.SearchChunksParams) ([]sqlc.SearchChunksRow, error)
	SearchChunksByDocument(ctx context.Context, arg sqlc.SearchChunksByDocumentParams) ([]sqlc.SearchChunksByDocumentRow, error)
}

// VectorSearcher searches document chunks by cosine similarity in pgvector.
// The query is embedded with the configured embedding model; results are
// always filtered by owner id, and by document id when the request is
// scoped.
type VectorSearcher struct {
	querier SearchQuerier
	client  genai.Client
	logger  *slog.Logger
}

// NewVectorSearcher creates a VectorSearcher.
func NewVectorSearcher(querier SearchQuerier, client genai.Client, logger *slog.Logger) *VectorSearcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &VectorSearcher{
		querier: querier,
		client:  client,
		logger:  logger,
	}
}

// Search embeds the query and returns the top-K nearest chunks.
func (s *VectorSearcher) Search(ctx context.Context, req SearchRequest) ([]Hit, error) {
	embedding, err := s.client.Embed(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	vec := pgvector.NewVector(embedding)

	if req.DocumentID != "" {
		rows, err := s.querier.SearchChunksByDocument(ctx, sqlc.SearchChunksByDocumentParams{
			OwnerID:        req.OwnerID,
			DocumentID:     req.DocumentID,
			QueryEmbedding: &vec,
			ResultLimit:    int32(req.TopK), // #nosec G115 -- top-k validated by config
		})
		if err != nil {
			return nil, fmt.Errorf("searching document %s: %w", req.DocumentID, err)
		}
		hits := make([]Hit, 0, len(rows))
		for _, row := range rows {
			hits = append(hits, Hit{
				DocumentID:   row.DocumentID,
				DocumentName: row.DocumentName,
				Content:      row.Content,
				Similarity:   row.Similarity,
			})
		}
		return hits, nil
	}

	rows, err := s.querier.SearchChunks(ctx, sqlc.SearchChunksParams{
		OwnerID:        req.OwnerID,
		QueryEmbedding: &vec,
		ResultLimit:    int32(req.TopK), // #nosec G115
	})
	if err != nil {
		return nil, fmt.Errorf("searching chunks: %w", err)
	}
	hits := make([]Hit, 0, len(rows))
	for _, row := range rows {
		hits = append(hits, Hit{
			DocumentID:   row.DocumentID,
			DocumentName: row.DocumentName,
			Content:      row.Content,
			Similarity:   row.Similarity,
		})
	}
	return hits, nil
}
