package document

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillhq/quill/internal/sqlc"
)

type mockQuerier struct {
	docs map[string]sqlc.Document

	lastUpdate sqlc.UpdateProbeQuestionsParams
	updateErr  error
}

func (m *mockQuerier) GetDocument(_ context.Context, id string) (sqlc.Document, error) {
	doc, ok := m.docs[id]
	if !ok {
		return sqlc.Document{}, pgx.ErrNoRows
	}
	return doc, nil
}

func (m *mockQuerier) ListDocumentsByIDs(_ context.Context, arg sqlc.ListDocumentsByIDsParams) ([]sqlc.Document, error) {
	var rows []sqlc.Document
	for _, id := range arg.DocumentIds {
		if doc, ok := m.docs[id]; ok && doc.OwnerID == arg.OwnerID {
			rows = append(rows, doc)
		}
	}
	return rows, nil
}

func (m *mockQuerier) UpdateProbeQuestions(_ context.Context, arg sqlc.UpdateProbeQuestionsParams) error {
	m.lastUpdate = arg
	return m.updateErr
}

func TestCatalog_Document(t *testing.T) {
	q := &mockQuerier{docs: map[string]sqlc.Document{
		"doc-1": {
			ID:             "doc-1",
			OwnerID:        "owner-1",
			Name:           "Field Guide",
			Outline:        "1. Taxonomy 2. Habitat",
			Digest:         "freshwater carpsucker species",
			ProbeQuestions: []byte(`["what rivers?","what depth?"]`),
		},
	}}
	catalog := NewCatalog(q, nil)

	t.Run("decodes probe questions", func(t *testing.T) {
		doc, err := catalog.Document(context.Background(), "doc-1")
		require.NoError(t, err)
		assert.Equal(t, "Field Guide", doc.Name)
		assert.Equal(t, []string{"what rivers?", "what depth?"}, doc.ProbeQuestions)
	})

	t.Run("unknown id maps to ErrNotFound", func(t *testing.T) {
		_, err := catalog.Document(context.Background(), "doc-404")
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestCatalog_Documents(t *testing.T) {
	q := &mockQuerier{docs: map[string]sqlc.Document{
		"doc-1": {ID: "doc-1", OwnerID: "owner-1", Name: "Field Guide"},
		"doc-2": {ID: "doc-2", OwnerID: "owner-2", Name: "Someone Else's"},
	}}
	catalog := NewCatalog(q, nil)

	t.Run("filters by owner and skips unknown ids", func(t *testing.T) {
		docs, err := catalog.Documents(context.Background(), "owner-1", []string{"doc-1", "doc-2", "doc-404"})
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "doc-1", docs[0].ID)
	})

	t.Run("empty id list is a no-op", func(t *testing.T) {
		docs, err := catalog.Documents(context.Background(), "owner-1", nil)
		require.NoError(t, err)
		assert.Empty(t, docs)
	})
}

func TestCatalog_SaveProbeQuestions(t *testing.T) {
	q := &mockQuerier{docs: map[string]sqlc.Document{}}
	catalog := NewCatalog(q, nil)

	err := catalog.SaveProbeQuestions(context.Background(), "doc-1", []string{"q1", "q2"})
	require.NoError(t, err)
	assert.Equal(t, "doc-1", q.lastUpdate.DocumentID)

	var saved []string
	require.NoError(t, json.Unmarshal(q.lastUpdate.ProbeQuestions, &saved))
	assert.Equal(t, []string{"q1", "q2"}, saved)
}
