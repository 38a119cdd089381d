package conversation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillhq/quill/internal/genai"
)

// stubClient is a canned genai.Client for unit tests.
type stubClient struct {
	generateText  string
	generateErr   error
	completeText  string
	completeErr   error
	generateCalls int
	completeCalls int
	lastPrompt    string
}

func (c *stubClient) Generate(_ context.Context, _ genai.GenerateRequest) (string, error) {
	c.generateCalls++
	return c.generateText, c.generateErr
}

func (c *stubClient) GenerateStream(ctx context.Context, req genai.GenerateRequest, cb genai.StreamCallback) (string, error) {
	c.generateCalls++
	if c.generateErr != nil {
		return "", c.generateErr
	}
	if err := cb(ctx, c.generateText); err != nil {
		return "", err
	}
	return c.generateText, nil
}

func (c *stubClient) Complete(_ context.Context, prompt string) (string, error) {
	c.completeCalls++
	c.lastPrompt = prompt
	return c.completeText, c.completeErr
}

func (c *stubClient) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{0.1, 0.2}, nil
}

// orphanSession seeds a session whose last message is an unanswered user
// question, optionally with passages already extracted for it.
func orphanSession(t *testing.T, q *fakeQuerier, store *Store, withPassages bool) (uuid.UUID, *Message) {
	t.Helper()
	sessionID := q.addSession("owner-1")

	orphan, err := store.AppendUserMessage(context.Background(), sessionID, "where do quillbacks spawn?")
	require.NoError(t, err)

	if withPassages {
		_, err = store.AddPassages(context.Background(), sessionID, orphan.ID, []PassageDraft{
			{DocumentID: "doc-1", DocumentName: "Field Guide", Content: "spawning occurs in gravel shallows"},
			{DocumentID: "doc-2", DocumentName: "Atlas", Content: "spring migrations follow tributaries"},
		})
		require.NoError(t, err)
	}
	return sessionID, orphan
}

func TestIntegrityManager_CheckSession(t *testing.T) {
	t.Run("empty session is healthy", func(t *testing.T) {
		q := newFakeQuerier()
		sessionID := q.addSession("owner-1")
		m := NewIntegrityManager(newTestStore(q), genai.Disabled{}, nil)

		orphan, err := m.CheckSession(context.Background(), sessionID)
		require.NoError(t, err)
		assert.Nil(t, orphan)
	})

	t.Run("session ending in assistant message is healthy", func(t *testing.T) {
		q := newFakeQuerier()
		store := newTestStore(q)
		sessionID := q.addSession("owner-1")
		_, err := store.AppendUserMessage(context.Background(), sessionID, "q")
		require.NoError(t, err)
		_, _, err = store.CompleteExchange(context.Background(), CompleteExchangeParams{
			SessionID: sessionID, OwnerID: "owner-1", Content: "a",
		})
		require.NoError(t, err)

		m := NewIntegrityManager(store, genai.Disabled{}, nil)
		orphan, err := m.CheckSession(context.Background(), sessionID)
		require.NoError(t, err)
		assert.Nil(t, orphan)
	})

	t.Run("trailing user message is reported as orphan", func(t *testing.T) {
		q := newFakeQuerier()
		store := newTestStore(q)
		sessionID, want := orphanSession(t, q, store, false)

		m := NewIntegrityManager(store, genai.Disabled{}, nil)
		orphan, err := m.CheckSession(context.Background(), sessionID)
		require.NoError(t, err)
		require.NotNil(t, orphan)
		assert.Equal(t, want.ID, orphan.ID)
	})
}

func TestIntegrityManager_RepairSession(t *testing.T) {
	t.Run("model answers from the orphan's passages", func(t *testing.T) {
		q := newFakeQuerier()
		store := newTestStore(q)
		sessionID, orphan := orphanSession(t, q, store, true)
		client := &stubClient{generateText: "Quillbacks spawn in gravel shallows [1]."}

		m := NewIntegrityManager(store, client, nil)
		recovered, err := m.RepairSession(context.Background(), sessionID)
		require.NoError(t, err)
		require.NotNil(t, recovered)

		assert.Equal(t, 1, client.generateCalls)
		assert.Equal(t, RoleAssistant, recovered.Role)
		assert.True(t, recovered.Recovered)
		assert.Equal(t, "Quillbacks spawn in gravel shallows [1].", recovered.Content)
		assert.Equal(t, orphan.SequenceNumber+1, recovered.SequenceNumber)
		assert.Equal(t, orphan.CreatedAt.Add(time.Millisecond), recovered.CreatedAt)
		assert.Equal(t, int32(1), q.usage["owner-1"], "recovered exchanges charge usage")
	})

	t.Run("disabled client falls back to deterministic answer", func(t *testing.T) {
		q := newFakeQuerier()
		store := newTestStore(q)
		sessionID, _ := orphanSession(t, q, store, true)

		m := NewIntegrityManager(store, genai.Disabled{}, nil)
		recovered, err := m.RepairSession(context.Background(), sessionID)
		require.NoError(t, err)
		require.NotNil(t, recovered)

		assert.Contains(t, recovered.Content, "interrupted")
		assert.Contains(t, recovered.Content, "[1] Field Guide")
		assert.Contains(t, recovered.Content, "[2] Atlas")
	})

	t.Run("orphan with no passages admits the interruption", func(t *testing.T) {
		q := newFakeQuerier()
		store := newTestStore(q)
		sessionID, _ := orphanSession(t, q, store, false)

		m := NewIntegrityManager(store, genai.Disabled{}, nil)
		recovered, err := m.RepairSession(context.Background(), sessionID)
		require.NoError(t, err)
		require.NotNil(t, recovered)
		assert.Contains(t, recovered.Content, "no source material was retrieved")
	})

	t.Run("generation failure falls back instead of failing repair", func(t *testing.T) {
		q := newFakeQuerier()
		store := newTestStore(q)
		sessionID, _ := orphanSession(t, q, store, true)
		client := &stubClient{generateErr: errors.New("model unavailable")}

		m := NewIntegrityManager(store, client, nil)
		recovered, err := m.RepairSession(context.Background(), sessionID)
		require.NoError(t, err)
		require.NotNil(t, recovered)
		assert.Contains(t, recovered.Content, "interrupted")
	})

	t.Run("repair is idempotent", func(t *testing.T) {
		q := newFakeQuerier()
		store := newTestStore(q)
		sessionID, _ := orphanSession(t, q, store, true)

		m := NewIntegrityManager(store, genai.Disabled{}, nil)
		first, err := m.RepairSession(context.Background(), sessionID)
		require.NoError(t, err)
		require.NotNil(t, first)

		second, err := m.RepairSession(context.Background(), sessionID)
		require.NoError(t, err)
		assert.Nil(t, second, "healthy session needs no repair")
		assert.Equal(t, int32(1), q.usage["owner-1"], "usage charged once")
	})
}

func TestIntegrityManager_RepairAll(t *testing.T) {
	q := newFakeQuerier()
	store := newTestStore(q)

	// One orphaned session, one healthy, one empty.
	orphanID, _ := orphanSession(t, q, store, true)
	healthyID := q.addSession("owner-2")
	_, err := store.AppendUserMessage(context.Background(), healthyID, "q")
	require.NoError(t, err)
	_, _, err = store.CompleteExchange(context.Background(), CompleteExchangeParams{
		SessionID: healthyID, OwnerID: "owner-2", Content: "a",
	})
	require.NoError(t, err)
	q.addSession("owner-3")

	m := NewIntegrityManager(store, genai.Disabled{}, nil)
	repaired, err := m.RepairAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, repaired)

	orphan, err := m.CheckSession(context.Background(), orphanID)
	require.NoError(t, err)
	assert.Nil(t, orphan)
}
