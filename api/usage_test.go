package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillhq/quill/internal/log"
	"github.com/quillhq/quill/internal/sqlc"
	"github.com/quillhq/quill/internal/usage"
)

type fakeUsageQuerier struct {
	records map[string]int32
}

func (f *fakeUsageQuerier) GetUsageRecord(_ context.Context, ownerID string) (sqlc.UsageRecord, error) {
	used, ok := f.records[ownerID]
	if !ok {
		return sqlc.UsageRecord{}, pgx.ErrNoRows
	}
	return sqlc.UsageRecord{OwnerID: ownerID, MessagesUsed: used}, nil
}

func newUsageMux(f *fakeUsageQuerier) *http.ServeMux {
	h := NewUsageHandler(usage.NewMeter(f, log.NewNop()), log.NewNop())
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return mux
}

func TestUsageHandler_Get(t *testing.T) {
	mux := newUsageMux(&fakeUsageQuerier{records: map[string]int32{"owner-1": 7}})

	w := doRequest(mux, http.MethodGet, "/api/usage", "owner-1", "")

	require.Equal(t, http.StatusOK, w.Code)
	var resp UsageResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "owner-1", resp.OwnerID)
	assert.Equal(t, 7, resp.MessagesUsed)
}

func TestUsageHandler_NewOwnerGetsZeroRecord(t *testing.T) {
	mux := newUsageMux(&fakeUsageQuerier{records: map[string]int32{}})

	w := doRequest(mux, http.MethodGet, "/api/usage", "owner-new", "")

	require.Equal(t, http.StatusOK, w.Code)
	var resp UsageResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "owner-new", resp.OwnerID)
	assert.Zero(t, resp.MessagesUsed)
}

func TestUsageHandler_MissingOwner(t *testing.T) {
	mux := newUsageMux(&fakeUsageQuerier{})

	w := doRequest(mux, http.MethodGet, "/api/usage", "", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "missing_owner")
}
