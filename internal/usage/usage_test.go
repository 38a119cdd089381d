package usage

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillhq/quill/internal/sqlc"
)

type mockQuerier struct {
	record sqlc.UsageRecord
	err    error
}

func (m *mockQuerier) GetUsageRecord(_ context.Context, _ string) (sqlc.UsageRecord, error) {
	return m.record, m.err
}

func TestMeter_Usage(t *testing.T) {
	t.Run("returns stored counter", func(t *testing.T) {
		meter := NewMeter(&mockQuerier{
			record: sqlc.UsageRecord{OwnerID: "owner-1", MessagesUsed: 7},
		}, nil)

		rec, err := meter.Usage(context.Background(), "owner-1")
		require.NoError(t, err)
		assert.Equal(t, 7, rec.MessagesUsed)
	})

	t.Run("missing record reads as zero usage", func(t *testing.T) {
		meter := NewMeter(&mockQuerier{err: pgx.ErrNoRows}, nil)

		rec, err := meter.Usage(context.Background(), "owner-2")
		require.NoError(t, err)
		assert.Equal(t, Record{OwnerID: "owner-2"}, rec)
	})

	t.Run("lookup surfaces missing record", func(t *testing.T) {
		meter := NewMeter(&mockQuerier{err: pgx.ErrNoRows}, nil)

		_, err := meter.Lookup(context.Background(), "owner-2")
		require.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("database failure propagates", func(t *testing.T) {
		meter := NewMeter(&mockQuerier{err: errors.New("connection reset")}, nil)

		_, err := meter.Usage(context.Background(), "owner-3")
		require.Error(t, err)
	})
}
