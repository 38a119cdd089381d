// Package usage meters answered messages per subscription owner.
//
// The counter is incremented by the conversation store inside the same
// transaction that persists the assistant message, so a message is counted
// exactly when it is durable. This package only reads the counters back.
package usage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/quillhq/quill/internal/sqlc"
)

// ErrRecordNotFound indicates the owner has no usage record yet.
var ErrRecordNotFound = errors.New("usage record not found")

// Record holds an owner's accumulated usage.
type Record struct {
	OwnerID      string
	MessagesUsed int
}

// Querier is the database surface the meter reads from.
type Querier interface {
	GetUsageRecord(ctx context.Context, ownerID string) (sqlc.UsageRecord, error)
}

// Meter reads per-owner usage counters.
type Meter struct {
	querier Querier
	logger  *slog.Logger
}

// NewMeter creates a Meter.
func NewMeter(querier Querier, logger *slog.Logger) *Meter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Meter{querier: querier, logger: logger}
}

// Usage returns the owner's usage record. An owner who has never completed
// an exchange gets a zero record rather than an error; callers that need to
// distinguish can check for ErrRecordNotFound via Lookup.
func (m *Meter) Usage(ctx context.Context, ownerID string) (Record, error) {
	rec, err := m.Lookup(ctx, ownerID)
	if errors.Is(err, ErrRecordNotFound) {
		return Record{OwnerID: ownerID}, nil
	}
	return rec, err
}

// Lookup returns the owner's usage record, or ErrRecordNotFound when no
// exchange has ever been charged to the owner.
func (m *Meter) Lookup(ctx context.Context, ownerID string) (Record, error) {
	row, err := m.querier.GetUsageRecord(ctx, ownerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, fmt.Errorf("owner %s: %w", ownerID, ErrRecordNotFound)
		}
		return Record{}, fmt.Errorf("getting usage record: %w", err)
	}
	return Record{
		OwnerID:      row.OwnerID,
		MessagesUsed: int(row.MessagesUsed),
	}, nil
}
