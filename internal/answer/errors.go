package answer

import (
	"context"
	"errors"
	"fmt"

	"github.com/quillhq/quill/internal/conversation"
	"github.com/quillhq/quill/internal/genai"
)

// FailureKind tags a TurnError with the stage class that failed. Callers
// match on the kind, never on error strings.
type FailureKind string

const (
	// FailEmptyInput: the user message had no usable text; nothing was
	// persisted.
	FailEmptyInput FailureKind = "empty_input"

	// FailUpstream: a model call (generation, classification, embedding)
	// failed or the stream was cut off.
	FailUpstream FailureKind = "upstream"

	// FailPersistence: a database write failed. This is the class that may
	// leave an orphaned user message behind for the integrity manager.
	FailPersistence FailureKind = "persistence"

	// FailCanceled: the caller canceled the turn mid-stream.
	FailCanceled FailureKind = "canceled"
)

// TurnError is the single error type a turn reports. Every failure crossing
// the pipeline boundary is normalized into one.
type TurnError struct {
	Kind FailureKind
	Err  error
}

func (e *TurnError) Error() string {
	return fmt.Sprintf("turn failed (%s): %v", e.Kind, e.Err)
}

func (e *TurnError) Unwrap() error { return e.Err }

func newTurnError(kind FailureKind, err error) *TurnError {
	return &TurnError{Kind: kind, Err: err}
}

// normalizeError maps an arbitrary failure into a TurnError. Errors that
// are already normalized pass through unchanged.
func normalizeError(err error) *TurnError {
	var te *TurnError
	if errors.As(err, &te) {
		return te
	}
	switch {
	case errors.Is(err, conversation.ErrEmptyContent):
		return newTurnError(FailEmptyInput, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return newTurnError(FailCanceled, err)
	case errors.Is(err, genai.ErrDisabled), errors.Is(err, genai.ErrEmptyResponse):
		return newTurnError(FailUpstream, err)
	default:
		return newTurnError(FailPersistence, err)
	}
}
