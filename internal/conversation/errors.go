package conversation

import "errors"

var (
	// ErrSessionNotFound indicates the requested session does not exist.
	ErrSessionNotFound = errors.New("session not found")

	// ErrPassageNotFound indicates no passage carries the requested
	// reference number within the session.
	ErrPassageNotFound = errors.New("passage not found")

	// ErrEmptyContent indicates a message with no usable text was rejected
	// before any persistence or retrieval work.
	ErrEmptyContent = errors.New("empty message content")
)
