// Package conversation persists sessions, messages, and cited passages, and
// keeps their invariants intact.
//
// The Store owns all writes. Sequence numbers and reference numbers are
// assigned inside transactions that lock the session row first, so both stay
// strictly monotonic per session under concurrency. An exchange's assistant
// message and its usage charge commit atomically.
//
// The IntegrityManager repairs sessions interrupted mid-exchange, and the
// Summarizer condenses history on a fixed cadence.
package conversation
