package answer

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/quillhq/quill/internal/conversation"
)

// refMarkerRe matches one inline reference marker. Non-greedy and
// multiline-tolerant: a marker's JSON body may be split across lines by the
// stream, and adjacent markers must not merge.
var refMarkerRe = regexp.MustCompile(`(?s)\[REF\](.*?)\[/REF\]`)

// PassageResolver resolves a reference number inside one session.
type PassageResolver interface {
	PassageByReference(ctx context.Context, sessionID uuid.UUID, referenceNumber int) (*conversation.Passage, error)
}

// Resolver parses inline reference markers out of accumulated answer text
// and resolves them against the session's persisted passages.
//
// Resolution is strictly session-scoped: an id that does not belong to the
// session fails closed and is dropped. Malformed markers are logged and
// dropped; duplicates collapse to one citation. The resolver never fails a
// turn.
type Resolver struct {
	passages PassageResolver
	logger   *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(passages PassageResolver, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{passages: passages, logger: logger}
}

// Resolve extracts the citations of an answer, in order of first
// appearance.
func (r *Resolver) Resolve(ctx context.Context, sessionID uuid.UUID, text string) []conversation.Citation {
	matches := refMarkerRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[int]bool)
	var citations []conversation.Citation
	for _, match := range matches {
		ref, ok := parseMarker(match[1])
		if !ok {
			r.logger.Debug("dropping malformed reference marker",
				"session_id", sessionID, "body", truncate(match[1], 80))
			continue
		}
		if seen[ref] {
			continue
		}
		seen[ref] = true

		passage, err := r.passages.PassageByReference(ctx, sessionID, ref)
		if err != nil {
			r.logger.Debug("dropping unresolvable reference",
				"session_id", sessionID, "reference", ref, "error", err)
			continue
		}
		citations = append(citations, conversation.Citation{
			ReferenceID: strconv.Itoa(passage.ReferenceNumber),
			DisplayText: passage.DocumentName,
		})
	}
	return citations
}

// parseMarker extracts the reference number from a marker body. The body is
// a JSON object whose "id" holds the number as a string or a bare number;
// anything else is malformed.
func parseMarker(body string) (int, bool) {
	var decoded struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(body)), &decoded); err != nil {
		return 0, false
	}
	if len(decoded.ID) == 0 {
		return 0, false
	}

	raw := strings.Trim(string(decoded.ID), `"`)
	ref, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || ref < 1 {
		return 0, false
	}
	return ref, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
