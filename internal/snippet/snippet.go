// Package snippet extracts the single shortest verbatim span from a search
// hit that answers a sub-query.
//
// The model proposes a span; everything after that is enforcement. A span
// that is not a character-exact substring of its source chunk is rejected,
// interruptions (page boundaries, table and figure fragments, runs of
// numeric citation markers) are cut out keeping the longer side, and no
// filler is ever inserted at a cut point.
package snippet

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/quillhq/quill/internal/genai"
)

// noSpanMarker is what the model returns when nothing in the chunk answers
// the sub-query.
const noSpanMarker = "NONE"

// maxSpanLen rejects model output that is clearly more than a sentence.
const maxSpanLen = 600

const extractPrompt = `Find the single shortest span in the source text that answers the question.

Rules:
- Copy the span EXACTLY, character for character. Do not paraphrase, fix, or trim words.
- At most one sentence.
- If nothing in the source answers the question, respond with exactly: NONE

Question:
%s

Source text:
%s

Shortest verbatim span:`

var (
	// pageBoundaryRe matches page-break artifacts left by document
	// conversion: form feeds, "--- Page 12 ---" divider lines, and inline
	// "[Page 12]" markers.
	pageBoundaryRe = regexp.MustCompile(`(?mi)\f+|^[ \t]*[-=_]*[ \t]*page[ \t]+\d+([ \t]+of[ \t]+\d+)?[ \t]*[-=_]*[ \t]*$|\[[ \t]*page[ \t]+\d+[ \t]*\]`)

	// tableFigureRe matches caption lines for tables and figures that end
	// up spliced into running text.
	tableFigureRe = regexp.MustCompile(`(?mi)^[ \t]*(table|figure|fig\.?)[ \t]+\d+[^\n]*$`)

	// citationRunRe matches runs of numeric citation markers: two or more
	// adjacent bracketed numbers, or one bracket listing several.
	citationRunRe = regexp.MustCompile(`(\[\d+\][ \t]*){2,}|\[\d+([ \t]*,[ \t]*\d+)+\]`)
)

// Extractor asks the model for candidate spans and enforces the verbatim
// contract on whatever comes back.
type Extractor struct {
	client genai.Client
	logger *slog.Logger
}

// NewExtractor creates an Extractor.
func NewExtractor(client genai.Client, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{client: client, logger: logger}
}

// Extract returns the shortest verbatim span of chunk answering subQuery,
// or "" when the chunk holds nothing relevant. The returned span is always
// an exact substring of chunk. Model failures are reported; an empty span
// is not an error.
func (e *Extractor) Extract(ctx context.Context, subQuery, chunk string) (string, error) {
	if strings.TrimSpace(chunk) == "" {
		return "", nil
	}

	raw, err := e.client.Complete(ctx, fmt.Sprintf(extractPrompt, subQuery, chunk))
	if err != nil {
		return "", fmt.Errorf("extracting span: %w", err)
	}

	candidate := sanitizeCandidate(raw)
	if candidate == "" || strings.EqualFold(strings.Trim(candidate, ". "), noSpanMarker) {
		return "", nil
	}
	if len(candidate) > maxSpanLen {
		e.logger.Debug("rejecting oversized span", "len", len(candidate))
		return "", nil
	}

	span, ok := locateVerbatim(chunk, candidate)
	if !ok {
		e.logger.Debug("rejecting non-verbatim span", "candidate_len", len(candidate))
		return "", nil
	}

	return CleanSpan(span), nil
}

// sanitizeCandidate strips the wrapping a model tends to add around a quoted
// span: code fences, surrounding quotes, and whitespace. It never touches
// interior characters.
func sanitizeCandidate(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	for _, q := range []string{`"`, "'", "“", "‘"} {
		closer := q
		switch q {
		case "“":
			closer = "”"
		case "‘":
			closer = "’"
		}
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, closer) && len(s) > len(q)+len(closer) {
			s = strings.TrimSpace(s[len(q) : len(s)-len(closer)])
		}
	}
	return s
}

// locateVerbatim finds candidate inside chunk. When the exact text is not
// present it retries with edge ellipses removed, since models often add
// "..." around a quote; interior characters are never adjusted. The second
// return is false when no exact match exists.
func locateVerbatim(chunk, candidate string) (string, bool) {
	if strings.Contains(chunk, candidate) {
		return candidate, true
	}

	trimmed := strings.Trim(candidate, " \t")
	for _, ell := range []string{"...", "…"} {
		trimmed = strings.TrimPrefix(trimmed, ell)
		trimmed = strings.TrimSuffix(trimmed, ell)
	}
	trimmed = strings.TrimSpace(trimmed)
	if trimmed != "" && strings.Contains(chunk, trimmed) {
		return trimmed, true
	}
	return "", false
}

// CleanSpan removes interruptions from a span. When a page-boundary marker,
// a table or figure fragment, or a run of numeric citation markers splits
// the span, only the longer side survives; the interrupting fragment and
// its markers are dropped, and nothing is inserted at the cut.
func CleanSpan(span string) string {
	for _, re := range []*regexp.Regexp{pageBoundaryRe, tableFigureRe, citationRunRe} {
		loc := re.FindStringIndex(span)
		if loc == nil {
			continue
		}
		left := CleanSpan(span[:loc[0]])
		right := CleanSpan(span[loc[1]:])
		if len(left) >= len(right) {
			return strings.TrimSpace(left)
		}
		return strings.TrimSpace(right)
	}
	return strings.TrimSpace(span)
}
