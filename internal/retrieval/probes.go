package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/quillhq/quill/internal/document"
)

// maxProbeResponseBytes limits the decision-call response before parsing.
const maxProbeResponseBytes = 8 * 1024

// probePrompt drives one combined decision per document: judge whether the
// cached probe questions already cover this turn's sub-queries, and if not,
// synthesize replacements in the same call. The document is represented by
// its outline and digest, never full text.
const probePrompt = `A document is searched with short probe questions. Decide whether the existing probe questions are sufficient to retrieve material for the current sub-queries. If they are not, write up to %d new probe questions grounded in the document's outline and digest.

Document name: %s
Outline:
%s
Digest:
%s

Existing probe questions:
%s

Current sub-queries:
%s

Output format: JSON object, nothing else.
If sufficient: {"sufficient": true}
If not: {"sufficient": false, "questions": ["...", "..."]}

Decision:`

// probeDecision is the parsed outcome of the combined call.
type probeDecision struct {
	Sufficient bool     `json:"sufficient"`
	Questions  []string `json:"questions"`
}

// probeQuestions returns the probe questions to use for doc this turn.
// Exactly one model call is made per document: the combined
// sufficiency/synthesis decision. New questions are persisted for reuse on
// later turns. Failures degrade to the cached questions, or to none.
func (o *Orchestrator) probeQuestions(ctx context.Context, doc *document.Document, subQueries []string) []string {
	raw, err := o.client.Complete(ctx, fmt.Sprintf(probePrompt,
		o.probeCount,
		doc.Name,
		doc.Outline,
		doc.Digest,
		bulleted(doc.ProbeQuestions),
		bulleted(subQueries),
	))
	if err != nil {
		o.logger.Debug("probe decision unavailable, using cached questions",
			"document_id", doc.ID, "error", err)
		return doc.ProbeQuestions
	}

	decision, err := parseProbeDecision(raw)
	if err != nil {
		o.logger.Debug("probe decision unparseable, using cached questions",
			"document_id", doc.ID, "error", err)
		return doc.ProbeQuestions
	}

	if decision.Sufficient && len(doc.ProbeQuestions) > 0 {
		return doc.ProbeQuestions
	}

	questions := cleanQuestions(decision.Questions, o.probeCount)
	if len(questions) == 0 {
		return doc.ProbeQuestions
	}

	if err := o.catalog.SaveProbeQuestions(ctx, doc.ID, questions); err != nil {
		// Persisting the cache is an optimization; this turn still uses
		// the fresh questions.
		o.logger.Warn("probe question cache update failed", "document_id", doc.ID, "error", err)
	}
	return questions
}

func parseProbeDecision(raw string) (probeDecision, error) {
	text := stripCodeFences(raw)
	if text == "" {
		return probeDecision{}, fmt.Errorf("empty probe decision")
	}
	if len(text) > maxProbeResponseBytes {
		return probeDecision{}, fmt.Errorf("probe decision too large: %d bytes", len(text))
	}

	var decision probeDecision
	if err := json.Unmarshal([]byte(text), &decision); err != nil {
		return probeDecision{}, fmt.Errorf("parsing probe decision: %w", err)
	}
	return decision, nil
}

func cleanQuestions(questions []string, limit int) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(questions))
	for _, q := range questions {
		if q = strings.TrimSpace(q); q != "" && !seen[q] {
			seen[q] = true
			out = append(out, q)
		}
		if len(out) == limit {
			break
		}
	}
	return out
}

func bulleted(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for _, item := range items {
		b.WriteString("- ")
		b.WriteString(item)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	return s
}
