// Package planner decomposes a user question into the sub-queries the
// retrieval orchestrator fans out over.
//
// Decomposition is best-effort. Any model or parsing failure degrades to a
// plan containing the original question as a single generic sub-query, so a
// broken classifier can slow retrieval down but never block a turn.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/quillhq/quill/internal/genai"
)

// maxPlanResponseBytes limits classifier response size before JSON parsing.
const maxPlanResponseBytes = 8 * 1024

// maxSubQueries bounds the fan-out a single turn can request.
const maxSubQueries = 8

const decomposePrompt = `You split a user question into retrieval sub-queries.

Rules:
- "specific" sub-queries name a concrete fact, entity, number, or definition to look up.
- "generic" sub-queries cover broad background the answer needs.
- The two lists are disjoint; never repeat a sub-query across them.
- Each sub-query must be self-contained and answerable by document search.
- If the question is already a single focused lookup, return it unchanged as the only entry.

Output format: JSON object, nothing else.
Example: {"specific": ["spawning temperature of the quillback"], "generic": ["quillback life cycle"]}

Recent conversation:
%s

Question:
%s

Decompose as JSON:`

// Plan is the retrieval plan for one turn. Specific sub-queries target
// concrete lookups, generic ones cover background. At least one of the two
// lists is always non-empty.
type Plan struct {
	Specific []string
	Generic  []string
}

// SubQueries returns every planned sub-query, specific first.
func (p Plan) SubQueries() []string {
	out := make([]string, 0, len(p.Specific)+len(p.Generic))
	out = append(out, p.Specific...)
	out = append(out, p.Generic...)
	return out
}

// Planner turns user questions into retrieval plans.
type Planner struct {
	client genai.Client
	logger *slog.Logger
}

// New creates a Planner.
func New(client genai.Client, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{client: client, logger: logger}
}

// Decompose plans retrieval for the question, given the tail of recent
// conversation turns for pronoun and follow-up resolution. It never returns
// an error: when classification fails for any reason, the question itself
// becomes the plan's single generic sub-query.
func (p *Planner) Decompose(ctx context.Context, question string, tail []string) Plan {
	fallback := Plan{Generic: []string{question}}

	raw, err := p.client.Complete(ctx, fmt.Sprintf(decomposePrompt, tailBlock(tail), question))
	if err != nil {
		p.logger.Debug("decomposition unavailable, using question verbatim", "error", err)
		return fallback
	}

	plan, err := parsePlan(raw)
	if err != nil {
		p.logger.Debug("decomposition unparseable, using question verbatim", "error", err)
		return fallback
	}
	if len(plan.Specific)+len(plan.Generic) == 0 {
		return fallback
	}

	p.logger.Debug("planned retrieval",
		"specific", len(plan.Specific), "generic", len(plan.Generic))
	return plan
}

// parsePlan decodes the classifier output, dropping empty entries and
// duplicates. A sub-query listed as both specific and generic counts as
// specific.
func parsePlan(raw string) (Plan, error) {
	text := stripCodeFences(raw)
	if text == "" {
		return Plan{}, fmt.Errorf("empty decomposition response")
	}
	if len(text) > maxPlanResponseBytes {
		return Plan{}, fmt.Errorf("decomposition response too large: %d bytes", len(text))
	}

	var decoded struct {
		Specific []string `json:"specific"`
		Generic  []string `json:"generic"`
	}
	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		return Plan{}, fmt.Errorf("parsing decomposition: %w", err)
	}

	seen := make(map[string]bool)
	var plan Plan
	for _, q := range decoded.Specific {
		if q = strings.TrimSpace(q); q != "" && !seen[q] {
			seen[q] = true
			plan.Specific = append(plan.Specific, q)
		}
	}
	for _, q := range decoded.Generic {
		if q = strings.TrimSpace(q); q != "" && !seen[q] {
			seen[q] = true
			plan.Generic = append(plan.Generic, q)
		}
	}

	// Clamp fan-out, preferring specific sub-queries.
	if total := len(plan.Specific) + len(plan.Generic); total > maxSubQueries {
		if len(plan.Specific) >= maxSubQueries {
			plan.Specific = plan.Specific[:maxSubQueries]
			plan.Generic = nil
		} else {
			plan.Generic = plan.Generic[:maxSubQueries-len(plan.Specific)]
		}
	}
	return plan, nil
}

func tailBlock(tail []string) string {
	if len(tail) == 0 {
		return "(none)"
	}
	return strings.Join(tail, "\n")
}

// stripCodeFences removes a surrounding markdown code fence, with optional
// language tag, from a model response.
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
