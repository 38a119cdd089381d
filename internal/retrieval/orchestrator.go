// Package retrieval fans similarity search out over a turn's documents and
// sub-queries and reduces the hits to verbatim passages for generation.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/quillhq/quill/internal/conversation"
	"github.com/quillhq/quill/internal/document"
	"github.com/quillhq/quill/internal/genai"
	"github.com/quillhq/quill/internal/planner"
	"github.com/quillhq/quill/internal/snippet"
)

// AuditRecorder persists raw search hits before any filtering.
type AuditRecorder interface {
	RecordSearchHits(ctx context.Context, sessionID, messageID uuid.UUID, hits []conversation.HitRecord) error
}

// Config bounds the orchestrator's fan-out.
type Config struct {
	// Width is the maximum number of concurrent search calls.
	Width int

	// TopK is the number of matches requested per search call.
	TopK int

	// ProbeCount is the maximum probe questions synthesized per document.
	ProbeCount int
}

// Orchestrator fans retrieval out over every (active document × sub-query)
// pair and reduces the hits to verbatim passages.
//
// Failure isolation is per document: a failed probe decision, search, or
// extraction degrades to no passages from that document and never aborts
// the turn.
type Orchestrator struct {
	searcher   Searcher
	extractor  *snippet.Extractor
	catalog    *document.Catalog
	client     genai.Client
	audit      AuditRecorder
	width      int
	topK       int
	probeCount int
	logger     *slog.Logger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(
	searcher Searcher,
	extractor *snippet.Extractor,
	catalog *document.Catalog,
	client genai.Client,
	audit AuditRecorder,
	cfg Config,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Width < 1 {
		cfg.Width = 1
	}
	if cfg.TopK < 1 {
		cfg.TopK = 1
	}
	if cfg.ProbeCount < 1 {
		cfg.ProbeCount = 1
	}
	return &Orchestrator{
		searcher:   searcher,
		extractor:  extractor,
		catalog:    catalog,
		client:     client,
		audit:      audit,
		width:      cfg.Width,
		topK:       cfg.TopK,
		probeCount: cfg.ProbeCount,
		logger:     logger,
	}
}

// RetrieveParams identifies the turn retrieval runs for.
type RetrieveParams struct {
	SessionID uuid.UUID
	MessageID uuid.UUID
	OwnerID   string
	Plan      planner.Plan
	Documents []*document.Document
}

// searchTask is one scheduled similarity-search call.
type searchTask struct {
	doc      *document.Document
	subQuery string
}

// searchResult carries a task's hits in scheduling order.
type searchResult struct {
	task searchTask
	hits []Hit
}

// Retrieve runs the full retrieval stage for one turn: probe-question
// decisions, bounded-concurrency search fan-out, audit persistence of every
// raw hit, snippet extraction, and per-document deduplication. It returns
// passage drafts ready for reference-number assignment.
func (o *Orchestrator) Retrieve(ctx context.Context, params RetrieveParams) ([]conversation.PassageDraft, error) {
	if len(params.Documents) == 0 {
		return nil, nil
	}

	tasks := o.planTasks(ctx, params)
	results := o.runSearches(ctx, params.OwnerID, tasks)

	// Raw hits go to the audit trail before any filtering, so the trail
	// shows what search returned even when extraction discards it all.
	if err := o.recordHits(ctx, params.SessionID, params.MessageID, results); err != nil {
		return nil, err
	}

	drafts := o.extractPassages(ctx, results)
	o.logger.Debug("retrieval complete",
		"session_id", params.SessionID,
		"documents", len(params.Documents),
		"searches", len(tasks),
		"passages", len(drafts))
	return drafts, nil
}

// planTasks resolves each document's probe questions and schedules one
// search per (document × query). Specific sub-queries search the document
// directly; generic ones are covered by the document's probe questions.
func (o *Orchestrator) planTasks(ctx context.Context, params RetrieveParams) []searchTask {
	var tasks []searchTask
	for _, doc := range params.Documents {
		queries := append([]string{}, params.Plan.Specific...)
		if len(params.Plan.Generic) > 0 {
			probes := o.probeQuestions(ctx, doc, params.Plan.SubQueries())
			if len(probes) == 0 {
				// No usable probe questions; fall back to searching the
				// generic sub-queries verbatim.
				probes = params.Plan.Generic
			}
			queries = append(queries, probes...)
		}

		seen := make(map[string]bool)
		for _, q := range queries {
			if seen[q] {
				continue
			}
			seen[q] = true
			tasks = append(tasks, searchTask{doc: doc, subQuery: q})
		}
	}
	return tasks
}

// runSearches executes the scheduled searches with bounded concurrency.
// Search failures are logged and yield empty results for their task.
func (o *Orchestrator) runSearches(ctx context.Context, ownerID string, tasks []searchTask) []searchResult {
	results := make([]searchResult, len(tasks))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.width)

	for i, task := range tasks {
		g.Go(func() error {
			hits, err := o.searcher.Search(gctx, SearchRequest{
				OwnerID:    ownerID,
				Query:      task.subQuery,
				TopK:       o.topK,
				DocumentID: task.doc.ID,
			})
			if err != nil {
				o.logger.Warn("search failed, degrading to no hits",
					"document_id", task.doc.ID, "sub_query", task.subQuery, "error", err)
				hits = nil
			}
			mu.Lock()
			results[i] = searchResult{task: task, hits: hits}
			mu.Unlock()
			return nil
		})
	}
	// Tasks never return errors; Wait only observes context cancellation.
	_ = g.Wait()

	return results
}

// recordHits appends every raw hit to the audit trail in scheduling order.
func (o *Orchestrator) recordHits(ctx context.Context, sessionID, messageID uuid.UUID, results []searchResult) error {
	var records []conversation.HitRecord
	for _, res := range results {
		for rank, hit := range res.hits {
			records = append(records, conversation.HitRecord{
				SubQuery:     res.task.subQuery,
				DocumentID:   hit.DocumentID,
				DocumentName: hit.DocumentName,
				ChunkText:    hit.Content,
				Rank:         rank + 1,
			})
		}
	}
	if len(records) == 0 {
		return nil
	}
	if err := o.audit.RecordSearchHits(ctx, sessionID, messageID, records); err != nil {
		return fmt.Errorf("persisting search audit: %w", err)
	}
	return nil
}

// extractPassages reduces hits to verbatim passage drafts, keeping at most
// one passage per source document. All unique passages are forwarded; the
// only truncation is the per-search top-K already applied upstream.
func (o *Orchestrator) extractPassages(ctx context.Context, results []searchResult) []conversation.PassageDraft {
	var drafts []conversation.PassageDraft
	taken := make(map[string]bool)

	for _, res := range results {
		for _, hit := range res.hits {
			if taken[hit.DocumentID] {
				continue
			}
			span, err := o.extractor.Extract(ctx, res.task.subQuery, hit.Content)
			if err != nil {
				o.logger.Warn("snippet extraction failed, skipping hit",
					"document_id", hit.DocumentID, "error", err)
				continue
			}
			if span == "" {
				continue
			}
			taken[hit.DocumentID] = true
			drafts = append(drafts, conversation.PassageDraft{
				DocumentID:   hit.DocumentID,
				DocumentName: hit.DocumentName,
				Content:      span,
			})
		}
	}
	return drafts
}
