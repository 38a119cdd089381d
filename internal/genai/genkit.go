package genai

import (
	"context"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"

	"github.com/quillhq/quill/internal/log"
)

// defaultRequestsPerSecond caps outbound model calls. Gemini free-tier
// allows ~10 RPM; paid tiers considerably more. Two per second keeps a
// single process well inside paid-tier limits.
const defaultRequestsPerSecond = 2

// Config configures the Genkit-backed client.
type Config struct {
	Model           string // generation model (e.g. "gemini-2.5-flash")
	ClassifierModel string // completion model for planning/extraction calls
	EmbedderModel   string // embedding model
	Temperature     float64
}

// Genkit is the production Client implementation backed by a genkit
// instance with the Google AI plugin.
//
// Safe for concurrent use.
type Genkit struct {
	g        *genkit.Genkit
	embedder ai.Embedder
	cfg      Config
	limiter  *rate.Limiter
	retry    RetryConfig
	logger   log.Logger
}

var _ Client = (*Genkit)(nil)

// New creates a Genkit-backed client. embedder must already be registered
// with g (see app wiring).
func New(g *genkit.Genkit, embedder ai.Embedder, cfg Config, logger log.Logger) *Genkit {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Genkit{
		g:        g,
		embedder: embedder,
		cfg:      cfg,
		limiter:  rate.NewLimiter(rate.Limit(defaultRequestsPerSecond), 1),
		retry:    DefaultRetryConfig(),
		logger:   logger,
	}
}

// Generate implements Client.
func (c *Genkit) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	return c.GenerateStream(ctx, req, nil)
}

// GenerateStream implements Client. When cb is nil the call degrades to a
// plain generation.
func (c *Genkit) GenerateStream(ctx context.Context, req GenerateRequest, cb StreamCallback) (string, error) {
	opts := []ai.GenerateOption{
		ai.WithModelName(c.qualifiedModel(req.Model, c.cfg.Model)),
		ai.WithMessages(toGenkitMessages(req.Messages)...),
	}
	if req.System != "" {
		opts = append(opts, ai.WithSystem(req.System))
	}
	var streamed bool
	if cb != nil {
		opts = append(opts, ai.WithStreaming(func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
			if text := chunk.Text(); text != "" {
				streamed = true
				return cb(ctx, text)
			}
			return nil
		}))
	}

	resp, err := c.generateWithRetry(ctx, func() bool { return streamed }, func() (*ai.ModelResponse, error) {
		return genkit.Generate(ctx, c.g, opts...)
	})
	if err != nil {
		return "", err
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// Complete implements Client. Uses the classifier model, which is cheaper
// and faster than the generation model.
func (c *Genkit) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.generateWithRetry(ctx, nil, func() (*ai.ModelResponse, error) {
		return genkit.Generate(ctx, c.g,
			ai.WithModelName(c.qualifiedModel("", c.cfg.ClassifierModel)),
			ai.WithPrompt(prompt),
		)
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text()), nil
}

// Embed implements Client.
func (c *Genkit) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{
			{Content: []*ai.Part{ai.NewTextPart(text)}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("generating embedding: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: embedder returned no vector", ErrEmptyResponse)
	}
	return resp.Embeddings[0].Embedding, nil
}

// qualifiedModel prefixes the provider namespace when the caller passed a
// bare model name.
func (c *Genkit) qualifiedModel(override, fallback string) string {
	name := override
	if name == "" {
		name = fallback
	}
	if strings.Contains(name, "/") {
		return name
	}
	return "googleai/" + name
}

// toGenkitMessages converts transport-neutral messages to genkit's types.
func toGenkitMessages(messages []Message) []*ai.Message {
	out := make([]*ai.Message, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleAssistant:
			out = append(out, ai.NewModelMessage(ai.NewTextPart(m.Text)))
		default:
			out = append(out, ai.NewUserMessage(ai.NewTextPart(m.Text)))
		}
	}
	return out
}
