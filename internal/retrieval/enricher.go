package retrieval

import (
	"context"

	"go.uber.org/zap"

	"github.com/sellerdesk/indexd/internal/logging"
)

// Enrichment is the outcome of a prompt enrichment request.
type Enrichment struct {
	// Prompt is the prompt to send to the model. Always usable: on any
	// retrieval failure this is the unmodified base prompt.
	Prompt string

	// Enriched reports whether context was actually added.
	Enriched bool

	// Chunks are the retrieved chunks that made it into the context block.
	Chunks []Chunk
}

// Enricher wraps retrieval with a hard deadline and a fallback guarantee:
// Enrich never fails. Retrieval being down degrades answers, it must never
// block them.
type Enricher struct {
	retriever *Retriever
	logger    *logging.Logger
	config    Config
}

// NewEnricher creates a prompt enricher.
func NewEnricher(retriever *Retriever, logger *logging.Logger, config Config) *Enricher {
	config.ApplyDefaults()
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Enricher{
		retriever: retriever,
		logger:    logger,
		config:    config,
	}
}

// Enrich retrieves tenant context for the query and prepends it to the
// base prompt. Any error, timeout, or empty result falls back to the base
// prompt; the reason is logged and counted, never surfaced to the caller.
func (e *Enricher) Enrich(ctx context.Context, tenantID, query, basePrompt string) Enrichment {
	ctx = logging.WithTenant(ctx, tenantID)
	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	chunks, err := e.retriever.Retrieve(ctx, tenantID, query)
	if err != nil {
		EnrichmentsTotal.WithLabelValues("fallback_error").Inc()
		e.logger.Warn(ctx, "retrieval failed, falling back to base prompt", zap.Error(err))
		return Enrichment{Prompt: basePrompt}
	}
	if len(chunks) == 0 {
		EnrichmentsTotal.WithLabelValues("fallback_empty").Inc()
		e.logger.Debug(ctx, "no chunks above similarity floor, using base prompt")
		return Enrichment{Prompt: basePrompt}
	}

	block := BuildContext(chunks, e.config.ContextBudget)
	if block == "" {
		EnrichmentsTotal.WithLabelValues("fallback_budget").Inc()
		e.logger.Debug(ctx, "no chunk fit the context budget, using base prompt")
		return Enrichment{Prompt: basePrompt}
	}

	EnrichmentsTotal.WithLabelValues("enriched").Inc()
	return Enrichment{
		Prompt:   ComposePrompt(block, basePrompt),
		Enriched: true,
		Chunks:   chunks,
	}
}
