package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/deepscience/research-graph-service/internal/domain"
	"github.com/deepscience/research-graph-service/internal/llm"
	"github.com/deepscience/research-graph-service/internal/observability"
)

// intentSystemPrompt instructs the model to emit strict JSON filters.
const intentSystemPrompt = `You are a research discovery assistant. Extract search filters from the user's query.

Respond with a JSON object and nothing else, using exactly this shape:
{
  "topics": ["list of research topics"],
  "geo_scopes": ["list of countries or regions mentioned"],
  "institutions": ["list of universities or research institutions mentioned"]
}

Rules:
- topics: the scientific subjects the user wants to explore, as short noun phrases.
- geo_scopes: only geographic constraints the user stated. Empty list if none.
- institutions: only institutions the user named. Empty list if none.
- Do not invent filters the query does not support.`

// intentPayload is the JSON shape the model is asked to return.
type intentPayload struct {
	Topics       []string `json:"topics"`
	GeoScopes    []string `json:"geo_scopes"`
	Institutions []string `json:"institutions"`
}

// IntentExtractor turns a free-text query (plus optional CV-derived concepts)
// into structured search filters. Any LLM failure or malformed response
// degrades to the raw query instead of propagating.
type IntentExtractor struct {
	client  llm.Client
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// NewIntentExtractor creates an intent extractor backed by the given LLM
// client. A nil client always degrades.
func NewIntentExtractor(client llm.Client, logger zerolog.Logger, metrics *observability.Metrics) *IntentExtractor {
	return &IntentExtractor{
		client:  client,
		logger:  observability.WithComponent(logger, "intent_extractor"),
		metrics: metrics,
	}
}

// Extract derives search filters from query and cvConcepts. The returned
// error is non-nil only when the query is empty or the context is done;
// every other failure resolves to a degraded result carrying the raw query.
func (e *IntentExtractor) Extract(ctx context.Context, query string, cvConcepts []string) (domain.IntentResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.IntentResult{}, domain.NewValidationError("query", "must not be empty")
	}
	if err := ctx.Err(); err != nil {
		return domain.IntentResult{}, fmt.Errorf("intent extraction: %w", err)
	}

	if e.client == nil {
		e.logger.Warn().Msg("no LLM client configured, degrading to raw query")
		return e.degrade(query, cvConcepts), nil
	}

	start := time.Now()
	resp, err := e.client.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: intentSystemPrompt},
			{Role: llm.RoleUser, Content: "Query: " + query},
		},
		MaxTokens:      512,
		Temperature:    0,
		ResponseFormat: "json",
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.IntentResult{}, fmt.Errorf("intent extraction: %w", ctxErr)
		}
		if e.metrics != nil {
			e.metrics.RecordLLMRequestFailed("intent", e.client.Model(), Classify(err).String())
		}
		e.logger.Warn().Err(err).Msg("intent completion failed, degrading to raw query")
		return e.degrade(query, cvConcepts), nil
	}

	if e.metrics != nil {
		e.metrics.RecordLLMRequest("intent", e.client.Model(), time.Since(start).Seconds())
		e.metrics.RecordLLMTokens("intent", e.client.Model(), resp.Usage.InputTokens, resp.Usage.OutputTokens)
	}

	var payload intentPayload
	if err := llm.DecodeJSON(resp.Content, &payload); err != nil {
		e.logger.Warn().Err(err).Msg("intent response malformed, degrading to raw query")
		return e.degrade(query, cvConcepts), nil
	}

	filters := domain.SearchFilters{
		Topics:       cleanTerms(payload.Topics),
		GeoScopes:    cleanTerms(payload.GeoScopes),
		Institutions: cleanTerms(payload.Institutions),
	}
	if filters.IsEmpty() {
		e.logger.Warn().Msg("intent response carried no filters, degrading to raw query")
		return e.degrade(query, cvConcepts), nil
	}

	result := domain.ParsedIntent(query, filters)
	result.Filters.Topics = appendUnique(result.Filters.Topics, cvConcepts)
	return result, nil
}

// degrade builds the fallback result and counts it.
func (e *IntentExtractor) degrade(query string, cvConcepts []string) domain.IntentResult {
	if e.metrics != nil {
		e.metrics.RecordIntentDegraded()
	}
	result := domain.DegradedIntent(query)
	result.Filters.Topics = appendUnique(result.Filters.Topics, cvConcepts)
	return result
}

// cleanTerms trims and drops empty entries while preserving order.
func cleanTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// appendUnique appends extras to base, skipping empties and case-insensitive
// duplicates, preserving first-seen order.
func appendUnique(base, extras []string) []string {
	seen := make(map[string]struct{}, len(base)+len(extras))
	for _, t := range base {
		seen[strings.ToLower(t)] = struct{}{}
	}
	for _, t := range extras {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		base = append(base, t)
	}
	return base
}
