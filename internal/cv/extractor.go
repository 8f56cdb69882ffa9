package cv

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

// maxCVChars bounds how much CV text is sent to the model.
const maxCVChars = 10000

// conceptSystemPrompt instructs the model to emit strict JSON concepts.
const conceptSystemPrompt = `You are an expert academic researcher helper. Output valid JSON only.

Analyze the CV text the user provides and extract 5-10 key research concepts,
scientific topics, or technical skills relevant to academic research.

Respond with a JSON object and nothing else, using exactly this shape:
{"concepts": ["list of concepts"]}`

// conceptPayload is the JSON shape the model is asked to return.
type conceptPayload struct {
	Concepts []string `json:"concepts"`
}

// ConceptExtractor derives research concepts from CV text.
type ConceptExtractor interface {
	// ExtractConcepts returns the concepts found in the text. Implementations
	// degrade to an empty list on model failure rather than erroring.
	ExtractConcepts(ctx context.Context, text string) ([]string, error)
}

// LLMConceptExtractor extracts concepts through an LLM completion. Any model
// failure or malformed response degrades to an empty concept list; the upload
// still succeeds without personalization.
type LLMConceptExtractor struct {
	client  llm.Client
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// Compile-time interface verification.
var _ ConceptExtractor = (*LLMConceptExtractor)(nil)

// NewLLMConceptExtractor creates a concept extractor backed by the given LLM
// client. A nil client always degrades to an empty list.
func NewLLMConceptExtractor(client llm.Client, logger zerolog.Logger, metrics *observability.Metrics) *LLMConceptExtractor {
	return &LLMConceptExtractor{
		client:  client,
		logger:  observability.WithComponent(logger, "cv_concept_extractor"),
		metrics: metrics,
	}
}

// ExtractConcepts derives research concepts from the CV text. The returned
// error is non-nil only when the text is empty or the context is done.
func (e *LLMConceptExtractor) ExtractConcepts(ctx context.Context, text string) ([]string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.NewValidationError("text", "must not be empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("concept extraction: %w", err)
	}

	if e.client == nil {
		e.logger.Warn().Msg("no LLM client configured, skipping concept extraction")
		return []string{}, nil
	}

	if len(text) > maxCVChars {
		text = text[:maxCVChars]
	}

	start := time.Now()
	resp, err := e.client.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: conceptSystemPrompt},
			{Role: llm.RoleUser, Content: "CV Text:\n" + text},
		},
		MaxTokens:      512,
		Temperature:    0,
		ResponseFormat: "json",
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("concept extraction: %w", ctxErr)
		}
		if e.metrics != nil {
			e.metrics.RecordLLMRequestFailed("cv_concepts", e.client.Model(), "completion")
		}
		e.logger.Warn().Err(err).Msg("concept completion failed, continuing without concepts")
		return []string{}, nil
	}

	if e.metrics != nil {
		e.metrics.RecordLLMRequest("cv_concepts", e.client.Model(), time.Since(start).Seconds())
		e.metrics.RecordLLMTokens("cv_concepts", e.client.Model(), resp.Usage.InputTokens, resp.Usage.OutputTokens)
	}

	var payload conceptPayload
	if err := llm.DecodeJSON(resp.Content, &payload); err != nil {
		e.logger.Warn().Err(err).Msg("concept response malformed, continuing without concepts")
		return []string{}, nil
	}

	concepts := make([]string, 0, len(payload.Concepts))
	for _, c := range payload.Concepts {
		c = strings.TrimSpace(c)
		if c != "" {
			concepts = append(concepts, c)
		}
	}
	return concepts, nil
}
