package pipeline

import (
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/deepscience/research-graph-service/internal/dedup"
	"github.com/deepscience/research-graph-service/internal/domain"
	"github.com/deepscience/research-graph-service/internal/observability"
)

// ExtractionStage derives professor entities from paper author lists,
// deduplicating by identity fingerprint and merging per-paper contributions
// idempotently.
type ExtractionStage struct {
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// NewExtractionStage creates an extraction stage.
func NewExtractionStage(logger zerolog.Logger, metrics *observability.Metrics) *ExtractionStage {
	return &ExtractionStage{
		logger:  observability.WithComponent(logger, "extraction_stage"),
		metrics: metrics,
	}
}

// ProfessorBudget returns how many professors fit within the node budget,
// reserving headroom for the user node and institution nodes. At least one
// professor always fits.
func ProfessorBudget(maxNodes int) int {
	budget := (maxNodes - 1) * 2 / 3
	if budget < 1 {
		budget = 1
	}
	return budget
}

// Execute builds professors from the papers' author lists and returns them
// ranked by paper count descending with first-seen order breaking ties,
// truncated to the budget derived from maxNodes. An empty paper list yields
// an empty professor list, not an error.
func (e *ExtractionStage) Execute(papers []*domain.Paper, maxNodes int) []*domain.Professor {
	byID := make(map[string]*domain.Professor)
	var order []*domain.Professor

	for paperIdx, paper := range papers {
		if paper == nil {
			continue
		}
		for _, author := range paper.Authors {
			name := strings.TrimSpace(author.Name)
			if name == "" {
				continue
			}

			primary := ""
			if len(author.Institutions) > 0 {
				primary = author.Institutions[0]
			}
			id := dedup.ProfessorID(name, primary)

			prof, ok := byID[id]
			if !ok {
				prof = &domain.Professor{
					ID:        id,
					Name:      name,
					FirstSeen: paperIdx,
				}
				byID[id] = prof
				order = append(order, prof)
			}
			prof.MergePaper(paper, author.Institutions)
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		if order[i].PaperCount != order[j].PaperCount {
			return order[i].PaperCount > order[j].PaperCount
		}
		return order[i].FirstSeen < order[j].FirstSeen
	})

	budget := ProfessorBudget(maxNodes)
	if len(order) > budget {
		order = order[:budget]
	}

	if e.metrics != nil {
		e.metrics.RecordProfessorsExtracted(len(order))
	}
	e.logger.Info().
		Int("papers", len(papers)).
		Int("professors", len(byID)).
		Int("selected", len(order)).
		Msg("extraction completed")

	return order
}
