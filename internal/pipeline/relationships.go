package pipeline

import (
	"github.com/rs/zerolog"

	"github.com/deepscience/research-graph-service/internal/dedup"
	"github.com/deepscience/research-graph-service/internal/domain"
	"github.com/deepscience/research-graph-service/internal/observability"
)

// RelationshipBuilder infers edges between the selected professors and their
// institutions: institution→professor supervision edges bounded by each
// professor's own merged institution set, and professor↔professor
// co-authorship edges wherever two professors share a paper. No self-edges;
// co-authorship pairs are unordered and deduplicated.
type RelationshipBuilder struct {
	logger zerolog.Logger
}

// NewRelationshipBuilder creates a relationship builder.
func NewRelationshipBuilder(logger zerolog.Logger) *RelationshipBuilder {
	return &RelationshipBuilder{
		logger: observability.WithComponent(logger, "relationship_builder"),
	}
}

// Build produces the edge set for the given professors. Node insertion is the
// graph assembler's job; this stage only emits links keyed by the same
// fingerprint identities the assembler will use.
func (b *RelationshipBuilder) Build(professors []*domain.Professor) []domain.Link {
	var links []domain.Link

	// Institution supervises professor, one edge per distinct affiliation.
	for _, prof := range professors {
		for _, inst := range prof.Institutions {
			if inst == "" {
				continue
			}
			links = append(links, domain.Link{
				Source:   dedup.InstitutionID(inst),
				Target:   prof.ID,
				Relation: domain.RelationSupervises,
			})
		}
	}

	// Co-authorship between professors sharing at least one paper. The
	// i < j iteration makes each unordered pair appear exactly once.
	for i := 0; i < len(professors); i++ {
		for j := i + 1; j < len(professors); j++ {
			if professors[i].ID == professors[j].ID {
				continue
			}
			if !professors[i].SharesPaperWith(professors[j]) {
				continue
			}
			source, target := professors[i].ID, professors[j].ID
			if source > target {
				source, target = target, source
			}
			links = append(links, domain.Link{
				Source:   source,
				Target:   target,
				Relation: domain.RelationCoAuthor,
			})
		}
	}

	b.logger.Info().
		Int("professors", len(professors)).
		Int("links", len(links)).
		Msg("relationships built")

	return links
}
