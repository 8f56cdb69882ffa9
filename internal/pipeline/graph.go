package pipeline

import (
	"github.com/rs/zerolog"

	"github.com/deepscience/research-graph-service/internal/dedup"
	"github.com/deepscience/research-graph-service/internal/domain"
	"github.com/deepscience/research-graph-service/internal/observability"
)

// GraphAssembler emits the final visualization graph: a synthetic user root
// node connected to the top-level discovered entities, the institution and
// professor nodes, the inferred edges, and a truncation pass that enforces
// the node budget without ever leaving a dangling link.
type GraphAssembler struct {
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// NewGraphAssembler creates a graph assembler.
func NewGraphAssembler(logger zerolog.Logger, metrics *observability.Metrics) *GraphAssembler {
	return &GraphAssembler{
		logger:  observability.WithComponent(logger, "graph_assembler"),
		metrics: metrics,
	}
}

// Assemble builds the graph from the ranked professors and the inferred
// links. professors must already be in rank order; truncation removes from
// the tail. The user node and, when any professors exist, the top-ranked
// professor always survive truncation.
func (a *GraphAssembler) Assemble(professors []*domain.Professor, links []domain.Link, maxNodes int) *domain.Graph {
	g := domain.NewGraph()

	g.AddNode(&domain.Node{
		ID:    domain.UserNodeID,
		Type:  domain.NodeTypeUser,
		Label: "You",
	})

	// Institutions in first-seen order across the ranked professors.
	instNames := institutionOrder(professors)
	for _, name := range instNames {
		g.AddNode(&domain.Node{
			ID:    dedup.InstitutionID(name),
			Type:  domain.NodeTypeInstitution,
			Label: name,
		})
	}

	for _, prof := range professors {
		g.AddNode(&domain.Node{
			ID:    prof.ID,
			Type:  domain.NodeTypeProfessor,
			Label: prof.Name,
			Metadata: map[string]interface{}{
				"paper_count":  prof.PaperCount,
				"citations":    prof.Citations,
				"institutions": prof.Institutions,
				"topics":       prof.Topics,
			},
		})
	}

	// Root links: user to each institution, or straight to the professors
	// when no institution grouping exists.
	if len(instNames) > 0 {
		for _, name := range instNames {
			g.AddLink(domain.Link{
				Source:   domain.UserNodeID,
				Target:   dedup.InstitutionID(name),
				Relation: domain.RelationInterestedIn,
			})
		}
	} else {
		for _, prof := range professors {
			g.AddLink(domain.Link{
				Source:   domain.UserNodeID,
				Target:   prof.ID,
				Relation: domain.RelationInterestedIn,
			})
		}
	}

	for _, link := range links {
		g.AddLink(link)
	}

	truncated := a.truncate(g, professors, instNames, maxNodes)
	g.PruneDanglingLinks()

	if a.metrics != nil {
		a.metrics.RecordGraphAssembled(g.NodeCount(), len(g.Links), truncated)
	}
	a.logger.Info().
		Int("nodes", g.NodeCount()).
		Int("links", len(g.Links)).
		Bool("truncated", truncated).
		Msg("graph assembled")

	return g
}

// truncate removes lowest-ranked professors, then trailing institutions,
// until the node count fits the budget. The user node and the top-ranked
// professor are never removed.
func (a *GraphAssembler) truncate(g *domain.Graph, professors []*domain.Professor, instNames []string, maxNodes int) bool {
	if maxNodes <= 0 || g.NodeCount() <= maxNodes {
		return false
	}

	// Lowest-ranked professors go first, sparing the top professor.
	for i := len(professors) - 1; i >= 1 && g.NodeCount() > maxNodes; i-- {
		g.RemoveNode(professors[i].ID)
	}

	// Still over budget: drop institutions from the back.
	for i := len(instNames) - 1; i >= 0 && g.NodeCount() > maxNodes; i-- {
		g.RemoveNode(dedup.InstitutionID(instNames[i]))
	}

	return true
}

// institutionOrder returns the distinct institution names across the
// professors in first-seen order.
func institutionOrder(professors []*domain.Professor) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, prof := range professors {
		for _, inst := range prof.Institutions {
			if inst == "" {
				continue
			}
			if _, ok := seen[inst]; ok {
				continue
			}
			seen[inst] = struct{}{}
			names = append(names, inst)
		}
	}
	return names
}
