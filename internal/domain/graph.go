package domain

// NodeType classifies a graph node for rendering.
type NodeType string

const (
	NodeTypeUser        NodeType = "user"
	NodeTypeInstitution NodeType = "institution"
	NodeTypeProfessor   NodeType = "professor"
	NodeTypeTopic       NodeType = "topic"
)

// UserNodeID is the synthetic root node representing the querying user.
// Exactly one such node exists in every assembled graph.
const UserNodeID = "user"

// Relation labels an edge in the discovery graph.
type Relation string

const (
	// RelationInterestedIn connects the user node to top-level entities.
	RelationInterestedIn Relation = "interested_in"
	// RelationSupervises connects an institution to an affiliated professor.
	RelationSupervises Relation = "supervises"
	// RelationCoAuthor connects two professors that share at least one paper.
	// Co-authorship is symmetric; the pair is stored in canonical order.
	RelationCoAuthor Relation = "co_author"
)

// Node is one vertex of the discovery graph. IDs are content fingerprints
// (plus the synthetic user node), never random per-run values.
type Node struct {
	ID       string                 `json:"id"`
	Type     NodeType               `json:"type"`
	Label    string                 `json:"label"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Link is one directed edge of the discovery graph.
type Link struct {
	Source   string   `json:"source"`
	Target   string   `json:"target"`
	Relation Relation `json:"relation"`
}

// Graph is the final node/edge structure handed to visualization clients.
type Graph struct {
	Nodes map[string]*Node `json:"nodes"`
	Links []Link           `json:"links"`
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		Nodes: make(map[string]*Node),
		Links: make([]Link, 0),
	}
}

// AddNode inserts the node if no node with the same ID exists yet. The first
// sighting wins; repeat insertions are ignored.
func (g *Graph) AddNode(n *Node) {
	if n == nil || n.ID == "" {
		return
	}
	if _, ok := g.Nodes[n.ID]; ok {
		return
	}
	g.Nodes[n.ID] = n
}

// HasNode reports whether a node with the given ID exists.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.Nodes[id]
	return ok
}

// AddLink inserts the edge, rejecting self-edges and duplicates. Co-author
// edges are canonicalized so that the unordered pair appears once regardless
// of discovery order.
func (g *Graph) AddLink(l Link) {
	if l.Source == l.Target {
		return
	}
	if l.Relation == RelationCoAuthor && l.Source > l.Target {
		l.Source, l.Target = l.Target, l.Source
	}
	for _, existing := range g.Links {
		if existing == l {
			return
		}
	}
	g.Links = append(g.Links, l)
}

// RemoveNode deletes the node and every edge touching it.
func (g *Graph) RemoveNode(id string) {
	delete(g.Nodes, id)
	g.PruneDanglingLinks()
}

// PruneDanglingLinks drops every link whose source or target no longer
// resolves to a node.
func (g *Graph) PruneDanglingLinks() {
	kept := g.Links[:0]
	for _, l := range g.Links {
		if g.HasNode(l.Source) && g.HasNode(l.Target) {
			kept = append(kept, l)
		}
	}
	g.Links = kept
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	return len(g.Nodes)
}

// Clone returns a deep copy of the graph.
func (g *Graph) Clone() *Graph {
	cp := NewGraph()
	for id, n := range g.Nodes {
		node := *n
		if n.Metadata != nil {
			m := make(map[string]interface{}, len(n.Metadata))
			for k, v := range n.Metadata {
				m[k] = v
			}
			node.Metadata = m
		}
		cp.Nodes[id] = &node
	}
	cp.Links = append(cp.Links, g.Links...)
	return cp
}
