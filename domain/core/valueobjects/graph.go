package valueobjects

// Relationship is a directed, typed edge between two topic names.
type Relationship struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

// Graph is the per-turn view of the knowledge graph that gets snapshotted.
// Nodes are unique and keep first-insertion order. Relationships are kept in
// encounter order and are not deduplicated.
type Graph struct {
	Nodes         []string       `json:"nodes"`
	Relationships []Relationship `json:"relationships"`
	Error         string         `json:"error,omitempty"`
}

// EmptyGraph returns a graph with no nodes and no relationships.
func EmptyGraph() Graph {
	return Graph{
		Nodes:         []string{},
		Relationships: []Relationship{},
	}
}

// ErroredGraph returns an empty graph carrying an error marker.
func ErroredGraph(marker string) Graph {
	g := EmptyGraph()
	g.Error = marker
	return g
}

// IsEmpty reports whether the graph has neither nodes nor relationships.
func (g Graph) IsEmpty() bool {
	return len(g.Nodes) == 0 && len(g.Relationships) == 0
}

// HasError reports whether the upsert that produced the graph aborted.
func (g Graph) HasError() bool {
	return g.Error != ""
}

// GraphBuilder accumulates nodes and relationships in order.
type GraphBuilder struct {
	seen          map[string]struct{}
	nodes         []string
	relationships []Relationship
}

func NewGraphBuilder() *GraphBuilder {
	return &GraphBuilder{
		seen:          make(map[string]struct{}),
		nodes:         []string{},
		relationships: []Relationship{},
	}
}

// AddNode adds name unless it is already present.
func (b *GraphBuilder) AddNode(name string) {
	if _, ok := b.seen[name]; ok {
		return
	}
	b.seen[name] = struct{}{}
	b.nodes = append(b.nodes, name)
}

// AddRelationship appends the relationship and registers both endpoints.
func (b *GraphBuilder) AddRelationship(rel Relationship) {
	b.AddNode(rel.Source)
	b.AddNode(rel.Target)
	b.relationships = append(b.relationships, rel)
}

// Nodes returns the nodes added so far.
func (b *GraphBuilder) Nodes() []string {
	return append([]string(nil), b.nodes...)
}

func (b *GraphBuilder) Build() Graph {
	return Graph{
		Nodes:         append([]string{}, b.nodes...),
		Relationships: append([]Relationship{}, b.relationships...),
	}
}
