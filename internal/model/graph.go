package model

// Graph is the renderer-agnostic node/edge model built after aggregation.
// It holds no references into aggregator state.
type Graph struct {
	Name  string `json:"name"`
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Node is a single address in the graph.
type Node struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Shape   string `json:"shape"`
	Color   string `json:"color"`
	Country string `json:"country,omitempty"`
}

// Edge is a single directional flow in the graph.
type Edge struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Label       string `json:"label"`
	Color       string `json:"color"`
	Weight      uint64 `json:"weight"`
	Flagged     bool   `json:"flagged"`
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Edge returns the edge for the given flow key.
func (g *Graph) Edge(key FlowKey) (Edge, bool) {
	for _, e := range g.Edges {
		if e.Source == key.Source && e.Destination == key.Destination {
			return e, true
		}
	}
	return Edge{}, false
}
