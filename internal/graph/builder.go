package graph

import (
	"sort"
	"strconv"

	"TrafficGraph/internal/model"
	"TrafficGraph/internal/rules"
)

// Classifier decides the visual attributes of nodes and edges.
// *rules.Engine is the production implementation.
type Classifier interface {
	ClassifyNode(address string) (shape, color string)
	ClassifyEdge(flow model.FlowKey) (string, bool)
}

// Annotator adds the country of an address to its node.
type Annotator interface {
	Country(address string) (string, bool)
}

// Option configures a Builder.
type Option func(*Builder)

// WithName sets the graph name.
func WithName(name string) Option {
	return func(b *Builder) { b.name = name }
}

// WithLabels sets per-address display label overrides.
func WithLabels(labels map[string]string) Option {
	return func(b *Builder) {
		b.labels = make(map[string]string, len(labels))
		for addr, label := range labels {
			b.labels[addr] = label
		}
	}
}

// WithEdgeColor sets the color of edges no flag rule matched.
func WithEdgeColor(color string) Option {
	return func(b *Builder) {
		if color != "" {
			b.edgeColor = color
		}
	}
}

// WithAnnotator enables country annotation of nodes.
func WithAnnotator(a Annotator) Option {
	return func(b *Builder) { b.annotator = a }
}

// Builder turns aggregated flows into a deduplicated graph model.
type Builder struct {
	name      string
	labels    map[string]string
	edgeColor string
	annotator Annotator
}

// NewBuilder creates a builder with the given options.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{edgeColor: rules.DefaultColor}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build builds a graph from flows with a one-off builder.
func Build(flows []*model.FlowRecord, classifier Classifier, opts ...Option) *model.Graph {
	return NewBuilder(opts...).Build(flows, classifier)
}

// Build emits one node per distinct address and one edge per flow. Nodes are
// sorted by address and edges by flow key. The graph shares no memory with
// flows.
func (b *Builder) Build(flows []*model.FlowRecord, classifier Classifier) *model.Graph {
	if classifier == nil {
		classifier = rules.NewEngine(nil, nil)
	}

	hostnames := make(map[string]string)
	noteAddress := func(address, hostname string) {
		if known, ok := hostnames[address]; !ok || known == "" {
			hostnames[address] = hostname
		}
	}

	sorted := make([]*model.FlowRecord, len(flows))
	copy(sorted, flows)
	model.SortFlows(sorted)

	g := &model.Graph{Name: b.name, Edges: make([]model.Edge, 0, len(sorted))}
	seenEdges := make(map[model.FlowKey]int, len(sorted))
	for _, flow := range sorted {
		noteAddress(flow.Key.Source, flow.SourceName)
		noteAddress(flow.Key.Destination, flow.DestinationName)

		// Duplicate keys only occur when callers merge several snapshots.
		if i, ok := seenEdges[flow.Key]; ok {
			g.Edges[i].Weight += flow.TotalCount
			g.Edges[i].Label = strconv.FormatUint(g.Edges[i].Weight, 10)
			continue
		}

		edge := model.Edge{
			Source:      flow.Key.Source,
			Destination: flow.Key.Destination,
			Label:       strconv.FormatUint(flow.TotalCount, 10),
			Color:       b.edgeColor,
			Weight:      flow.TotalCount,
		}
		if color, ok := classifier.ClassifyEdge(flow.Key); ok {
			edge.Color = color
			edge.Flagged = true
		}
		seenEdges[flow.Key] = len(g.Edges)
		g.Edges = append(g.Edges, edge)
	}

	addresses := make([]string, 0, len(hostnames))
	for addr := range hostnames {
		addresses = append(addresses, addr)
	}
	sort.Strings(addresses)

	g.Nodes = make([]model.Node, 0, len(addresses))
	for _, addr := range addresses {
		shape, color := classifier.ClassifyNode(addr)
		node := model.Node{ID: addr, Label: b.label(addr, hostnames[addr]), Shape: shape, Color: color}
		if b.annotator != nil {
			if country, ok := b.annotator.Country(addr); ok {
				node.Country = country
			}
		}
		g.Nodes = append(g.Nodes, node)
	}
	return g
}

// label picks override label, then hostname, then the raw address.
func (b *Builder) label(address, hostname string) string {
	if label, ok := b.labels[address]; ok && label != "" {
		return label
	}
	if hostname != "" {
		return hostname
	}
	return address
}
