package loadorder

import (
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"

	dgraph "github.com/dominikbraun/graph"
	"github.com/dominikbraun/graph/draw"

	"edfi-dms/internal/domain"
	"edfi-dms/internal/graph"
)

// DiagramID is the identifier of every exported diagram.
const DiagramID = "EdFi Dependencies"

// EdgeKind classifies a diagram edge.
type EdgeKind string

// Diagram edge kinds.
const (
	KindReference          EdgeKind = "reference"
	KindPrimaryAssociation EdgeKind = "primaryAssociation"
	KindRetry              EdgeKind = "retry"
	KindAuthorization      EdgeKind = "authorization"
	KindOrdering           EdgeKind = "ordering"
)

// Diagram is a visualization of a dependency graph using resource paths as
// node identifiers.
type Diagram struct {
	ID    string        `json:"id"`
	Nodes []DiagramNode `json:"nodes"`
	Edges []DiagramEdge `json:"edges"`
}

// DiagramNode is a resource or retry node.
type DiagramNode struct {
	ID    string `json:"id"`
	Retry bool   `json:"retry,omitempty"`
}

// DiagramEdge is a dependency between two nodes.
type DiagramEdge struct {
	Source              string   `json:"source"`
	Target              string   `json:"target"`
	IsReferenceRequired bool     `json:"isReferenceRequired"`
	Kind                EdgeKind `json:"kind"`
}

// Exporter renders dependency graphs for inspection. Every person resource
// is drawn with its retry node. Edges out of a primary association are
// drawn from the person's retry node instead.
type Exporter struct {
	authorizations []PersonAuthorization
	logger         *slog.Logger
}

// NewExporter creates an Exporter using the given person authorization table.
func NewExporter(authorizations []PersonAuthorization, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Exporter{authorizations: authorizations, logger: logger}
}

type edgeKey struct{ source, target string }

// Diagram builds the diagram for g. g is not modified.
func (x *Exporter) Diagram(g *DependencyGraph) (Diagram, error) {
	// primaries maps person -> its associations present in g, personOf maps
	// each association back to the first person claiming it.
	primaries := make(map[domain.FullResourceName]map[domain.FullResourceName]bool)
	personOf := make(map[domain.FullResourceName]domain.FullResourceName)
	for _, auth := range x.authorizations {
		if !g.HasVertex(auth.Person) {
			continue
		}
		set := make(map[domain.FullResourceName]bool)
		for _, a := range auth.PrimaryAssociations {
			if !g.HasVertex(a) {
				continue
			}
			set[a] = true
			if _, claimed := personOf[a]; !claimed {
				personOf[a] = auth.Person
			}
		}
		primaries[auth.Person] = set
	}

	var nodes []DiagramNode
	for _, name := range g.Vertices() {
		v, _ := g.Vertex(name)
		if v.IsRetry {
			continue
		}
		nodes = append(nodes, DiagramNode{ID: v.NodeID()})
		if _, person := primaries[name]; person || v.IsPersonType {
			nodes = append(nodes, DiagramNode{ID: retryVertex(v).NodeID(), Retry: true})
		}
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })

	nodeID := func(name domain.FullResourceName) string {
		v, _ := g.Vertex(name)
		return v.NodeID()
	}
	retryID := func(person domain.FullResourceName) string {
		v, _ := g.Vertex(person)
		return retryVertex(v).NodeID()
	}

	var order []edgeKey
	merged := make(map[edgeKey]DiagramEdge)
	emit := func(source, target string, required bool, kind EdgeKind) {
		k := edgeKey{source, target}
		if prev, ok := merged[k]; ok {
			prev.IsReferenceRequired = prev.IsReferenceRequired || required
			merged[k] = prev
			return
		}
		order = append(order, k)
		merged[k] = DiagramEdge{Source: source, Target: target, IsReferenceRequired: required, Kind: kind}
	}

	for _, e := range g.Edges() {
		switch {
		case e.Label == LabelRetry:
			emit(nodeID(e.Source), nodeID(e.Target), true, KindRetry)
		case primaries[e.Source][e.Target]:
			emit(nodeID(e.Target), retryID(e.Source), true, KindRetry)
			emit(nodeID(e.Source), nodeID(e.Target), e.Required, KindPrimaryAssociation)
		default:
			if person, ok := personOf[e.Source]; ok {
				emit(retryID(person), nodeID(e.Target), e.Required, KindAuthorization)
				continue
			}
			kind := KindReference
			if e.Label == LabelOrdering {
				kind = KindOrdering
			}
			emit(nodeID(e.Source), nodeID(e.Target), e.Required, kind)
		}
	}

	sort.Slice(order, func(i, j int) bool {
		if order[i].source != order[j].source {
			return order[i].source < order[j].source
		}
		return order[i].target < order[j].target
	})

	// Redirection can close loops that did not exist in g.
	dg := graph.New[string, DiagramNode]()
	for _, n := range nodes {
		if err := dg.AddVertex(n.ID, n); err != nil {
			return Diagram{}, err
		}
	}
	for _, k := range order {
		e := merged[k]
		if err := dg.AddEdge(graph.Edge[string]{Source: e.Source, Target: e.Target, Required: e.IsReferenceRequired, Label: string(e.Kind)}); err != nil {
			return Diagram{}, fmt.Errorf("diagram edge %s -> %s: %w", e.Source, e.Target, err)
		}
	}
	removed, err := graph.BreakCycles(dg, func(e graph.Edge[string]) bool { return !e.Required }, x.logger)
	if err != nil {
		return Diagram{}, fmt.Errorf("diagram: %w", err)
	}
	gone := make(map[edgeKey]bool, len(removed))
	for _, e := range removed {
		gone[edgeKey{e.Source, e.Target}] = true
	}

	edges := make([]DiagramEdge, 0, len(order))
	for _, k := range order {
		if !gone[k] {
			edges = append(edges, merged[k])
		}
	}
	return Diagram{ID: DiagramID, Nodes: nodes, Edges: edges}, nil
}

// GraphML document model.
type graphMLDoc struct {
	XMLName xml.Name     `xml:"graphml"`
	Xmlns   string       `xml:"xmlns,attr"`
	Keys    []graphMLKey `xml:"key"`
	Graph   graphMLGraph `xml:"graph"`
}

type graphMLKey struct {
	ID   string `xml:"id,attr"`
	For  string `xml:"for,attr"`
	Name string `xml:"attr.name,attr"`
	Type string `xml:"attr.type,attr"`
}

type graphMLGraph struct {
	ID          string        `xml:"id,attr"`
	EdgeDefault string        `xml:"edgedefault,attr"`
	Nodes       []graphMLNode `xml:"node"`
	Edges       []graphMLEdge `xml:"edge"`
}

type graphMLNode struct {
	ID string `xml:"id,attr"`
}

type graphMLEdge struct {
	Source string        `xml:"source,attr"`
	Target string        `xml:"target,attr"`
	Data   []graphMLData `xml:"data"`
}

type graphMLData struct {
	Key   string `xml:"key,attr"`
	Value string `xml:",chardata"`
}

// WriteGraphML encodes d as a GraphML document.
func WriteGraphML(w io.Writer, d Diagram) error {
	doc := graphMLDoc{
		Xmlns: "http://graphml.graphdrawing.org/xmlns",
		Keys: []graphMLKey{
			{ID: "isReferenceRequired", For: "edge", Name: "isReferenceRequired", Type: "boolean"},
			{ID: "kind", For: "edge", Name: "kind", Type: "string"},
		},
		Graph: graphMLGraph{ID: d.ID, EdgeDefault: "directed"},
	}
	for _, n := range d.Nodes {
		doc.Graph.Nodes = append(doc.Graph.Nodes, graphMLNode{ID: n.ID})
	}
	for _, e := range d.Edges {
		doc.Graph.Edges = append(doc.Graph.Edges, graphMLEdge{
			Source: e.Source,
			Target: e.Target,
			Data: []graphMLData{
				{Key: "isReferenceRequired", Value: strconv.FormatBool(e.IsReferenceRequired)},
				{Key: "kind", Value: string(e.Kind)},
			},
		})
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode graphml: %w", err)
	}
	return enc.Close()
}

// WriteDOT renders d in Graphviz DOT format.
func WriteDOT(w io.Writer, d Diagram) error {
	g := dgraph.New(dgraph.StringHash, dgraph.Directed())
	for _, n := range d.Nodes {
		opts := []func(*dgraph.VertexProperties){dgraph.VertexAttribute("shape", "box")}
		if n.Retry {
			opts = append(opts, dgraph.VertexAttribute("style", "dashed"))
		}
		if err := g.AddVertex(n.ID, opts...); err != nil {
			return fmt.Errorf("dot vertex %s: %w", n.ID, err)
		}
	}
	for _, e := range d.Edges {
		opts := []func(*dgraph.EdgeProperties){}
		if !e.IsReferenceRequired {
			opts = append(opts, dgraph.EdgeAttribute("style", "dashed"))
		}
		if e.Kind != KindReference {
			opts = append(opts, dgraph.EdgeAttribute("label", string(e.Kind)))
		}
		if err := g.AddEdge(e.Source, e.Target, opts...); err != nil {
			return fmt.Errorf("dot edge %s -> %s: %w", e.Source, e.Target, err)
		}
	}
	return draw.DOT(g, w)
}
