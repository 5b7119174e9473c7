package loadorder

import (
	"fmt"
	"sort"

	"edfi-dms/internal/apischema"
	"edfi-dms/internal/domain"
	"edfi-dms/internal/graph"
)

// PlanEntry is a leveled vertex before the plan is finalized. Retry vertices
// appear as entries of their own until a LoadOrderTransformer consumes them.
type PlanEntry struct {
	Vertex     Vertex
	Group      int
	Operations []domain.Operation
}

// LoadOrderTransformer rewrites the leveled plan.
type LoadOrderTransformer interface {
	TransformLoadOrder(entries []PlanEntry) []PlanEntry
}

// Level assigns every vertex of an acyclic graph to group 1 + the highest
// group among its prerequisites, with prerequisite-free vertices in group 1.
func Level(g *DependencyGraph) ([]PlanEntry, error) {
	vertices := g.Vertices()
	inDegree := make(map[domain.FullResourceName]int, len(vertices))
	for _, v := range vertices {
		inDegree[v] = len(g.InEdges(v))
	}

	var queue []Vertex
	for _, name := range vertices {
		if inDegree[name] == 0 {
			v, _ := g.Vertex(name)
			queue = append(queue, v)
		}
	}

	entries := make([]PlanEntry, 0, len(vertices))
	for group := 1; len(queue) > 0; group++ {
		var next []Vertex
		for _, v := range queue {
			entries = append(entries, PlanEntry{Vertex: v, Group: group, Operations: domain.AllOperations()})
			for _, e := range g.OutEdges(v.Name) {
				inDegree[e.Target]--
				if inDegree[e.Target] == 0 {
					t, _ := g.Vertex(e.Target)
					next = append(next, t)
				}
			}
		}
		queue = next
	}

	if len(entries) != len(vertices) {
		if err := graph.Validate(g); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("leveled %d of %d vertices", len(entries), len(vertices))
	}
	return entries, nil
}

// ComputeLoadOrder levels an acyclic graph, applies the load-order
// transformers and returns the finalized plan sorted by group and path.
// Retry entries left unconsumed are dropped and groups renumbered so that
// they stay dense.
func ComputeLoadOrder(g *DependencyGraph, transformers ...LoadOrderTransformer) ([]domain.LoadOrder, error) {
	entries, err := Level(g)
	if err != nil {
		return nil, err
	}
	for _, t := range transformers {
		entries = t.TransformLoadOrder(entries)
	}
	return finalize(entries), nil
}

func finalize(entries []PlanEntry) []domain.LoadOrder {
	kept := make([]PlanEntry, 0, len(entries))
	groups := make(map[int]bool)
	for _, e := range entries {
		if e.Vertex.IsRetry || len(e.Operations) == 0 {
			continue
		}
		kept = append(kept, e)
		groups[e.Group] = true
	}

	distinct := make([]int, 0, len(groups))
	for g := range groups {
		distinct = append(distinct, g)
	}
	sort.Ints(distinct)
	dense := make(map[int]int, len(distinct))
	for i, g := range distinct {
		dense[g] = i + 1
	}

	out := make([]domain.LoadOrder, len(kept))
	for i, e := range kept {
		out[i] = domain.LoadOrder{
			ResourcePath: e.Vertex.ResourcePath(),
			Group:        dense[e.Group],
			Operations:   append([]domain.Operation(nil), e.Operations...),
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Group != out[j].Group {
			return out[i].Group < out[j].Group
		}
		return out[i].ResourcePath < out[j].ResourcePath
	})
	return out
}

// Calculator produces load orders from schemas using a GraphFactory and a
// chain of LoadOrderTransformers.
type Calculator struct {
	factory      *GraphFactory
	transformers []LoadOrderTransformer
}

// NewCalculator creates a Calculator.
func NewCalculator(factory *GraphFactory, transformers []LoadOrderTransformer) *Calculator {
	return &Calculator{factory: factory, transformers: transformers}
}

// Plan is the result of a calculation.
type Plan struct {
	Graph        *DependencyGraph
	RemovedEdges []Edge
	LoadOrder    []domain.LoadOrder
}

// Calculate builds the acyclic graph for schema and computes its load order.
func (c *Calculator) Calculate(schema *apischema.Schema) (*Plan, error) {
	ag, err := c.factory.CreateGraph(schema)
	if err != nil {
		return nil, err
	}
	orders, err := ComputeLoadOrder(ag.Graph, c.transformers...)
	if err != nil {
		return nil, fmt.Errorf("compute load order: %w", err)
	}
	return &Plan{Graph: ag.Graph, RemovedEdges: ag.RemovedEdges, LoadOrder: orders}, nil
}

// PersonAuthorizationLoadOrderTransformer splits each person entry P that has
// a retry vertex into a Create entry at P's group and an Update entry at the
// retry vertex's group. The retry entries are consumed.
type PersonAuthorizationLoadOrderTransformer struct{}

// TransformLoadOrder implements LoadOrderTransformer.
func (PersonAuthorizationLoadOrderTransformer) TransformLoadOrder(entries []PlanEntry) []PlanEntry {
	retryGroup := make(map[domain.FullResourceName]int)
	for _, e := range entries {
		if e.Vertex.IsRetry {
			retryGroup[e.Vertex.RetryOf] = e.Group
		}
	}
	if len(retryGroup) == 0 {
		return entries
	}

	out := make([]PlanEntry, 0, len(entries)+len(retryGroup))
	for _, e := range entries {
		if e.Vertex.IsRetry {
			continue
		}
		group, split := retryGroup[e.Vertex.Name]
		if !split {
			out = append(out, e)
			continue
		}
		out = append(out,
			PlanEntry{Vertex: e.Vertex, Group: e.Group, Operations: []domain.Operation{domain.OperationCreate}},
			PlanEntry{Vertex: e.Vertex, Group: group, Operations: []domain.Operation{domain.OperationUpdate}},
		)
	}
	return out
}
