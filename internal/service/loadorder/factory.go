package loadorder

import (
	"fmt"
	"log/slog"

	"edfi-dms/internal/apischema"
	"edfi-dms/internal/graph"
)

// GraphFactory produces the acyclic dependency graph for a schema: it builds
// the raw graph, applies the transformer chain in order and then breaks the
// remaining cycles by removing optional edges.
type GraphFactory struct {
	transformers []GraphTransformer
	logger       *slog.Logger
}

// NewGraphFactory creates a factory applying transformers in order.
func NewGraphFactory(transformers []GraphTransformer, logger *slog.Logger) *GraphFactory {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &GraphFactory{transformers: transformers, logger: logger}
}

// AcyclicGraph is the output of GraphFactory.CreateGraph.
type AcyclicGraph struct {
	Graph        *DependencyGraph
	RemovedEdges []Edge
}

// CreateGraph runs the build, transform and cycle-breaking steps.
func (f *GraphFactory) CreateGraph(schema *apischema.Schema) (*AcyclicGraph, error) {
	g, err := BuildGraph(schema, f.logger)
	if err != nil {
		return nil, fmt.Errorf("build dependency graph: %w", err)
	}
	for i, t := range f.transformers {
		g, err = t.TransformGraph(g)
		if err != nil {
			return nil, fmt.Errorf("graph transformer %d (%T): %w", i, t, err)
		}
	}
	removed, err := graph.BreakCycles(g, isOptional, f.logger)
	if err != nil {
		return nil, fmt.Errorf("break dependency cycles: %w", err)
	}
	for _, e := range removed {
		f.logger.Info("dependency removed to break cycle",
			"source", e.Source.String(), "target", e.Target.String(), "required", e.Required)
	}
	return &AcyclicGraph{Graph: g, RemovedEdges: removed}, nil
}

func isOptional(e Edge) bool { return !e.Required }
