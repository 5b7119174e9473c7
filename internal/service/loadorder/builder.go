package loadorder

import (
	"fmt"
	"log/slog"

	"edfi-dms/internal/apischema"
	"edfi-dms/internal/domain"
)

// BuildGraph creates one vertex per resource of every project, school-year
// enumerations excepted, and one edge T->R for every reference from R to T.
// References to an abstract resource fan out to each of its subclasses.
func BuildGraph(schema *apischema.Schema, logger *slog.Logger) (*DependencyGraph, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	g := NewDependencyGraph()
	core := schema.Core().ProjectName

	resources := schema.Resources()
	for _, r := range resources {
		if r.Schema.IsSchoolYearEnumeration {
			continue
		}
		v := Vertex{
			Name:            r.FullName(),
			ProjectEndpoint: r.Project.ProjectEndpointName,
			Endpoint:        domain.EndpointName(r.EndpointName),
			IsDescriptor:    r.Schema.IsDescriptor,
			IsPersonType:    r.Project.ProjectName == core && domain.IsPersonType(domain.ResourceName(r.Schema.ResourceName)),
		}
		if err := g.AddVertex(v.Name, v); err != nil {
			return nil, fmt.Errorf("add resource %s: %w", v.Name, err)
		}
	}

	for _, r := range resources {
		if r.Schema.IsSchoolYearEnumeration {
			continue
		}
		dependent := r.FullName()
		for _, ref := range r.References() {
			target, kind, err := schema.Resolve(r, ref)
			if err != nil {
				return nil, err
			}
			switch kind {
			case apischema.TargetSchoolYear:
				continue
			case apischema.TargetAbstract:
				subs := schema.Subclasses(target)
				if len(subs) == 0 {
					logger.Warn("abstract resource has no concrete subclasses",
						"resource", dependent.String(), "abstract", target.String())
				}
				for _, sub := range subs {
					if err := addReference(g, sub, dependent, ref.Required); err != nil {
						return nil, err
					}
				}
			default:
				if err := addReference(g, target, dependent, ref.Required); err != nil {
					return nil, err
				}
			}
		}
	}

	logger.Debug("resource dependency graph built", "vertices", g.Order(), "edges", g.Size())
	return g, nil
}

func addReference(g *DependencyGraph, source, target domain.FullResourceName, required bool) error {
	if !g.HasVertex(source) {
		// Subclasses and referenced resources are validated by the schema;
		// only school-year enumerations are absent from the graph.
		return nil
	}
	if err := g.AddEdge(Edge{Source: source, Target: target, Required: required, Label: LabelReference}); err != nil {
		return fmt.Errorf("add reference %s -> %s: %w", source, target, err)
	}
	return nil
}
