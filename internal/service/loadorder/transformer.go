package loadorder

import (
	"fmt"
	"log/slog"

	"edfi-dms/internal/domain"
)

// GraphTransformer rewrites a dependency graph before cycles are broken.
// Implementations must not mutate their input.
type GraphTransformer interface {
	TransformGraph(g *DependencyGraph) (*DependencyGraph, error)
}

// PersonAuthorization names a person resource and the associations whose
// creation completes its authorization data.
type PersonAuthorization struct {
	Person              domain.FullResourceName
	PrimaryAssociations []domain.FullResourceName
}

// DefaultPersonAuthorizations returns the data-standard person types and
// their primary associations within the given core project.
func DefaultPersonAuthorizations(coreProject string) []PersonAuthorization {
	n := func(resource string) domain.FullResourceName {
		return domain.NewFullResourceName(coreProject, resource)
	}
	return []PersonAuthorization{
		{Person: n("Student"), PrimaryAssociations: []domain.FullResourceName{n("StudentSchoolAssociation")}},
		{Person: n("Staff"), PrimaryAssociations: []domain.FullResourceName{
			n("StaffEducationOrganizationEmploymentAssociation"),
			n("StaffEducationOrganizationAssignmentAssociation"),
		}},
		{Person: n("Parent"), PrimaryAssociations: []domain.FullResourceName{n("StudentParentAssociation")}},
		{Person: n("Contact"), PrimaryAssociations: []domain.FullResourceName{n("StudentContactAssociation")}},
	}
}

// MergePersonAuthorizations returns base with every entry of overrides
// replacing the base entry for the same person, in base order. Overrides for
// persons missing from base follow in their own order.
func MergePersonAuthorizations(base, overrides []PersonAuthorization) []PersonAuthorization {
	byPerson := make(map[domain.FullResourceName]PersonAuthorization, len(overrides))
	for _, o := range overrides {
		byPerson[o.Person] = o
	}
	out := make([]PersonAuthorization, 0, len(base)+len(overrides))
	for _, b := range base {
		if o, ok := byPerson[b.Person]; ok {
			out = append(out, o)
			delete(byPerson, b.Person)
			continue
		}
		out = append(out, b)
	}
	for _, o := range overrides {
		if _, pending := byPerson[o.Person]; pending {
			out = append(out, o)
			delete(byPerson, o.Person)
		}
	}
	return out
}

// PersonAuthorizationTransformer adds a retry vertex P#Retry for every person
// P that has a primary association A in the graph, with a required edge
// A -> P#Retry. Every other dependent X of P is moved behind the associations:
// P -> X becomes A -> X for each A, so X is leveled with P#Retry. A dependent
// that some A itself depends on keeps its P -> X edge. P -> A is preserved.
type PersonAuthorizationTransformer struct {
	authorizations []PersonAuthorization
	logger         *slog.Logger
}

// NewPersonAuthorizationTransformer creates a transformer for the given table.
func NewPersonAuthorizationTransformer(authorizations []PersonAuthorization, logger *slog.Logger) *PersonAuthorizationTransformer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &PersonAuthorizationTransformer{authorizations: authorizations, logger: logger}
}

// TransformGraph implements GraphTransformer.
func (t *PersonAuthorizationTransformer) TransformGraph(in *DependencyGraph) (*DependencyGraph, error) {
	g := in.Clone()
	for _, auth := range t.authorizations {
		person, ok := g.Vertex(auth.Person)
		if !ok {
			continue
		}
		assocs := make([]domain.FullResourceName, 0, len(auth.PrimaryAssociations))
		isAssoc := make(map[domain.FullResourceName]bool, len(auth.PrimaryAssociations))
		for _, a := range auth.PrimaryAssociations {
			if g.HasEdge(auth.Person, a) {
				assocs = append(assocs, a)
				isAssoc[a] = true
			}
		}
		if len(assocs) == 0 {
			t.logger.Debug("person has no primary association in graph", "person", auth.Person.String())
			continue
		}

		retry := retryVertex(person)
		if err := g.AddVertex(retry.Name, retry); err != nil {
			return nil, fmt.Errorf("add retry vertex for %s: %w", auth.Person, err)
		}
		for _, a := range assocs {
			if err := g.AddEdge(Edge{Source: a, Target: retry.Name, Required: true, Label: LabelRetry}); err != nil {
				return nil, err
			}
		}

		redirected := 0
		for _, e := range g.OutEdges(auth.Person) {
			x := e.Target
			if isAssoc[x] || x == auth.Person {
				continue
			}
			if v, _ := g.Vertex(x); v.IsRetry {
				continue
			}
			if prerequisiteOfAny(g, x, assocs) {
				t.logger.Debug("dependent precedes a primary association, edge kept",
					"person", auth.Person.String(), "dependent", x.String())
				continue
			}
			g.RemoveEdge(e)
			for _, a := range assocs {
				if err := g.AddEdge(Edge{Source: a, Target: x, Required: e.Required, Label: LabelAuthorization}); err != nil {
					return nil, err
				}
			}
			redirected++
		}
		t.logger.Debug("person authorization applied",
			"person", auth.Person.String(), "associations", len(assocs), "redirected", redirected)
	}
	return g, nil
}

func prerequisiteOfAny(g *DependencyGraph, x domain.FullResourceName, targets []domain.FullResourceName) bool {
	for _, a := range targets {
		if g.Reachable(x, a) {
			return true
		}
	}
	return false
}

// OrderingRule forces Before to be loaded ahead of After.
type OrderingRule struct {
	Before   domain.FullResourceName
	After    domain.FullResourceName
	Required bool
}

// OrderingTransformer injects dependencies that no document reference
// expresses.
type OrderingTransformer struct {
	rules []OrderingRule
}

// NewOrderingTransformer creates a transformer applying rules in order.
func NewOrderingTransformer(rules []OrderingRule) *OrderingTransformer {
	return &OrderingTransformer{rules: rules}
}

// TransformGraph implements GraphTransformer.
func (t *OrderingTransformer) TransformGraph(in *DependencyGraph) (*DependencyGraph, error) {
	g := in.Clone()
	for _, r := range t.rules {
		for _, name := range []domain.FullResourceName{r.Before, r.After} {
			if !g.HasVertex(name) {
				return nil, domain.ErrValidation("ordering rule references unknown resource %s", name)
			}
		}
		if err := g.AddEdge(Edge{Source: r.Before, Target: r.After, Required: r.Required, Label: LabelOrdering}); err != nil {
			return nil, err
		}
	}
	return g, nil
}
