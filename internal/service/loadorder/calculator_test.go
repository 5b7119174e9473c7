package loadorder

import (
	"errors"
	"testing"

	dgraph "github.com/dominikbraun/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edfi-dms/internal/apischema"
	"edfi-dms/internal/domain"
)

func calculate(t *testing.T, s *apischema.Schema, withAuthorization bool) (*Plan, error) {
	t.Helper()
	var gts []GraphTransformer
	var lts []LoadOrderTransformer
	if withAuthorization {
		gts = append(gts, NewPersonAuthorizationTransformer(DefaultPersonAuthorizations("Ed-Fi"), nil))
		lts = append(lts, PersonAuthorizationLoadOrderTransformer{})
	}
	return NewCalculator(NewGraphFactory(gts, nil), lts).Calculate(s)
}

func TestCalculator_AbstractResource(t *testing.T) {
	plan, err := calculate(t, abstractSchema(t), false)
	require.NoError(t, err)
	assert.Equal(t, []domain.LoadOrder{
		order("/ed-fi/educationOrganizationCategoryDescriptors", 1),
		order("/ed-fi/localEducationAgencies", 2),
		order("/ed-fi/schools", 3),
		order("/ed-fi/openStaffPositions", 4),
	}, plan.LoadOrder)
}

func TestCalculator_Authorization(t *testing.T) {
	plan, err := calculate(t, authorizationSchema(t), true)
	require.NoError(t, err)

	create, update := domain.OperationCreate, domain.OperationUpdate
	assert.Equal(t, []domain.LoadOrder{
		order("/ed-fi/contacts", 1, create),
		order("/ed-fi/staffs", 1, create),
		order("/ed-fi/students", 1, create),
		order("/ed-fi/staffEducationOrganizationAssignmentAssociations", 2),
		order("/ed-fi/staffEducationOrganizationEmploymentAssociations", 2),
		order("/ed-fi/studentContactAssociations", 2),
		order("/ed-fi/studentSchoolAssociations", 2),
		order("/ed-fi/contacts", 3, update),
		order("/ed-fi/disciplineActions", 3),
		order("/ed-fi/localContractedStaffs", 3),
		order("/ed-fi/staffs", 3, update),
		order("/ed-fi/students", 3, update),
		order("/ed-fi/surveyResponses", 3),
	}, plan.LoadOrder)

	for _, lo := range plan.LoadOrder {
		require.NoError(t, lo.Validate())
	}
}

func TestCalculator_AuthorizationWithoutLoadOrderTransformer(t *testing.T) {
	gts := []GraphTransformer{NewPersonAuthorizationTransformer(DefaultPersonAuthorizations("Ed-Fi"), nil)}
	plan, err := NewCalculator(NewGraphFactory(gts, nil), nil).Calculate(authorizationSchema(t))
	require.NoError(t, err)

	for _, lo := range plan.LoadOrder {
		assert.NotContains(t, lo.ResourcePath, RetrySuffix)
		assert.Equal(t, domain.AllOperations(), lo.Operations)
	}
	assert.Len(t, plan.LoadOrder, 10)
}

func TestCalculator_Extension(t *testing.T) {
	s := mustSchema(t, apischema.NewBuilder().
		Project("Ed-Fi").Resource("Person").Endpoint("persons").
		Project("TPDM").Resource("Candidate").Reference("Person", true))

	plan, err := calculate(t, s, false)
	require.NoError(t, err)
	assert.Equal(t, []domain.LoadOrder{
		order("/ed-fi/persons", 1),
		order("/tpdm/candidates", 2),
	}, plan.LoadOrder)
}

func TestCalculator_BreakableCycle(t *testing.T) {
	s := mustSchema(t, apischema.NewBuilder().Project("Ed-Fi").
		Resource("one").Endpoint("ones").Reference("two", false).
		Resource("two").Endpoint("twos").Reference("one", true))

	plan, err := calculate(t, s, false)
	require.NoError(t, err)
	assert.Equal(t, []domain.LoadOrder{
		order("/ed-fi/ones", 1),
		order("/ed-fi/twos", 2),
	}, plan.LoadOrder)
	require.Len(t, plan.RemovedEdges, 1)
	assert.Equal(t, edfi("two"), plan.RemovedEdges[0].Source)
	assert.False(t, plan.RemovedEdges[0].Required)
}

func TestCalculator_UnbreakableCycle(t *testing.T) {
	s := mustSchema(t, apischema.NewBuilder().Project("Ed-Fi").
		Resource("one").Endpoint("ones").Reference("two", true).
		Resource("two").Endpoint("twos").Reference("one", true))

	_, err := calculate(t, s, false)
	var nag *domain.NonAcyclicGraphError
	require.True(t, errors.As(err, &nag))
	assert.Contains(t, err.Error(), "Ed-Fi.one")
}

func TestCalculator_SchoolYearType(t *testing.T) {
	s := mustSchema(t, apischema.NewBuilder().Project("Ed-Fi").
		Resource("SchoolYearType").SchoolYearEnumeration().
		Resource("School").Reference("SchoolYearType", true))

	plan, err := calculate(t, s, false)
	require.NoError(t, err)
	assert.Equal(t, []domain.LoadOrder{order("/ed-fi/schools", 1)}, plan.LoadOrder)
}

func TestLevel_Minimality(t *testing.T) {
	//	A -> B -> C
	//	A ------> C
	//	D
	g := dependencyGraph(t, []string{"A", "B", "C", "D"},
		testEdge{"A", "B", true},
		testEdge{"B", "C", false},
		testEdge{"A", "C", true},
	)
	entries, err := Level(g)
	require.NoError(t, err)

	groups := make(map[string]int)
	for _, e := range entries {
		groups[string(e.Vertex.Name.ResourceName)] = e.Group
	}
	assert.Equal(t, map[string]int{"A": 1, "D": 1, "B": 2, "C": 3}, groups)
}

func TestLevel_RejectsCycles(t *testing.T) {
	g := dependencyGraph(t, []string{"A", "B"}, testEdge{"A", "B", false}, testEdge{"B", "A", false})
	_, err := Level(g)
	var nag *domain.NonAcyclicGraphError
	require.True(t, errors.As(err, &nag))
}

func TestComputeLoadOrder_TopologicalSoundness(t *testing.T) {
	plan, err := calculate(t, authorizationSchema(t), true)
	require.NoError(t, err)

	entries, err := Level(plan.Graph)
	require.NoError(t, err)
	group := make(map[domain.FullResourceName]int)
	for _, e := range entries {
		group[e.Vertex.Name] = e.Group
	}
	for _, e := range plan.Graph.Edges() {
		assert.Less(t, group[e.Source], group[e.Target], "%s -> %s", e.Source, e.Target)
	}
}

// TestLevel_MatchesLongestPath checks the leveling against an independent
// topological sort: a vertex's group is one more than the longest path of
// prerequisites that leads to it.
func TestLevel_MatchesLongestPath(t *testing.T) {
	plan, err := calculate(t, authorizationSchema(t), true)
	require.NoError(t, err)

	dg := dgraph.New(dgraph.StringHash, dgraph.Directed(), dgraph.PreventCycles())
	for _, v := range plan.Graph.Vertices() {
		require.NoError(t, dg.AddVertex(v.String()))
	}
	for _, e := range plan.Graph.Edges() {
		err := dg.AddEdge(e.Source.String(), e.Target.String())
		if !errors.Is(err, dgraph.ErrEdgeAlreadyExists) {
			require.NoError(t, err)
		}
	}
	sorted, err := dgraph.TopologicalSort(dg)
	require.NoError(t, err)
	require.Len(t, sorted, plan.Graph.Order())

	depth := make(map[string]int, len(sorted))
	for _, name := range sorted {
		if depth[name] == 0 {
			depth[name] = 1
		}
	}
	adjacency, err := dg.AdjacencyMap()
	require.NoError(t, err)
	for _, name := range sorted {
		for next := range adjacency[name] {
			depth[next] = max(depth[next], depth[name]+1)
		}
	}

	entries, err := Level(plan.Graph)
	require.NoError(t, err)
	for _, e := range entries {
		assert.Equal(t, depth[e.Vertex.Name.String()], e.Group, e.Vertex.Name.String())
	}
}

func TestFinalize_CompactsGroups(t *testing.T) {
	student := vertex("Student")
	retry := retryVertex(student)
	school := vertex("School")

	out := finalize([]PlanEntry{
		{Vertex: school, Group: 4, Operations: domain.AllOperations()},
		{Vertex: retry, Group: 2, Operations: domain.AllOperations()},
		{Vertex: student, Group: 1, Operations: domain.AllOperations()},
	})
	assert.Equal(t, []domain.LoadOrder{
		order("/ed-fi/students", 1),
		order("/ed-fi/schools", 2),
	}, out)
}

func TestPersonAuthorizationLoadOrderTransformer(t *testing.T) {
	student := vertex("Student")
	staff := vertex("Staff")
	entries := []PlanEntry{
		{Vertex: student, Group: 1, Operations: domain.AllOperations()},
		{Vertex: staff, Group: 1, Operations: domain.AllOperations()},
		{Vertex: retryVertex(student), Group: 3, Operations: domain.AllOperations()},
	}

	out := PersonAuthorizationLoadOrderTransformer{}.TransformLoadOrder(entries)
	assert.Equal(t, []PlanEntry{
		{Vertex: student, Group: 1, Operations: []domain.Operation{domain.OperationCreate}},
		{Vertex: student, Group: 3, Operations: []domain.Operation{domain.OperationUpdate}},
		{Vertex: staff, Group: 1, Operations: domain.AllOperations()},
	}, out)

	unchanged := entries[1:2]
	assert.Equal(t, unchanged, PersonAuthorizationLoadOrderTransformer{}.TransformLoadOrder(unchanged))
}
