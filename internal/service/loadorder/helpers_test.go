package loadorder

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"edfi-dms/internal/apischema"
	"edfi-dms/internal/domain"
)

func edfi(resource string) domain.FullResourceName {
	return domain.NewFullResourceName("Ed-Fi", resource)
}

// vertex returns a core-project vertex whose endpoint is the lower-camel
// name plus "s".
func vertex(resource string) Vertex {
	return Vertex{
		Name:            edfi(resource),
		ProjectEndpoint: "ed-fi",
		Endpoint:        domain.EndpointName(strings.ToLower(resource[:1]) + resource[1:] + "s"),
		IsPersonType:    domain.IsPersonType(domain.ResourceName(resource)),
	}
}

type testEdge struct {
	source, target string
	required       bool
}

func dependencyGraph(t *testing.T, resources []string, edges ...testEdge) *DependencyGraph {
	t.Helper()
	g := NewDependencyGraph()
	for _, r := range resources {
		v := vertex(r)
		require.NoError(t, g.AddVertex(v.Name, v))
	}
	for _, e := range edges {
		require.NoError(t, g.AddEdge(Edge{Source: edfi(e.source), Target: edfi(e.target), Required: e.required}))
	}
	return g
}

func mustSchema(t *testing.T, b *apischema.Builder) *apischema.Schema {
	t.Helper()
	s, err := b.Schema()
	require.NoError(t, err)
	return s
}

func abstractSchema(t *testing.T) *apischema.Schema {
	return mustSchema(t, apischema.NewBuilder().
		Project("Ed-Fi").Abstract("EducationOrganization").
		Resource("EducationOrganizationCategoryDescriptor").Descriptor().
		Resource("LocalEducationAgency").Subclass("EducationOrganization").
		Reference("EducationOrganizationCategoryDescriptor", true).
		Resource("School").Subclass("EducationOrganization").
		Reference("EducationOrganizationCategoryDescriptor", true).
		Reference("LocalEducationAgency", true).
		Resource("OpenStaffPosition").
		Reference("EducationOrganization", true))
}

func authorizationSchema(t *testing.T) *apischema.Schema {
	return mustSchema(t, apischema.NewBuilder().
		Project("Ed-Fi").
		Resource("Student").
		Resource("DisciplineAction").Reference("Student", true).
		Resource("StudentSchoolAssociation").Reference("Student", true).
		Resource("Staff").Endpoint("staffs").
		Resource("LocalContractedStaff").Endpoint("localContractedStaffs").Reference("Staff", true).
		Resource("StaffEducationOrganizationEmploymentAssociation").Reference("Staff", true).
		Resource("StaffEducationOrganizationAssignmentAssociation").Reference("Staff", true).
		Resource("Contact").
		Resource("SurveyResponse").Reference("Contact", true).
		Resource("StudentContactAssociation").Reference("Contact", true))
}

func order(path string, group int, ops ...domain.Operation) domain.LoadOrder {
	if len(ops) == 0 {
		ops = domain.AllOperations()
	}
	return domain.LoadOrder{ResourcePath: path, Group: group, Operations: ops}
}
