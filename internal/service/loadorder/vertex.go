// Package loadorder builds the resource dependency graph from schema metadata
// and levels it into the grouped Create/Update plan used by bulk loaders.
package loadorder

import (
	"edfi-dms/internal/domain"
	"edfi-dms/internal/graph"
)

// RetrySuffix marks the synthetic vertex of a person resource whose
// authorization data is complete.
const RetrySuffix = "#Retry"

// Edge labels. Edges with different labels between the same two vertices are
// kept apart.
const (
	LabelReference     = ""
	LabelRetry         = "retry"
	LabelAuthorization = "authorization"
	LabelOrdering      = "ordering"
)

// Vertex is a resource in the dependency graph.
type Vertex struct {
	Name            domain.FullResourceName
	ProjectEndpoint string
	Endpoint        domain.EndpointName
	IsDescriptor    bool
	IsPersonType    bool

	// IsRetry marks a synthetic vertex; RetryOf names the person it shadows.
	IsRetry bool
	RetryOf domain.FullResourceName
}

// ResourcePath is the API path of the resource, e.g. "/ed-fi/students".
func (v Vertex) ResourcePath() string {
	return "/" + v.ProjectEndpoint + "/" + string(v.Endpoint)
}

// NodeID is the identifier used in diagnostic exports.
func (v Vertex) NodeID() string {
	if v.IsRetry {
		return v.ResourcePath() + RetrySuffix
	}
	return v.ResourcePath()
}

// DependencyGraph is the resource dependency graph keyed by resource identity.
type DependencyGraph = graph.Graph[domain.FullResourceName, Vertex]

// Edge is a DependencyGraph edge.
type Edge = graph.Edge[domain.FullResourceName]

// NewDependencyGraph returns an empty graph.
func NewDependencyGraph() *DependencyGraph {
	return graph.New[domain.FullResourceName, Vertex]()
}

// RetryName returns the identity of the retry vertex for a person resource.
func RetryName(person domain.FullResourceName) domain.FullResourceName {
	return domain.FullResourceName{
		ProjectName:  person.ProjectName,
		ResourceName: person.ResourceName + RetrySuffix,
	}
}

func retryVertex(person Vertex) Vertex {
	return Vertex{
		Name:            RetryName(person.Name),
		ProjectEndpoint: person.ProjectEndpoint,
		Endpoint:        person.Endpoint,
		IsRetry:         true,
		RetryOf:         person.Name,
	}
}
