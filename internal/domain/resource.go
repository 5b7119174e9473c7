package domain

// ProjectName is the display name of a schema project, e.g. "Ed-Fi" or "TPDM".
type ProjectName string

// ResourceName is the PascalCase name of a resource within a project.
type ResourceName string

// EndpointName is the API path segment of a resource, e.g. "students".
type EndpointName string

// FullResourceName identifies a resource type across every loaded project.
// It is comparable and is used directly as a map key.
type FullResourceName struct {
	ProjectName  ProjectName
	ResourceName ResourceName
}

// NewFullResourceName builds a FullResourceName from plain strings.
func NewFullResourceName(project, resource string) FullResourceName {
	return FullResourceName{ProjectName: ProjectName(project), ResourceName: ResourceName(resource)}
}

func (n FullResourceName) String() string {
	return string(n.ProjectName) + "." + string(n.ResourceName)
}

// Person-type resource names participating in authorization retry.
const (
	PersonStudent ResourceName = "Student"
	PersonStaff   ResourceName = "Staff"
	PersonParent  ResourceName = "Parent"
	PersonContact ResourceName = "Contact"
)

// IsPersonType reports whether a resource name is one of the person types.
func IsPersonType(name ResourceName) bool {
	switch name {
	case PersonStudent, PersonStaff, PersonParent, PersonContact:
		return true
	}
	return false
}
