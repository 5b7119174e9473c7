package apischema

import (
	"strconv"
	"unicode"
	"unicode/utf8"

	"github.com/go-openapi/inflect"
)

// Builder assembles schema documents in code. The first project started is
// the core project; every later one is an extension.
//
//	docs := apischema.NewBuilder().
//		Project("Ed-Fi").
//		Resource("School").Reference("LocalEducationAgency", true).
//		Documents()
type Builder struct {
	docs     []Document
	current  int
	resource string
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder { return &Builder{} }

// Project starts a new project whose endpoint name is derived from name.
func (b *Builder) Project(name string) *Builder {
	b.docs = append(b.docs, Document{ProjectSchema: ProjectSchema{
		ProjectName:         name,
		ProjectEndpointName: DefaultProjectEndpoint(name),
		IsExtensionProject:  len(b.docs) > 0,
		ResourceSchemas:     map[string]ResourceSchema{},
	}})
	b.current = len(b.docs) - 1
	b.resource = ""
	return b
}

// ProjectEndpoint overrides the current project's endpoint name.
func (b *Builder) ProjectEndpoint(endpoint string) *Builder {
	b.project().ProjectEndpointName = endpoint
	return b
}

// Abstract declares abstract resources in the current project.
func (b *Builder) Abstract(names ...string) *Builder {
	if b.project().AbstractResources == nil {
		b.project().AbstractResources = map[string]AbstractResource{}
	}
	for _, n := range names {
		b.project().AbstractResources[n] = AbstractResource{}
	}
	return b
}

// Resource starts a resource of the current project. Its endpoint name is
// the lower-camel plural of name.
func (b *Builder) Resource(name string) *Builder {
	b.resource = DefaultEndpoint(name)
	b.project().ResourceSchemas[b.resource] = ResourceSchema{
		ResourceName:         name,
		DocumentPathsMapping: map[string]DocumentPath{},
	}
	return b
}

// Endpoint renames the current resource's endpoint.
func (b *Builder) Endpoint(endpoint string) *Builder {
	r := b.project().ResourceSchemas[b.resource]
	delete(b.project().ResourceSchemas, b.resource)
	b.resource = endpoint
	b.project().ResourceSchemas[endpoint] = r
	return b
}

// Descriptor marks the current resource as a descriptor.
func (b *Builder) Descriptor() *Builder {
	return b.update(func(r *ResourceSchema) { r.IsDescriptor = true })
}

// SchoolYearEnumeration marks the current resource as a school-year enumeration.
func (b *Builder) SchoolYearEnumeration() *Builder {
	return b.update(func(r *ResourceSchema) { r.IsSchoolYearEnumeration = true })
}

// Subclass declares the current resource a subclass of a resource in the
// same project.
func (b *Builder) Subclass(superclass string) *Builder {
	return b.SubclassOf(b.project().ProjectName, superclass)
}

// SubclassOf declares the current resource a subclass of project.superclass.
func (b *Builder) SubclassOf(project, superclass string) *Builder {
	return b.update(func(r *ResourceSchema) {
		r.IsSubclass = true
		r.SubclassType = "domainEntity"
		r.SuperclassProjectName = project
		r.SuperclassResourceName = superclass
	})
}

// Reference adds a reference to target without a project name, so it
// resolves in the current project and then in the core project.
func (b *Builder) Reference(target string, required bool) *Builder {
	return b.ReferenceTo("", target, required)
}

// ReferenceTo adds a reference to project.target. The path is named after
// the target; a repeated target gets a numeric suffix ("School2") so every
// reference keeps its own required flag.
func (b *Builder) ReferenceTo(project, target string, required bool) *Builder {
	return b.update(func(r *ResourceSchema) {
		name := target
		for i := 2; ; i++ {
			if _, taken := r.DocumentPathsMapping[name]; !taken {
				break
			}
			name = target + strconv.Itoa(i)
		}
		r.DocumentPathsMapping[name] = referencePath(project, target, required)
	})
}

// NamedReference adds a reference to project.target under pathName, e.g. a
// role-named "ResponsibleSchool" reference. It replaces any path of that name.
func (b *Builder) NamedReference(pathName, project, target string, required bool) *Builder {
	return b.update(func(r *ResourceSchema) {
		r.DocumentPathsMapping[pathName] = referencePath(project, target, required)
	})
}

func referencePath(project, target string, required bool) DocumentPath {
	return DocumentPath{
		IsReference:  true,
		IsRequired:   required,
		ProjectName:  project,
		ResourceName: target,
	}
}

// Scalar adds a non-reference document path.
func (b *Builder) Scalar(pathName string) *Builder {
	return b.update(func(r *ResourceSchema) {
		r.DocumentPathsMapping[pathName] = DocumentPath{Path: "$." + pathName}
	})
}

// Documents returns the built documents.
func (b *Builder) Documents() []Document {
	return append([]Document(nil), b.docs...)
}

// Schema validates the built documents.
func (b *Builder) Schema() (*Schema, error) {
	return NewSchema(b.docs...)
}

func (b *Builder) project() *ProjectSchema {
	return &b.docs[b.current].ProjectSchema
}

func (b *Builder) update(fn func(*ResourceSchema)) *Builder {
	r := b.project().ResourceSchemas[b.resource]
	fn(&r)
	b.project().ResourceSchemas[b.resource] = r
	return b
}

// DefaultEndpoint derives an endpoint name from a resource name, e.g.
// "LocalEducationAgency" becomes "localEducationAgencies".
func DefaultEndpoint(resourceName string) string {
	plural := inflect.Pluralize(resourceName)
	r, size := utf8.DecodeRuneInString(plural)
	if r == utf8.RuneError {
		return plural
	}
	return string(unicode.ToLower(r)) + plural[size:]
}
