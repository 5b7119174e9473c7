// Package apischema models the ApiSchema metadata documents that declare the
// resources of a core project and its extensions.
package apischema

import (
	"errors"
	"sort"
	"strings"

	"edfi-dms/internal/domain"
)

// Document is the top-level shape of one ApiSchema JSON file.
type Document struct {
	ProjectSchema ProjectSchema `json:"projectSchema" yaml:"projectSchema"`
}

// ProjectSchema describes one project: the core data standard or an extension.
type ProjectSchema struct {
	ProjectName         string                      `json:"projectName" yaml:"projectName"`
	ProjectEndpointName string                      `json:"projectEndpointName" yaml:"projectEndpointName"`
	IsExtensionProject  bool                        `json:"isExtensionProject" yaml:"isExtensionProject"`
	AbstractResources   map[string]AbstractResource `json:"abstractResources,omitempty" yaml:"abstractResources,omitempty"`
	ResourceSchemas     map[string]ResourceSchema   `json:"resourceSchemas" yaml:"resourceSchemas"`
}

// AbstractResource describes a supertype that has no instances of its own.
type AbstractResource struct {
	IdentityJSONPaths []string `json:"identityJsonPaths,omitempty" yaml:"identityJsonPaths,omitempty"`
}

// ResourceSchema describes one resource. Its key in ProjectSchema.ResourceSchemas
// is the endpoint name.
type ResourceSchema struct {
	ResourceName            string                  `json:"resourceName" yaml:"resourceName"`
	IsDescriptor            bool                    `json:"isDescriptor" yaml:"isDescriptor"`
	IsSchoolYearEnumeration bool                    `json:"isSchoolYearEnumeration" yaml:"isSchoolYearEnumeration"`
	IsSubclass              bool                    `json:"isSubclass" yaml:"isSubclass"`
	SubclassType            string                  `json:"subclassType,omitempty" yaml:"subclassType,omitempty"`
	SuperclassProjectName   string                  `json:"superclassProjectName,omitempty" yaml:"superclassProjectName,omitempty"`
	SuperclassResourceName  string                  `json:"superclassResourceName,omitempty" yaml:"superclassResourceName,omitempty"`
	DocumentPathsMapping    map[string]DocumentPath `json:"documentPathsMapping,omitempty" yaml:"documentPathsMapping,omitempty"`
}

// DocumentPath is one entry of a resource's documentPathsMapping. Only entries
// with IsReference set describe a dependency.
type DocumentPath struct {
	IsReference  bool   `json:"isReference" yaml:"isReference"`
	IsDescriptor bool   `json:"isDescriptor,omitempty" yaml:"isDescriptor,omitempty"`
	IsRequired   bool   `json:"isRequired,omitempty" yaml:"isRequired,omitempty"`
	ProjectName  string `json:"projectName,omitempty" yaml:"projectName,omitempty"`
	ResourceName string `json:"resourceName,omitempty" yaml:"resourceName,omitempty"`
	Path         string `json:"path,omitempty" yaml:"path,omitempty"`
}

// Resource is a declared resource together with its owning project.
type Resource struct {
	Project      *ProjectSchema
	EndpointName string
	Schema       ResourceSchema
}

// FullName returns the resource's cross-project identity.
func (r Resource) FullName() domain.FullResourceName {
	return domain.NewFullResourceName(r.Project.ProjectName, r.Schema.ResourceName)
}

// Superclass returns the declared superclass identity of a subclass resource.
func (r Resource) Superclass() (domain.FullResourceName, bool) {
	if !r.Schema.IsSubclass || r.Schema.SuperclassResourceName == "" {
		return domain.FullResourceName{}, false
	}
	project := r.Schema.SuperclassProjectName
	if project == "" {
		project = r.Project.ProjectName
	}
	return domain.NewFullResourceName(project, r.Schema.SuperclassResourceName), true
}

// Reference is a resolved-by-name dependency declared in documentPathsMapping.
type Reference struct {
	PathName     string
	ProjectName  string
	ResourceName string
	Required     bool
}

// References lists the resource's reference paths sorted by path name.
func (r Resource) References() []Reference {
	names := make([]string, 0, len(r.Schema.DocumentPathsMapping))
	for name, p := range r.Schema.DocumentPathsMapping {
		if p.IsReference {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	refs := make([]Reference, len(names))
	for i, name := range names {
		p := r.Schema.DocumentPathsMapping[name]
		refs[i] = Reference{
			PathName:     name,
			ProjectName:  p.ProjectName,
			ResourceName: p.ResourceName,
			Required:     p.IsRequired,
		}
	}
	return refs
}

// TargetKind classifies what a reference resolves to.
type TargetKind int

const (
	// TargetConcrete is a declared, graphable resource.
	TargetConcrete TargetKind = iota
	// TargetAbstract is an abstract resource that fans out to its subclasses.
	TargetAbstract
	// TargetSchoolYear is a school-year enumeration, which is never graphed.
	TargetSchoolYear
)

// Schema is a validated set of project documents with exactly one core project.
type Schema struct {
	docs      []Document
	projects  []*ProjectSchema
	byName    map[string]*ProjectSchema
	resources map[domain.FullResourceName]Resource
	abstract  map[domain.FullResourceName]bool
	subs      map[domain.FullResourceName][]domain.FullResourceName
}

// NewSchema indexes and validates documents. Every problem found is reported;
// the returned error joins one *domain.SchemaError per problem.
func NewSchema(docs ...Document) (*Schema, error) {
	s := &Schema{
		docs:      make([]Document, len(docs)),
		byName:    make(map[string]*ProjectSchema, len(docs)),
		resources: make(map[domain.FullResourceName]Resource),
		abstract:  make(map[domain.FullResourceName]bool),
		subs:      make(map[domain.FullResourceName][]domain.FullResourceName),
	}
	copy(s.docs, docs)

	var errs []error
	var core []*ProjectSchema
	for i := range s.docs {
		p := &s.docs[i].ProjectSchema
		if p.ProjectName == "" {
			errs = append(errs, domain.ErrSchema("", "", "document %d has no projectName", i))
			continue
		}
		if _, dup := s.byName[p.ProjectName]; dup {
			errs = append(errs, domain.ErrSchema(p.ProjectName, "", "project declared more than once"))
			continue
		}
		if p.ProjectEndpointName == "" {
			p.ProjectEndpointName = DefaultProjectEndpoint(p.ProjectName)
		}
		s.byName[p.ProjectName] = p
		s.projects = append(s.projects, p)
		if !p.IsExtensionProject {
			core = append(core, p)
		}
	}
	switch {
	case len(core) == 0 && len(errs) == 0:
		errs = append(errs, domain.ErrSchema("", "", "no core project (isExtensionProject=false) declared"))
	case len(core) > 1:
		names := make([]string, len(core))
		for i, p := range core {
			names[i] = p.ProjectName
		}
		errs = append(errs, domain.ErrSchema("", "", "more than one core project declared: %s", strings.Join(names, ", ")))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	sort.SliceStable(s.projects, func(i, j int) bool {
		if s.projects[i].IsExtensionProject != s.projects[j].IsExtensionProject {
			return !s.projects[i].IsExtensionProject
		}
		return s.projects[i].ProjectName < s.projects[j].ProjectName
	})

	for _, p := range s.projects {
		for name := range p.AbstractResources {
			s.abstract[domain.NewFullResourceName(p.ProjectName, name)] = true
		}
		for _, r := range s.projectResources(p) {
			full := r.FullName()
			if r.Schema.ResourceName == "" {
				errs = append(errs, domain.ErrSchema(p.ProjectName, r.EndpointName, "resource has no resourceName"))
				continue
			}
			if prev, dup := s.resources[full]; dup {
				errs = append(errs, domain.ErrSchema(p.ProjectName, r.Schema.ResourceName,
					"declared by both endpoints %q and %q", prev.EndpointName, r.EndpointName))
				continue
			}
			s.resources[full] = r
		}
	}

	for _, p := range s.projects {
		for _, r := range s.projectResources(p) {
			errs = append(errs, s.validateResource(r)...)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	for full := range s.subs {
		sort.Slice(s.subs[full], func(i, j int) bool {
			return s.subs[full][i].String() < s.subs[full][j].String()
		})
	}
	return s, nil
}

func (s *Schema) validateResource(r Resource) []error {
	var errs []error
	if r.Schema.IsSubclass {
		super, ok := r.Superclass()
		switch {
		case !ok:
			errs = append(errs, domain.ErrSchema(r.Project.ProjectName, r.Schema.ResourceName,
				"subclass declares no superclassResourceName"))
		case super == r.FullName():
			errs = append(errs, domain.ErrSchema(r.Project.ProjectName, r.Schema.ResourceName,
				"subclass declares itself as superclass"))
		case s.abstract[super]:
			s.subs[super] = append(s.subs[super], r.FullName())
		default:
			if _, declared := s.resources[super]; !declared {
				errs = append(errs, domain.ErrSchema(r.Project.ProjectName, r.Schema.ResourceName,
					"superclass %s is not declared", super))
			}
		}
	}
	for _, ref := range r.References() {
		if _, _, err := s.Resolve(r, ref); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func (s *Schema) projectResources(p *ProjectSchema) []Resource {
	endpoints := make([]string, 0, len(p.ResourceSchemas))
	for ep := range p.ResourceSchemas {
		endpoints = append(endpoints, ep)
	}
	sort.Strings(endpoints)
	out := make([]Resource, len(endpoints))
	for i, ep := range endpoints {
		out[i] = Resource{Project: p, EndpointName: ep, Schema: p.ResourceSchemas[ep]}
	}
	return out
}

// Documents returns the documents the schema was built from, with derived
// project endpoint names filled in.
func (s *Schema) Documents() []Document {
	out := make([]Document, len(s.docs))
	copy(out, s.docs)
	return out
}

// Core returns the single non-extension project.
func (s *Schema) Core() *ProjectSchema { return s.projects[0] }

// Projects returns the core project followed by extensions sorted by name.
func (s *Schema) Projects() []*ProjectSchema {
	return append([]*ProjectSchema(nil), s.projects...)
}

// Project looks up a project by name.
func (s *Schema) Project(name string) (*ProjectSchema, bool) {
	p, ok := s.byName[name]
	return p, ok
}

// Resources returns every declared resource: projects in Projects order,
// resources within a project sorted by endpoint name.
func (s *Schema) Resources() []Resource {
	var out []Resource
	for _, p := range s.projects {
		out = append(out, s.projectResources(p)...)
	}
	return out
}

// Lookup returns the declared resource with the given identity.
func (s *Schema) Lookup(name domain.FullResourceName) (Resource, bool) {
	r, ok := s.resources[name]
	return r, ok
}

// IsAbstract reports whether name is declared in some project's abstractResources.
func (s *Schema) IsAbstract(name domain.FullResourceName) bool { return s.abstract[name] }

// Subclasses lists the resources declaring the abstract resource name as
// their superclass, sorted by identity.
func (s *Schema) Subclasses(name domain.FullResourceName) []domain.FullResourceName {
	return append([]domain.FullResourceName(nil), s.subs[name]...)
}

// Resolve finds the target of a reference declared by resource from. A
// reference without a project name is looked up in from's own project first
// and then in the core project.
func (s *Schema) Resolve(from Resource, ref Reference) (domain.FullResourceName, TargetKind, error) {
	candidates := []string{ref.ProjectName}
	if ref.ProjectName == "" {
		candidates = []string{from.Project.ProjectName, s.Core().ProjectName}
	}
	for _, project := range candidates {
		name := domain.NewFullResourceName(project, ref.ResourceName)
		if s.abstract[name] {
			return name, TargetAbstract, nil
		}
		if r, ok := s.resources[name]; ok {
			if r.Schema.IsSchoolYearEnumeration {
				return name, TargetSchoolYear, nil
			}
			return name, TargetConcrete, nil
		}
	}
	return domain.FullResourceName{}, 0, domain.ErrSchema(from.Project.ProjectName, from.Schema.ResourceName,
		"reference %q targets undeclared resource %s", ref.PathName, describeTarget(ref))
}

func describeTarget(ref Reference) string {
	if ref.ProjectName == "" {
		return ref.ResourceName
	}
	return ref.ProjectName + "." + ref.ResourceName
}

// DefaultProjectEndpoint derives a project endpoint name from its display
// name, e.g. "Ed-Fi" becomes "ed-fi".
func DefaultProjectEndpoint(projectName string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(projectName)), " ", "-")
}
