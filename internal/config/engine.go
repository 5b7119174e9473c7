package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"edfi-dms/internal/domain"
	"edfi-dms/internal/service/loadorder"
)

// EngineFile is the YAML engine configuration.
//
//	schemaPaths: [./schema]
//	watch: true
//	reloadCron: "@every 10m"
//	primaryAssociations:
//	  - person: Ed-Fi.Student
//	    associations: [Ed-Fi.StudentSchoolAssociation]
//	extraOrdering:
//	  - before: Ed-Fi.School
//	    after: Ed-Fi.Calendar
//	    required: true
type EngineFile struct {
	SchemaPaths         []string             `yaml:"schemaPaths"`
	Watch               *bool                `yaml:"watch"`
	ReloadCron          string               `yaml:"reloadCron"`
	PrimaryAssociations []PrimaryAssociation `yaml:"primaryAssociations"`
	ExtraOrdering       []Ordering           `yaml:"extraOrdering"`
}

// PrimaryAssociation overrides one person's entry in the authorization table.
// Persons not listed keep their data-standard entry.
type PrimaryAssociation struct {
	Person       string   `yaml:"person"`
	Associations []string `yaml:"associations"`
}

// Ordering is an extra dependency not expressed by any document reference.
type Ordering struct {
	Before   string `yaml:"before"`
	After    string `yaml:"after"`
	Required bool   `yaml:"required"`
}

// LoadEngineFile reads and validates a YAML engine file. Unknown keys are
// rejected.
func LoadEngineFile(path string) (*EngineFile, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return ParseEngineFile(data)
}

// ParseEngineFile decodes a YAML engine file.
func ParseEngineFile(data []byte) (*EngineFile, error) {
	var ef EngineFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&ef); err != nil {
		if errors.Is(err, io.EOF) {
			return &ef, nil
		}
		return nil, fmt.Errorf("decode config file: %w", err)
	}
	if _, err := ef.Authorizations(); err != nil {
		return nil, err
	}
	if _, err := ef.OrderingRules(); err != nil {
		return nil, err
	}
	return &ef, nil
}

// ParseResourceName parses "Project.Resource". The resource name is split at
// the last dot so project names may contain dots.
func ParseResourceName(s string) (domain.FullResourceName, error) {
	i := strings.LastIndex(s, ".")
	if i <= 0 || i == len(s)-1 {
		return domain.FullResourceName{}, domain.ErrValidation("resource %q must be written as Project.Resource", s)
	}
	return domain.NewFullResourceName(s[:i], s[i+1:]), nil
}

// Authorizations returns the configured per-person overrides, or nil when
// the file has none.
func (ef *EngineFile) Authorizations() ([]loadorder.PersonAuthorization, error) {
	if len(ef.PrimaryAssociations) == 0 {
		return nil, nil
	}
	out := make([]loadorder.PersonAuthorization, 0, len(ef.PrimaryAssociations))
	seen := make(map[domain.FullResourceName]bool)
	for _, pa := range ef.PrimaryAssociations {
		person, err := ParseResourceName(pa.Person)
		if err != nil {
			return nil, fmt.Errorf("primaryAssociations: %w", err)
		}
		if seen[person] {
			return nil, domain.ErrValidation("primaryAssociations: %s listed twice", person)
		}
		seen[person] = true
		if len(pa.Associations) == 0 {
			return nil, domain.ErrValidation("primaryAssociations: %s has no associations", person)
		}
		auth := loadorder.PersonAuthorization{Person: person}
		for _, a := range pa.Associations {
			name, err := ParseResourceName(a)
			if err != nil {
				return nil, fmt.Errorf("primaryAssociations: %w", err)
			}
			auth.PrimaryAssociations = append(auth.PrimaryAssociations, name)
		}
		out = append(out, auth)
	}
	return out, nil
}

// OrderingRules returns the configured extra ordering rules.
func (ef *EngineFile) OrderingRules() ([]loadorder.OrderingRule, error) {
	out := make([]loadorder.OrderingRule, 0, len(ef.ExtraOrdering))
	for _, o := range ef.ExtraOrdering {
		before, err := ParseResourceName(o.Before)
		if err != nil {
			return nil, fmt.Errorf("extraOrdering: %w", err)
		}
		after, err := ParseResourceName(o.After)
		if err != nil {
			return nil, fmt.Errorf("extraOrdering: %w", err)
		}
		if before == after {
			return nil, domain.ErrValidation("extraOrdering: %s cannot be ordered after itself", before)
		}
		out = append(out, loadorder.OrderingRule{Before: before, After: after, Required: o.Required})
	}
	return out, nil
}
