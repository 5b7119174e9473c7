// Package domain defines core types and errors for resource dependency
// resolution.
package domain

import (
	"fmt"
	"strings"
)

// NotFoundError indicates a resource was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ValidationError indicates invalid input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ConflictError indicates a conflict (e.g., duplicate vertex).
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// SchemaError indicates malformed schema metadata, such as a reference to a
// resource that no project declares.
type SchemaError struct {
	Project  string
	Resource string
	Message  string
}

func (e *SchemaError) Error() string {
	switch {
	case e.Project != "" && e.Resource != "":
		return fmt.Sprintf("schema %s.%s: %s", e.Project, e.Resource, e.Message)
	case e.Project != "":
		return fmt.Sprintf("schema %s: %s", e.Project, e.Message)
	default:
		return "schema: " + e.Message
	}
}

// NonAcyclicGraphError reports cycles that remain in a dependency graph.
// Each cycle is a vertex path whose first element is repeated at the end.
type NonAcyclicGraphError struct {
	Cycles [][]string
}

func (e *NonAcyclicGraphError) Error() string {
	if len(e.Cycles) == 0 {
		return "circular dependency found"
	}
	noun := "dependency"
	if len(e.Cycles) > 1 {
		noun = "dependencies"
	}
	paths := make([]string, len(e.Cycles))
	for i, c := range e.Cycles {
		paths[i] = strings.Join(c, "\n    is used by ")
	}
	return fmt.Sprintf("circular %s found:\n%s", noun, strings.Join(paths, "\n\n"))
}

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrConflict creates a ConflictError with a formatted message.
func ErrConflict(format string, args ...interface{}) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// ErrSchema creates a SchemaError scoped to a project and resource.
func ErrSchema(project, resource, format string, args ...interface{}) *SchemaError {
	return &SchemaError{Project: project, Resource: resource, Message: fmt.Sprintf(format, args...)}
}
