package domain

import (
	"fmt"
	"strings"
)

// Operation is a document operation a loader performs for a resource.
type Operation string

// Supported operations.
const (
	OperationCreate Operation = "Create"
	OperationUpdate Operation = "Update"
)

// AllOperations is the default operation set of an unsplit load-order entry.
func AllOperations() []Operation {
	return []Operation{OperationCreate, OperationUpdate}
}

// LoadOrder is one step of a load plan. Entries sharing a Group may be
// processed concurrently once every lower group has completed.
type LoadOrder struct {
	ResourcePath string      `json:"resource"`
	Group        int         `json:"order"`
	Operations   []Operation `json:"operations"`
}

// Validate checks the entry's structural invariants.
func (l LoadOrder) Validate() error {
	if !strings.HasPrefix(l.ResourcePath, "/") {
		return ErrValidation("load order resource path %q must start with /", l.ResourcePath)
	}
	if l.Group < 1 {
		return ErrValidation("load order group for %s must be positive, got %d", l.ResourcePath, l.Group)
	}
	if len(l.Operations) == 0 {
		return ErrValidation("load order for %s has no operations", l.ResourcePath)
	}
	seen := make(map[Operation]bool, len(l.Operations))
	for _, op := range l.Operations {
		if op != OperationCreate && op != OperationUpdate {
			return ErrValidation("load order for %s has unknown operation %q", l.ResourcePath, op)
		}
		if seen[op] {
			return ErrValidation("load order for %s repeats operation %q", l.ResourcePath, op)
		}
		seen[op] = true
	}
	return nil
}

func (l LoadOrder) String() string {
	ops := make([]string, len(l.Operations))
	for i, op := range l.Operations {
		ops[i] = string(op)
	}
	return fmt.Sprintf("%s@%d{%s}", l.ResourcePath, l.Group, strings.Join(ops, ","))
}
