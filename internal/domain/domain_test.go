package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOrder_Validate(t *testing.T) {
	tests := []struct {
		name    string
		order   LoadOrder
		wantErr bool
		errMsg  string
	}{
		{
			name:  "valid",
			order: LoadOrder{ResourcePath: "/ed-fi/students", Group: 1, Operations: AllOperations()},
		},
		{
			name:    "relative path",
			order:   LoadOrder{ResourcePath: "ed-fi/students", Group: 1, Operations: AllOperations()},
			wantErr: true,
			errMsg:  "must start with /",
		},
		{
			name:    "zero group",
			order:   LoadOrder{ResourcePath: "/ed-fi/students", Group: 0, Operations: AllOperations()},
			wantErr: true,
			errMsg:  "must be positive",
		},
		{
			name:    "no operations",
			order:   LoadOrder{ResourcePath: "/ed-fi/students", Group: 2},
			wantErr: true,
			errMsg:  "no operations",
		},
		{
			name: "duplicate operation",
			order: LoadOrder{
				ResourcePath: "/ed-fi/students", Group: 2,
				Operations: []Operation{OperationUpdate, OperationUpdate},
			},
			wantErr: true,
			errMsg:  "repeats operation",
		},
		{
			name: "unknown operation",
			order: LoadOrder{
				ResourcePath: "/ed-fi/students", Group: 2,
				Operations: []Operation{"Delete"},
			},
			wantErr: true,
			errMsg:  "unknown operation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.order.Validate()
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadOrder_String(t *testing.T) {
	lo := LoadOrder{ResourcePath: "/ed-fi/students", Group: 3, Operations: []Operation{OperationUpdate}}
	assert.Equal(t, "/ed-fi/students@3{Update}", lo.String())
}

func TestFullResourceName(t *testing.T) {
	a := NewFullResourceName("Ed-Fi", "Student")
	b := FullResourceName{ProjectName: "Ed-Fi", ResourceName: "Student"}
	assert.Equal(t, a, b)
	assert.Equal(t, "Ed-Fi.Student", a.String())

	m := map[FullResourceName]int{a: 1}
	assert.Equal(t, 1, m[b])
}

func TestIsPersonType(t *testing.T) {
	for _, name := range []ResourceName{"Student", "Staff", "Parent", "Contact"} {
		assert.True(t, IsPersonType(name), name)
	}
	assert.False(t, IsPersonType("School"))
	assert.False(t, IsPersonType("student"))
}

func TestNonAcyclicGraphError(t *testing.T) {
	single := &NonAcyclicGraphError{Cycles: [][]string{{"A", "B", "A"}}}
	assert.Equal(t, "circular dependency found:\nA\n    is used by B\n    is used by A", single.Error())

	multi := &NonAcyclicGraphError{Cycles: [][]string{{"A", "A"}, {"B", "C", "B"}}}
	assert.Contains(t, multi.Error(), "circular dependencies found:")
	assert.Contains(t, multi.Error(), "A\n    is used by A\n\nB")
}

func TestSchemaError(t *testing.T) {
	err := ErrSchema("Ed-Fi", "School", "references undeclared resource %s", "Ed-Fi.Nowhere")
	assert.Equal(t, "schema Ed-Fi.School: references undeclared resource Ed-Fi.Nowhere", err.Error())
	assert.Equal(t, "schema Ed-Fi: no core project", ErrSchema("Ed-Fi", "", "no core project").Error())
	assert.Equal(t, "schema: empty", ErrSchema("", "", "empty").Error())
}
