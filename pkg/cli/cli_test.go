package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edfi-dms/internal/domain"
)

const testSchema = `{
  "projectSchema": {
    "projectName": "Ed-Fi",
    "projectEndpointName": "ed-fi",
    "resourceSchemas": {
      "schools": { "resourceName": "School" },
      "students": { "resourceName": "Student" },
      "studentSchoolAssociations": {
        "resourceName": "StudentSchoolAssociation",
        "documentPathsMapping": {
          "School": { "isReference": true, "isRequired": true, "resourceName": "School" },
          "Student": { "isReference": true, "isRequired": true, "resourceName": "Student" }
        }
      },
      "sessions": {
        "resourceName": "Session",
        "documentPathsMapping": {
          "School": { "isReference": true, "isRequired": true, "resourceName": "School" },
          "GradingPeriod": { "isReference": true, "isRequired": false, "resourceName": "GradingPeriod" }
        }
      },
      "gradingPeriods": {
        "resourceName": "GradingPeriod",
        "documentPathsMapping": {
          "Session": { "isReference": true, "isRequired": true, "resourceName": "Session" }
        }
      }
    }
  }
}`

func writeTestSchema(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ed-fi.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// runCLI executes the root command with args and returns stdout and stderr.
func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("SCHEMA_PATH", "")
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("EDFI_OUTPUT", "")

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestPlan_JSON(t *testing.T) {
	path := writeTestSchema(t, testSchema)

	out, _, err := runCLI(t, "plan", "--schema", path)
	require.NoError(t, err)

	var orders []domain.LoadOrder
	require.NoError(t, json.Unmarshal([]byte(out), &orders))
	require.NotEmpty(t, orders)
	assert.Equal(t, "/ed-fi/schools", orders[0].ResourcePath)
	assert.Equal(t, 1, orders[0].Group)
}

func TestPlan_Table(t *testing.T) {
	path := writeTestSchema(t, testSchema)

	out, _, err := runCLI(t, "plan", "-s", path, "-o", "table")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Greater(t, len(lines), 1)
	assert.Equal(t, []string{"GROUP", "RESOURCE", "OPERATIONS"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"1", "/ed-fi/schools", "Create,Update"}, strings.Fields(lines[1]))
	assert.Contains(t, out, "/ed-fi/students")
}

func TestPlan_GroupFilter(t *testing.T) {
	path := writeTestSchema(t, testSchema)

	out, _, err := runCLI(t, "plan", "-s", path, "--group", "2")
	require.NoError(t, err)

	var orders []domain.LoadOrder
	require.NoError(t, json.Unmarshal([]byte(out), &orders))
	require.NotEmpty(t, orders)
	for _, o := range orders {
		assert.Equal(t, 2, o.Group)
	}

	out, _, err = runCLI(t, "plan", "-s", path, "--group", "99")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)
}

func TestPlan_SchemaFromEnv(t *testing.T) {
	path := writeTestSchema(t, testSchema)

	var stdout bytes.Buffer
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("EDFI_OUTPUT", "")
	t.Setenv("SCHEMA_PATH", path)
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{"plan"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, stdout.String(), "/ed-fi/schools")
}

func TestPlan_NoSchema(t *testing.T) {
	_, _, err := runCLI(t, "plan")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no schema given")
}

func TestPlan_Remote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/metadata/dependencies", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"resource":"/ed-fi/schools","order":1,"operations":["Create","Update"]}]`))
	}))
	defer srv.Close()

	out, _, err := runCLI(t, "plan", "--host", srv.URL+"/")
	require.NoError(t, err)
	var orders []domain.LoadOrder
	require.NoError(t, json.Unmarshal([]byte(out), &orders))
	assert.Equal(t, []domain.LoadOrder{{ResourcePath: "/ed-fi/schools", Group: 1, Operations: domain.AllOperations()}}, orders)
}

func TestPlan_RemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"code":503,"message":"load order is not available yet"}`))
	}))
	defer srv.Close()

	_, _, err := runCLI(t, "plan", "--host", srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 503")
	assert.Contains(t, err.Error(), "not available yet")
}

func TestPlan_ConfigFileOrdering(t *testing.T) {
	path := writeTestSchema(t, testSchema)
	cfgPath := filepath.Join(t.TempDir(), "engine.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("schemaPaths: ["+path+"]\nextraOrdering:\n  - before: Ed-Fi.Student\n    after: Ed-Fi.School\n    required: true\n"), 0o600))

	out, _, err := runCLI(t, "plan", "--config", cfgPath)
	require.NoError(t, err)

	var orders []domain.LoadOrder
	require.NoError(t, json.Unmarshal([]byte(out), &orders))
	group := make(map[string]int)
	for _, o := range orders {
		if _, seen := group[o.ResourcePath]; !seen {
			group[o.ResourcePath] = o.Group
		}
	}
	assert.Less(t, group["/ed-fi/students"], group["/ed-fi/schools"])
}

func TestGraph_Formats(t *testing.T) {
	path := writeTestSchema(t, testSchema)

	out, _, err := runCLI(t, "graph", "-s", path)
	require.NoError(t, err)
	assert.Contains(t, out, "<graphml")
	assert.Contains(t, out, "/ed-fi/students#Retry")

	out, _, err = runCLI(t, "graph", "-s", path, "--format", "dot")
	require.NoError(t, err)
	assert.Contains(t, out, "digraph")

	out, _, err = runCLI(t, "graph", "-s", path, "-f", "json")
	require.NoError(t, err)
	var d map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &d))
	assert.Equal(t, "EdFi Dependencies", d["id"])

	_, _, err = runCLI(t, "graph", "-s", path, "-f", "svg")
	require.Error(t, err)
}

const staffAssociationSchema = `{
  "projectSchema": {
    "projectName": "Ed-Fi",
    "resourceSchemas": {
      "staffs": { "resourceName": "Staff" },
      "staffEducationOrganizationEmploymentAssociations": {
        "resourceName": "StaffEducationOrganizationEmploymentAssociation",
        "documentPathsMapping": {
          "Staff": { "isReference": true, "isRequired": true, "resourceName": "Staff" }
        }
      },
      "staffEducationOrganizationAssignmentAssociations": {
        "resourceName": "StaffEducationOrganizationAssignmentAssociation",
        "documentPathsMapping": {
          "Staff": { "isReference": true, "isRequired": true, "resourceName": "Staff" },
          "Employment": { "isReference": true, "isRequired": true, "resourceName": "StaffEducationOrganizationEmploymentAssociation" }
        }
      }
    }
  }
}`

func TestGraph_DiagramFailureDoesNotBlockPlan(t *testing.T) {
	path := writeTestSchema(t, staffAssociationSchema)

	out, _, err := runCLI(t, "plan", "-s", path)
	require.NoError(t, err)
	var orders []domain.LoadOrder
	require.NoError(t, json.Unmarshal([]byte(out), &orders))
	assert.Len(t, orders, 4)

	_, _, err = runCLI(t, "graph", "-s", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dependency diagram")
}

func TestGraph_OutFile(t *testing.T) {
	path := writeTestSchema(t, testSchema)
	outPath := filepath.Join(t.TempDir(), "deps.graphml")

	out, stderr, err := runCLI(t, "graph", "-s", path, "--out", outPath)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Contains(t, stderr, outPath)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "<?xml"))
}

func TestValidate_Valid(t *testing.T) {
	path := writeTestSchema(t, testSchema)

	out, _, err := runCLI(t, "validate", "-s", path)
	require.NoError(t, err)

	var res validateResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.Valid)
	assert.Equal(t, []removedEdge{{Source: "Ed-Fi.GradingPeriod", Target: "Ed-Fi.Session"}}, res.RemovedEdges)

	out, _, err = runCLI(t, "validate", "-s", path, "-o", "table")
	require.NoError(t, err)
	assert.Contains(t, out, "Schema is valid")
	assert.Contains(t, out, "Ed-Fi.GradingPeriod")
}

func TestValidate_Malformed(t *testing.T) {
	path := writeTestSchema(t, `{
  "projectSchema": {
    "projectName": "Ed-Fi",
    "resourceSchemas": {
      "sessions": { "resourceName": "Session", "documentPathsMapping": { "Term": { "isReference": true, "resourceName": "Term" } } },
      "calendars": { "resourceName": "Calendar", "isSubclass": true }
    }
  }
}`)

	out, _, err := runCLI(t, "validate", "-s", path)
	require.Error(t, err)

	var res validateResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.False(t, res.Valid)
	assert.Len(t, res.Errors, 2)

	_, stderr, err := runCLI(t, "validate", "-s", path, "-o", "table")
	require.Error(t, err)
	assert.Contains(t, stderr, "Schema has 2 error(s)")
}

func TestValidate_StrictRejectsUnknownFields(t *testing.T) {
	path := writeTestSchema(t, `{"projectSchema": {"projectName": "Ed-Fi", "colour": "blue", "resourceSchemas": {"schools": {"resourceName": "School"}}}}`)

	_, _, err := runCLI(t, "validate", "-s", path)
	require.NoError(t, err)

	_, stderr, err := runCLI(t, "validate", "-s", path, "--strict", "-o", "table")
	require.Error(t, err)
	assert.Contains(t, stderr, "colour")
}

func TestVersion(t *testing.T) {
	out, _, err := runCLI(t, "version", "-o", "table")
	require.NoError(t, err)
	assert.Contains(t, out, "edfi-loadorder version dev")

	out, _, err = runCLI(t, "version")
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":"dev","commit":"none"}`, out)
}

func TestCompletion(t *testing.T) {
	out, _, err := runCLI(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "edfi-loadorder")

	_, _, err = runCLI(t, "completion", "tcsh")
	require.Error(t, err)
}

func TestRejectsUnknownOutput(t *testing.T) {
	_, _, err := runCLI(t, "version", "-o", "yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")
}
