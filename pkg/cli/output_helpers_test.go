package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateOutputFormat(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		wantErr bool
	}{
		{name: "empty ok", output: "", wantErr: false},
		{name: "table ok", output: "table", wantErr: false},
		{name: "json ok", output: "json", wantErr: false},
		{name: "yaml rejected", output: "yaml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateOutputFormat(tt.output)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printTable(&buf, []string{"group", "resource"}, [][]string{
		{"1", "/ed-fi/schools"},
		{"12", "/ed-fi/students"},
	}))
	assert.Equal(t, "GROUP  RESOURCE\n1      /ed-fi/schools\n12     /ed-fi/students\n", buf.String())
}

func TestPrintTable_EmptyColumns(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printTable(&buf, []string{}, [][]string{{"a"}}))
	assert.Empty(t, buf.String())
}

func TestPrintTable_EmptyRows(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printTable(&buf, []string{"id", "value"}, nil))
	assert.Equal(t, "ID  VALUE\n", buf.String())
}

func TestDefaultOutputFormat(t *testing.T) {
	assert.Equal(t, "json", defaultOutputFormat(&bytes.Buffer{}))
}
