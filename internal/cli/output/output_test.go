package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{input: "", want: FormatTable},
		{input: "table", want: FormatTable},
		{input: " JSON ", want: FormatJSON},
		{input: "yml", want: FormatYAML},
		{input: "xml", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrintTable(t *testing.T) {
	table := NewTable("Name", "Size")
	table.AddRow("bin/java", "4096")
	table.AddRow("lib/", "0")

	var buf bytes.Buffer
	require.NoError(t, PrintTable(&buf, table))

	out := buf.String()
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "SIZE")
	assert.Contains(t, out, "bin/java")
	assert.Contains(t, out, "4096")
	assert.NotContains(t, out, "|")
}

func TestPrintKeyValues(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintKeyValues(&buf, [][2]string{{"State", "Ready"}, {"Port", "50000"}}))
	assert.Contains(t, buf.String(), "State")
	assert.Contains(t, buf.String(), "Ready")
	assert.Contains(t, buf.String(), ":")
}

func TestPrint(t *testing.T) {
	data := map[string]int{"entries": 3}

	var buf bytes.Buffer
	require.NoError(t, Print(&buf, FormatJSON, data))
	assert.JSONEq(t, `{"entries":3}`, buf.String())

	buf.Reset()
	require.NoError(t, Print(&buf, FormatYAML, data))
	assert.Equal(t, "entries: 3\n", buf.String())

	// Non-table data falls back to JSON.
	buf.Reset()
	require.NoError(t, Print(&buf, FormatTable, data))
	assert.JSONEq(t, `{"entries":3}`, buf.String())

	buf.Reset()
	table := NewTable("A")
	table.AddRow("x")
	require.NoError(t, Print(&buf, FormatTable, table))
	assert.Contains(t, buf.String(), "x")

	assert.Error(t, Print(&buf, Format("xml"), data))
}
