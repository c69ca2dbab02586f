package output

import (
	"bytes"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Format
		wantErr bool
	}{
		{name: "table", input: "table", want: FormatTable},
		{name: "empty defaults to table", input: "", want: FormatTable},
		{name: "JSON uppercase", input: "JSON", want: FormatJSON},
		{name: "yml alias", input: "yml", want: FormatYAML},
		{name: "whitespace trimmed", input: "  yaml ", want: FormatYAML},
		{name: "invalid format", input: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
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

type minorRow struct {
	ID   int    `json:"id" yaml:"id"`
	Mode string `json:"mode" yaml:"mode"`
}

type minorRows []minorRow

func (m minorRows) Headers() []string { return []string{"ID", "MODE"} }

func (m minorRows) Rows() [][]string {
	rows := make([][]string, 0, len(m))
	for _, r := range m {
		rows = append(rows, []string{strconv.Itoa(r.ID), r.Mode})
	}
	return rows
}

func TestPrinterFormats(t *testing.T) {
	data := minorRows{{ID: 0, Mode: "WR"}, {ID: 1, Mode: "RO"}}

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewPrinter(&buf, FormatTable, false).Print(data))
		out := buf.String()
		assert.Contains(t, out, "ID")
		assert.Contains(t, out, "MODE")
		assert.Contains(t, out, "RO")
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewPrinter(&buf, FormatJSON, false).Print(data))
		assert.JSONEq(t, `[{"id":0,"mode":"WR"},{"id":1,"mode":"RO"}]`, buf.String())
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewPrinter(&buf, FormatYAML, false).Print(data))
		assert.Contains(t, buf.String(), "mode: RO")
	})

	t.Run("table fallback", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewPrinter(&buf, FormatTable, false).Print(map[string]int{"minors": 2}))
		assert.Contains(t, buf.String(), "minors: 2")
	})
}

func TestPrinterStatus(t *testing.T) {
	var plain bytes.Buffer
	NewPrinter(&plain, FormatTable, false).Status(true, "running")
	assert.Equal(t, "running\n", plain.String())

	var colored bytes.Buffer
	NewPrinter(&colored, FormatTable, true).Status(false, "stopped")
	assert.Contains(t, colored.String(), "\033[31m")
}

func TestKeyValues(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, KeyValues(&buf, [][2]string{{"Status", "running"}, {"PID", "42"}}))
	assert.Contains(t, buf.String(), "Status")
	assert.Contains(t, buf.String(), "42")
}

func TestTableData(t *testing.T) {
	table := NewTableData("A", "B")
	table.AddRow("1", "2")
	assert.Equal(t, []string{"A", "B"}, table.Headers())
	assert.Equal(t, [][]string{{"1", "2"}}, table.Rows())
}
