package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable() Table {
	return Table{
		Title:   "Timetable 10A",
		Headers: []string{"Period", "MONDAY", "TUESDAY"},
		Rows: [][]string{
			{"1 (07:30-07:50)", "Assembly", "Assembly"},
			{"2 (07:50-08:30)", "Mathematics / Ana"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleTable())
	require.NoError(t, err)

	expected := "Period,MONDAY,TUESDAY\n" +
		"1 (07:30-07:50),Assembly,Assembly\n" +
		"2 (07:50-08:30),Mathematics / Ana,\n"
	assert.Equal(t, expected, string(out))
}

func TestCSVExporterRejectsInvalidTables(t *testing.T) {
	_, err := NewCSVExporter().Render(Table{})
	assert.Error(t, err)

	_, err = NewCSVExporter().Render(Table{Headers: []string{"a"}, Rows: [][]string{{"1", "2"}}})
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleTable())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	_, err = NewPDFExporter().Render(Table{})
	assert.Error(t, err)
}

func TestColumnWidthsFillPage(t *testing.T) {
	widths := columnWidths(6)
	total := 0.0
	for _, w := range widths {
		total += w
	}
	assert.InDelta(t, landscapeWidth, total, 0.001)
	assert.Equal(t, labelColumn, widths[0])
}
