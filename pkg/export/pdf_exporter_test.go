package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPDFExporterRender(t *testing.T) {
	exporter := NewPDFExporter()

	content, err := exporter.Render(Dataset{
		Headers: []string{"Student", "Enrolled", "Completed"},
		Rows: [][]string{
			{"María López", "2026-03-01", "true"},
			{"José Pérez", "2026-03-02", "false"},
		},
	}, "Fútbol roster")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(content, []byte("%PDF")))
	assert.Greater(t, len(content), 500)
}

func TestPDFExporterRenderNoHeaders(t *testing.T) {
	exporter := NewPDFExporter()

	_, err := exporter.Render(Dataset{}, "roster")
	require.Error(t, err)
}

func TestPDFExporterRenderRowWidthMismatch(t *testing.T) {
	exporter := NewPDFExporter()

	_, err := exporter.Render(Dataset{
		Headers: []string{"Student", "Enrolled"},
		Rows:    [][]string{{"a", "b", "c"}},
	}, "roster")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 0")
}
