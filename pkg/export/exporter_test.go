package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Headers: []string{"name", "status"},
		Rows: []map[string]string{
			{"name": "LT-001", "status": "available"},
			{"name": "LT-002, spare", "status": "faulty"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)

	assert.Equal(t, "name,status\nLT-001,available\n\"LT-002, spare\",faulty\n", string(out))
}

func TestCSVExporterSeparator(t *testing.T) {
	out, err := NewCSVExporter().WithSeparator(';').Render(sampleDataset())
	require.NoError(t, err)

	assert.Contains(t, string(out), "LT-002, spare;faulty")
}

func TestExportersRequireHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.Error(t, err)

	_, err = NewPDFExporter().Render(Dataset{}, "empty")
	require.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleDataset(), "Laptop inventory")
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}
