package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleDataset() Dataset {
	return Dataset{
		Title:   "Early Intervention: course-1",
		Notes:   []string{"Total students: 2"},
		Headers: []string{"Student ID", "Risk Level", "Risk Score"},
		Rows: []map[string]string{
			{"Student ID": "s1", "Risk Level": "high", "Risk Score": "80"},
			{"Student ID": "s2", "Risk Level": "low", "Risk Score": "0"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.Equal(t, "Student ID,Risk Level,Risk Score\ns1,high,80\ns2,low,0\n", string(out))

	_, err = NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	data := sampleDataset()
	for i := 0; i < 80; i++ {
		data.Rows = append(data.Rows, map[string]string{"Student ID": "sx", "Risk Level": "low", "Risk Score": "0"})
	}
	out, err := NewPDFExporter().Render(data)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestXLSXExporterRender(t *testing.T) {
	out, err := NewXLSXExporter().Render(sampleDataset())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	rows, err := f.GetRows(xlsxSheet)
	require.NoError(t, err)
	require.Len(t, rows, 6)
	assert.Equal(t, "Early Intervention: course-1", rows[0][0])
	assert.Equal(t, []string{"Student ID", "Risk Level", "Risk Score"}, rows[3])
	assert.Equal(t, []string{"s1", "high", "80"}, rows[4])
}
