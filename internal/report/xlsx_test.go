package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/bennettoxford/dmdwatch/internal/model"
)

func TestWriteProblemXLSX(t *testing.T) {
	dir := t.TempDir()
	r := &Renderer{Dir: dir}

	problems := []model.ClassifiedCode{
		classified("2222222", "antibiotics", model.StatusInactive),
		classified("3333333", "opioids", model.StatusUnknown),
	}
	require.NoError(t, r.WriteProblemXLSX("202503.4.0", problems))

	path := filepath.Join(dir, "dmd_lookup_report_202503_4_0_problems.xlsx")
	require.FileExists(t, path)

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)

	sheet := f.Sheets[0]
	require.Len(t, sheet.Rows, 3)

	header := sheet.Rows[0]
	assert.Equal(t, "code", header.Cells[0].String())
	assert.Equal(t, "status", header.Cells[1].String())

	assert.Equal(t, "2222222", sheet.Rows[1].Cells[0].String())
	assert.Equal(t, "inactive", sheet.Rows[1].Cells[1].String())
	assert.Equal(t, "antibiotics", sheet.Rows[1].Cells[2].String())
	assert.Equal(t, "3333333", sheet.Rows[2].Cells[0].String())
	assert.Equal(t, "unknown", sheet.Rows[2].Cells[1].String())
}

func TestWriteProblemXLSXNoProblems(t *testing.T) {
	dir := t.TempDir()
	r := &Renderer{Dir: dir}

	require.NoError(t, r.WriteProblemXLSX("202503.4.0", nil))

	_, err := os.Stat(filepath.Join(dir, "dmd_lookup_report_202503_4_0_problems.xlsx"))
	assert.True(t, os.IsNotExist(err))
}
