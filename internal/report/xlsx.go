package report

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/bennettoxford/dmdwatch/internal/model"
)

// ProblemXLSXFilename returns the problem-code worksheet filename for a
// release.
func ProblemXLSXFilename(version string) string {
	return reportPrefix + SafeVersion(version) + "_problems.xlsx"
}

// WriteProblemXLSX writes the run's problem codes to a worksheet next to
// the HTML report, for spreadsheet consumers. Nothing is written when the
// run found no problems.
func (r *Renderer) WriteProblemXLSX(version string, problems []model.ClassifiedCode) error {
	if len(problems) == 0 {
		return nil
	}

	f := xlsx.NewFile()
	sheet, err := f.AddSheet("problem codes")
	if err != nil {
		return eris.Wrap(err, "report: add xlsx sheet")
	}

	header := sheet.AddRow()
	for _, col := range []string{"code", "status", "folder", "file"} {
		header.AddCell().SetString(col)
	}

	for _, c := range problems {
		row := sheet.AddRow()
		row.AddCell().SetString(c.Value)
		row.AddCell().SetString(string(c.Status))
		row.AddCell().SetString(c.Folder)
		row.AddCell().SetString(c.File)
	}

	if err := os.MkdirAll(r.Dir, 0755); err != nil {
		return eris.Wrapf(err, "report: create dir %s", r.Dir)
	}

	path := filepath.Join(r.Dir, ProblemXLSXFilename(version))
	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "report: write %s", path)
	}

	return nil
}
