// Package report renders the dm+d lookup reports: one immutable HTML page
// per release, a rolling "latest" copy, the index page, and an xlsx export
// of problem codes.
package report

import (
	"bytes"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/bennettoxford/dmdwatch/internal/model"
)

const (
	reportPrefix = "dmd_lookup_report_"
	latestFile   = "dmd_lookup_report_latest.html"
	indexFile    = "list_dmd_lookup_reports.html"
)

// Renderer writes report files into a reports directory.
type Renderer struct {
	// Dir is the reports output directory, created on first write.
	Dir string
	// PreviewBaseURL, when set, prefixes links between generated pages so
	// they resolve on a hosted preview. Empty means relative links.
	PreviewBaseURL string
	// SourceURL is the base URL of the measures tree; folder headings
	// link to SourceURL/<folder>.
	SourceURL string
	// Logo is an optional data URI rendered at the top of each page.
	Logo string
}

type folderGroup struct {
	Name  string
	URL   string
	Codes []model.ClassifiedCode
}

type statusSection struct {
	Label   string
	Class   string
	Folders []folderGroup
}

type reportData struct {
	Version   string
	Logo      template.URL
	IndexLink string
	Sections  []statusSection
}

// sectionOrder lists the report sections, problems first.
var sectionOrder = []struct {
	status model.Status
	label  string
	class  string
}{
	{model.StatusUnreachable, "Unreachable codes", "unreachable"},
	{model.StatusUnknown, "Unknown codes", "unknown"},
	{model.StatusInactive, "Inactive codes", "inactive"},
	{model.StatusActive, "Active codes", "active"},
}

var reportTmpl = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
<title>dm+d Lookup Report – version {{.Version}}</title>
<style>
    body { font-family: Arial, sans-serif; background-color: #f8f9fa; margin: 20px; }
    .container { max-width: 900px; margin: 0 auto; padding: 20px; background-color: white; border-radius: 10px; box-shadow: 0 2px 5px rgba(0,0,0,0.1); }
    header { text-align: center; margin-bottom: 30px; }
    header img { max-width: 650px; }
    h2 { color: #222; margin-top: 40px; }
    h3 { margin-top: 30px; color: #444; }
    ul { padding-left: 20px; }
    li { margin-bottom: 4px; }
    .status-box { display: inline-block; padding: 3px 10px; border-radius: 5px; font-size: 0.9em; }
    .active { background-color: #d7f0d2; color: #0f7b0f; }
    .inactive { background-color: #fbdcdc; color: #b30000; }
    .unknown { background-color: #fff6cc; color: #cc7a00; }
    .unreachable { background-color: #e6e6fa; color: #4b0082; }
</style>
</head>
<body>
<div class="container">
    <header>
        {{if .Logo}}<img src="{{.Logo}}" alt="OpenPrescribing logo" />{{end}}
        <h2>dm+d Lookup Report – version {{.Version}}</h2>
        <div class="back-link"><p><a href="{{.IndexLink}}">← Back to all reports</a></p></div>
        <p>This report lists all dm+d codes extracted from measure SQL and their lookup status via the NHS Terminology Server.</p>
    </header>
{{range .Sections}}
    <h2>{{.Label}} <span class="status-box {{.Class}}">{{.Class}}</span></h2>
{{- if .Folders}}
{{- range .Folders}}
    <h3>Folder: {{if .URL}}<a href="{{.URL}}">{{.Name}}</a>{{else}}{{.Name}}{{end}}</h3>
    <ul>
{{- range .Codes}}
        <li>{{.Value}}</li>
{{- end}}
    </ul>
{{- end}}
{{- else}}
    <p>No codes found.</p>
{{- end}}
{{end}}
</div>
</body>
</html>
`))

// SafeVersion converts a release version to its filename form.
func SafeVersion(version string) string {
	return strings.ReplaceAll(version, ".", "_")
}

// ReportFilename returns the versioned report filename for a release.
func ReportFilename(version string) string {
	return reportPrefix + SafeVersion(version) + ".html"
}

// WriteReport renders the report for one release and writes both the
// versioned file and the latest copy. byFolder maps measure folder to its
// classified codes. The versioned file is never rewritten by later runs
// for other releases; re-running the same release overwrites it with
// identical content.
func (r *Renderer) WriteReport(version string, byFolder map[string][]model.ClassifiedCode) error {
	data := reportData{
		Version:   version,
		Logo:      template.URL(r.Logo),
		IndexLink: r.PreviewBaseURL + indexFile,
	}

	for _, def := range sectionOrder {
		section := statusSection{Label: def.label, Class: def.class}

		folders := make([]string, 0, len(byFolder))
		for folder := range byFolder {
			folders = append(folders, folder)
		}
		sort.Strings(folders)

		for _, folder := range folders {
			var codes []model.ClassifiedCode
			for _, c := range byFolder[folder] {
				if c.Status == def.status {
					codes = append(codes, c)
				}
			}
			if len(codes) == 0 {
				continue
			}
			group := folderGroup{Name: folder, Codes: codes}
			if r.SourceURL != "" {
				group.URL = strings.TrimRight(r.SourceURL, "/") + "/" + folder
			}
			section.Folders = append(section.Folders, group)
		}

		data.Sections = append(data.Sections, section)
	}

	var buf bytes.Buffer
	if err := reportTmpl.Execute(&buf, data); err != nil {
		return eris.Wrap(err, "report: render")
	}

	if err := os.MkdirAll(r.Dir, 0755); err != nil {
		return eris.Wrapf(err, "report: create dir %s", r.Dir)
	}

	for _, name := range []string{ReportFilename(version), latestFile} {
		path := filepath.Join(r.Dir, name)
		if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
			return eris.Wrapf(err, "report: write %s", path)
		}
	}

	return nil
}
