package report

import (
	"bytes"
	"html/template"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// reportFilePattern matches versioned report filenames and captures the
// underscored version. The latest copy does not match (no digits).
var reportFilePattern = regexp.MustCompile(`^dmd_lookup_report_([\d_]+)\.html$`)

type indexEntry struct {
	Label  string
	URL    string
	Latest bool

	released time.Time
	version  string
}

type indexData struct {
	Logo    template.URL
	Entries []indexEntry
}

var indexTmpl = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
<title>dm+d Lookup Reports</title>
<style>
    body { font-family: Arial, sans-serif; background-color: #f8f9fa; margin: 20px; }
    .container { max-width: 800px; margin: 0 auto; padding: 20px; background-color: white; border-radius: 10px; box-shadow: 0 2px 5px rgba(0,0,0,0.1); }
    header { text-align: center; margin-bottom: 40px; }
    header img { max-width: 650px; margin-bottom: 10px; }
    h2 { color: #333; }
    ul { padding-left: 20px; }
    li { margin-bottom: 10px; }
    a { text-decoration: none; color: #0485d1; }
    a:hover { text-decoration: underline; }
</style>
</head>
<body>
<div class="container">
    <header>
        {{if .Logo}}<img src="{{.Logo}}" alt="OpenPrescribing logo">{{end}}
        <h2>dm+d Lookup Reports Index</h2>
    </header>
    <ul>
{{- range .Entries}}
        <li><a href="{{.URL}}">{{.Label}}{{if .Latest}} ← Latest{{end}}</a></li>
{{- end}}
    </ul>
</div>
</body>
</html>
`))

// ExistingVersions returns the release versions that already have a report
// on disk, sorted ascending. A missing reports directory means no versions.
func (r *Renderer) ExistingVersions() ([]string, error) {
	entries, err := os.ReadDir(r.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "report: read dir %s", r.Dir)
	}

	var versions []string
	for _, entry := range entries {
		if m := reportFilePattern.FindStringSubmatch(entry.Name()); m != nil {
			versions = append(versions, strings.ReplaceAll(m[1], "_", "."))
		}
	}
	sort.Strings(versions)

	return versions, nil
}

// WriteIndex regenerates the index page from the report files currently on
// disk, newest release first.
func (r *Renderer) WriteIndex() error {
	entries, err := os.ReadDir(r.Dir)
	if err != nil {
		return eris.Wrapf(err, "report: read dir %s", r.Dir)
	}

	var items []indexEntry
	for _, entry := range entries {
		m := reportFilePattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		version := strings.ReplaceAll(m[1], "_", ".")

		// The leading version component is the release month (YYYYMM).
		// Files that don't follow the convention are left off the index.
		released, err := time.Parse("200601", strings.SplitN(version, ".", 2)[0])
		if err != nil {
			continue
		}

		items = append(items, indexEntry{
			Label:    version,
			URL:      r.PreviewBaseURL + entry.Name(),
			released: released,
			version:  version,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		if !items[i].released.Equal(items[j].released) {
			return items[i].released.After(items[j].released)
		}
		return items[i].version > items[j].version
	})
	if len(items) > 0 {
		items[0].Latest = true
	}

	var buf bytes.Buffer
	if err := indexTmpl.Execute(&buf, indexData{Logo: template.URL(r.Logo), Entries: items}); err != nil {
		return eris.Wrap(err, "report: render index")
	}

	path := filepath.Join(r.Dir, indexFile)
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return eris.Wrapf(err, "report: write %s", path)
	}

	return nil
}
