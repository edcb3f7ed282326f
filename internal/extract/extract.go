// Package extract pulls candidate dm+d codes out of measure SQL files.
package extract

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/bennettoxford/dmdwatch/internal/model"
)

// codePattern matches maximal runs of 7 or more digits. dm+d identifiers
// are at least 7 digits; anything shorter is a row count, a year, or noise.
var codePattern = regexp.MustCompile(`\b\d{7,}\b`)

// Extractor scans a measures directory for codes.
type Extractor struct {
	dir     string
	pattern string
}

// New creates an Extractor over the given measures directory. Each
// directory entry directly under dir is a measure folder; files matching
// the doublestar pattern within a folder are scanned.
func New(dir, pattern string) *Extractor {
	return &Extractor{dir: dir, pattern: pattern}
}

// Extract returns the distinct codes found in each measure folder. Codes
// are deduplicated per folder and sorted, so output is deterministic for a
// given tree. Unreadable files are logged and skipped.
func (e *Extractor) Extract() (map[string][]model.Code, error) {
	entries, err := os.ReadDir(e.dir)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: read measures dir %s", e.dir)
	}

	out := make(map[string][]model.Code)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		folder := entry.Name()
		codes, err := e.extractFolder(folder)
		if err != nil {
			return nil, err
		}
		if len(codes) > 0 {
			out[folder] = codes
		}
	}

	return out, nil
}

func (e *Extractor) extractFolder(folder string) ([]model.Code, error) {
	root := filepath.Join(e.dir, folder)
	matches, err := doublestar.Glob(os.DirFS(root), e.pattern)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: glob %s in %s", e.pattern, root)
	}
	sort.Strings(matches)

	seen := make(map[string]model.Code)
	for _, rel := range matches {
		path := filepath.Join(root, rel)
		data, err := os.ReadFile(path)
		if err != nil {
			zap.L().Warn("skipping unreadable file",
				zap.String("path", path),
				zap.Error(err),
			)
			continue
		}

		for _, value := range codePattern.FindAllString(string(data), -1) {
			if _, ok := seen[value]; ok {
				continue
			}
			seen[value] = model.Code{
				Value:  value,
				Folder: folder,
				File:   filepath.Join(folder, rel),
			}
		}
	}

	codes := make([]model.Code, 0, len(seen))
	for _, c := range seen {
		codes = append(codes, c)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i].Value < codes[j].Value })

	return codes, nil
}
