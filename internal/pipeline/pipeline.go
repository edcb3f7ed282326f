// Package pipeline orchestrates a check run: version probe, gate, code
// extraction, terminology lookup, report rendering, and run recording.
package pipeline

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/bennettoxford/dmdwatch/internal/model"
	"github.com/bennettoxford/dmdwatch/internal/store"
	"github.com/bennettoxford/dmdwatch/pkg/ontology"
)

// ErrProblemsFound signals that the run completed and wrote its report,
// but at least one code was not confirmed active. The check command
// surfaces it as a non-zero exit for the calling automation.
var ErrProblemsFound = eris.New("pipeline: problem codes found")

// Extractor yields codes per measure folder.
type Extractor interface {
	Extract() (map[string][]model.Code, error)
}

// Renderer writes the report artifacts.
type Renderer interface {
	WriteReport(version string, byFolder map[string][]model.ClassifiedCode) error
	WriteIndex() error
	WriteProblemXLSX(version string, problems []model.ClassifiedCode) error
	ExistingVersions() ([]string, error)
}

// Pipeline wires the check stages together.
type Pipeline struct {
	client       ontology.Client
	extractor    Extractor
	renderer     Renderer
	store        store.Store
	sentinelCode string
}

// New creates a Pipeline. store may be nil, in which case runs are not
// recorded.
func New(client ontology.Client, ex Extractor, r Renderer, st store.Store, sentinelCode string) *Pipeline {
	return &Pipeline{
		client:       client,
		extractor:    ex,
		renderer:     r,
		store:        st,
		sentinelCode: sentinelCode,
	}
}

// Result is the outcome of one check invocation.
type Result struct {
	Version  string                 `json:"version"`
	Skipped  bool                   `json:"skipped"`
	Problems []model.ClassifiedCode `json:"problems,omitempty"`
	Run      model.Run              `json:"run"`
}

// Run executes the pipeline. In auto mode a release that already has a
// report on disk short-circuits with Skipped set; force mode always runs.
// When failOnProblem is set and any code classified as a problem, the
// returned error is ErrProblemsFound; by then every report artifact has
// already been written.
func (p *Pipeline) Run(ctx context.Context, mode model.Mode, failOnProblem bool) (*Result, error) {
	log := zap.L().With(zap.String("mode", string(mode)))

	token, err := p.client.Token(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: authenticate")
	}

	version, err := p.client.Version(ctx, token, p.sentinelCode)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: probe release version")
	}
	log = log.With(zap.String("version", version))

	if mode == model.ModeAuto {
		existing, err := p.renderer.ExistingVersions()
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: list existing reports")
		}
		for _, v := range existing {
			if v == version {
				log.Info("release already reported, skipping")
				return &Result{Version: version, Skipped: true}, nil
			}
		}
	}

	byFolder, err := p.extractor.Extract()
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: extract codes")
	}

	classified, counts := p.classify(ctx, log, token, byFolder)

	if err := p.renderer.WriteReport(version, classified); err != nil {
		return nil, eris.Wrap(err, "pipeline: write report")
	}
	if err := p.renderer.WriteIndex(); err != nil {
		return nil, eris.Wrap(err, "pipeline: write index")
	}

	problems := problemCodes(classified)
	if err := p.renderer.WriteProblemXLSX(version, problems); err != nil {
		return nil, eris.Wrap(err, "pipeline: write problem worksheet")
	}

	result := &Result{
		Version:  version,
		Problems: problems,
		Run: model.Run{
			Version:     version,
			Mode:        mode,
			Active:      counts[model.StatusActive],
			Inactive:    counts[model.StatusInactive],
			Unknown:     counts[model.StatusUnknown],
			Unreachable: counts[model.StatusUnreachable],
			CreatedAt:   time.Now().UTC(),
		},
	}

	if p.store != nil {
		id, err := p.store.RecordRun(ctx, result.Run)
		if err != nil {
			// Run history is informational; the report already exists.
			log.Warn("failed to record run", zap.Error(err))
		} else {
			result.Run.ID = id
		}
	}

	log.Info("check complete",
		zap.Int("active", result.Run.Active),
		zap.Int("inactive", result.Run.Inactive),
		zap.Int("unknown", result.Run.Unknown),
		zap.Int("unreachable", result.Run.Unreachable),
	)

	if failOnProblem && len(problems) > 0 {
		return result, ErrProblemsFound
	}

	return result, nil
}

// classify looks up every distinct code and attaches statuses. A failed
// batch lookup downgrades all codes to unreachable rather than aborting:
// the report is still worth publishing, and the statuses say why.
func (p *Pipeline) classify(ctx context.Context, log *zap.Logger, token string, byFolder map[string][]model.Code) (map[string][]model.ClassifiedCode, map[model.Status]int) {
	distinct := make(map[string]struct{})
	for _, codes := range byFolder {
		for _, c := range codes {
			distinct[c.Value] = struct{}{}
		}
	}
	values := make([]string, 0, len(distinct))
	for v := range distinct {
		values = append(values, v)
	}
	sort.Strings(values)

	statuses, err := p.client.LookupBatch(ctx, token, values)
	if err != nil {
		log.Warn("batch lookup failed, marking all codes unreachable", zap.Error(err))
		statuses = nil
	}

	classified := make(map[string][]model.ClassifiedCode, len(byFolder))
	counts := make(map[model.Status]int)
	for folder, codes := range byFolder {
		for _, c := range codes {
			status := model.StatusUnreachable
			if statuses != nil {
				// Codes the server did not answer for are unknown, not
				// unreachable: the transport worked.
				status = model.StatusUnknown
				if s, ok := statuses[c.Value]; ok {
					status = model.Status(s)
				}
			}
			classified[folder] = append(classified[folder], model.ClassifiedCode{Code: c, Status: status})
			counts[status]++
		}
	}

	return classified, counts
}

// problemCodes returns every non-active code, ordered by folder then value.
func problemCodes(classified map[string][]model.ClassifiedCode) []model.ClassifiedCode {
	var problems []model.ClassifiedCode
	for _, codes := range classified {
		for _, c := range codes {
			if c.Status.IsProblem() {
				problems = append(problems, c)
			}
		}
	}
	sort.Slice(problems, func(i, j int) bool {
		if problems[i].Folder != problems[j].Folder {
			return problems[i].Folder < problems[j].Folder
		}
		return problems[i].Value < problems[j].Value
	})
	return problems
}
