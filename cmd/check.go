package main

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bennettoxford/dmdwatch/internal/config"
	"github.com/bennettoxford/dmdwatch/internal/extract"
	"github.com/bennettoxford/dmdwatch/internal/model"
	"github.com/bennettoxford/dmdwatch/internal/pipeline"
	"github.com/bennettoxford/dmdwatch/internal/report"
	"github.com/bennettoxford/dmdwatch/pkg/ontology"
)

var (
	checkMode          string
	checkFailOnProblem bool
	checkMeasuresDir   string
	checkReportsDir    string
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check all measure codes against the current dm+d release",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mode := model.Mode(checkMode)
		if mode != model.ModeAuto && mode != model.ModeForce {
			return eris.Errorf("invalid mode %q (want auto or force)", checkMode)
		}

		creds, err := config.LoadCredentials(cfg.Terminology.CredentialsPath)
		if err != nil {
			return err
		}

		client := ontology.NewClient(creds.ClientID, creds.ClientSecret,
			ontology.WithBaseURL(cfg.Terminology.BaseURL),
			ontology.WithTokenURL(cfg.Terminology.TokenURL),
			ontology.WithSystem(cfg.Terminology.System),
			ontology.WithRateLimit(cfg.Terminology.RatePerSec),
			ontology.WithHTTPClient(httpClientFromConfig()),
		)

		measuresDir := cfg.Measures.Dir
		if checkMeasuresDir != "" {
			measuresDir = checkMeasuresDir
		}
		extractor := extract.New(measuresDir, cfg.Measures.Pattern)

		renderer, err := newRenderer()
		if err != nil {
			return err
		}

		// Run history is best-effort: a missing database never blocks the
		// check itself.
		st, err := initStore(ctx)
		if err != nil {
			zap.L().Warn("store unavailable, runs will not be recorded", zap.Error(err))
			st = nil
		} else {
			defer st.Close() //nolint:errcheck
			if err := st.Migrate(ctx); err != nil {
				zap.L().Warn("store migration failed, runs will not be recorded", zap.Error(err))
				st.Close() //nolint:errcheck
				st = nil
			}
		}

		p := pipeline.New(client, extractor, renderer, st, cfg.Terminology.SentinelCode)

		result, runErr := p.Run(ctx, mode, checkFailOnProblem)
		if runErr != nil && !eris.Is(runErr, pipeline.ErrProblemsFound) {
			return runErr
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return eris.Wrap(err, "encode result")
		}

		return runErr
	},
}

// newRenderer builds the report renderer from config, reading the optional
// logo file.
func newRenderer() (*report.Renderer, error) {
	dir := cfg.Reports.Dir
	if checkReportsDir != "" {
		dir = checkReportsDir
	}

	r := &report.Renderer{
		Dir:            dir,
		PreviewBaseURL: cfg.Reports.PreviewBaseURL,
		SourceURL:      cfg.Measures.SourceURL,
	}

	if cfg.Reports.LogoPath != "" {
		logo, err := os.ReadFile(cfg.Reports.LogoPath)
		if err != nil {
			return nil, eris.Wrapf(err, "read logo %s", cfg.Reports.LogoPath)
		}
		r.Logo = string(logo)
	}

	return r, nil
}

func httpClientFromConfig() *http.Client {
	return &http.Client{Timeout: time.Duration(cfg.Terminology.TimeoutSecs) * time.Second}
}

func init() {
	checkCmd.Flags().StringVar(&checkMode, "mode", "auto", "auto skips an already-reported release; force always runs")
	checkCmd.Flags().BoolVar(&checkFailOnProblem, "fail-on-problem", false, "exit non-zero when any code is not confirmed active")
	checkCmd.Flags().StringVar(&checkMeasuresDir, "measures", "", "measures directory (default from config)")
	checkCmd.Flags().StringVar(&checkReportsDir, "reports", "", "reports directory (default from config)")
	rootCmd.AddCommand(checkCmd)
}
