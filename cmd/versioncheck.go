package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/bennettoxford/dmdwatch/internal/config"
	"github.com/bennettoxford/dmdwatch/pkg/ontology"
)

var versionCheckCmd = &cobra.Command{
	Use:   "version-check",
	Short: "Print the current dm+d release and whether it has been reported",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

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

		token, err := client.Token(ctx)
		if err != nil {
			return err
		}
		version, err := client.Version(ctx, token, cfg.Terminology.SentinelCode)
		if err != nil {
			return err
		}

		renderer, err := newRenderer()
		if err != nil {
			return err
		}
		existing, err := renderer.ExistingVersions()
		if err != nil {
			return err
		}

		state := "new"
		if slices.Contains(existing, version) {
			state = "already reported"
		}
		fmt.Printf("%s (%s)\n", version, state)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCheckCmd)
}
