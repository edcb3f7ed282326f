package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bennettoxford/dmdwatch/internal/config"
	"github.com/bennettoxford/dmdwatch/internal/pipeline"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "dmdwatch",
	Short: "dm+d code status checker",
	Long:  "Validates dm+d codes referenced by measure SQL against the NHS Terminology Server and publishes an HTML status report per release.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Problem codes are a deliberate non-zero exit, not a crash; the
		// report has already been written by this point.
		if errors.Is(err, pipeline.ErrProblemsFound) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
