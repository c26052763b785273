package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scopeworks/intake/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "intake",
	Short: "Contractor project intake analysis pipeline",
	Long:  "Ingests job-site photos and free-text contractor notes, runs them through a resilient multi-stage analysis pipeline, and emits a structured project specification for pricing.",
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
		os.Exit(1)
	}
}
