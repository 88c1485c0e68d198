package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pcbflow/drillsync/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "drillsync",
	Short: "Drill inspection sync pipeline",
	Long:  "Incrementally syncs drill AOI inspection records from the shop-floor database, classifies drill-map images, and persists enriched records with PPM threshold alerting.",
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
