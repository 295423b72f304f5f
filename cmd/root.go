package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/brightline-research/orggeo/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "orggeo",
	Short: "Geocode organization address lists and enrich them with weather data",
	Long:  "Reads organization CSV/XLSX exports, geocodes each address through a free-to-paid provider cascade, tags rows with NWS forecast regions, and layers on active weather alerts and FEMA disaster declarations.",
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
