package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ToobaSh/urbanviz-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "urbanviz",
	Short: "Address resolution for urban planning lookups",
	Long:  "Geocodes street addresses, locates the nearest cadastral parcel and zoning polygon, links the zoning regulation document, and picks the best available street-level imagery.",
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
