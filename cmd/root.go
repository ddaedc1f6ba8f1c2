package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/griff-rees/estios/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "estios",
	Short: "Inter-regional trade flow estimator",
	Long:  "Estimates sector-level trade flows between regions by coupling input-output accounting with a doubly-constrained gravity model, solved independently per time period.",
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
