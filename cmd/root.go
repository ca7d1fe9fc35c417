package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/spatial-features/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "spatial-features",
	Short: "Distance and grid features for point data",
	Long: `Computes nearest-neighbour distances, buffer counts and fishnet aggregates
over projected point layers, for use as model features.

Settings come from config.yaml in the working directory, overridden by
SPATIAL_* environment variables (SPATIAL_FEATURES_BACKEND=rtree,
SPATIAL_STORE_PATH=runs.db). Every run is recorded in the run store; see
"spatial-features runs list".`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
