package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/spatial-features/internal/model"
	"github.com/sells-group/spatial-features/internal/plan"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Run feature plans described in YAML",
}

var planOut outputFlags

// -- plan run --

var planRunCmd = &cobra.Command{
	Use:   "run <plan.yaml>",
	Short: "Compute every feature in a plan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("features"); err != nil {
			return err
		}

		p, err := plan.Load(args[0])
		if err != nil {
			return err
		}
		opts, err := cfg.Features.Options()
		if err != nil {
			return err
		}

		// Flags override the plan's own output section.
		out := planOut
		if out.path == "" {
			out.path = p.Output.Path
			out.format = p.Output.Format
		}

		runner := &plan.Runner{
			Loader:      fileLoader(filepath.Dir(args[0])),
			Options:     opts,
			Concurrency: cfg.Features.Concurrency,
			MaxCells:    cfg.Fishnet.MaxCells,
		}

		params := map[string]any{"plan": args[0], "features": len(p.Features)}
		return recordRun(ctx, "plan", params, func() (*model.FeatureTable, error) {
			res, err := runner.Run(ctx, p)
			if err != nil {
				return nil, err
			}
			return res.Table, out.emit(ctx, res.Table, res.Fishnet)
		})
	},
}

// -- plan check --

var planCheckCmd = &cobra.Command{
	Use:   "check <plan.yaml>",
	Short: "Validate a plan and list the columns it produces",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		p, err := plan.Load(args[0])
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "COLUMN\tKIND\tLAYER")
		for _, f := range p.Features {
			for _, c := range f.Columns() {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", c, f.Kind, f.Layer)
			}
		}
		return w.Flush()
	},
}

func init() {
	planOut.register(planRunCmd)
	planCmd.AddCommand(planRunCmd)
	planCmd.AddCommand(planCheckCmd)
	rootCmd.AddCommand(planCmd)
}
