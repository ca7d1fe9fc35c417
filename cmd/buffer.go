package main

import (
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/spatial-features/internal/feature"
	"github.com/sells-group/spatial-features/internal/model"
)

var (
	bufTargets string
	bufRefs    string
	bufRadii   []float64
	bufName    string
	bufBackend string
	bufOut     outputFlags
)

var bufferCmd = &cobra.Command{
	Use:   "buffer",
	Short: "Count reference points within a radius of each target",
	Example: `  spatial-features buffer --targets homes.csv --refs crime.csv --radius 660,1320 --name crime_buf -o homes_buf.csv`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("features"); err != nil {
			return err
		}
		opts, err := generatorOptions(bufBackend, "")
		if err != nil {
			return err
		}

		params := map[string]any{
			"targets":    bufTargets,
			"references": bufRefs,
			"radius":     bufRadii,
			"name":       bufName,
		}
		return recordRun(ctx, "buffer", params, func() (*model.FeatureTable, error) {
			targets, err := loadLayer(ctx, bufTargets)
			if err != nil {
				return nil, err
			}
			refs, err := loadLayer(ctx, bufRefs)
			if err != nil {
				return nil, err
			}

			gen, err := feature.NewGenerator(refs, opts...)
			if err != nil {
				return nil, err
			}

			t := model.NewFeatureTable(targets)
			for _, r := range bufRadii {
				counts, err := gen.BufferCount(targets, r)
				if err != nil {
					return nil, err
				}
				if err := t.Add(feature.Counts(bufferColumn(bufName, r, len(bufRadii)), counts)); err != nil {
					return nil, err
				}
			}
			zap.L().Info("buffer counts computed",
				zap.Int("targets", targets.Len()),
				zap.Int("references", gen.References()),
				zap.Float64s("radius", bufRadii),
			)
			return t, bufOut.emit(ctx, t, nil)
		})
	},
}

// bufferColumn names the count column; the radius is appended only when
// several radii share one prefix.
func bufferColumn(name string, radius float64, n int) string {
	if n == 1 {
		return name
	}
	return name + strconv.FormatFloat(radius, 'f', -1, 64)
}

func init() {
	bufferCmd.Flags().StringVar(&bufTargets, "targets", "", "target point layer (.csv or .shp)")
	bufferCmd.Flags().StringVar(&bufRefs, "refs", "", "reference point layer (.csv or .shp)")
	bufferCmd.Flags().Float64SliceVar(&bufRadii, "radius", nil, "buffer radius in CRS units, comma separated")
	bufferCmd.Flags().StringVar(&bufName, "name", "buffer", "column name (prefix when several radii are given)")
	bufferCmd.Flags().StringVar(&bufBackend, "backend", "", "index backend: brute, kdtree or rtree (default from config)")
	bufOut.register(bufferCmd)
	_ = bufferCmd.MarkFlagRequired("targets")
	_ = bufferCmd.MarkFlagRequired("refs")
	_ = bufferCmd.MarkFlagRequired("radius")
	rootCmd.AddCommand(bufferCmd)
}
