package main

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/spatial-features/internal/feature"
	"github.com/sells-group/spatial-features/internal/model"
	"github.com/sells-group/spatial-features/internal/spatial"
)

var (
	nnTargets string
	nnRefs    string
	nnKs      []int
	nnKRange  string
	nnName    string
	nnBackend string
	nnPolicy  string
	nnOut     outputFlags
)

var nnCmd = &cobra.Command{
	Use:   "nn",
	Short: "Mean distance from each target to its k nearest reference points",
	Example: `  spatial-features nn --targets homes.csv --refs crime.csv --k 1,3,5 --name crime_nn -o homes_nn.csv
  spatial-features nn --targets homes.csv --refs crime.shp --k-range 1-5 --backend rtree`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("features"); err != nil {
			return err
		}

		ks, err := resolveKs(nnKs, nnKRange)
		if err != nil {
			return err
		}
		opts, err := generatorOptions(nnBackend, nnPolicy)
		if err != nil {
			return err
		}

		params := map[string]any{
			"targets":    nnTargets,
			"references": nnRefs,
			"k":          ks,
			"name":       nnName,
		}
		return recordRun(ctx, "nn", params, func() (*model.FeatureTable, error) {
			targets, err := loadLayer(ctx, nnTargets)
			if err != nil {
				return nil, err
			}
			refs, err := loadLayer(ctx, nnRefs)
			if err != nil {
				return nil, err
			}

			gen, err := feature.NewGenerator(refs, opts...)
			if err != nil {
				return nil, err
			}
			cols, err := gen.NearestNeighborSweep(targets, ks)
			if err != nil {
				return nil, err
			}

			t := model.NewFeatureTable(targets)
			for i, k := range ks {
				if err := t.Add(model.FeatureColumn{Name: nnName + strconv.Itoa(k), Values: cols[i]}); err != nil {
					return nil, err
				}
			}
			zap.L().Info("nearest-neighbour features computed",
				zap.Int("targets", targets.Len()),
				zap.Int("references", gen.References()),
				zap.Ints("k", ks),
			)
			return t, nnOut.emit(ctx, t, nil)
		})
	},
}

// resolveKs returns the explicit k list, or the inclusive range "a-b" when
// given.
func resolveKs(ks []int, rng string) ([]int, error) {
	if rng == "" {
		if len(ks) == 0 {
			return nil, eris.Wrap(model.ErrInvalidK, "no k values")
		}
		return ks, nil
	}
	lo, hi, ok := strings.Cut(rng, "-")
	a, errA := strconv.Atoi(strings.TrimSpace(lo))
	b, errB := strconv.Atoi(strings.TrimSpace(hi))
	if !ok || errA != nil || errB != nil || a < 1 || b < a {
		return nil, eris.Wrapf(model.ErrInvalidK, "invalid k range %q", rng)
	}
	out := make([]int, 0, b-a+1)
	for k := a; k <= b; k++ {
		out = append(out, k)
	}
	return out, nil
}

// generatorOptions starts from the features config section and applies
// non-empty flag overrides.
func generatorOptions(backend, policy string) ([]feature.Option, error) {
	opts, err := cfg.Features.Options()
	if err != nil {
		return nil, err
	}
	if backend != "" {
		b, err := spatial.ParseBackend(backend)
		if err != nil {
			return nil, err
		}
		opts = append(opts, feature.WithBackend(b))
	}
	if policy != "" {
		p, err := feature.ParseKPolicy(policy)
		if err != nil {
			return nil, err
		}
		opts = append(opts, feature.WithKPolicy(p))
	}
	return opts, nil
}

func init() {
	nnCmd.Flags().StringVar(&nnTargets, "targets", "", "target point layer (.csv or .shp)")
	nnCmd.Flags().StringVar(&nnRefs, "refs", "", "reference point layer (.csv or .shp)")
	nnCmd.Flags().IntSliceVar(&nnKs, "k", []int{1}, "neighbour counts, comma separated")
	nnCmd.Flags().StringVar(&nnKRange, "k-range", "", "inclusive k range such as 1-5, replacing --k")
	nnCmd.Flags().StringVar(&nnName, "name", "nn", "column name prefix; k is appended")
	nnCmd.Flags().StringVar(&nnBackend, "backend", "", "index backend: brute, kdtree or rtree (default from config)")
	nnCmd.Flags().StringVar(&nnPolicy, "k-policy", "", "strict or available when k exceeds the reference count")
	nnOut.register(nnCmd)
	_ = nnCmd.MarkFlagRequired("targets")
	_ = nnCmd.MarkFlagRequired("refs")
	rootCmd.AddCommand(nnCmd)
}
