package main

import (
	"context"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/spatial-features/internal/db"
	"github.com/sells-group/spatial-features/internal/diagnostics"
	"github.com/sells-group/spatial-features/internal/geoio"
	"github.com/sells-group/spatial-features/internal/model"
	"github.com/sells-group/spatial-features/internal/plan"
)

// outputFlags are shared by every command that produces a feature table.
type outputFlags struct {
	path    string
	format  string
	pgTable string
	summary string
}

func (o *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.path, "out", "o", "", "output file (.csv, .xlsx, .geojson, .shp); stdout CSV when empty")
	cmd.Flags().StringVar(&o.format, "format", "", "output format, overriding the file extension")
	cmd.Flags().StringVar(&o.pgTable, "pg-table", "", "also export to this PostGIS table (postgres.database_url)")
	cmd.Flags().StringVar(&o.summary, "summary", "", "write per-column summary statistics to this CSV file")
}

// emit writes t to every configured sink. net is set when the rows are
// fishnet cells, which selects polygon geometry for spatial formats.
func (o *outputFlags) emit(ctx context.Context, t *model.FeatureTable, net *model.Fishnet) error {
	sums := diagnostics.SummarizeTable(t)

	if err := writeTable(o.path, o.format, t, net, sums); err != nil {
		return err
	}
	if o.summary != "" {
		if err := writeFile(o.summary, func(w io.Writer) error {
			return geoio.WriteSummariesCSV(w, sums)
		}); err != nil {
			return err
		}
	}
	if o.pgTable != "" {
		if err := exportPostgres(ctx, o.pgTable, t, net); err != nil {
			return err
		}
	}
	return nil
}

func writeTable(path, format string, t *model.FeatureTable, net *model.Fishnet, sums []diagnostics.Summary) error {
	if path == "" || path == "-" {
		return geoio.WriteFeaturesCSV(os.Stdout, t)
	}

	switch f := plan.FormatOf(path, format); f {
	case "csv":
		return writeFile(path, func(w io.Writer) error { return geoio.WriteFeaturesCSV(w, t) })
	case "xlsx":
		return geoio.WriteFeaturesXLSX(path, t, geoio.XLSXOptions{Summaries: sums})
	case "geojson", "json":
		return writeFile(path, func(w io.Writer) error {
			if net != nil {
				return geoio.WriteFishnetGeoJSON(w, net, t.Columns)
			}
			return geoio.WriteFeaturesGeoJSON(w, t)
		})
	case "shp":
		if net == nil {
			return eris.New("shapefile output is only supported for fishnet cells")
		}
		return geoio.WriteFishnetShapefile(path, net, t.Columns)
	default:
		return eris.Errorf("unsupported output format %q", f)
	}
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create %s", path)
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return err
	}
	return eris.Wrapf(f.Close(), "close %s", path)
}

func exportPostgres(ctx context.Context, table string, t *model.FeatureTable, net *model.Fishnet) error {
	if err := cfg.Validate("export"); err != nil {
		return err
	}
	mode, err := db.ParseMode(cfg.Postgres.Mode)
	if err != nil {
		return err
	}

	pool, err := db.Connect(ctx, cfg.Postgres.DatabaseURL, db.RetryConfig{MaxAttempts: cfg.Postgres.RetryAttempts})
	if err != nil {
		return err
	}
	defer pool.Close()

	var n int64
	if net != nil {
		n, err = db.ExportFishnet(ctx, pool, table, net, t.Columns, mode)
	} else {
		n, err = db.ExportFeatures(ctx, pool, table, t, mode)
	}
	if err != nil {
		return eris.Wrapf(err, "export %s", table)
	}

	zap.L().Info("exported to postgres",
		zap.String("table", table),
		zap.String("mode", string(mode)),
		zap.Int64("rows", n),
	)
	return nil
}

// fileLoader reads layers with the column and encoding defaults from the
// input config section.
func fileLoader(baseDir string) plan.FileLoader {
	return plan.FileLoader{
		BaseDir: baseDir,
		Defaults: geoio.CSVOptions{
			XColumn:  cfg.Input.XColumn,
			YColumn:  cfg.Input.YColumn,
			IDColumn: cfg.Input.IDColumn,
		},
		DBFEncoding: cfg.Input.DBFEncoding,
	}
}

// loadLayer reads a CSV or point shapefile in input.crs.
func loadLayer(ctx context.Context, path string) (model.PointSet, error) {
	ps, err := fileLoader("").Points(ctx, path, plan.Layer{Path: path, CRS: cfg.Input.CRS})
	if err != nil {
		return model.PointSet{}, eris.Wrapf(err, "load %s", path)
	}
	zap.L().Debug("layer loaded", zap.String("path", path), zap.Int("points", ps.Len()))
	return ps, nil
}
