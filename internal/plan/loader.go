package plan

import (
	"context"
	"path/filepath"

	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"

	"github.com/sells-group/spatial-features/internal/geoio"
	"github.com/sells-group/spatial-features/internal/model"
)

// FileLoader reads CSV and shapefile layers from disk. Relative paths are
// resolved against BaseDir; empty column settings fall back to Defaults.
type FileLoader struct {
	BaseDir     string
	Defaults    geoio.CSVOptions
	DBFEncoding string
}

func (l FileLoader) path(p string) string {
	if l.BaseDir == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(l.BaseDir, p)
}

// Points implements Loader.
func (l FileLoader) Points(ctx context.Context, name string, layer Layer) (model.PointSet, error) {
	if err := ctx.Err(); err != nil {
		return model.PointSet{}, err
	}
	path := l.path(layer.Path)

	switch FormatOf(layer.Path, layer.Format) {
	case "csv":
		opts := l.Defaults
		opts.CRS = layer.CRS
		if layer.XColumn != "" {
			opts.XColumn = layer.XColumn
		}
		if layer.YColumn != "" {
			opts.YColumn = layer.YColumn
		}
		if layer.IDColumn != "" {
			opts.IDColumn = layer.IDColumn
		}
		return geoio.LoadPointsCSV(path, opts)
	case "shp":
		return geoio.LoadPointsShapefile(path, geoio.ShapefileOptions{
			CRS:      layer.CRS,
			IDField:  layer.IDColumn,
			Encoding: l.DBFEncoding,
		})
	}
	return model.PointSet{}, eris.Errorf("plan: layer %s: unsupported format", name)
}

// Region implements Loader. The region is a polygon shapefile or GeoJSON.
func (l FileLoader) Region(ctx context.Context, path string) (orb.MultiPolygon, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return geoio.LoadRegion(l.path(path), geoio.ShapefileOptions{Encoding: l.DBFEncoding})
}
