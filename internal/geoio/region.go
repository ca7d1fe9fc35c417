package geoio

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"

	"github.com/sells-group/spatial-features/internal/model"
)

// LoadRegion reads a study region from a polygon shapefile or a GeoJSON
// file, chosen by extension.
func LoadRegion(path string, opts ShapefileOptions) (orb.MultiPolygon, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "geoio: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		return ReadRegionGeoJSON(f)
	default:
		return LoadRegionShapefile(path, opts)
	}
}

// ReadRegionGeoJSON merges the polygons of a FeatureCollection, Feature or
// bare geometry into one region. Non-polygonal geometries are ignored.
func ReadRegionGeoJSON(r io.Reader) (orb.MultiPolygon, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "geoio: read geojson")
	}
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, eris.Wrap(err, "geoio: parse geojson")
	}

	var geoms []orb.Geometry
	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, eris.Wrap(err, "geoio: parse feature collection")
		}
		for _, f := range fc.Features {
			geoms = append(geoms, f.Geometry)
		}
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, eris.Wrap(err, "geoio: parse feature")
		}
		geoms = append(geoms, f.Geometry)
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, eris.Wrap(err, "geoio: parse geometry")
		}
		geoms = append(geoms, g.Geometry())
	}

	var region orb.MultiPolygon
	for _, g := range geoms {
		switch v := g.(type) {
		case orb.Polygon:
			region = append(region, v)
		case orb.MultiPolygon:
			region = append(region, v...)
		}
	}
	if len(region) == 0 {
		return nil, eris.Wrap(model.ErrEmptyRegion, "geoio: geojson has no polygons")
	}
	return region, nil
}
