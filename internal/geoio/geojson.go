package geoio

import (
	"encoding/json"
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/spatial-features/internal/model"
)

// WriteFeaturesGeoJSON writes t as a FeatureCollection of points whose
// properties are the feature columns.
func WriteFeaturesGeoJSON(w io.Writer, t *model.FeatureTable) error {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, t.Rows())}
	for i := range t.Rows() {
		props := make(map[string]any, len(t.Columns))
		for _, c := range t.Columns {
			props[c.Name] = c.Values[i]
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         t.IDs[i],
			Geometry:   pointGeom(t.Points[i]),
			Properties: props,
		})
	}
	return encodeJSON(w, fc)
}

// WriteFishnetGeoJSON writes every cell square with its ID, row, column and
// the given per-cell columns.
func WriteFishnetGeoJSON(w io.Writer, net *model.Fishnet, cols []model.FeatureColumn) error {
	for _, c := range cols {
		if len(c.Values) != net.Len() {
			return eris.Errorf("geoio: column %s has %d values for %d cells", c.Name, len(c.Values), net.Len())
		}
	}

	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, net.Len())}
	for i, cell := range net.Cells {
		props := map[string]any{
			"cell_id": cell.ID,
			"row":     cell.Row,
			"col":     cell.Col,
		}
		for _, c := range cols {
			props[c.Name] = c.Values[i]
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         strconv.Itoa(cell.ID),
			Geometry:   boundGeom(cell.Bound),
			Properties: props,
		})
	}
	return encodeJSON(w, fc)
}

func encodeJSON(w io.Writer, fc *geojson.FeatureCollection) error {
	if err := json.NewEncoder(w).Encode(fc); err != nil {
		return eris.Wrap(err, "geoio: encode geojson")
	}
	return nil
}
