package geoio

import (
	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/spatial-features/internal/model"
)

func pointGeom(p model.Point) *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{p.X, p.Y})
}

func boundGeom(b orb.Bound) *geom.Polygon {
	flat := []float64{
		b.Min[0], b.Min[1],
		b.Max[0], b.Min[1],
		b.Max[0], b.Max[1],
		b.Min[0], b.Max[1],
		b.Min[0], b.Min[1],
	}
	return geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)})
}

// EncodePoint returns p as little-endian EWKB tagged with srid (0 for none).
func EncodePoint(p model.Point, srid int) ([]byte, error) {
	data, err := ewkb.Marshal(pointGeom(p).SetSRID(srid), ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "geoio: encode point")
	}
	return data, nil
}

// EncodeCell returns the square of a fishnet cell as EWKB.
func EncodeCell(c model.Cell, srid int) ([]byte, error) {
	data, err := ewkb.Marshal(boundGeom(c.Bound).SetSRID(srid), ewkb.NDR)
	if err != nil {
		return nil, eris.Wrapf(err, "geoio: encode cell %d", c.ID)
	}
	return data, nil
}
