package geoio

import (
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/sells-group/spatial-features/internal/model"
)

// ShapefileOptions configures shapefile decoding.
type ShapefileOptions struct {
	CRS      string
	IDField  string // DBF attribute used as the row ID; rows are numbered when empty
	Encoding string // DBF charset label such as "windows-1252"; raw bytes when empty
}

// Zone is one polygon shapefile record.
type Zone struct {
	ID       string
	Geometry orb.MultiPolygon
}

type attrReader struct {
	reader *shp.Reader
	idIdx  int
	dec    *encoding.Decoder
}

func openShapefile(path string, opts ShapefileOptions) (*attrReader, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "geoio: open shapefile %s", path)
	}
	ar := &attrReader{reader: reader, idIdx: -1}

	if opts.Encoding != "" {
		enc, err := htmlindex.Get(opts.Encoding)
		if err != nil {
			_ = reader.Close()
			return nil, eris.Wrapf(err, "geoio: unsupported dbf encoding %q", opts.Encoding)
		}
		ar.dec = enc.NewDecoder()
	}

	if opts.IDField != "" {
		for i, f := range reader.Fields() {
			name := strings.TrimRight(f.String(), "\x00")
			if strings.EqualFold(name, opts.IDField) {
				ar.idIdx = i
				break
			}
		}
		if ar.idIdx < 0 {
			_ = reader.Close()
			return nil, eris.Errorf("geoio: shapefile %s has no field %q", path, opts.IDField)
		}
	}
	return ar, nil
}

func (a *attrReader) id(n int) (string, error) {
	if a.idIdx < 0 {
		return strconv.Itoa(n), nil
	}
	val := strings.TrimSpace(strings.TrimRight(a.reader.Attribute(a.idIdx), "\x00"))
	if a.dec == nil {
		return val, nil
	}
	out, err := a.dec.String(val)
	if err != nil {
		return "", eris.Wrapf(err, "geoio: decode attribute of record %d", n)
	}
	return out, nil
}

func (a *attrReader) Close() error { return a.reader.Close() }

// LoadPointsShapefile reads a point shapefile. Point, PointZ and PointM
// records are accepted (Z and M are dropped); every part of a MultiPoint
// record becomes its own row sharing the record ID.
func LoadPointsShapefile(path string, opts ShapefileOptions) (model.PointSet, error) {
	ar, err := openShapefile(path, opts)
	if err != nil {
		return model.PointSet{}, err
	}
	defer func() { _ = ar.Close() }()

	ps := model.PointSet{CRS: opts.CRS}
	var skipped, n int
	for ar.reader.Next() {
		n++
		_, shape := ar.reader.Shape()

		var pts []model.Point
		switch s := shape.(type) {
		case *shp.Point:
			pts = []model.Point{{X: s.X, Y: s.Y}}
		case *shp.PointZ:
			pts = []model.Point{{X: s.X, Y: s.Y}}
		case *shp.PointM:
			pts = []model.Point{{X: s.X, Y: s.Y}}
		case *shp.MultiPoint:
			for _, p := range s.Points {
				pts = append(pts, model.Point{X: p.X, Y: p.Y})
			}
		default:
			skipped++
			continue
		}

		id, err := ar.id(n)
		if err != nil {
			return model.PointSet{}, err
		}
		for _, p := range pts {
			ps.Points = append(ps.Points, p)
			ps.IDs = append(ps.IDs, id)
		}
	}

	if skipped > 0 {
		zap.L().Debug("geoio: skipped non-point shapefile records",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}
	return ps, nil
}

// LoadZonesShapefile reads a polygon shapefile, one Zone per record.
func LoadZonesShapefile(path string, opts ShapefileOptions) ([]Zone, error) {
	ar, err := openShapefile(path, opts)
	if err != nil {
		return nil, err
	}
	defer func() { _ = ar.Close() }()

	var zones []Zone
	var skipped, n int
	for ar.reader.Next() {
		n++
		_, shape := ar.reader.Shape()

		var parts []int32
		var points []shp.Point
		switch s := shape.(type) {
		case *shp.Polygon:
			parts, points = s.Parts, s.Points
		case *shp.PolygonZ:
			parts, points = s.Parts, s.Points
		case *shp.PolygonM:
			parts, points = s.Parts, s.Points
		default:
			skipped++
			continue
		}

		mp := assemble(rings(parts, points))
		if len(mp) == 0 {
			skipped++
			continue
		}
		id, err := ar.id(n)
		if err != nil {
			return nil, err
		}
		zones = append(zones, Zone{ID: id, Geometry: mp})
	}

	if skipped > 0 {
		zap.L().Debug("geoio: skipped shapefile records",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}
	return zones, nil
}

// LoadRegionShapefile merges every record of a polygon shapefile into one
// study region.
func LoadRegionShapefile(path string, opts ShapefileOptions) (orb.MultiPolygon, error) {
	zones, err := LoadZonesShapefile(path, opts)
	if err != nil {
		return nil, err
	}
	var region orb.MultiPolygon
	for _, z := range zones {
		region = append(region, z.Geometry...)
	}
	if len(region) == 0 {
		return nil, eris.Wrapf(model.ErrEmptyRegion, "geoio: %s has no polygons", path)
	}
	return region, nil
}

func rings(parts []int32, points []shp.Point) []orb.Ring {
	out := make([]orb.Ring, 0, len(parts))
	for i, start := range parts {
		end := int32(len(points))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		if start < 0 || end > int32(len(points)) || end-start < 3 {
			continue
		}
		ring := make(orb.Ring, 0, end-start)
		for _, p := range points[start:end] {
			ring = append(ring, orb.Point{p.X, p.Y})
		}
		out = append(out, ring)
	}
	return out
}

// assemble groups rings into polygons. Shapefile outer rings are clockwise
// and holes counter-clockwise; when every ring has the same orientation they
// are all treated as outers. A hole goes to the first outer containing it.
func assemble(rs []orb.Ring) orb.MultiPolygon {
	var cw, ccw int
	for _, r := range rs {
		switch r.Orientation() {
		case orb.CW:
			cw++
		case orb.CCW:
			ccw++
		}
	}
	mixed := cw > 0 && ccw > 0

	var mp orb.MultiPolygon
	var holes []orb.Ring
	for _, r := range rs {
		if mixed && r.Orientation() == orb.CCW {
			holes = append(holes, r)
			continue
		}
		if r.Orientation() == 0 {
			continue
		}
		mp = append(mp, orb.Polygon{r})
	}

	for _, h := range holes {
		placed := false
		for i := range mp {
			if planar.RingContains(mp[i][0], h[0]) {
				mp[i] = append(mp[i], h)
				placed = true
				break
			}
		}
		if !placed {
			mp = append(mp, orb.Polygon{h})
		}
	}
	return mp
}
