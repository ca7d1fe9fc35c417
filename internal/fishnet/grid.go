// Package fishnet builds regular square grids over a projected region and
// aggregates reference points into their cells.
package fishnet

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/spatial-features/internal/model"
)

// DefaultMaxCells caps rows*cols for a single grid.
const DefaultMaxCells = 4_000_000

type buildOptions struct {
	crs      string
	maxCells int
}

// Option configures Build.
type Option func(*buildOptions)

// WithCRS records the region's coordinate system on the fishnet.
func WithCRS(crs string) Option {
	return func(o *buildOptions) { o.crs = crs }
}

// WithMaxCells overrides DefaultMaxCells. Non-positive values are ignored.
func WithMaxCells(n int) Option {
	return func(o *buildOptions) {
		if n > 0 {
			o.maxCells = n
		}
	}
}

// Build tiles the bounding box of region with square cells of cellSize and
// keeps the cells whose square intersects the region. Cells are enumerated
// row-major from the south-west corner and numbered 1..n in that order.
func Build(region orb.Geometry, cellSize float64, opts ...Option) (*model.Fishnet, error) {
	o := buildOptions{maxCells: DefaultMaxCells}
	for _, opt := range opts {
		opt(&o)
	}
	if model.IsGeographic(o.crs) {
		return nil, eris.Wrapf(model.ErrGeographicCRS, "fishnet: crs %s", o.crs)
	}

	mp, err := toMultiPolygon(region)
	if err != nil {
		return nil, err
	}
	if err := validateSize(cellSize); err != nil {
		return nil, err
	}

	bound := mp.Bound()
	rows, cols, err := dimensions(bound, cellSize, o.maxCells)
	if err != nil {
		return nil, err
	}

	log := zap.L().With(zap.String("component", "fishnet"))

	origin := model.Point{X: bound.Min[0], Y: bound.Min[1]}
	var cells []model.Cell
	for row := range rows {
		for col := range cols {
			b := cellBound(origin, cellSize, row, col)
			if !intersects(b, mp) {
				continue
			}
			cells = append(cells, model.Cell{ID: len(cells) + 1, Row: row, Col: col, Bound: b})
		}
	}

	log.Debug("built fishnet",
		zap.Float64("cell_size", cellSize),
		zap.Int("rows", rows),
		zap.Int("cols", cols),
		zap.Int("cells", len(cells)),
	)
	return model.NewFishnet(o.crs, origin, cellSize, rows, cols, cells), nil
}

// BuildFromBound tiles a rectangular extent; every cell is kept.
func BuildFromBound(bound orb.Bound, cellSize float64, opts ...Option) (*model.Fishnet, error) {
	return Build(bound.ToPolygon(), cellSize, opts...)
}

func validateSize(cellSize float64) error {
	if math.IsNaN(cellSize) || math.IsInf(cellSize, 0) || cellSize <= 0 {
		return eris.Wrapf(model.ErrInvalidCellSize, "fishnet: cell_size=%v", cellSize)
	}
	return nil
}

func dimensions(bound orb.Bound, cellSize float64, maxCells int) (rows, cols int, err error) {
	fc := cellCount(bound.Max[0]-bound.Min[0], cellSize)
	fr := cellCount(bound.Max[1]-bound.Min[1], cellSize)
	if fc*fr > float64(maxCells) {
		return 0, 0, eris.Wrapf(model.ErrGridTooLarge, "fishnet: %.0f x %.0f cells (max %d)", fr, fc, maxCells)
	}
	return int(fr), int(fc), nil
}

// cellCount returns ceil(extent/size), at least 1. Quotients within
// model.EdgeTolerance of an integer count as that integer, so 2.1/0.7 gives
// 3 cells rather than 4.
func cellCount(extent, size float64) float64 {
	q := extent / size
	if r := math.Round(q); math.Abs(q-r) <= model.EdgeTolerance*math.Max(1, r) {
		q = r
	}
	return math.Max(1, math.Ceil(q))
}

func cellBound(origin model.Point, size float64, row, col int) orb.Bound {
	minX := origin.X + float64(col)*size
	minY := origin.Y + float64(row)*size
	return orb.Bound{
		Min: orb.Point{minX, minY},
		Max: orb.Point{minX + size, minY + size},
	}
}

func toMultiPolygon(g orb.Geometry) (orb.MultiPolygon, error) {
	var mp orb.MultiPolygon
	switch v := g.(type) {
	case orb.Polygon:
		mp = orb.MultiPolygon{v}
	case orb.MultiPolygon:
		mp = v
	case orb.Bound:
		mp = orb.MultiPolygon{v.ToPolygon()}
	case nil:
		return nil, eris.Wrap(model.ErrEmptyRegion, "fishnet: nil region")
	default:
		return nil, eris.Errorf("fishnet: unsupported region geometry %s", g.GeoJSONType())
	}

	var kept orb.MultiPolygon
	for _, p := range mp {
		if len(p) == 0 || len(p[0]) < 3 {
			continue
		}
		for _, ring := range p {
			for _, pt := range ring {
				if math.IsNaN(pt[0]) || math.IsNaN(pt[1]) || math.IsInf(pt[0], 0) || math.IsInf(pt[1], 0) {
					return nil, eris.Wrapf(model.ErrInvalidCoordinate, "fishnet: region vertex (%v, %v)", pt[0], pt[1])
				}
			}
		}
		kept = append(kept, p)
	}
	if len(kept) == 0 {
		return nil, eris.Wrap(model.ErrEmptyRegion, "fishnet: region has no rings")
	}
	b := kept.Bound()
	if b.Max[0] <= b.Min[0] || b.Max[1] <= b.Min[1] {
		return nil, eris.Wrap(model.ErrEmptyRegion, "fishnet: region bound is degenerate")
	}
	return kept, nil
}
