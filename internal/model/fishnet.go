package model

import (
	"math"

	"github.com/paulmach/orb"
)

// Cell is one square of a fishnet. ID is 1-based and sequential over the
// kept cells; Row and Col locate the cell in the full grid, row 0 being the
// southernmost row.
type Cell struct {
	ID    int       `json:"id"`
	Row   int       `json:"row"`
	Col   int       `json:"col"`
	Bound orb.Bound `json:"-"`
}

// Center returns the centroid of the cell.
func (c Cell) Center() Point {
	ctr := c.Bound.Center()
	return Point{X: ctr[0], Y: ctr[1]}
}

// Fishnet is a regular grid of square cells anchored at Origin. Only the
// cells that intersect the source region are kept in Cells.
type Fishnet struct {
	CRS      string  `json:"crs,omitempty"`
	Origin   Point   `json:"origin"`
	CellSize float64 `json:"cell_size"`
	Rows     int     `json:"rows"`
	Cols     int     `json:"cols"`
	Cells    []Cell  `json:"cells"`

	lookup map[int]int
}

// NewFishnet assembles a fishnet and indexes its cells by grid position.
func NewFishnet(crs string, origin Point, cellSize float64, rows, cols int, cells []Cell) *Fishnet {
	f := &Fishnet{
		CRS:      crs,
		Origin:   origin,
		CellSize: cellSize,
		Rows:     rows,
		Cols:     cols,
		Cells:    cells,
		lookup:   make(map[int]int, len(cells)),
	}
	for i, c := range cells {
		f.lookup[c.Row*cols+c.Col] = i
	}
	return f
}

// Len returns the number of kept cells.
func (f *Fishnet) Len() int { return len(f.Cells) }

// Extent returns the bound of the full grid, kept or not.
func (f *Fishnet) Extent() orb.Bound {
	return orb.Bound{
		Min: orb.Point{f.Origin.X, f.Origin.Y},
		Max: orb.Point{
			f.Origin.X + float64(f.Cols)*f.CellSize,
			f.Origin.Y + float64(f.Rows)*f.CellSize,
		},
	}
}

// Lookup returns the position in Cells of the cell at (row, col).
func (f *Fishnet) Lookup(row, col int) (int, bool) {
	if row < 0 || row >= f.Rows || col < 0 || col >= f.Cols {
		return 0, false
	}
	i, ok := f.lookup[row*f.Cols+col]
	return i, ok
}

// EdgeTolerance is the relative slack, per cell along an axis, within which a
// coordinate is treated as lying on the outer edge of a grid.
const EdgeTolerance = 1e-9

// Locate returns the position in Cells of the cell containing p.
//
// Cells are half-open, [minX, maxX) x [minY, maxY), so a point on an edge
// shared by two kept cells belongs to the east/north one. A point on the
// east or north edge of a kept cell whose neighbour was dropped belongs to
// the kept cell, and so does a point on the outer east or north edge of
// the grid.
func (f *Fishnet) Locate(p Point) (int, bool) {
	if f.CellSize <= 0 || !p.Finite() {
		return 0, false
	}
	col, westEdge, ok := axisIndex(p.X, f.Origin.X, f.CellSize, f.Cols)
	if !ok {
		return 0, false
	}
	row, southEdge, ok := axisIndex(p.Y, f.Origin.Y, f.CellSize, f.Rows)
	if !ok {
		return 0, false
	}

	if i, ok := f.Lookup(row, col); ok {
		return i, true
	}
	if westEdge {
		if i, ok := f.Lookup(row, col-1); ok {
			return i, true
		}
	}
	if southEdge {
		if i, ok := f.Lookup(row-1, col); ok {
			return i, true
		}
	}
	if westEdge && southEdge {
		return f.Lookup(row-1, col-1)
	}
	return 0, false
}

// axisIndex returns the grid index of v along one axis and whether v lies
// exactly on the lower edge of that index (and so also on the upper edge of
// the previous one).
func axisIndex(v, origin, size float64, n int) (int, bool, bool) {
	if v < origin {
		return 0, false, false
	}
	maxV := origin + float64(n)*size
	if v > maxV && v-maxV > EdgeTolerance*size*float64(n) {
		return 0, false, false
	}
	if v >= maxV {
		return n - 1, false, true
	}
	i := int(math.Floor((v - origin) / size))
	if i >= n {
		i = n - 1
	}
	return i, i > 0 && origin+float64(i)*size == v, true
}
