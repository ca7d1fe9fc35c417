// Package model defines the point, grid and feature-table types shared by the
// feature generators, loaders and sinks.
package model

import (
	"math"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
)

// Point is a planar coordinate in a projected CRS.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Orb returns the point as an orb.Point.
func (p Point) Orb() orb.Point {
	return orb.Point{p.X, p.Y}
}

// Finite reports whether both coordinates are finite numbers.
func (p Point) Finite() bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

// PointSet is an ordered snapshot of points sharing one CRS. IDs is optional;
// when present it is 1:1 with Points.
type PointSet struct {
	CRS    string   `json:"crs,omitempty"`
	Points []Point  `json:"points"`
	IDs    []string `json:"ids,omitempty"`
}

// NewPointSet builds a PointSet from raw coordinates. The slice is copied.
func NewPointSet(crs string, pts []Point) PointSet {
	cp := make([]Point, len(pts))
	copy(cp, pts)
	return PointSet{CRS: crs, Points: cp}
}

// Len returns the number of points.
func (s PointSet) Len() int { return len(s.Points) }

// ID returns the identifier of point i, or its 1-based position when the set
// carries no identifiers.
func (s PointSet) ID(i int) string {
	if i < len(s.IDs) && s.IDs[i] != "" {
		return s.IDs[i]
	}
	return strconv.Itoa(i + 1)
}

// Bound returns the bounding box of the set. The zero Bound is returned for
// an empty set.
func (s PointSet) Bound() orb.Bound {
	if len(s.Points) == 0 {
		return orb.Bound{}
	}
	b := orb.Bound{Min: s.Points[0].Orb(), Max: s.Points[0].Orb()}
	for _, p := range s.Points[1:] {
		b = b.Extend(p.Orb())
	}
	return b
}

// Validate checks the set on its own: finite coordinates, a projected CRS and
// an ID slice matching the points. Emptiness is checked by callers, since
// some operations accept empty sets.
func (s PointSet) Validate() error {
	if IsGeographic(s.CRS) {
		return eris.Wrapf(ErrGeographicCRS, "crs %s", s.CRS)
	}
	if len(s.IDs) != 0 && len(s.IDs) != len(s.Points) {
		return eris.Errorf("model: %d ids for %d points", len(s.IDs), len(s.Points))
	}
	for i, p := range s.Points {
		if !p.Finite() {
			return eris.Wrapf(ErrInvalidCoordinate, "point %d (%v, %v)", i, p.X, p.Y)
		}
	}
	return nil
}

// CheckCRS returns ErrCRSMismatch when a and b declare different systems.
func CheckCRS(a, b PointSet) error {
	if !SameCRS(a.CRS, b.CRS) {
		return eris.Wrapf(ErrCRSMismatch, "%s vs %s", a.CRS, b.CRS)
	}
	return nil
}
