package fishnet

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
	"github.com/paulmach/orb/planar"
)

// intersects reports whether the closed square b and the region share at
// least one point.
func intersects(b orb.Bound, mp orb.MultiPolygon) bool {
	for _, poly := range mp {
		if b.Intersects(poly.Bound()) && polygonIntersects(b, poly) {
			return true
		}
	}
	return false
}

func polygonIntersects(b orb.Bound, poly orb.Polygon) bool {
	// Region vertex inside or on the square.
	for _, ring := range poly {
		for _, pt := range ring {
			if b.Contains(pt) {
				return true
			}
		}
	}

	// Square corner inside the region or on any of its rings.
	corners := [4]orb.Point{
		b.Min,
		{b.Max[0], b.Min[1]},
		b.Max,
		{b.Min[0], b.Max[1]},
	}
	for _, c := range corners {
		if planar.PolygonContains(poly, c) || onBoundary(poly, c) {
			return true
		}
	}

	// Region edges crossing the square with no vertex on either side leave
	// a clipped part with positive area.
	return planar.Area(clip.Polygon(b, poly.Clone())) > 0
}

func onBoundary(poly orb.Polygon, p orb.Point) bool {
	for _, ring := range poly {
		for i := 0; i+1 < len(ring); i++ {
			if planar.DistanceFromSegmentSquared(ring[i], ring[i+1], p) == 0 {
				return true
			}
		}
	}
	return false
}
