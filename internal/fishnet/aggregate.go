package fishnet

import (
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/rotisserie/eris"

	"github.com/sells-group/spatial-features/internal/model"
)

// Aggregate counts reference points per cell, returning one zero-filled
// count per entry of net.Cells. Each point lands in at most one cell (see
// model.Fishnet.Locate); points outside every kept cell are not counted.
func Aggregate(net *model.Fishnet, refs model.PointSet) ([]int, error) {
	if net == nil {
		return nil, eris.New("fishnet: nil fishnet")
	}
	if err := refs.Validate(); err != nil {
		return nil, eris.Wrap(err, "fishnet: reference set")
	}
	if !model.SameCRS(net.CRS, refs.CRS) {
		return nil, eris.Wrapf(model.ErrCRSMismatch, "fishnet: grid %s vs references %s", net.CRS, refs.CRS)
	}

	counts := make([]int, net.Len())
	for _, p := range refs.Points {
		if i, ok := net.Locate(p); ok {
			counts[i]++
		}
	}
	return counts, nil
}

// CountWithin counts reference points per polygon for arbitrary,
// non-overlapping polygons. Containment includes the outer boundary; a point
// on an edge shared by several polygons counts once, for the lowest index.
func CountWithin(polys []orb.Polygon, refs model.PointSet) ([]int, error) {
	return countContained(polys, refs, planar.PolygonContains)
}

// CountWithinZones is CountWithin for multi-part zones such as the records of
// a polygon shapefile.
func CountWithinZones(zones []orb.MultiPolygon, refs model.PointSet) ([]int, error) {
	return countContained(zones, refs, planar.MultiPolygonContains)
}

func countContained[G interface{ Bound() orb.Bound }](geoms []G, refs model.PointSet, contains func(G, orb.Point) bool) ([]int, error) {
	if err := refs.Validate(); err != nil {
		return nil, eris.Wrap(err, "fishnet: reference set")
	}
	bounds := make([]orb.Bound, len(geoms))
	for i, g := range geoms {
		bounds[i] = g.Bound()
	}

	counts := make([]int, len(geoms))
	for _, p := range refs.Points {
		pt := p.Orb()
		for i, g := range geoms {
			if !bounds[i].Contains(pt) {
				continue
			}
			if contains(g, pt) {
				counts[i]++
				break
			}
		}
	}
	return counts, nil
}

// Centroids returns the cell centers as a point set keyed by cell ID, so
// cells can be enriched with point features.
func Centroids(net *model.Fishnet) model.PointSet {
	ps := model.PointSet{
		CRS:    net.CRS,
		Points: make([]model.Point, net.Len()),
		IDs:    make([]string, net.Len()),
	}
	for i, c := range net.Cells {
		ps.Points[i] = c.Center()
		ps.IDs[i] = strconv.Itoa(c.ID)
	}
	return ps
}

// QueenNeighbors returns, for each cell, the positions of the kept cells
// sharing an edge or a corner with it, in ascending order.
func QueenNeighbors(net *model.Fishnet) [][]int {
	out := make([][]int, net.Len())
	for i, c := range net.Cells {
		for dr := -1; dr <= 1; dr++ {
			for dc := -1; dc <= 1; dc++ {
				if dr == 0 && dc == 0 {
					continue
				}
				if j, ok := net.Lookup(c.Row+dr, c.Col+dc); ok {
					out[i] = append(out[i], j)
				}
			}
		}
	}
	return out
}
