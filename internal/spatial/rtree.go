package spatial

import (
	"slices"

	"github.com/dhconnelly/rtreego"

	"github.com/sells-group/spatial-features/internal/model"
)

const (
	rtreeMinChildren = 25
	rtreeMaxChildren = 50

	// pointExtent is the side length of the rectangle stored for each point;
	// searchPad covers it when querying by box.
	pointExtent = 1e-9
	searchPad   = 1e-6
)

// rtreeItem stores one reference point in the R-tree.
type rtreeItem struct {
	p    model.Point
	rect rtreego.Rect
}

func (it *rtreeItem) Bounds() rtreego.Rect { return it.rect }

// RTree answers queries with an R-tree. Neighbour candidates from the tree
// are confirmed with a box search so the result is exact.
type RTree struct {
	tree *rtreego.Rtree
	pts  []model.Point
}

// NewRTree inserts every point of pts into a 2D R-tree.
func NewRTree(pts []model.Point) *RTree {
	t := &RTree{
		tree: rtreego.NewTree(2, rtreeMinChildren, rtreeMaxChildren),
		pts:  make([]model.Point, len(pts)),
	}
	copy(t.pts, pts)
	for _, p := range t.pts {
		rect, _ := rtreego.NewRect(rtreego.Point{p.X, p.Y}, []float64{pointExtent, pointExtent})
		t.tree.Insert(&rtreeItem{p: p, rect: rect})
	}
	return t
}

func (t *RTree) Len() int { return len(t.pts) }

func (t *RTree) KNearest(q model.Point, k int) []float64 {
	if k <= 0 || len(t.pts) == 0 {
		return nil
	}
	if k > len(t.pts) {
		k = len(t.pts)
	}

	// The k tree candidates bound the true k-th distance from above.
	var bound float64
	var found int
	for _, s := range t.tree.NearestNeighbors(k, rtreego.Point{q.X, q.Y}) {
		it, ok := s.(*rtreeItem)
		if !ok || it == nil {
			continue
		}
		found++
		if d := Distance(q, it.p); d > bound {
			bound = d
		}
	}
	if found < k {
		return NewBruteForce(t.pts).KNearest(q, k)
	}

	dists := t.within(q, bound)
	if len(dists) < k {
		return NewBruteForce(t.pts).KNearest(q, k)
	}
	return slices.Clip(dists[:k])
}

func (t *RTree) CountWithin(q model.Point, r float64) int {
	if len(t.pts) == 0 {
		return 0
	}
	return len(t.within(q, r))
}

// within returns the sorted exact distances of all points no farther than r.
func (t *RTree) within(q model.Point, r float64) []float64 {
	half := r*(1+radiusSlack) + searchPad
	box, err := rtreego.NewRect(rtreego.Point{q.X - half, q.Y - half}, []float64{2 * half, 2 * half})
	if err != nil {
		return nil
	}
	var out []float64
	for _, s := range t.tree.SearchIntersect(box) {
		it, ok := s.(*rtreeItem)
		if !ok {
			continue
		}
		if d := Distance(q, it.p); d <= r {
			out = append(out, d)
		}
	}
	slices.Sort(out)
	return out
}
