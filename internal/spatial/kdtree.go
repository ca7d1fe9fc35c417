package spatial

import (
	"slices"

	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/sells-group/spatial-features/internal/model"
)

// radiusSlack widens squared-radius searches so candidates rounding across
// the boundary are still checked against the exact distance.
const radiusSlack = 1e-9

// KDTree wraps a gonum k-d tree. Tree distances are squared Euclidean, so
// hits are re-measured with Distance before they are returned.
type KDTree struct {
	tree *kdtree.Tree
	n    int
}

// NewKDTree builds a balanced k-d tree over a copy of pts.
func NewKDTree(pts []model.Point) *KDTree {
	if len(pts) == 0 {
		return &KDTree{}
	}
	data := make(kdtree.Points, len(pts))
	for i, p := range pts {
		data[i] = kdtree.Point{p.X, p.Y}
	}
	return &KDTree{tree: kdtree.New(data, false), n: len(pts)}
}

func (t *KDTree) Len() int { return t.n }

func (t *KDTree) KNearest(q model.Point, k int) []float64 {
	if k <= 0 || t.n == 0 {
		return nil
	}
	if k > t.n {
		k = t.n
	}
	keep := kdtree.NewNKeeper(k)
	t.tree.NearestSet(keep, kdtree.Point{q.X, q.Y})
	return t.distances(q, keep.Heap)
}

func (t *KDTree) CountWithin(q model.Point, r float64) int {
	if t.n == 0 {
		return 0
	}
	keep := kdtree.NewDistKeeper(r * r * (1 + radiusSlack))
	t.tree.NearestSet(keep, kdtree.Point{q.X, q.Y})
	var n int
	for _, d := range t.distances(q, keep.Heap) {
		if d <= r {
			n++
		}
	}
	return n
}

// distances converts kept tree hits to exact distances in ascending order,
// skipping the keeper's sentinel entry.
func (t *KDTree) distances(q model.Point, heap kdtree.Heap) []float64 {
	out := make([]float64, 0, len(heap))
	for _, c := range heap {
		p, ok := c.Comparable.(kdtree.Point)
		if !ok {
			continue
		}
		out = append(out, Distance(q, model.Point{X: p[0], Y: p[1]}))
	}
	slices.Sort(out)
	return out
}
