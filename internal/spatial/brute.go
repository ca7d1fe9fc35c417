package spatial

import (
	"slices"

	"github.com/sells-group/spatial-features/internal/model"
)

// BruteForce scans every reference point per query. O(m log m) per query.
type BruteForce struct {
	pts []model.Point
}

// NewBruteForce copies pts into a linear-scan index.
func NewBruteForce(pts []model.Point) *BruteForce {
	cp := make([]model.Point, len(pts))
	copy(cp, pts)
	return &BruteForce{pts: cp}
}

func (b *BruteForce) Len() int { return len(b.pts) }

func (b *BruteForce) KNearest(q model.Point, k int) []float64 {
	if k <= 0 || len(b.pts) == 0 {
		return nil
	}
	dists := make([]float64, len(b.pts))
	for i, p := range b.pts {
		dists[i] = Distance(q, p)
	}
	slices.Sort(dists)
	if k > len(dists) {
		k = len(dists)
	}
	return slices.Clip(dists[:k])
}

func (b *BruteForce) CountWithin(q model.Point, r float64) int {
	var n int
	for _, p := range b.pts {
		if Distance(q, p) <= r {
			n++
		}
	}
	return n
}
