package spatial

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/spatial-features/internal/model"
)

var allBackends = []Backend{BackendBrute, BackendKDTree, BackendRTree}

func randomPoints(seed uint64, n int, span float64) []model.Point {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	pts := make([]model.Point, n)
	for i := range pts {
		pts[i] = model.Point{X: r.Float64() * span, Y: r.Float64() * span}
	}
	return pts
}

func TestParseBackend(t *testing.T) {
	b, err := ParseBackend("")
	require.NoError(t, err)
	assert.Equal(t, BackendKDTree, b)

	b, err = ParseBackend(" RTree ")
	require.NoError(t, err)
	assert.Equal(t, BackendRTree, b)

	_, err = ParseBackend("quadtree")
	assert.Error(t, err)
}

func TestDistance(t *testing.T) {
	assert.Equal(t, 5.0, Distance(model.Point{X: 0, Y: 0}, model.Point{X: 3, Y: 4}))
	assert.Equal(t, 0.0, Distance(model.Point{X: 7, Y: 7}, model.Point{X: 7, Y: 7}))
}

func TestKNearest_Scenario(t *testing.T) {
	refs := []model.Point{{X: 1, Y: 0}, {X: 10, Y: 0}, {X: 2, Y: 0}}
	for _, b := range allBackends {
		t.Run(string(b), func(t *testing.T) {
			idx, err := New(b, refs)
			require.NoError(t, err)
			assert.Equal(t, 3, idx.Len())
			assert.Equal(t, []float64{1, 2}, idx.KNearest(model.Point{}, 2))
			assert.Equal(t, []float64{1, 2, 10}, idx.KNearest(model.Point{}, 3))
			assert.Equal(t, []float64{1, 2, 10}, idx.KNearest(model.Point{}, 7), "capped at index size")
			assert.Nil(t, idx.KNearest(model.Point{}, 0))
		})
	}
}

func TestKNearest_CoincidentAndDuplicates(t *testing.T) {
	refs := []model.Point{{X: 0, Y: 0}, {X: 0, Y: 0}, {X: 3, Y: 4}}
	for _, b := range allBackends {
		t.Run(string(b), func(t *testing.T) {
			idx, err := New(b, refs)
			require.NoError(t, err)
			assert.Equal(t, []float64{0, 0}, idx.KNearest(model.Point{}, 2))
			assert.Equal(t, []float64{0, 0, 5}, idx.KNearest(model.Point{}, 3))
		})
	}
}

func TestCountWithin_ClosedBoundary(t *testing.T) {
	refs := []model.Point{{X: 3, Y: 4}, {X: 0, Y: 5}, {X: 6, Y: 0}, {X: 1, Y: 1}}
	for _, b := range allBackends {
		t.Run(string(b), func(t *testing.T) {
			idx, err := New(b, refs)
			require.NoError(t, err)
			assert.Equal(t, 3, idx.CountWithin(model.Point{}, 5), "points exactly at r are included")
			assert.Equal(t, 1, idx.CountWithin(model.Point{}, 4.99))
			assert.Equal(t, 4, idx.CountWithin(model.Point{}, 6))
		})
	}
}

func TestEmptyIndex(t *testing.T) {
	for _, b := range allBackends {
		t.Run(string(b), func(t *testing.T) {
			idx, err := New(b, nil)
			require.NoError(t, err)
			assert.Equal(t, 0, idx.Len())
			assert.Empty(t, idx.KNearest(model.Point{}, 3))
			assert.Equal(t, 0, idx.CountWithin(model.Point{}, 100))
		})
	}
}

func TestBackendsAgree(t *testing.T) {
	refs := randomPoints(7, 500, 10_000)
	queries := randomPoints(11, 60, 10_000)

	brute := NewBruteForce(refs)
	others := []Index{NewKDTree(refs), NewRTree(refs)}

	for _, q := range queries {
		for _, k := range []int{1, 3, 8} {
			want := brute.KNearest(q, k)
			for _, idx := range others {
				got := idx.KNearest(q, k)
				require.Len(t, got, k)
				for i := range want {
					assert.Equal(t, math.Float64bits(want[i]), math.Float64bits(got[i]))
				}
			}
		}
		for _, r := range []float64{250, 1000} {
			want := brute.CountWithin(q, r)
			for _, idx := range others {
				assert.Equal(t, want, idx.CountWithin(q, r))
			}
		}
	}
}

func TestGridTies(t *testing.T) {
	// Many reference points equidistant from the query.
	var refs []model.Point
	for x := -3; x <= 3; x++ {
		for y := -3; y <= 3; y++ {
			refs = append(refs, model.Point{X: float64(x), Y: float64(y)})
		}
	}
	q := model.Point{X: 0.5, Y: 0.5}
	want := NewBruteForce(refs).KNearest(q, 6)
	assert.Equal(t, want, NewKDTree(refs).KNearest(q, 6))
	assert.Equal(t, want, NewRTree(refs).KNearest(q, 6))
}
