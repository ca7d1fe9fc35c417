package feature

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sells-group/spatial-features/internal/model"
	"github.com/sells-group/spatial-features/internal/spatial"
)

var backends = []spatial.Backend{spatial.BackendBrute, spatial.BackendKDTree, spatial.BackendRTree}

func pts(coords ...float64) model.PointSet {
	var ps []model.Point
	for i := 0; i+1 < len(coords); i += 2 {
		ps = append(ps, model.Point{X: coords[i], Y: coords[i+1]})
	}
	return model.NewPointSet("EPSG:2272", ps)
}

func randomSet(seed uint64, n int) model.PointSet {
	r := rand.New(rand.NewPCG(seed, 42))
	ps := make([]model.Point, n)
	for i := range ps {
		ps[i] = model.Point{X: r.Float64() * 5280, Y: r.Float64() * 5280}
	}
	return model.NewPointSet("EPSG:2272", ps)
}

func TestNearestNeighborDistance_Scenario(t *testing.T) {
	targets := pts(0, 0)
	refs := pts(1, 0, 2, 0, 10, 0)
	for _, b := range backends {
		t.Run(string(b), func(t *testing.T) {
			got, err := NearestNeighborDistance(targets, refs, 2, WithBackend(b))
			require.NoError(t, err)
			assert.Equal(t, []float64{1.5}, got)
		})
	}
}

func TestNearestNeighborDistance_KOneIsClosest(t *testing.T) {
	targets := randomSet(1, 40)
	refs := randomSet(2, 300)

	got, err := NearestNeighborDistance(targets, refs, 1)
	require.NoError(t, err)

	for i, q := range targets.Points {
		closest := math.Inf(1)
		for _, r := range refs.Points {
			closest = min(closest, spatial.Distance(q, r))
		}
		assert.Equal(t, closest, got[i])
	}
}

func TestNearestNeighborSweep_Monotonic(t *testing.T) {
	targets := randomSet(3, 50)
	refs := randomSet(4, 200)
	ks := []int{1, 2, 3, 4, 5}

	cols, err := NearestNeighborSweep(targets, refs, ks)
	require.NoError(t, err)
	require.Len(t, cols, len(ks))

	for i := range targets.Points {
		for j := 1; j < len(ks); j++ {
			assert.GreaterOrEqual(t, cols[j][i], cols[j-1][i])
		}
	}

	// A sweep column equals the single-k computation.
	single, err := NearestNeighborDistance(targets, refs, 3)
	require.NoError(t, err)
	assert.Equal(t, single, cols[2])
}

func TestNearestNeighborDistance_Deterministic(t *testing.T) {
	targets := randomSet(5, 80)
	refs := randomSet(6, 400)

	base, err := NearestNeighborDistance(targets, refs, 4, WithBackend(spatial.BackendBrute))
	require.NoError(t, err)

	for _, b := range backends {
		for range 2 {
			got, err := NearestNeighborDistance(targets, refs, 4, WithBackend(b))
			require.NoError(t, err)
			for i := range base {
				assert.Equal(t, math.Float64bits(base[i]), math.Float64bits(got[i]), "backend %s row %d", b, i)
			}
		}
	}
}

func TestNearestNeighborDistance_KExceedsReferences(t *testing.T) {
	targets := pts(0, 0)
	refs := pts(3, 4, 6, 8)

	_, err := NearestNeighborDistance(targets, refs, 5)
	assert.ErrorIs(t, err, model.ErrInsufficientReference)

	_, err = NearestNeighborDistance(targets, refs, 5, WithKPolicy(KPolicyStrict))
	assert.ErrorIs(t, err, model.ErrInsufficientReference)

	got, err := NearestNeighborDistance(targets, refs, 5, WithKPolicy(KPolicyAvailable))
	require.NoError(t, err)
	assert.Equal(t, []float64{7.5}, got)
}

func TestNearestNeighborSweep_AvailablePolicyWarnsOnce(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	undo := zap.ReplaceGlobals(zap.New(core))
	defer undo()

	targets := pts(0, 0)
	refs := pts(3, 4, 6, 8)

	cols, err := NearestNeighborSweep(targets, refs, []int{1, 3, 5}, WithKPolicy(KPolicyAvailable))
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{5}, {7.5}, {7.5}}, cols)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, []any{3, 5}, entries[0].ContextMap()["k"])
	assert.Equal(t, int64(2), entries[0].ContextMap()["references"])
}

func TestNearestNeighborDistance_InvalidInput(t *testing.T) {
	refs := pts(1, 1)

	tests := []struct {
		name    string
		targets model.PointSet
		refs    model.PointSet
		k       int
		wantErr error
	}{
		{"empty references", pts(0, 0), pts(), 1, model.ErrInsufficientReference},
		{"empty targets", pts(), refs, 1, model.ErrEmptyPointSet},
		{"zero k", pts(0, 0), refs, 0, model.ErrInvalidK},
		{"negative k", pts(0, 0), refs, -2, model.ErrInvalidK},
		{"crs mismatch", model.PointSet{CRS: "EPSG:3857", Points: []model.Point{{X: 0, Y: 0}}}, refs, 1, model.ErrCRSMismatch},
		{"geographic", model.PointSet{CRS: "EPSG:4326", Points: []model.Point{{X: 0, Y: 0}}}, refs, 1, model.ErrGeographicCRS},
		{"nan target", pts(math.NaN(), 0), refs, 1, model.ErrInvalidCoordinate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NearestNeighborDistance(tt.targets, tt.refs, tt.k)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNearestNeighborDistance_CoincidentPoints(t *testing.T) {
	got, err := NearestNeighborDistance(pts(2, 2), pts(2, 2, 2, 2, 5, 6), 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{0}, got)
}

func TestBufferCount(t *testing.T) {
	targets := pts(0, 0, 100, 100)
	refs := pts(3, 4, 0, 5, 6, 0, 100, 101)
	for _, b := range backends {
		t.Run(string(b), func(t *testing.T) {
			got, err := BufferCount(targets, refs, 5, WithBackend(b))
			require.NoError(t, err)
			assert.Equal(t, []int{2, 1}, got)
		})
	}
}

func TestBufferCount_EmptyReferences(t *testing.T) {
	got, err := BufferCount(pts(0, 0, 1, 1), pts(), 10)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0}, got)
}

func TestBufferCount_InvalidRadius(t *testing.T) {
	for _, r := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, err := BufferCount(pts(0, 0), pts(1, 1), r)
		assert.ErrorIs(t, err, model.ErrInvalidRadius)
	}
}

func TestGenerator_RejectsBadOptions(t *testing.T) {
	_, err := NewGenerator(pts(1, 1), WithBackend("octree"))
	assert.Error(t, err)

	_, err = NewGenerator(pts(1, 1), WithKPolicy("clamp"))
	assert.Error(t, err)
}

func TestCounts(t *testing.T) {
	col := Counts("crime_buf", []int{0, 3})
	assert.Equal(t, "crime_buf", col.Name)
	assert.Equal(t, []float64{0, 3}, col.Values)
}

func TestParseKPolicy(t *testing.T) {
	p, err := ParseKPolicy("")
	require.NoError(t, err)
	assert.Equal(t, KPolicyStrict, p)

	p, err = ParseKPolicy("Available")
	require.NoError(t, err)
	assert.Equal(t, KPolicyAvailable, p)
}
