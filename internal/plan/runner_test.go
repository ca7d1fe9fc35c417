package plan

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/spatial-features/internal/feature"
	"github.com/sells-group/spatial-features/internal/model"
	"github.com/sells-group/spatial-features/internal/spatial"
)

type memLoader struct {
	layers map[string][]model.Point
	region orb.MultiPolygon
	fail   string
}

func (m memLoader) Points(_ context.Context, name string, layer Layer) (model.PointSet, error) {
	if name == m.fail {
		return model.PointSet{}, errors.New("disk on fire")
	}
	return model.NewPointSet(layer.CRS, m.layers[name]), nil
}

func (m memLoader) Region(context.Context, string) (orb.MultiPolygon, error) {
	return m.region, nil
}

func sampleLoader() memLoader {
	return memLoader{
		layers: map[string][]model.Point{
			"homes":  {{X: 0, Y: 0}, {X: 5, Y: 0}},
			"crimes": {{X: 1, Y: 0}, {X: 2, Y: 0}, {X: 10, Y: 0}},
			"refs":   {{X: 0.5, Y: 0.5}, {X: 0.5, Y: 1.5}, {X: 1.5, Y: 0.5}},
		},
		region: orb.MultiPolygon{{{{0, 0}, {2, 0}, {2, 2}, {0, 2}, {0, 0}}}},
	}
}

func pointPlan() *Plan {
	return &Plan{
		CRS:    "EPSG:2272",
		Target: Target{Layer: "homes"},
		Layers: map[string]Layer{
			"homes":  {Path: "homes.csv"},
			"crimes": {Path: "crimes.csv"},
		},
		Features: []Feature{
			{Name: "crime_nn", Kind: KindNN, Layer: "crimes", K: []int{1, 2}},
			{Name: "crime_buf2", Kind: KindBuffer, Layer: "crimes", Radius: 2},
		},
	}
}

func TestRun_PointTarget(t *testing.T) {
	r := &Runner{Loader: sampleLoader(), Concurrency: 4}
	res, err := r.Run(context.Background(), pointPlan())
	require.NoError(t, err)
	assert.Nil(t, res.Fishnet)

	tbl := res.Table
	assert.Equal(t, "EPSG:2272", tbl.CRS)
	assert.Equal(t, []string{"crime_nn1", "crime_nn2", "crime_buf2"}, tbl.Header())
	assert.Equal(t, []float64{1, 3}, tbl.Columns[0].Values)
	assert.Equal(t, []float64{1.5, 3.5}, tbl.Columns[1].Values)
	assert.Equal(t, []float64{2, 0}, tbl.Columns[2].Values)
}

func TestRun_Deterministic(t *testing.T) {
	var first *model.FeatureTable
	for _, b := range []spatial.Backend{spatial.BackendBrute, spatial.BackendKDTree, spatial.BackendRTree} {
		r := &Runner{Loader: sampleLoader(), Concurrency: 3, Options: []feature.Option{feature.WithBackend(b)}}
		res, err := r.Run(context.Background(), pointPlan())
		require.NoError(t, err)
		if first == nil {
			first = res.Table
			continue
		}
		assert.Equal(t, first, res.Table, "backend %s", b)
	}
}

func TestRun_FishnetTarget(t *testing.T) {
	p := &Plan{
		Target: Target{Fishnet: &FishnetSpec{Region: "region.shp", CellSize: 1}},
		Layers: map[string]Layer{"refs": {Path: "refs.csv"}},
		Features: []Feature{
			{Name: "n", Kind: KindCount, Layer: "refs"},
			{Name: "d", Kind: KindNN, Layer: "refs", K: []int{1}},
		},
	}
	r := &Runner{Loader: sampleLoader(), Concurrency: 2}
	res, err := r.Run(context.Background(), p)
	require.NoError(t, err)
	require.NotNil(t, res.Fishnet)

	assert.Equal(t, []string{"1", "2", "3", "4"}, res.Table.IDs)
	assert.Equal(t, []float64{1, 1, 1, 0}, res.Table.Columns[0].Values)
	assert.Equal(t, []float64{0, 0, 0}, res.Table.Columns[1].Values[:3])
}

func TestRun_MaxCells(t *testing.T) {
	p := &Plan{
		Target:   Target{Fishnet: &FishnetSpec{Region: "region.shp", CellSize: 0.01}},
		Layers:   map[string]Layer{"refs": {Path: "refs.csv"}},
		Features: []Feature{{Kind: KindCount, Layer: "refs"}},
	}
	r := &Runner{Loader: sampleLoader(), MaxCells: 100}
	_, err := r.Run(context.Background(), p)
	assert.ErrorIs(t, err, model.ErrGridTooLarge)
}

func TestRun_FeatureError(t *testing.T) {
	p := pointPlan()
	p.Features[0].K = []int{5}

	r := &Runner{Loader: sampleLoader(), Concurrency: 2}
	res, err := r.Run(context.Background(), p)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, model.ErrInsufficientReference)
}

func TestRun_AvailablePolicy(t *testing.T) {
	p := pointPlan()
	p.Features = p.Features[:1]
	p.Features[0].K = []int{5}

	r := &Runner{Loader: sampleLoader(), Options: []feature.Option{feature.WithKPolicy(feature.KPolicyAvailable)}}
	res, err := r.Run(context.Background(), p)
	require.NoError(t, err)
	assert.InDelta(t, 13.0/3.0, res.Table.Columns[0].Values[0], 1e-12)
}

func TestRun_LoaderError(t *testing.T) {
	l := sampleLoader()
	l.fail = "crimes"
	r := &Runner{Loader: l}
	_, err := r.Run(context.Background(), pointPlan())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load layer crimes")
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := &Runner{Loader: FileLoader{}}
	_, err := r.Run(ctx, pointPlan())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFileLoader(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, writeFile(filepath.Join(dir, "homes.csv"), "parcel,lon,lat\nA,1,2\n"))

	l := FileLoader{BaseDir: dir}
	ps, err := l.Points(context.Background(), "homes", Layer{Path: "homes.csv", XColumn: "lon", YColumn: "lat", IDColumn: "parcel", CRS: "EPSG:2272"})
	require.NoError(t, err)
	assert.Equal(t, []model.Point{{X: 1, Y: 2}}, ps.Points)
	assert.Equal(t, []string{"A"}, ps.IDs)
	assert.Equal(t, "EPSG:2272", ps.CRS)

	_, err = l.Points(context.Background(), "homes", Layer{Path: "homes.gpkg"})
	assert.Error(t, err)
}
