package geoio

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/spatial-features/internal/diagnostics"
	"github.com/sells-group/spatial-features/internal/model"
)

type fc struct {
	Type     string `json:"type"`
	Features []struct {
		ID       string         `json:"id"`
		Geometry map[string]any `json:"geometry"`
		Props    map[string]any `json:"properties"`
	} `json:"features"`
}

func sampleTable(t *testing.T) *model.FeatureTable {
	t.Helper()
	tbl := model.NewFeatureTable(model.PointSet{
		CRS:    "EPSG:2272",
		Points: []model.Point{{X: 10, Y: 20}, {X: 30, Y: 40}},
		IDs:    []string{"p1", "p2"},
	})
	require.NoError(t, tbl.Add(model.FeatureColumn{Name: "nn1", Values: []float64{1.25, 2}}))
	return tbl
}

func TestWriteFeaturesGeoJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFeaturesGeoJSON(&buf, sampleTable(t)))

	var got fc
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "FeatureCollection", got.Type)
	require.Len(t, got.Features, 2)
	assert.Equal(t, "p1", got.Features[0].ID)
	assert.Equal(t, "Point", got.Features[0].Geometry["type"])
	assert.Equal(t, []any{10.0, 20.0}, got.Features[0].Geometry["coordinates"])
	assert.Equal(t, 1.25, got.Features[0].Props["nn1"])
}

func TestWriteFishnetGeoJSON(t *testing.T) {
	net := model.NewFishnet("", model.Point{}, 1, 1, 1, []model.Cell{
		{ID: 1, Bound: orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}}},
	})

	var buf bytes.Buffer
	require.NoError(t, WriteFishnetGeoJSON(&buf, net, []model.FeatureColumn{{Name: "count", Values: []float64{4}}}))

	var got fc
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got.Features, 1)
	assert.Equal(t, "1", got.Features[0].ID)
	assert.Equal(t, "Polygon", got.Features[0].Geometry["type"])
	assert.Equal(t, 4.0, got.Features[0].Props["count"])
	assert.Equal(t, 1.0, got.Features[0].Props["cell_id"])

	err := WriteFishnetGeoJSON(&buf, net, []model.FeatureColumn{{Name: "bad"}})
	assert.Error(t, err)
}

func TestWriteFeaturesXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "features.xlsx")
	sums := []diagnostics.Summary{{Name: "nn1", Count: 2, Mean: 1.625}}
	require.NoError(t, WriteFeaturesXLSX(path, sampleTable(t), XLSXOptions{Summaries: sums}))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 2)

	sheet := f.Sheet["features"]
	require.NotNil(t, sheet)
	require.Len(t, sheet.Rows, 3)
	assert.Equal(t, "nn1", sheet.Rows[0].Cells[3].String())
	assert.Equal(t, "p2", sheet.Rows[2].Cells[0].String())
	v, err := sheet.Rows[1].Cells[3].Float()
	require.NoError(t, err)
	assert.Equal(t, 1.25, v)

	sum := f.Sheet["summary"]
	require.NotNil(t, sum)
	assert.Equal(t, "nn1", sum.Rows[1].Cells[0].String())
}

func TestEncodePoint(t *testing.T) {
	data, err := EncodePoint(model.Point{X: 2690000, Y: 235000}, 2272)
	require.NoError(t, err)

	g, err := ewkb.Unmarshal(data)
	require.NoError(t, err)
	pt, ok := g.(*geom.Point)
	require.True(t, ok)
	assert.Equal(t, 2272, pt.SRID())
	assert.Equal(t, []float64{2690000, 235000}, pt.FlatCoords())
}

func TestEncodeCell(t *testing.T) {
	data, err := EncodeCell(model.Cell{ID: 1, Bound: orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{2, 2}}}, 0)
	require.NoError(t, err)

	g, err := ewkb.Unmarshal(data)
	require.NoError(t, err)
	poly, ok := g.(*geom.Polygon)
	require.True(t, ok)
	assert.Equal(t, 1, poly.NumLinearRings())
	assert.Equal(t, 5, poly.NumCoords())
}
