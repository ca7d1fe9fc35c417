package geoio

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/spatial-features/internal/model"
)

func writePoints(t *testing.T, path string, pts []shp.Point, names []string) {
	t.Helper()
	w, err := shp.Create(path, shp.POINT)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{shp.StringField("NAME", 20)}))
	for i := range pts {
		row := int(w.Write(&pts[i]))
		require.NoError(t, w.WriteAttribute(row, 0, names[i]))
	}
	require.NoError(t, closeShapefile(w, path))
}

func writePolygons(t *testing.T, path string, records [][][]shp.Point) {
	t.Helper()
	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{shp.NumberField("ZONE", 5)}))
	for i, parts := range records {
		poly := shp.Polygon(*shp.NewPolyLine(parts))
		row := int(w.Write(&poly))
		require.NoError(t, w.WriteAttribute(row, 0, i+10))
	}
	require.NoError(t, closeShapefile(w, path))
}

func TestLoadPointsShapefile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crimes.shp")
	writePoints(t, path, []shp.Point{{X: 1, Y: 2}, {X: 3, Y: 4}}, []string{"burglary", "theft"})

	ps, err := LoadPointsShapefile(path, ShapefileOptions{CRS: "EPSG:2272", IDField: "name"})
	require.NoError(t, err)
	assert.Equal(t, "EPSG:2272", ps.CRS)
	assert.Equal(t, []model.Point{{X: 1, Y: 2}, {X: 3, Y: 4}}, ps.Points)
	assert.Equal(t, []string{"burglary", "theft"}, ps.IDs)

	numbered, err := LoadPointsShapefile(path, ShapefileOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, numbered.IDs)
}

func TestLoadPointsShapefile_Encoding(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cafes.shp")
	writePoints(t, path, []shp.Point{{X: 0, Y: 0}}, []string{"caf\xe9"})

	ps, err := LoadPointsShapefile(path, ShapefileOptions{IDField: "NAME", Encoding: "windows-1252"})
	require.NoError(t, err)
	assert.Equal(t, []string{"café"}, ps.IDs)

	_, err = LoadPointsShapefile(path, ShapefileOptions{Encoding: "no-such-charset"})
	assert.Error(t, err)
}

func TestLoadPointsShapefile_Errors(t *testing.T) {
	_, err := LoadPointsShapefile(filepath.Join(t.TempDir(), "missing.shp"), ShapefileOptions{})
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "pts.shp")
	writePoints(t, path, []shp.Point{{X: 0, Y: 0}}, []string{"a"})
	_, err = LoadPointsShapefile(path, ShapefileOptions{IDField: "parcel"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "parcel"))
}

func TestLoadZonesShapefile_Holes(t *testing.T) {
	outer := []shp.Point{{X: 0, Y: 0}, {X: 0, Y: 10}, {X: 10, Y: 10}, {X: 10, Y: 0}, {X: 0, Y: 0}}
	hole := []shp.Point{{X: 2, Y: 2}, {X: 4, Y: 2}, {X: 4, Y: 4}, {X: 2, Y: 4}, {X: 2, Y: 2}}
	island := []shp.Point{{X: 20, Y: 0}, {X: 20, Y: 1}, {X: 21, Y: 1}, {X: 21, Y: 0}, {X: 20, Y: 0}}

	path := filepath.Join(t.TempDir(), "zones.shp")
	writePolygons(t, path, [][][]shp.Point{{outer, hole}, {island}})

	zones, err := LoadZonesShapefile(path, ShapefileOptions{IDField: "zone"})
	require.NoError(t, err)
	require.Len(t, zones, 2)

	assert.Equal(t, "10", zones[0].ID)
	require.Len(t, zones[0].Geometry, 1)
	assert.Len(t, zones[0].Geometry[0], 2, "outer ring plus hole")
	assert.Equal(t, orb.Point{2, 2}, zones[0].Geometry[0][1][0])
	assert.Equal(t, "11", zones[1].ID)

	region, err := LoadRegionShapefile(path, ShapefileOptions{})
	require.NoError(t, err)
	assert.Len(t, region, 2)
}

func TestAssemble_SameOrientationAllOuters(t *testing.T) {
	a := orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}
	b := orb.Ring{{5, 5}, {6, 5}, {6, 6}, {5, 6}, {5, 5}}
	mp := assemble([]orb.Ring{a, b})
	assert.Len(t, mp, 2)
}

func TestWriteFishnetShapefile(t *testing.T) {
	net := model.NewFishnet("", model.Point{}, 1, 1, 2, []model.Cell{
		{ID: 1, Row: 0, Col: 0, Bound: orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}}},
		{ID: 2, Row: 0, Col: 1, Bound: orb.Bound{Min: orb.Point{1, 0}, Max: orb.Point{2, 1}}},
	})
	path := filepath.Join(t.TempDir(), "grid.shp")
	require.NoError(t, WriteFishnetShapefile(path, net, []model.FeatureColumn{
		{Name: "crime_count", Values: []float64{3, 0}},
	}))

	zones, err := LoadZonesShapefile(path, ShapefileOptions{IDField: "CELL_ID"})
	require.NoError(t, err)
	require.Len(t, zones, 2)
	assert.Equal(t, "1", zones[0].ID)
	assert.Equal(t, orb.Bound{Min: orb.Point{1, 0}, Max: orb.Point{2, 1}}, zones[1].Geometry.Bound())

	err = WriteFishnetShapefile(path, net, []model.FeatureColumn{{Name: "short", Values: []float64{1}}})
	assert.Error(t, err)
}

func TestWriteFishnetShapefile_AttributeTable(t *testing.T) {
	net := model.NewFishnet("", model.Point{}, 1, 1, 2, []model.Cell{
		{ID: 1, Row: 0, Col: 0, Bound: orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}}},
		{ID: 2, Row: 0, Col: 1, Bound: orb.Bound{Min: orb.Point{1, 0}, Max: orb.Point{2, 1}}},
	})
	dir := t.TempDir()
	path := filepath.Join(dir, "grid.shp")
	require.NoError(t, WriteFishnetShapefile(path, net, []model.FeatureColumn{
		{Name: "robbery_nn1", Values: []float64{1.5, 2}},
		{Name: "robbery_nn2", Values: []float64{2.5, 3}},
	}))

	assert.FileExists(t, filepath.Join(dir, "grid.dbf"))
	assert.NoFileExists(t, filepath.Join(dir, "griddbf"))

	r, err := shp.Open(path)
	require.NoError(t, err)
	defer r.Close() //nolint:errcheck

	var names []string
	for _, f := range r.Fields() {
		names = append(names, f.String())
	}
	assert.Equal(t, []string{"CELL_ID", "ROW", "COL", "robbery_n1", "robbery_n2"}, names)

	var ids []string
	for r.Next() {
		n, _ := r.Shape()
		ids = append(ids, r.ReadAttribute(n, 0))
	}
	require.NoError(t, r.Err())
	assert.Equal(t, []string{"1", "2"}, ids)
}

func TestDBFFieldNames(t *testing.T) {
	tests := []struct {
		name  string
		names []string
		want  []string
	}{
		{name: "short names kept", names: []string{"count", "nn1"}, want: []string{"count", "nn1"}},
		{name: "unique truncation", names: []string{"crime_count"}, want: []string{"crime_coun"}},
		{name: "truncation collision", names: []string{"robbery_nn1", "robbery_nn2"}, want: []string{"robbery_n1", "robbery_n2"}},
		{name: "reserved", names: []string{"row"}, want: []string{"row1"}},
		{name: "suffix already taken", names: []string{"robbery_n1", "robbery_nn1", "robbery_nn2"}, want: []string{"robbery_n1", "robbery_n2", "robbery_n3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, dbfFieldNames(tt.names, "CELL_ID", "ROW", "COL"))
		})
	}
}
