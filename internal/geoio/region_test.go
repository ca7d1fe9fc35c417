package geoio

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/spatial-features/internal/model"
)

const squareJSON = `{"type":"Polygon","coordinates":[[[0,0],[2,0],[2,2],[0,2],[0,0]]]}`

func TestReadRegionGeoJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		polys int
	}{
		{"bare polygon", squareJSON, 1},
		{"feature", `{"type":"Feature","properties":{},"geometry":` + squareJSON + `}`, 1},
		{
			"collection with multipolygon and point",
			`{"type":"FeatureCollection","features":[
				{"type":"Feature","properties":{},"geometry":` + squareJSON + `},
				{"type":"Feature","properties":{},"geometry":{"type":"MultiPolygon","coordinates":[
					[[[5,5],[6,5],[6,6],[5,6],[5,5]]],
					[[[8,8],[9,8],[9,9],[8,9],[8,8]]]
				]}},
				{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[1,1]}}
			]}`,
			3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			region, err := ReadRegionGeoJSON(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Len(t, region, tt.polys)
			assert.Equal(t, orb.Point{0, 0}, region.Bound().Min)
		})
	}
}

func TestReadRegionGeoJSON_NoPolygons(t *testing.T) {
	_, err := ReadRegionGeoJSON(strings.NewReader(`{"type":"Point","coordinates":[1,1]}`))
	assert.ErrorIs(t, err, model.ErrEmptyRegion)

	_, err = ReadRegionGeoJSON(strings.NewReader(`not json`))
	assert.Error(t, err)
}

func TestLoadRegion_ByExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "region.geojson")
	require.NoError(t, os.WriteFile(path, []byte(squareJSON), 0o600))

	region, err := LoadRegion(path, ShapefileOptions{})
	require.NoError(t, err)
	require.Len(t, region, 1)
	assert.Equal(t, orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{2, 2}}, region.Bound())
}
