package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointSet_Validate(t *testing.T) {
	tests := []struct {
		name    string
		set     PointSet
		wantErr error
	}{
		{name: "projected", set: PointSet{CRS: "EPSG:2272", Points: []Point{{1, 2}}}},
		{name: "unspecified crs", set: PointSet{Points: []Point{{1, 2}}}},
		{name: "empty", set: PointSet{CRS: "EPSG:2272"}},
		{name: "geographic", set: PointSet{CRS: "epsg:4326", Points: []Point{{1, 2}}}, wantErr: ErrGeographicCRS},
		{name: "nan", set: PointSet{Points: []Point{{math.NaN(), 2}}}, wantErr: ErrInvalidCoordinate},
		{name: "inf", set: PointSet{Points: []Point{{1, math.Inf(-1)}}}, wantErr: ErrInvalidCoordinate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.set.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPointSet_Validate_IDMismatch(t *testing.T) {
	set := PointSet{Points: []Point{{0, 0}, {1, 1}}, IDs: []string{"a"}}
	err := set.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 ids for 2 points")
}

func TestPointSet_ID(t *testing.T) {
	set := PointSet{Points: []Point{{0, 0}, {1, 1}}, IDs: []string{"a", ""}}
	assert.Equal(t, "a", set.ID(0))
	assert.Equal(t, "2", set.ID(1))

	bare := NewPointSet("", []Point{{0, 0}})
	assert.Equal(t, "1", bare.ID(0))
}

func TestPointSet_Bound(t *testing.T) {
	set := NewPointSet("", []Point{{1, 5}, {-2, 3}, {4, -1}})
	b := set.Bound()
	assert.Equal(t, -2.0, b.Min[0])
	assert.Equal(t, -1.0, b.Min[1])
	assert.Equal(t, 4.0, b.Max[0])
	assert.Equal(t, 5.0, b.Max[1])
}

func TestCheckCRS(t *testing.T) {
	a := PointSet{CRS: "EPSG:2272"}
	assert.NoError(t, CheckCRS(a, PointSet{CRS: " epsg:2272 "}))
	assert.NoError(t, CheckCRS(a, PointSet{}))
	assert.ErrorIs(t, CheckCRS(a, PointSet{CRS: "EPSG:3857"}), ErrCRSMismatch)
}

func TestSRID(t *testing.T) {
	assert.Equal(t, 2272, SRID("EPSG:2272"))
	assert.Equal(t, 3857, SRID("epsg:3857"))
	assert.Equal(t, 0, SRID("ESRI:102003"))
	assert.Equal(t, 0, SRID(""))
}
