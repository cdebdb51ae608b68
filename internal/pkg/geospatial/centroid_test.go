package geospatial_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/hazardmap/internal/pkg/geospatial"
)

func TestCentroid_Square(t *testing.T) {
	got, err := geospatial.Centroid([]geospatial.Point{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 2}, {Lat: 2, Lon: 2}, {Lat: 2, Lon: 0}})
	require.NoError(t, err)
	assert.Equal(t, geospatial.Point{Lat: 1, Lon: 1}, got)
}

func TestCentroid_Single(t *testing.T) {
	got, err := geospatial.Centroid([]geospatial.Point{berlin})
	require.NoError(t, err)
	assert.Equal(t, berlin, got)
}

func TestCentroid_Empty(t *testing.T) {
	_, err := geospatial.Centroid(nil)
	assert.ErrorIs(t, err, geospatial.ErrEmptyPolygon)

	_, err = geospatial.Centroid([]geospatial.Point{})
	assert.ErrorIs(t, err, geospatial.ErrEmptyPolygon)
}

func TestFormatDistance(t *testing.T) {
	tests := []struct {
		km   float64
		want string
	}{
		{0, "0 m"},
		{0.5, "500 m"},
		{0.0004, "0 m"},
		{0.9994, "999 m"},
		{1, "1.0 km"},
		{2.345, "2.3 km"},
		{12.96, "13.0 km"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, geospatial.FormatDistance(tt.km), "km=%v", tt.km)
	}
}

func TestPolyline_RoundTrip(t *testing.T) {
	ring := []geospatial.Point{{Lat: 38.5, Lon: -120.2}, {Lat: 40.7, Lon: -120.95}, {Lat: 43.252, Lon: -126.453}}
	enc := geospatial.EncodePolyline(ring)
	assert.Equal(t, "_p~iF~ps|U_ulLnnqC_mqNvxq`@", enc)

	dec, err := geospatial.DecodePolyline(enc)
	require.NoError(t, err)
	require.Len(t, dec, len(ring))
	for i := range ring {
		assert.InDelta(t, ring[i].Lat, dec[i].Lat, 1e-5)
		assert.InDelta(t, ring[i].Lon, dec[i].Lon, 1e-5)
	}
}
