package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRing() []GeoPoint {
	return []GeoPoint{
		{Lat: 20, Lng: 10},
		{Lat: 30, Lng: 10},
		{Lat: 30, Lng: 20},
		{Lat: 20, Lng: 20},
		{Lat: 20, Lng: 10},
	}
}

func TestParseAOIKind(t *testing.T) {
	for _, raw := range []string{"polygon", "rectangle", "circle"} {
		kind, err := ParseAOIKind(raw)
		require.NoError(t, err)
		assert.Equal(t, AOIKind(raw), kind)
	}

	_, err := ParseAOIKind("triangle")
	require.Error(t, err)
}

func TestNewGeoAOIValid(t *testing.T) {
	aoi, err := NewGeoAOI(AOIPolygon, sampleRing(), 1043.5, GeoPoint{Lat: 25, Lng: 15})
	require.NoError(t, err)
	assert.Equal(t, AOIPolygon, aoi.Kind)
	assert.Len(t, aoi.Ring, 5)
	assert.Equal(t, 1043.5, aoi.AreaKm2)
}

func TestNewGeoAOIRejectsOpenRing(t *testing.T) {
	ring := sampleRing()
	ring[len(ring)-1] = GeoPoint{Lat: 21, Lng: 10}

	_, err := NewGeoAOI(AOIPolygon, ring, 100, GeoPoint{Lat: 25, Lng: 15})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed")
}

func TestNewGeoAOIRejectsTooFewPoints(t *testing.T) {
	ring := []GeoPoint{{Lat: 20, Lng: 10}, {Lat: 30, Lng: 10}, {Lat: 20, Lng: 10}}
	_, err := NewGeoAOI(AOIPolygon, ring, 100, GeoPoint{Lat: 25, Lng: 10})
	require.Error(t, err)
}

func TestNewGeoAOIRejectsDegenerateRing(t *testing.T) {
	// Closed and long enough, but only two distinct vertices.
	ring := []GeoPoint{
		{Lat: 20, Lng: 10},
		{Lat: 30, Lng: 10},
		{Lat: 20, Lng: 10},
		{Lat: 30, Lng: 10},
		{Lat: 20, Lng: 10},
	}
	_, err := NewGeoAOI(AOIPolygon, ring, 100, GeoPoint{Lat: 25, Lng: 10})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "distinct")
}

func TestNewGeoAOIRejectsOutOfBoundsCoordinate(t *testing.T) {
	ring := sampleRing()
	ring[1] = GeoPoint{Lat: 91, Lng: 10}
	ring[len(ring)-1] = ring[0]

	_, err := NewGeoAOI(AOIPolygon, ring, 100, GeoPoint{Lat: 25, Lng: 15})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bounds")
}

func TestNewGeoAOIRejectsNonPositiveArea(t *testing.T) {
	_, err := NewGeoAOI(AOIPolygon, sampleRing(), 0, GeoPoint{Lat: 25, Lng: 15})
	require.Error(t, err)

	_, err = NewGeoAOI(AOIPolygon, sampleRing(), -4, GeoPoint{Lat: 25, Lng: 15})
	require.Error(t, err)
}

func TestGeoAOIBoundingBox(t *testing.T) {
	aoi, err := NewGeoAOI(AOIPolygon, sampleRing(), 1043.5, GeoPoint{Lat: 25, Lng: 15})
	require.NoError(t, err)

	box := aoi.BoundingBox()
	assert.InDelta(t, 30, box.North, 1e-9)
	assert.InDelta(t, 20, box.South, 1e-9)
	assert.InDelta(t, 20, box.East, 1e-9)
	assert.InDelta(t, 10, box.West, 1e-9)
}

func TestGeoAOICenterWithinBounds(t *testing.T) {
	inside, err := NewGeoAOI(AOIPolygon, sampleRing(), 1043.5, GeoPoint{Lat: 25, Lng: 15})
	require.NoError(t, err)
	assert.True(t, inside.CenterWithinBounds())

	outside, err := NewGeoAOI(AOIPolygon, sampleRing(), 1043.5, GeoPoint{Lat: 55, Lng: 15})
	require.NoError(t, err)
	assert.False(t, outside.CenterWithinBounds())
}

func TestGeoRingScanRoundTrip(t *testing.T) {
	ring := GeoRing(sampleRing())
	value, err := ring.Value()
	require.NoError(t, err)

	var decoded GeoRing
	require.NoError(t, decoded.Scan(value))
	assert.Equal(t, ring, decoded)
}
