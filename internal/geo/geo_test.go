package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHaversineM_Identity(t *testing.T) {
	p := LatLng{Lat: 47.8345, Lng: 35.1645}
	assert.Equal(t, 0.0, HaversineM(p, p))
}

func TestHaversineM_Symmetry(t *testing.T) {
	a := LatLng{Lat: 47.8345, Lng: 35.1645}
	b := LatLng{Lat: 48.1, Lng: 34.9}
	assert.InDelta(t, HaversineM(a, b), HaversineM(b, a), 1e-9)
}

func TestHaversineM_OneDegreeLatitude(t *testing.T) {
	a := LatLng{Lat: 47.0, Lng: 35.0}
	b := LatLng{Lat: 48.0, Lng: 35.0}

	d := HaversineM(a, b)
	// One degree of latitude is roughly 111.2 km.
	assert.InEpsilon(t, 111200.0, d, 0.01)
}

func TestInitialBearingDeg_Cardinals(t *testing.T) {
	origin := LatLng{Lat: 47.0, Lng: 35.0}

	tests := []struct {
		name string
		to   LatLng
		want float64
	}{
		{"north", LatLng{Lat: 48.0, Lng: 35.0}, 0},
		{"south", LatLng{Lat: 46.0, Lng: 35.0}, 180},
		{"east", LatLng{Lat: 47.0, Lng: 36.0}, 90},
		{"west", LatLng{Lat: 47.0, Lng: 34.0}, 270},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := InitialBearingDeg(origin, tc.to)
			// East/west bearings deviate slightly from 90/270 with latitude.
			assert.InDelta(t, tc.want, got, 0.5)
		})
	}
}

func TestAngularDiffDeg_Wraparound(t *testing.T) {
	assert.InDelta(t, 20.0, AngularDiffDeg(350, 10), 1e-9)
	assert.InDelta(t, 20.0, AngularDiffDeg(10, 350), 1e-9)
	assert.InDelta(t, 180.0, AngularDiffDeg(0, 180), 1e-9)
	assert.InDelta(t, 0.0, AngularDiffDeg(360, 0), 1e-9)
}

func TestTangentPlane_RoundTrip(t *testing.T) {
	origin := LatLng{Lat: 47.8345, Lng: 35.1645}
	tp := NewTangentPlane(origin)

	p := LatLng{Lat: 47.85, Lng: 35.20}
	x, y := tp.Project(p)
	back := tp.Unproject(x, y)

	assert.InDelta(t, p.Lat, back.Lat, 1e-9)
	assert.InDelta(t, p.Lng, back.Lng, 1e-9)
}

func TestTangentPlane_DistanceAgreesWithHaversine(t *testing.T) {
	origin := LatLng{Lat: 47.8345, Lng: 35.1645}
	tp := NewTangentPlane(origin)

	p := LatLng{Lat: 47.86, Lng: 35.21}
	x, y := tp.Project(p)
	planar := math.Hypot(x, y)
	sphere := HaversineM(origin, p)

	// Within 1% over a few kilometers.
	assert.InEpsilon(t, sphere, planar, 0.01)
}

func TestRayIntersection_Crossing(t *testing.T) {
	// Receiver A at origin looking due east, receiver B 1000 m east and
	// 1000 m north looking due south. Rays meet at (1000, 0).
	x, y, ok := RayIntersection(0, 0, 90, 1000, 1000, 180, 1e-10)
	require.True(t, ok)
	assert.InDelta(t, 1000.0, x, 1e-6)
	assert.InDelta(t, 0.0, y, 1e-6)
}

func TestRayIntersection_Parallel(t *testing.T) {
	_, _, ok := RayIntersection(0, 0, 45, 1000, 0, 45, 1e-10)
	assert.False(t, ok)
}

func TestRayIntersection_BehindReceiver(t *testing.T) {
	// The southbound ray from B crosses A's line of sight 1000 m behind A,
	// which would require a negative parameter.
	_, _, ok := RayIntersection(0, 0, 90, -1000, 1000, 180, 1e-10)
	assert.False(t, ok)
}

func TestCentroid(t *testing.T) {
	pts := []LatLng{
		{Lat: 47.0, Lng: 35.0},
		{Lat: 48.0, Lng: 36.0},
	}
	c := Centroid(pts)
	assert.InDelta(t, 47.5, c.Lat, 1e-9)
	assert.InDelta(t, 35.5, c.Lng, 1e-9)

	assert.Equal(t, LatLng{}, Centroid(nil))
}
