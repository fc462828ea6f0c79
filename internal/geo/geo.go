// Package geo provides the geodesy primitives used by the geolocation and
// tracking pipeline: great-circle distance, initial bearing, bearing-ray
// intersection on a local tangent plane, and coordinate centroids.
// All functions are pure and safe for concurrent use.
package geo

import "math"

const (
	// EarthRadiusM is the mean Earth radius in meters.
	EarthRadiusM = 6371000.0

	// metersPerDegLat is the approximate north-south extent of one degree
	// of latitude, used for the local tangent plane projection.
	metersPerDegLat = 111320.0
)

// LatLng is a WGS84 coordinate pair in decimal degrees.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// LatLngAlt extends LatLng with altitude in meters above sea level.
type LatLngAlt struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Altitude float64 `json:"altitude"`
}

// LatLng returns the horizontal component of the coordinate.
func (p LatLngAlt) LatLng() LatLng {
	return LatLng{Lat: p.Lat, Lng: p.Lng}
}

// IsZero reports whether the coordinate is the zero value (null island).
func (p LatLngAlt) IsZero() bool {
	return p.Lat == 0 && p.Lng == 0 && p.Altitude == 0
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
func degrees(rad float64) float64 { return rad * 180 / math.Pi }

// HaversineM returns the great-circle distance between two coordinates
// in meters.
func HaversineM(a, b LatLng) float64 {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := radians(b.Lat - a.Lat)
	dLng := radians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusM * c
}

// InitialBearingDeg returns the initial great-circle bearing from a to b
// in degrees clockwise from true north, normalized to [0, 360).
func InitialBearingDeg(a, b LatLng) float64 {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLng := radians(b.Lng - a.Lng)

	y := math.Sin(dLng) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLng)

	bearing := degrees(math.Atan2(y, x))
	return math.Mod(bearing+360, 360)
}

// AngularDiffDeg returns the minimal absolute difference between two bearings
// in degrees, accounting for wraparound at 360.
func AngularDiffDeg(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 360)
	if d > 180 {
		d = 360 - d
	}
	return d
}

// TangentPlane projects coordinates onto a local east-north plane (meters)
// anchored at an origin. Adequate for the sub-100 km geometry of bearing
// intersection; not for continental distances.
type TangentPlane struct {
	origin       LatLng
	metersPerLng float64
}

// NewTangentPlane creates a projection anchored at origin.
func NewTangentPlane(origin LatLng) TangentPlane {
	return TangentPlane{
		origin:       origin,
		metersPerLng: metersPerDegLat * math.Cos(radians(origin.Lat)),
	}
}

// Project converts a coordinate to east (x) and north (y) meters from the origin.
func (tp TangentPlane) Project(p LatLng) (x, y float64) {
	x = (p.Lng - tp.origin.Lng) * tp.metersPerLng
	y = (p.Lat - tp.origin.Lat) * metersPerDegLat
	return x, y
}

// Unproject converts east/north meters back to a coordinate.
func (tp TangentPlane) Unproject(x, y float64) LatLng {
	return LatLng{
		Lat: tp.origin.Lat + y/metersPerDegLat,
		Lng: tp.origin.Lng + x/tp.metersPerLng,
	}
}

// RayIntersection solves the 2x2 linear system for the intersection of two
// parametric rays p1 + t*d1 and p2 + u*d2 on the tangent plane. Directions
// are unit vectors derived from azimuths (east = sin, north = cos).
// Returns ok=false when the rays are near-parallel (|determinant| < minDet)
// or when either intersection parameter is negative (behind a receiver).
func RayIntersection(p1x, p1y, az1Deg, p2x, p2y, az2Deg, minDet float64) (x, y float64, ok bool) {
	d1x := math.Sin(radians(az1Deg))
	d1y := math.Cos(radians(az1Deg))
	d2x := math.Sin(radians(az2Deg))
	d2y := math.Cos(radians(az2Deg))

	// p1 + t*d1 = p2 + u*d2  =>  t*d1 - u*d2 = p2 - p1
	det := d1x*(-d2y) - (-d2x)*d1y
	if math.Abs(det) < minDet {
		return 0, 0, false
	}

	bx := p2x - p1x
	by := p2y - p1y

	t := (bx*(-d2y) - (-d2x)*by) / det
	u := (d1x*by - d1y*bx) / det
	if t < 0 || u < 0 {
		return 0, 0, false
	}

	return p1x + t*d1x, p1y + t*d1y, true
}

// Centroid returns the arithmetic mean of a set of coordinates.
// Returns the zero value for an empty input.
func Centroid(points []LatLng) LatLng {
	if len(points) == 0 {
		return LatLng{}
	}
	var sumLat, sumLng float64
	for _, p := range points {
		sumLat += p.Lat
		sumLng += p.Lng
	}
	n := float64(len(points))
	return LatLng{Lat: sumLat / n, Lng: sumLng / n}
}
