package volume

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// WGS84 ellipsoid parameters.
const (
	SemiMajorAxis = 6378137.0
	SemiMinorAxis = 6356752.3142451793

	flattening = (SemiMajorAxis - SemiMinorAxis) / SemiMajorAxis
	e2         = flattening * (2 - flattening)
)

// Cartographic is a geodetic position: longitude and latitude in radians,
// height in meters above the ellipsoid.
type Cartographic struct {
	Lon    float64
	Lat    float64
	Height float64
}

// ToECEF converts a cartographic position to earth-centered, earth-fixed coordinates.
func (c Cartographic) ToECEF() mgl64.Vec3 {
	sinLat, cosLat := math.Sincos(c.Lat)
	sinLon, cosLon := math.Sincos(c.Lon)
	n := SemiMajorAxis / math.Sqrt(1-e2*sinLat*sinLat)
	return mgl64.Vec3{
		(n + c.Height) * cosLat * cosLon,
		(n + c.Height) * cosLat * sinLon,
		(n*(1-e2) + c.Height) * sinLat,
	}
}

// ToCartographic converts an ECEF position to cartographic coordinates.
func ToCartographic(p mgl64.Vec3) Cartographic {
	x, y, z := p[0], p[1], p[2]
	lon := math.Atan2(y, x)
	r := math.Hypot(x, y)
	if r < 1e-9 {
		// on the polar axis
		lat := math.Copysign(math.Pi/2, z)
		return Cartographic{Lon: 0, Lat: lat, Height: math.Abs(z) - SemiMinorAxis}
	}
	lat := math.Atan2(z, r*(1-e2))
	var h float64
	for range 5 {
		sinLat := math.Sin(lat)
		n := SemiMajorAxis / math.Sqrt(1-e2*sinLat*sinLat)
		h = r/math.Cos(lat) - n
		lat = math.Atan2(z, r*(1-e2*n/(n+h)))
	}
	return Cartographic{Lon: lon, Lat: lat, Height: h}
}

// FlatPosition maps a cartographic position to the flat equirectangular frame:
// x and y are longitude and latitude scaled by the semi-major axis, z is height.
func FlatPosition(c Cartographic) mgl64.Vec3 {
	return mgl64.Vec3{c.Lon * SemiMajorAxis, c.Lat * SemiMajorAxis, c.Height}
}
