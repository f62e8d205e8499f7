package volume

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Distances from the ellipsoid surface within which a center is taken as an
// earth-centered position rather than a point of a local frame.
const (
	geocentricBelow = 1e5
	geocentricAbove = 1e6
)

// Geocentric reports whether p lies near the WGS84 surface.
func Geocentric(p mgl64.Vec3) bool {
	d := p.Len()
	return d > SemiMinorAxis-geocentricBelow && d < SemiMajorAxis+geocentricAbove
}

// paddingAt returns the horizontal stretch of the flat frame at a latitude.
func paddingAt(lat float64) float64 {
	if cos := math.Cos(math.Abs(lat)); cos > 1/maxPadding {
		return 1 / cos
	}
	return maxPadding
}

// flatFrame is the placement of a volume in the flat equirectangular frame.
type flatFrame struct {
	center  mgl64.Vec3
	lo, hi  mgl64.Vec3
	padding float64
}

// newFlatFrame projects the extreme points of a volume centered at center.
// Volumes on the globe go through their cartographic positions, with
// longitudes unwrapped around the center; volumes of local frames keep their
// coordinates.
func newFlatFrame(center mgl64.Vec3, points []mgl64.Vec3) flatFrame {
	if !Geocentric(center) {
		lo, hi := boundsOf(points)
		return flatFrame{center: center, lo: lo, hi: hi, padding: 1}
	}
	cc := ToCartographic(center)
	maxLat := math.Abs(cc.Lat)
	flat := make([]mgl64.Vec3, len(points))
	for i, p := range points {
		c := ToCartographic(p)
		c.Lon = cc.Lon + math.Remainder(c.Lon-cc.Lon, 2*math.Pi)
		maxLat = max(maxLat, math.Abs(c.Lat))
		flat[i] = FlatPosition(c)
	}
	lo, hi := boundsOf(flat)
	return flatFrame{center: FlatPosition(cc), lo: lo, hi: hi, padding: paddingAt(maxLat)}
}

// enuAxes returns the east, north and up unit vectors at an ECEF position.
func enuAxes(p mgl64.Vec3) (east, north, up mgl64.Vec3) {
	c := ToCartographic(p)
	sinLat, cosLat := math.Sincos(c.Lat)
	sinLon, cosLon := math.Sincos(c.Lon)
	east = mgl64.Vec3{-sinLon, cosLon, 0}
	north = mgl64.Vec3{-sinLat * cosLon, -sinLat * sinLon, cosLat}
	up = mgl64.Vec3{cosLat * cosLon, cosLat * sinLon, sinLat}
	return east, north, up
}
