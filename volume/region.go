package volume

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/paulmach/orb"
)

const maxPadding = 100.0

// Region is a geographic box: longitude/latitude extents in radians and
// height extents in meters above the WGS84 ellipsoid.
// East may be less than West for regions crossing the antimeridian.
type Region struct {
	West, South, East, North float64
	MinHeight, MaxHeight     float64

	centerCarto Cartographic
	center      mgl64.Vec3
	radius      float64
	padding     float64
}

// NewRegion creates a Region and precomputes its centroid, radius and padding.
func NewRegion(west, south, east, north, minHeight, maxHeight float64) *Region {
	r := &Region{
		West: west, South: south, East: east, North: north,
		MinHeight: minHeight, MaxHeight: maxHeight,
	}

	r.centerCarto = Cartographic{
		Lon:    normalizeLon(west + r.Width()/2),
		Lat:    (south + north) / 2,
		Height: (minHeight + maxHeight) / 2,
	}
	r.center = r.centerCarto.ToECEF()

	lons := []float64{west, west + r.Width()/2, west + r.Width()}
	lats := []float64{south, r.centerCarto.Lat, north}
	for _, h := range []float64{minHeight, maxHeight} {
		for _, lon := range lons {
			for _, lat := range lats {
				p := Cartographic{Lon: lon, Lat: lat, Height: h}.ToECEF()
				r.radius = max(r.radius, p.Sub(r.center).Len())
			}
		}
	}

	r.padding = paddingAt(max(math.Abs(south), math.Abs(north)))

	return r
}

// Width returns the longitudinal extent in radians.
func (r *Region) Width() float64 {
	w := r.East - r.West
	if w < 0 {
		w += 2 * math.Pi
	}
	return w
}

// Height returns the latitudinal extent in radians.
func (r *Region) Height() float64 {
	return r.North - r.South
}

func (r *Region) Kind() Kind                  { return KindRegion }
func (r *Region) Center() mgl64.Vec3          { return r.center }
func (r *Region) Radius() float64             { return r.radius }
func (r *Region) Padding() float64            { return r.padding }
func (r *Region) Transform(mgl64.Mat4) Volume { return r }

// Cartographic returns the centroid as a geodetic position.
func (r *Region) Cartographic() Cartographic { return r.centerCarto }

func (r *Region) FlatCenter() mgl64.Vec3 {
	return FlatPosition(r.centerCarto)
}

func (r *Region) FlatBounds() (lo, hi mgl64.Vec3) {
	lo = FlatPosition(Cartographic{Lon: r.West, Lat: r.South, Height: r.MinHeight})
	hi = FlatPosition(Cartographic{Lon: r.West + r.Width(), Lat: r.North, Height: r.MaxHeight})
	return lo, hi
}

// Bound returns the longitude/latitude extent in degrees.
// Regions crossing the antimeridian extend past 180 degrees east.
func (r *Region) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{mgl64.RadToDeg(r.West), mgl64.RadToDeg(r.South)},
		Max: orb.Point{mgl64.RadToDeg(r.West + r.Width()), mgl64.RadToDeg(r.North)},
	}
}

// ContainsCartographic reports whether a geodetic position lies inside the region.
func (r *Region) ContainsCartographic(c Cartographic) bool {
	if c.Height < r.MinHeight || c.Height > r.MaxHeight {
		return false
	}
	lon := c.Lon - r.West
	for lon < 0 {
		lon += 2 * math.Pi
	}
	p := orb.Point{mgl64.RadToDeg(r.West + lon), mgl64.RadToDeg(c.Lat)}
	return r.Bound().Contains(p)
}

func normalizeLon(lon float64) float64 {
	for lon > math.Pi {
		lon -= 2 * math.Pi
	}
	for lon < -math.Pi {
		lon += 2 * math.Pi
	}
	return lon
}
