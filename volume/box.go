package volume

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Box is an oriented bounding box given by its center and three half-axis vectors.
type Box struct {
	center   mgl64.Vec3
	halfAxes [3]mgl64.Vec3
	radius   float64
	inverse  mgl64.Mat3
	singular bool
	flat     flatFrame
}

func NewBox(center mgl64.Vec3, halfAxes [3]mgl64.Vec3) *Box {
	b := &Box{center: center, halfAxes: halfAxes}
	corners := b.corners()
	for _, c := range corners {
		b.radius = max(b.radius, c.Sub(center).Len())
	}
	b.flat = newFlatFrame(center, corners)
	axes := mgl64.Mat3FromCols(halfAxes[0], halfAxes[1], halfAxes[2])
	if det := axes.Det(); math.Abs(det) > 1e-12 {
		b.inverse = axes.Inv()
	} else {
		b.singular = true
	}
	return b
}

func (b *Box) Kind() Kind             { return KindBox }
func (b *Box) Center() mgl64.Vec3     { return b.center }
func (b *Box) Radius() float64        { return b.radius }
func (b *Box) Padding() float64       { return b.flat.padding }
func (b *Box) FlatCenter() mgl64.Vec3 { return b.flat.center }

// HalfAxes returns the three half-axis vectors.
func (b *Box) HalfAxes() [3]mgl64.Vec3 { return b.halfAxes }

// FlatBounds returns the projected corners' extent. Boxes placed on the
// globe are mapped through their cartographic positions.
func (b *Box) FlatBounds() (lo, hi mgl64.Vec3) {
	return b.flat.lo, b.flat.hi
}

func (b *Box) Transform(m mgl64.Mat4) Volume {
	var axes [3]mgl64.Vec3
	for i, a := range b.halfAxes {
		axes[i] = mgl64.TransformNormal(a, m)
	}
	return NewBox(mgl64.TransformCoordinate(b.center, m), axes)
}

// Contains reports whether p lies inside the box. Degenerate boxes fall
// back to their enclosing sphere.
func (b *Box) Contains(p mgl64.Vec3) bool {
	d := p.Sub(b.center)
	if b.singular {
		return d.Len() <= b.radius
	}
	local := b.inverse.Mul3x1(d)
	for i := range 3 {
		if math.Abs(local[i]) > 1+1e-9 {
			return false
		}
	}
	return true
}

func (b *Box) corners() []mgl64.Vec3 {
	corners := make([]mgl64.Vec3, 0, 8)
	for _, sx := range []float64{-1, 1} {
		for _, sy := range []float64{-1, 1} {
			for _, sz := range []float64{-1, 1} {
				c := b.center.
					Add(b.halfAxes[0].Mul(sx)).
					Add(b.halfAxes[1].Mul(sy)).
					Add(b.halfAxes[2].Mul(sz))
				corners = append(corners, c)
			}
		}
	}
	return corners
}
