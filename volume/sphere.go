package volume

import (
	"github.com/go-gl/mathgl/mgl64"
)

type Sphere struct {
	center mgl64.Vec3
	radius float64
	flat   flatFrame
}

func NewSphere(center mgl64.Vec3, radius float64) *Sphere {
	s := &Sphere{center: center, radius: radius}
	if Geocentric(center) {
		east, north, up := enuAxes(center)
		points := make([]mgl64.Vec3, 0, 6)
		for _, axis := range []mgl64.Vec3{east, north, up} {
			points = append(points, center.Add(axis.Mul(radius)), center.Sub(axis.Mul(radius)))
		}
		s.flat = newFlatFrame(center, points)
	} else {
		r := mgl64.Vec3{radius, radius, radius}
		s.flat = flatFrame{center: center, lo: center.Sub(r), hi: center.Add(r), padding: 1}
	}
	return s
}

func (s *Sphere) Kind() Kind             { return KindSphere }
func (s *Sphere) Center() mgl64.Vec3     { return s.center }
func (s *Sphere) Radius() float64        { return s.radius }
func (s *Sphere) Padding() float64       { return s.flat.padding }
func (s *Sphere) FlatCenter() mgl64.Vec3 { return s.flat.center }

func (s *Sphere) FlatBounds() (lo, hi mgl64.Vec3) {
	return s.flat.lo, s.flat.hi
}

func (s *Sphere) Transform(m mgl64.Mat4) Volume {
	scale := max(m.Col(0).Vec3().Len(), m.Col(1).Vec3().Len(), m.Col(2).Vec3().Len())
	return NewSphere(mgl64.TransformCoordinate(s.center, m), s.radius*scale)
}
