package render

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Plane is n·p + d = 0 with a unit normal pointing inside the frustum.
type Plane struct {
	Normal mgl64.Vec3
	D      float64
}

func (p Plane) Distance(point mgl64.Vec3) float64 {
	return p.Normal.Dot(point) + p.D
}

// Frustum holds the six clipping planes (left, right, bottom, top, near, far).
type Frustum struct {
	Planes [6]Plane
}

// NewFrustum extracts the planes of a view-projection matrix using OpenGL clip
// conventions (-w <= x,y,z <= w).
func NewFrustum(viewProj mgl64.Mat4) Frustum {
	r0, r1, r2, r3 := viewProj.Row(0), viewProj.Row(1), viewProj.Row(2), viewProj.Row(3)
	raw := [6]mgl64.Vec4{
		r3.Add(r0), r3.Sub(r0),
		r3.Add(r1), r3.Sub(r1),
		r3.Add(r2), r3.Sub(r2),
	}
	var f Frustum
	for i, v := range raw {
		n := v.Vec3()
		l := n.Len()
		if l == 0 {
			continue
		}
		f.Planes[i] = Plane{Normal: n.Mul(1 / l), D: v[3] / l}
	}
	return f
}

// IntersectsSphere reports whether a sphere is at least partially inside.
func (f *Frustum) IntersectsSphere(center mgl64.Vec3, radius float64) bool {
	for _, p := range f.Planes {
		if p.Distance(center) < -radius {
			return false
		}
	}
	return true
}

// IntersectsAABB reports whether an axis-aligned box is at least partially inside.
func (f *Frustum) IntersectsAABB(lo, hi mgl64.Vec3) bool {
	for _, p := range f.Planes {
		var positive mgl64.Vec3
		for i := range 3 {
			if p.Normal[i] >= 0 {
				positive[i] = hi[i]
			} else {
				positive[i] = lo[i]
			}
		}
		if p.Distance(positive) < 0 {
			return false
		}
	}
	return true
}
