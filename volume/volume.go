// Package volume provides the bounding volumes used by 3D Tiles:
// geographic regions, spheres and oriented boxes.
package volume

import (
	"github.com/go-gl/mathgl/mgl64"
)

type Kind uint8

const (
	KindRegion Kind = iota
	KindSphere
	KindBox
)

func (k Kind) String() string {
	switch k {
	case KindRegion:
		return "region"
	case KindSphere:
		return "sphere"
	case KindBox:
		return "box"
	}
	return "unknown"
}

// Volume is an immutable bounding volume. All derived quantities are
// computed once at construction.
type Volume interface {
	Kind() Kind

	// Center returns the centroid in world (ECEF for geographic content) coordinates.
	Center() mgl64.Vec3

	// Radius returns the radius of a sphere around Center enclosing the volume.
	Radius() float64

	// Padding scales horizontal extents when the volume is laid out in a flat
	// equirectangular frame. It is 1 for volumes defined in metric frames.
	Padding() float64

	// FlatCenter returns the centroid in the flat frame (see FlatPosition).
	FlatCenter() mgl64.Vec3

	// FlatBounds returns the axis-aligned box enclosing the volume in the flat frame.
	FlatBounds() (lo, hi mgl64.Vec3)

	// Transform returns the volume moved by the given local-to-world matrix.
	Transform(m mgl64.Mat4) Volume
}

// Geographic returns the cartographic position of the volume centroid.
func Geographic(v Volume) Cartographic {
	if r, ok := v.(*Region); ok {
		return r.centerCarto
	}
	return ToCartographic(v.Center())
}

// Contains reports whether a world point lies inside the volume.
func Contains(v Volume, p mgl64.Vec3) bool {
	if b, ok := v.(*Box); ok {
		return b.Contains(p)
	}
	if r, ok := v.(*Region); ok {
		return r.ContainsCartographic(ToCartographic(p))
	}
	return p.Sub(v.Center()).Len() <= v.Radius()
}

func boundsOf(points []mgl64.Vec3) (lo, hi mgl64.Vec3) {
	lo, hi = points[0], points[0]
	for _, p := range points[1:] {
		for i := range 3 {
			lo[i] = min(lo[i], p[i])
			hi[i] = max(hi[i], p[i])
		}
	}
	return lo, hi
}
