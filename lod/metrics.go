package lod

import (
	"math"

	"github.com/eak1mov/go-tiles3d/render"
	"github.com/go-gl/mathgl/mgl64"
)

// DefaultInsideMetersPerPixel is the resolution assumed when the camera is
// inside a bounding volume.
const DefaultInsideMetersPerPixel = 0.01

// MetersPerPixel estimates the size of one pixel at a volume centroid. A camera
// within radius of the centroid gets the inside resolution.
func MetersPerPixel(state *render.State, center mgl64.Vec3, radius, inside float64) float64 {
	d := state.Position().Sub(center).Len()
	if d <= radius {
		return inside
	}
	return d * math.Tan(state.FovY()/2) / (float64(state.Height()) / 2)
}

// ScreenSpaceError is the pixel error of drawing content with the given
// geometric error at the given resolution.
func ScreenSpaceError(geometricError, metersPerPixel float64) float64 {
	return geometricError / metersPerPixel
}
