// Package render defines the per-frame renderer state consumed by culling and
// error estimation, and the rendering context abstraction used by content loaders.
package render

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

type Projection uint8

const (
	// ProjectionGlobe renders geographic content around the WGS84 ellipsoid; world
	// coordinates are ECEF meters.
	ProjectionGlobe Projection = iota
	// ProjectionFlat renders content on a plane; world coordinates follow
	// volume.FlatPosition for geographic content.
	ProjectionFlat
)

func (p Projection) String() string {
	if p == ProjectionFlat {
		return "flat"
	}
	return "globe"
}

// Camera describes the viewer. FovY is the vertical field of view in radians.
type Camera struct {
	Position mgl64.Vec3
	Target   mgl64.Vec3
	Up       mgl64.Vec3
	FovY     float64
	Near     float64
	Far      float64
}

// State is an immutable snapshot of the camera, viewport and projection for one frame.
type State struct {
	camera     Camera
	width      int
	height     int
	projection Projection
	frame      uint64
	nominalGSD float64

	view     mgl64.Mat4
	proj     mgl64.Mat4
	viewProj mgl64.Mat4
	frustum  Frustum
}

type stateConfig struct {
	Frame      uint64
	NominalGSD float64
}

type StateOption func(*stateConfig)

func WithFrame(frame uint64) StateOption {
	return func(c *stateConfig) { c.Frame = frame }
}

// WithNominalGSD overrides the nominal ground sample distance (meters per pixel
// at the view's nominal resolution). By default it is derived from the distance
// between the camera position and its target.
func WithNominalGSD(metersPerPixel float64) StateOption {
	return func(c *stateConfig) { c.NominalGSD = metersPerPixel }
}

// NewState builds a snapshot for a viewport of width x height pixels.
func NewState(camera Camera, width, height int, projection Projection, opts ...StateOption) *State {
	config := stateConfig{}
	for _, opt := range opts {
		opt(&config)
	}

	if camera.Up.Len() == 0 {
		camera.Up = mgl64.Vec3{0, 0, 1}
	}
	if camera.Near <= 0 {
		camera.Near = 1
	}
	if camera.Far <= camera.Near {
		camera.Far = 1e9
	}
	width, height = max(width, 1), max(height, 1)

	s := &State{
		camera:     camera,
		width:      width,
		height:     height,
		projection: projection,
		frame:      config.Frame,
	}
	s.view = mgl64.LookAtV(camera.Position, camera.Target, camera.Up)
	s.proj = mgl64.Perspective(camera.FovY, float64(width)/float64(height), camera.Near, camera.Far)
	s.viewProj = s.proj.Mul4(s.view)
	s.frustum = NewFrustum(s.viewProj)

	s.nominalGSD = config.NominalGSD
	if s.nominalGSD <= 0 {
		s.nominalGSD = s.MetersPerPixelAt(camera.Target.Sub(camera.Position).Len())
	}
	return s
}

func (s *State) Camera() Camera               { return s.camera }
func (s *State) Position() mgl64.Vec3         { return s.camera.Position }
func (s *State) FovY() float64                { return s.camera.FovY }
func (s *State) Width() int                   { return s.width }
func (s *State) Height() int                  { return s.height }
func (s *State) Projection() Projection       { return s.projection }
func (s *State) Frame() uint64                { return s.frame }
func (s *State) View() mgl64.Mat4             { return s.view }
func (s *State) ProjectionMatrix() mgl64.Mat4 { return s.proj }
func (s *State) ViewProjection() mgl64.Mat4   { return s.viewProj }
func (s *State) Frustum() *Frustum            { return &s.frustum }

// NominalGSD returns the meters-per-pixel resolution at the view's nominal distance.
func (s *State) NominalGSD() float64 { return s.nominalGSD }

// MetersPerPixelAt returns the size of one pixel at the given distance from the camera.
func (s *State) MetersPerPixelAt(distance float64) float64 {
	return distance * math.Tan(s.camera.FovY/2) / (float64(s.height) / 2)
}
