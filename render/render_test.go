package render_test

import (
	"math"
	"testing"

	"github.com/eak1mov/go-tiles3d/render"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

func newState(opts ...render.StateOption) *render.State {
	camera := render.Camera{
		Position: mgl64.Vec3{0, 0, 100},
		Target:   mgl64.Vec3{0, 0, 0},
		Up:       mgl64.Vec3{0, 1, 0},
		FovY:     math.Pi / 2,
	}
	return render.NewState(camera, 800, 600, render.ProjectionFlat, opts...)
}

func TestFrustumSphere(t *testing.T) {
	f := newState().Frustum()

	for _, tc := range []struct {
		name   string
		center mgl64.Vec3
		radius float64
		want   bool
	}{
		{"center", mgl64.Vec3{0, 0, 0}, 1, true},
		{"behind camera", mgl64.Vec3{0, 0, 200}, 10, false},
		{"far left", mgl64.Vec3{-10000, 0, 0}, 10, false},
		{"touching left", mgl64.Vec3{-140, 0, 0}, 50, true},
		{"beyond far plane", mgl64.Vec3{0, 0, -2e9}, 10, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := f.IntersectsSphere(tc.center, tc.radius); got != tc.want {
				t.Errorf("IntersectsSphere(%v, %v) = %v, want = %v", tc.center, tc.radius, got, tc.want)
			}
		})
	}
}

func TestFrustumAABB(t *testing.T) {
	f := newState().Frustum()

	if !f.IntersectsAABB(mgl64.Vec3{-10, -10, -10}, mgl64.Vec3{10, 10, 10}) {
		t.Error("IntersectsAABB(box at origin) = false")
	}
	if f.IntersectsAABB(mgl64.Vec3{5000, -10, -10}, mgl64.Vec3{5010, 10, 10}) {
		t.Error("IntersectsAABB(box far right) = true")
	}
	if !f.IntersectsAABB(mgl64.Vec3{-1e6, -1e6, -1}, mgl64.Vec3{1e6, 1e6, 1}) {
		t.Error("IntersectsAABB(box enclosing the view) = false")
	}
}

func TestMetersPerPixel(t *testing.T) {
	s := newState()

	// fov 90 degrees: tan(45) = 1, half height = 300 px
	if got, want := s.MetersPerPixelAt(300), 1.0; math.Abs(got-want) > 1e-9 {
		t.Errorf("MetersPerPixelAt(300) = %v, want = %v", got, want)
	}
	if got, want := s.NominalGSD(), 100.0/300; math.Abs(got-want) > 1e-9 {
		t.Errorf("NominalGSD() = %v, want = %v", got, want)
	}
	if got, want := newState(render.WithNominalGSD(2)).NominalGSD(), 2.0; got != want {
		t.Errorf("NominalGSD() = %v, want = %v", got, want)
	}
}

func TestNullContext(t *testing.T) {
	dp, err := render.NullContext{}.NewSecondary()
	if err != nil {
		t.Fatalf("NewSecondary failed: %v", err)
	}
	render.Sync(dp)
	render.Destroy(dp)
}

type pollingDevice struct {
	polls, destroys int
	wait            bool
}

func (d *pollingDevice) Poll(wait bool) { d.polls++; d.wait = wait }
func (d *pollingDevice) Destroy()       { d.destroys++ }

type provider struct {
	device gpucontext.Device
}

func (p provider) Device() gpucontext.Device             { return p.device }
func (p provider) Queue() gpucontext.Queue               { return nil }
func (p provider) Adapter() gpucontext.Adapter           { return nil }
func (p provider) SurfaceFormat() gputypes.TextureFormat { return gputypes.TextureFormatBGRA8Unorm }
func (p provider) AdapterInfo() gpucontext.AdapterInfo   { return gpucontext.AdapterInfo{} }

func TestSyncAndDestroy(t *testing.T) {
	d := &pollingDevice{}
	dp := provider{device: d}

	render.Sync(dp)
	render.Sync(dp)
	if got, want := d.polls, 2; got != want {
		t.Errorf("polls = %v, want = %v", got, want)
	}
	if !d.wait {
		t.Errorf("Sync polled without waiting")
	}
	render.Destroy(dp)
	if got, want := d.destroys, 1; got != want {
		t.Errorf("destroys = %v, want = %v", got, want)
	}

	// devices without Poll or Destroy are left alone
	render.Sync(provider{device: struct{}{}})
	render.Destroy(provider{device: struct{}{}})
	render.Sync(nil)
}
