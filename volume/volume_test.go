package volume_test

import (
	"math"
	"testing"

	"github.com/eak1mov/go-tiles3d/volume"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

var approx = cmpopts.EquateApprox(0, 1e-6)

func TestCartographicRoundTrip(t *testing.T) {
	for _, c := range []volume.Cartographic{
		{Lon: 0, Lat: 0, Height: 0},
		{Lon: 0.5, Lat: 0.8, Height: 1200},
		{Lon: -2.9, Lat: -1.2, Height: -50},
		{Lon: 3.1, Lat: 1.5, Height: 8000},
	} {
		got := volume.ToCartographic(c.ToECEF())
		if diff := cmp.Diff(c, got, cmpopts.EquateApprox(0, 1e-6)); diff != "" {
			t.Errorf("ToCartographic(ToECEF(%v)) mismatch (-want+got):\n%v", c, diff)
		}
	}
}

func TestEquatorECEF(t *testing.T) {
	got := volume.Cartographic{}.ToECEF()
	want := mgl64.Vec3{volume.SemiMajorAxis, 0, 0}
	if !got.ApproxEqualThreshold(want, 1e-6) {
		t.Errorf("ToECEF(0,0,0) = %v, want = %v", got, want)
	}
}

func TestRegion(t *testing.T) {
	deg := mgl64.DegToRad
	r := volume.NewRegion(deg(10), deg(40), deg(11), deg(41), 0, 100)

	if got, want := r.Kind(), volume.KindRegion; got != want {
		t.Errorf("Kind() = %v, want = %v", got, want)
	}

	carto := volume.Geographic(r)
	if diff := cmp.Diff(volume.Cartographic{Lon: deg(10.5), Lat: deg(40.5), Height: 50}, carto, approx); diff != "" {
		t.Errorf("Geographic() mismatch (-want+got):\n%v", diff)
	}

	// one degree of latitude is roughly 111 km, the half diagonal is under 100 km
	if got := r.Radius(); got < 50e3 || got > 100e3 {
		t.Errorf("Radius() = %v, want within [50km, 100km]", got)
	}

	if got, want := r.Padding(), 1/math.Cos(deg(41)); math.Abs(got-want) > 1e-9 {
		t.Errorf("Padding() = %v, want = %v", got, want)
	}

	bound := r.Bound()
	if diff := cmp.Diff([]float64{10, 40, 11, 41}, []float64{bound.Min.Lon(), bound.Min.Lat(), bound.Max.Lon(), bound.Max.Lat()}, approx); diff != "" {
		t.Errorf("Bound() mismatch (-want+got):\n%v", diff)
	}

	if !volume.Contains(r, volume.Cartographic{Lon: deg(10.2), Lat: deg(40.7), Height: 10}.ToECEF()) {
		t.Error("Contains(inside point) = false")
	}
	if volume.Contains(r, volume.Cartographic{Lon: deg(12), Lat: deg(40.7), Height: 10}.ToECEF()) {
		t.Error("Contains(outside point) = true")
	}

	if got := r.Transform(mgl64.Translate3D(1, 2, 3)); got != volume.Volume(r) {
		t.Error("Transform() must not move a region")
	}
}

func TestRegionAntimeridian(t *testing.T) {
	deg := mgl64.DegToRad
	r := volume.NewRegion(deg(179), deg(0), deg(-179), deg(1), 0, 0)

	if got, want := r.Width(), deg(2); math.Abs(got-want) > 1e-12 {
		t.Errorf("Width() = %v, want = %v", got, want)
	}
	if got := math.Abs(volume.Geographic(r).Lon); math.Abs(got-math.Pi) > 1e-9 {
		t.Errorf("centroid longitude = %v, want +-pi", got)
	}
	inside := volume.Cartographic{Lon: deg(-179.5), Lat: deg(0.5), Height: 0}
	if !r.ContainsCartographic(inside) {
		t.Errorf("ContainsCartographic(%v) = false", inside)
	}
}

func TestSphereTransform(t *testing.T) {
	s := volume.NewSphere(mgl64.Vec3{1, 0, 0}, 2)
	m := mgl64.Translate3D(10, 0, 0).Mul4(mgl64.Scale3D(3, 1, 1))

	got := s.Transform(m)
	if !got.Center().ApproxEqualThreshold(mgl64.Vec3{13, 0, 0}, 1e-9) {
		t.Errorf("Center() = %v, want = [13 0 0]", got.Center())
	}
	if got, want := got.Radius(), 6.0; got != want {
		t.Errorf("Radius() = %v, want = %v", got, want)
	}
	if got, want := s.Radius(), 2.0; got != want {
		t.Errorf("original Radius() = %v, want = %v (volumes are immutable)", got, want)
	}
}

func TestBox(t *testing.T) {
	b := volume.NewBox(mgl64.Vec3{0, 0, 0}, [3]mgl64.Vec3{{2, 0, 0}, {0, 3, 0}, {0, 0, 6}})

	if got, want := b.Radius(), 7.0; math.Abs(got-want) > 1e-9 {
		t.Errorf("Radius() = %v, want = %v", got, want)
	}

	lo, hi := b.FlatBounds()
	if diff := cmp.Diff([]mgl64.Vec3{{-2, -3, -6}, {2, 3, 6}}, []mgl64.Vec3{lo, hi}, approx); diff != "" {
		t.Errorf("FlatBounds() mismatch (-want+got):\n%v", diff)
	}

	for _, tc := range []struct {
		point mgl64.Vec3
		want  bool
	}{
		{mgl64.Vec3{0, 0, 0}, true},
		{mgl64.Vec3{1.9, 2.9, 5.9}, true},
		{mgl64.Vec3{2.1, 0, 0}, false},
		{mgl64.Vec3{0, 0, -6.5}, false},
	} {
		if got := b.Contains(tc.point); got != tc.want {
			t.Errorf("Contains(%v) = %v, want = %v", tc.point, got, tc.want)
		}
	}

	moved := b.Transform(mgl64.Translate3D(0, 0, 100)).(*volume.Box)
	if !moved.Center().ApproxEqualThreshold(mgl64.Vec3{0, 0, 100}, 1e-9) {
		t.Errorf("Transform() center = %v, want = [0 0 100]", moved.Center())
	}
	if diff := cmp.Diff(b.HalfAxes(), moved.HalfAxes(), approx); diff != "" {
		t.Errorf("Transform() half axes mismatch (-want+got):\n%v", diff)
	}
}

func TestDegenerateBox(t *testing.T) {
	b := volume.NewBox(mgl64.Vec3{0, 0, 0}, [3]mgl64.Vec3{{1, 0, 0}, {0, 1, 0}, {0, 0, 0}})
	if !b.Contains(mgl64.Vec3{0.5, 0.5, 0}) {
		t.Error("Contains(point on flat box) = false")
	}
}

func TestFlatFrameOnGlobe(t *testing.T) {
	c := volume.Cartographic{Lon: 0.0005, Lat: 0.0005, Height: 0}
	center := c.ToECEF()
	// axis-aligned in ECEF, which at lon/lat near zero is up, east, north
	box := volume.NewBox(center, [3]mgl64.Vec3{{50, 0, 0}, {0, 50, 0}, {0, 0, 50}})
	sphere := volume.NewSphere(center, 50)
	want := volume.FlatPosition(c)

	for _, v := range []volume.Volume{box, sphere} {
		t.Run(v.Kind().String(), func(t *testing.T) {
			if got := v.FlatCenter(); got.Sub(want).Len() > 1 {
				t.Errorf("FlatCenter() = %v, want = %v", got, want)
			}
			lo, hi := v.FlatBounds()
			for i := range 3 {
				if lo[i] > want[i] || hi[i] < want[i] {
					t.Errorf("FlatBounds() = %v, %v, does not contain %v", lo, hi, want)
				}
				if span := hi[i] - lo[i]; span < 99 || span > 102 {
					t.Errorf("FlatBounds() span[%d] = %v, want about 100", i, span)
				}
			}
			if got, want := v.Padding(), 1.0; math.Abs(got-want) > 1e-3 {
				t.Errorf("Padding() = %v, want = %v", got, want)
			}
		})
	}

	// local frames are left alone
	local := volume.NewSphere(mgl64.Vec3{1, 2, 3}, 4)
	if diff := cmp.Diff(mgl64.Vec3{1, 2, 3}, local.FlatCenter()); diff != "" {
		t.Errorf("FlatCenter() mismatch (-want+got):\n%v", diff)
	}
	if got, want := local.Padding(), 1.0; got != want {
		t.Errorf("Padding() = %v, want = %v", got, want)
	}
}

func TestFlatFrameAntimeridian(t *testing.T) {
	center := volume.Cartographic{Lon: math.Pi, Lat: mgl64.DegToRad(60), Height: 0}.ToECEF()
	s := volume.NewSphere(center, 1000)
	lo, hi := s.FlatBounds()
	// one kilometer east at 60 degrees is two kilometers of flat longitude
	if span := hi[0] - lo[0]; span < 3900 || span > 4100 {
		t.Errorf("FlatBounds() x span = %v, want about 4000", span)
	}
	if got, want := s.Padding(), 2.0; math.Abs(got-want) > 0.01 {
		t.Errorf("Padding() = %v, want = %v", got, want)
	}
}
