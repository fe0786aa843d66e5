package deferred

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func project(m mgl32.Mat4, p mgl32.Vec3) mgl32.Vec3 {
	clip := m.Mul4x1(p.Vec4(1))
	return clip.Vec3().Mul(1 / clip.W())
}

func TestCameraWorldViewProj(t *testing.T) {
	c := NewCamera()
	c.Update(0, 640, 480)
	wvp := c.WorldViewProj()

	center := project(wvp, mgl32.Vec3{})
	if !mgl32.FloatEqual(center.X(), 0) || !mgl32.FloatEqual(center.Y(), 0) {
		t.Fatalf("WorldViewProj: origin projects to %v", center)
	}
	if center.Z() <= 0 || center.Z() >= 1 {
		t.Fatalf("WorldViewProj: origin depth %v outside (0, 1)", center.Z())
	}

	// Vulkan's Y axis points down.
	up := project(wvp, mgl32.Vec3{0, 1, 0})
	if up.Y() >= 0 {
		t.Fatalf("WorldViewProj: +Y projects to %v", up)
	}

	near := project(wvp, mgl32.Vec3{0, 0, 5})
	far := project(wvp, mgl32.Vec3{0, 0, -5})
	if near.Z() >= far.Z() {
		t.Fatalf("WorldViewProj: depth not increasing away from the camera (%v, %v)", near.Z(), far.Z())
	}
}

func TestCameraSpin(t *testing.T) {
	c := NewCamera()

	// A quarter turn at 0.1 radians per second.
	c.Update(math.Pi/2/0.1, 480, 480)
	rotated := project(c.WorldViewProj(), mgl32.Vec3{1, 0, 0})

	c.Update(0, 480, 480)
	reference := project(c.WorldViewProj(), mgl32.Vec3{0, 1, 0})

	if !rotated.ApproxEqualThreshold(reference, 1e-4) {
		t.Fatalf("Update: +X after a quarter turn projects to %v, want %v", rotated, reference)
	}
}
