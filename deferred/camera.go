package deferred

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// vulkanClip maps OpenGL clip space to Vulkan's: Y points down and
// depth goes from 0 to 1.
var vulkanClip = mgl32.Mat4{
	1, 0, 0, 0,
	0, -1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

// Camera looks at the cube grid from 30 units away while the grid
// slowly spins around the Z axis.
type Camera struct {
	FOV      float32
	Near     float32
	Far      float32
	Distance float32
	Spin     float32 // radians per second

	model mgl32.Mat4
	view  mgl32.Mat4
	proj  mgl32.Mat4
}

func NewCamera() *Camera {
	return &Camera{
		FOV:      math.Pi / 4,
		Near:     0.1,
		Far:      100,
		Distance: 30,
		Spin:     0.1,
		model:    mgl32.Ident4(),
		view:     mgl32.Ident4(),
		proj:     mgl32.Ident4(),
	}
}

// Update recomputes the transforms for time t, in seconds, and a
// viewport of the given size.
func (c *Camera) Update(t float64, width, height int) {
	aspect := float32(1)
	if height > 0 {
		aspect = float32(width) / float32(height)
	}

	c.model = mgl32.HomogRotate3DZ(float32(t) * c.Spin)
	c.view = mgl32.Translate3D(0, 0, -c.Distance)
	c.proj = mgl32.Perspective(c.FOV, aspect, c.Near, c.Far)
}

// WorldViewProj returns the combined transform, ready for the
// vertex shaders' Constants block.
func (c *Camera) WorldViewProj() mgl32.Mat4 {
	return vulkanClip.Mul4(c.proj).Mul4(c.view).Mul4(c.model)
}
