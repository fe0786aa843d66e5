package deferred

import (
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl32"
)

// Light is one light volume. It is also the per-instance vertex
// layout of the lighting pipeline: Position and Size are read as one
// float4, Color as a float3.
type Light struct {
	Position mgl32.Vec3
	Size     float32
	Color    mgl32.Vec3
}

// LightSize is the size in bytes of an encoded Light.
const LightSize = 28

const (
	MinLights     = 100
	MaxLights     = 50000
	DefaultLights = 10000
)

// ClampLightCount bounds n to [MinLights, MaxLights].
func ClampLightCount(n int) int {
	return min(max(n, MinLights), MaxLights)
}

// LightGenerator produces pseudo-random light sets. Successive calls
// continue the same random stream.
type LightGenerator struct {
	rng *rand.Rand
}

func NewLightGenerator(seed uint64) *LightGenerator {
	return &LightGenerator{
		rng: rand.New(rand.NewPCG(seed, seed)),
	}
}

// Generate returns count lights scattered through a 20 unit cube
// centered on the origin, with sizes in [0.1, 0.3) and random colors.
func (g *LightGenerator) Generate(count int) []Light {
	lights := make([]Light, count)
	for i := range lights {
		light := &lights[i]
		light.Position = mgl32.Vec3{g.next(), g.next(), g.next()}.
			Sub(mgl32.Vec3{0.5, 0.5, 0.5}).
			Mul(20)
		light.Size = 0.1 + g.next()*0.2
		light.Color = mgl32.Vec3{g.next(), g.next(), g.next()}
	}
	return lights
}

func (g *LightGenerator) next() float32 {
	return g.rng.Float32()
}
