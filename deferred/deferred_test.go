package deferred

import (
	"image"
	"testing"

	"github.com/vkngwrapper/renderpass-examples/gfx"
	"github.com/vkngwrapper/renderpass-examples/gfx/gfxtest"
)

var testSwapChainDesc = gfx.SwapChainDesc{
	Width:       640,
	Height:      480,
	ColorFormat: gfx.FormatBGRA8UnormSRGB,
	DepthFormat: gfx.FormatD32Float,
}

func testPrograms() Programs {
	// SPIR-V magic number; the recording device never looks further.
	code := []byte{0x03, 0x02, 0x23, 0x07}
	shader := func(name string, stage gfx.ShaderStage) gfx.ShaderDesc {
		return gfx.ShaderDesc{Name: name, Stage: stage, EntryPoint: "main", Code: code}
	}
	return Programs{
		CubeVS:  shader("Cube VS", gfx.ShaderStageVertex),
		CubePS:  shader("Cube PS", gfx.ShaderStagePixel),
		LightVS: shader("Light volume VS", gfx.ShaderStageVertex),
		LightPS: shader("Lighting PS", gfx.ShaderStagePixel),
	}
}

func testAssets() Assets {
	return Assets{
		Programs: testPrograms(),
		Texture:  image.NewRGBA(image.Rect(0, 0, 4, 4)),
	}
}

func newTestRenderer(t *testing.T, lights int) (*Renderer, *gfxtest.Device, *gfxtest.SwapChain) {
	t.Helper()
	dev := gfxtest.NewDevice()
	sc := dev.NewSwapChain(testSwapChainDesc, 3)
	r, err := New(dev, sc, testAssets(), Config{LightCount: lights, Seed: 1})
	if err != nil {
		t.Fatalf("New: unexpected error: %+v", err)
	}
	return r, dev, sc
}

// contextOps are the operations recorded by gfx.Context.
var contextOps = map[string]bool{
	"BeginRenderPass":  true,
	"NextSubpass":      true,
	"EndRenderPass":    true,
	"SetPipeline":      true,
	"CommitResources":  true,
	"SetVertexBuffers": true,
	"SetIndexBuffer":   true,
	"DrawIndexed":      true,
	"WriteDynamic":     true,
}

func recordedContextOps(rec *gfxtest.Recorder) []string {
	var ops []string
	for _, op := range rec.Ops() {
		if contextOps[op] {
			ops = append(ops, op)
		}
	}
	return ops
}
