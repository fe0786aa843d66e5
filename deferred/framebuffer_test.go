package deferred

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/renderpass-examples/gfx"
	"github.com/vkngwrapper/renderpass-examples/gfx/gfxtest"
)

type cacheFixture struct {
	dev      *gfxtest.Device
	sc       *gfxtest.SwapChain
	cache    *FramebufferCache
	lighting gfx.Pipeline
	spare    gfx.ResourceBinding
}

func newCacheFixture(t *testing.T) *cacheFixture {
	t.Helper()
	dev := gfxtest.NewDevice()
	sc := dev.NewSwapChain(testSwapChainDesc, 3)
	rp, err := createRenderPass(dev, sc)
	if err != nil {
		t.Fatalf("createRenderPass: %v", err)
	}
	constants, err := dev.CreateBuffer(gfx.BufferDesc{Name: "cb", Size: 64, Usage: gfx.UsageDynamic}, nil)
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	pso, binding, err := buildPipeline(dev, LightingPipelineDesc(rp, testPrograms()), map[string]gfx.Resource{VarConstants: constants})
	if err != nil {
		t.Fatalf("buildPipeline: %v", err)
	}
	dev.Reset()

	return &cacheFixture{
		dev:      dev,
		sc:       sc,
		cache:    NewFramebufferCache(dev, sc, rp, pso, binding),
		lighting: pso,
		spare:    binding,
	}
}

func TestFramebufferCacheGet(t *testing.T) {
	f := newCacheFixture(t)
	target := f.sc.CurrentBackBuffer()

	fb, err := f.cache.Get(target)
	if err != nil {
		t.Fatalf("Get: unexpected error: %+v", err)
	}
	if n := f.dev.Count("CreateTexture"); n != 3 {
		t.Fatalf("Get: created %d textures, want 3", n)
	}
	if n := f.dev.Count("CreateFramebuffer"); n != 1 {
		t.Fatalf("Get: created %d framebuffers, want 1", n)
	}

	desc := fb.Desc()
	if desc.Attachments[AttachmentFinal] != target {
		t.Fatal("Get: back buffer is not the final attachment")
	}
	if fb.Width() != testSwapChainDesc.Width || fb.Height() != testSwapChainDesc.Height {
		t.Fatalf("Get: framebuffer is %dx%d", fb.Width(), fb.Height())
	}

	// The first entry adopts the binding built with the pipeline and
	// points it at its own G-buffer.
	binding, ok := f.cache.LightingBinding(target)
	if !ok || binding != f.spare {
		t.Fatal("Get: lighting binding was not wired with the pipeline's binding")
	}
	vars := binding.(*gfxtest.ResourceBinding).Vars
	colorTex := desc.Attachments[AttachmentColor].Texture()
	depthZTex := desc.Attachments[AttachmentDepthZ].Texture()
	if vars[VarInColor] != colorTex.View(gfx.ViewShaderResource) {
		t.Fatalf("Get: %s is not the color G-buffer", VarInColor)
	}
	if vars[VarInDepthZ] != depthZTex.View(gfx.ViewShaderResource) {
		t.Fatalf("Get: %s is not the depth Z G-buffer", VarInDepthZ)
	}

	f.dev.Reset()
	again, err := f.cache.Get(target)
	if err != nil {
		t.Fatalf("Get: unexpected error: %+v", err)
	}
	if again != fb {
		t.Fatal("Get: second call returned a different framebuffer")
	}
	if len(f.dev.Calls) != 0 {
		t.Fatalf("Get: second call reached the device: %v", f.dev.Ops())
	}
	if f.cache.Len() != 1 {
		t.Fatalf("Len: got %d, want 1", f.cache.Len())
	}
}

func TestFramebufferCachePerTarget(t *testing.T) {
	f := newCacheFixture(t)

	var fbs []gfx.Framebuffer
	var bindings []gfx.ResourceBinding
	for i := 0; i < 3; i++ {
		target := f.sc.Image(i).View(gfx.ViewRenderTarget)
		fb, err := f.cache.Get(target)
		if err != nil {
			t.Fatalf("Get(%d): unexpected error: %+v", i, err)
		}
		binding, ok := f.cache.LightingBinding(target)
		if !ok {
			t.Fatalf("LightingBinding(%d): not wired", i)
		}
		input := binding.(*gfxtest.ResourceBinding).Vars[VarInColor]
		if input != fb.Desc().Attachments[AttachmentColor].Texture().View(gfx.ViewShaderResource) {
			t.Fatalf("LightingBinding(%d): reads another framebuffer's G-buffer", i)
		}
		for j := range fbs {
			if fbs[j] == fb || bindings[j] == binding {
				t.Fatalf("Get(%d): shares objects with target %d", i, j)
			}
		}
		fbs = append(fbs, fb)
		bindings = append(bindings, binding)
	}
	if f.cache.Len() != 3 {
		t.Fatalf("Len: got %d, want 3", f.cache.Len())
	}
	if n := f.dev.Count("CreateResourceBinding"); n != 2 {
		t.Fatalf("Get: created %d lighting bindings, want 2", n)
	}
}

func TestFramebufferCacheInvalidate(t *testing.T) {
	f := newCacheFixture(t)
	target := f.sc.CurrentBackBuffer()

	first, err := f.cache.Get(target)
	if err != nil {
		t.Fatalf("Get: unexpected error: %+v", err)
	}
	firstBinding, _ := f.cache.LightingBinding(target)

	f.cache.Invalidate()
	if f.cache.Len() != 0 {
		t.Fatalf("Invalidate: %d entries left", f.cache.Len())
	}
	if _, ok := f.cache.LightingBinding(target); ok {
		t.Fatal("Invalidate: lighting binding survived")
	}
	if !first.(*gfxtest.Framebuffer).Destroyed {
		t.Fatal("Invalidate: framebuffer not destroyed")
	}
	if !firstBinding.(*gfxtest.ResourceBinding).Destroyed {
		t.Fatal("Invalidate: lighting binding not destroyed")
	}
	for i := AttachmentColor; i < AttachmentFinal; i++ {
		if !first.Desc().Attachments[i].Texture().(*gfxtest.Texture).Destroyed {
			t.Fatalf("Invalidate: attachment %d not destroyed", i)
		}
	}
	if f.sc.Image(0).Destroyed {
		t.Fatal("Invalidate: destroyed the back buffer it does not own")
	}

	second, err := f.cache.Get(target)
	if err != nil {
		t.Fatalf("Get: unexpected error: %+v", err)
	}
	if second == first {
		t.Fatal("Get: returned a framebuffer released by Invalidate")
	}
	secondBinding, ok := f.cache.LightingBinding(target)
	if !ok || secondBinding == firstBinding {
		t.Fatal("Get: lighting binding was not rebuilt")
	}
}

func TestFramebufferCacheResize(t *testing.T) {
	f := newCacheFixture(t)
	if _, err := f.cache.Get(f.sc.CurrentBackBuffer()); err != nil {
		t.Fatalf("Get: unexpected error: %+v", err)
	}

	if err := f.sc.Resize(1024, 768); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	f.cache.Invalidate()

	fb, err := f.cache.Get(f.sc.CurrentBackBuffer())
	if err != nil {
		t.Fatalf("Get: unexpected error: %+v", err)
	}
	for i, view := range fb.Desc().Attachments {
		td := view.Texture().Desc()
		if td.Width != 1024 || td.Height != 768 {
			t.Fatalf("Get: attachment %d is %dx%d after resize", i, td.Width, td.Height)
		}
	}
}

func TestFramebufferCacheFailure(t *testing.T) {
	f := newCacheFixture(t)
	boom := errors.New("out of memory")
	f.dev.FailOn["CreateFramebuffer"] = boom

	_, err := f.cache.Get(f.sc.CurrentBackBuffer())
	if !errors.Is(err, boom) {
		t.Fatalf("Get: got %v, want %v", err, boom)
	}
	if f.cache.Len() != 0 {
		t.Fatal("Get: failed entry was cached")
	}
	if n := f.dev.Count("DestroyTexture"); n != 3 {
		t.Fatalf("Get: destroyed %d textures after failure, want 3", n)
	}

	delete(f.dev.FailOn, "CreateFramebuffer")
	f.dev.FailOn["SetVariable"] = boom
	_, err = f.cache.Get(f.sc.CurrentBackBuffer())
	if !errors.Is(err, boom) {
		t.Fatalf("Get: got %v, want %v", err, boom)
	}
	if _, ok := f.cache.LightingBinding(f.sc.CurrentBackBuffer()); ok {
		t.Fatal("Get: half-wired lighting binding was kept")
	}

	// The framebuffer itself was built; the next call only wires the
	// binding.
	delete(f.dev.FailOn, "SetVariable")
	f.dev.Reset()
	if _, err := f.cache.Get(f.sc.CurrentBackBuffer()); err != nil {
		t.Fatalf("Get: unexpected error: %+v", err)
	}
	if f.dev.Count("CreateFramebuffer") != 0 || f.dev.Count("CreateResourceBinding") != 1 {
		t.Fatalf("Get: unexpected calls %v", f.dev.Ops())
	}
}

func TestFramebufferCacheDestroy(t *testing.T) {
	f := newCacheFixture(t)
	f.cache.Destroy()
	if !f.spare.(*gfxtest.ResourceBinding).Destroyed {
		t.Fatal("Destroy: unused lighting binding leaked")
	}
}
