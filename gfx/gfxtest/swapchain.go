package gfxtest

import (
	"fmt"

	"github.com/vkngwrapper/renderpass-examples/gfx"
)

// SwapChain is a recording gfx.SwapChain that cycles through a
// fixed number of back buffers.
type SwapChain struct {
	rec     *Recorder
	ctx     *Context
	desc    gfx.SwapChainDesc
	images  []*Texture
	current int
}

var _ gfx.SwapChain = (*SwapChain)(nil)

// NewSwapChain returns a swap chain with imageCount back buffers
// that records into the same log as d.
func (d *Device) NewSwapChain(desc gfx.SwapChainDesc, imageCount int) *SwapChain {
	sc := &SwapChain{rec: d.Recorder, ctx: d.ctx, desc: desc}
	sc.createImages(imageCount)
	return sc
}

func (s *SwapChain) createImages(count int) {
	s.images = make([]*Texture, count)
	for i := range s.images {
		s.images[i] = NewTexture(s.rec, gfx.TextureDesc{
			Name:      fmt.Sprintf("Back buffer %d", i),
			Width:     s.desc.Width,
			Height:    s.desc.Height,
			Format:    s.desc.ColorFormat,
			Bind:      gfx.BindRenderTarget,
			MipLevels: 1,
		}, nil)
	}
	s.current = 0
}

func (s *SwapChain) Desc() gfx.SwapChainDesc { return s.desc }

// Image returns the back buffer at index i.
func (s *SwapChain) Image(i int) *Texture {
	return s.images[i]
}

func (s *SwapChain) CurrentBackBuffer() gfx.TextureView {
	return s.images[s.current].View(gfx.ViewRenderTarget)
}

// BeginFrame records the start of a frame and discards whatever the
// device context still holds from an abandoned one. The first frame
// after creation or Resize uses image 0.
func (s *SwapChain) BeginFrame() error {
	if err := s.rec.record("BeginFrame", "", nil); err != nil {
		return err
	}
	s.ctx.reset()
	return nil
}

// Present advances the current back buffer.
func (s *SwapChain) Present() error {
	if err := s.rec.record("Present", "", s.current); err != nil {
		return err
	}
	s.current = (s.current + 1) % len(s.images)
	return nil
}

// Resize recreates every back buffer with the new size, which gives
// them new identities.
func (s *SwapChain) Resize(width, height int) error {
	if err := s.rec.record("ResizeSwapChain", "", [2]int{width, height}); err != nil {
		return err
	}
	s.desc.Width = width
	s.desc.Height = height
	s.createImages(len(s.images))
	return nil
}
