package deferred

import (
	"log"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/renderpass-examples/gfx"
)

type cacheEntry struct {
	framebuffer gfx.Framebuffer
	// G-buffer color, G-buffer depth Z and depth buffer
	textures [AttachmentFinal]gfx.Texture
	lighting gfx.ResourceBinding
}

func (e *cacheEntry) destroy() {
	if e.lighting != nil {
		e.lighting.Destroy()
	}
	if e.framebuffer != nil {
		e.framebuffer.Destroy()
	}
	for _, tex := range e.textures {
		if tex != nil {
			tex.Destroy()
		}
	}
}

// FramebufferCache owns one framebuffer per back buffer, together
// with the G-buffer and depth textures it renders to and the lighting
// resource binding that reads that G-buffer.
//
// Back buffer views are stable for the lifetime of a swap chain, so
// after the first frame on every image no object is created anymore.
// Invalidate must be called whenever the swap chain size changes.
type FramebufferCache struct {
	dev      gfx.Device
	sc       gfx.SwapChain
	rp       gfx.RenderPass
	lighting gfx.Pipeline

	// spare is the binding built along with the lighting pipeline;
	// the first cache entry adopts it.
	spare gfx.ResourceBinding

	entries map[gfx.TextureView]*cacheEntry
}

// NewFramebufferCache returns an empty cache. lightingBinding may be
// nil; when it is not, the cache takes ownership of it.
func NewFramebufferCache(dev gfx.Device, sc gfx.SwapChain, rp gfx.RenderPass, lighting gfx.Pipeline, lightingBinding gfx.ResourceBinding) *FramebufferCache {
	return &FramebufferCache{
		dev:      dev,
		sc:       sc,
		rp:       rp,
		lighting: lighting,
		spare:    lightingBinding,
		entries:  make(map[gfx.TextureView]*cacheEntry),
	}
}

// Get returns the framebuffer that renders to target, building it
// and wiring its lighting binding on first use.
func (c *FramebufferCache) Get(target gfx.TextureView) (gfx.Framebuffer, error) {
	entry, err := c.ensureAttachments(target)
	if err != nil {
		return nil, err
	}
	err = c.ensureLightingBindingsWired(target)
	if err != nil {
		return nil, err
	}
	return entry.framebuffer, nil
}

// LightingBinding returns the lighting resource binding that reads
// the G-buffer of target's framebuffer.
func (c *FramebufferCache) LightingBinding(target gfx.TextureView) (gfx.ResourceBinding, bool) {
	entry, ok := c.entries[target]
	if !ok || entry.lighting == nil {
		return nil, false
	}
	return entry.lighting, true
}

// Len returns the number of cached framebuffers.
func (c *FramebufferCache) Len() int {
	return len(c.entries)
}

func (c *FramebufferCache) ensureAttachments(target gfx.TextureView) (*cacheEntry, error) {
	if entry, ok := c.entries[target]; ok {
		return entry, nil
	}

	scDesc := c.sc.Desc()
	rpDesc := c.rp.Desc()

	texDescs := [AttachmentFinal]gfx.TextureDesc{
		AttachmentColor: {
			Name: "Color G-buffer",
			Bind: gfx.BindRenderTarget | gfx.BindInputAttachment | gfx.BindShaderResource,
		},
		AttachmentDepthZ: {
			Name: "Depth Z G-buffer",
			Bind: gfx.BindRenderTarget | gfx.BindInputAttachment | gfx.BindShaderResource,
		},
		AttachmentDepth: {
			Name: "Depth buffer",
			Bind: gfx.BindDepthStencil,
		},
	}

	entry := &cacheEntry{}
	views := make([]gfx.TextureView, attachmentCount)
	for i := range texDescs {
		desc := texDescs[i]
		desc.Width = scDesc.Width
		desc.Height = scDesc.Height
		desc.Format = rpDesc.Attachments[i].Format
		desc.MipLevels = 1

		tex, err := c.dev.CreateTexture(desc, nil)
		if err != nil {
			entry.destroy()
			return nil, errors.Wrapf(err, "create texture %q", desc.Name)
		}
		entry.textures[i] = tex

		if desc.Format.IsDepth() {
			views[i] = tex.View(gfx.ViewDepthStencil)
		} else {
			views[i] = tex.View(gfx.ViewRenderTarget)
		}
	}
	views[AttachmentFinal] = target

	fbDesc := gfx.FramebufferDesc{
		Name:        "G-buffer framebuffer",
		RenderPass:  c.rp,
		Attachments: views,
	}
	fb, err := c.dev.CreateFramebuffer(fbDesc)
	if err != nil {
		entry.destroy()
		return nil, errors.Wrapf(err, "create framebuffer %q", fbDesc.Name)
	}
	entry.framebuffer = fb

	c.entries[target] = entry
	log.Printf("Framebuffer cache: built %dx%d framebuffer %d", scDesc.Width, scDesc.Height, len(c.entries))
	return entry, nil
}

// ensureLightingBindingsWired points the lighting inputs of target's
// entry at the entry's G-buffer. It does nothing when that is
// already the case.
func (c *FramebufferCache) ensureLightingBindingsWired(target gfx.TextureView) error {
	entry, ok := c.entries[target]
	if !ok {
		return errors.Newf("framebuffer cache: no framebuffer for %q", target.ResourceName())
	}
	if entry.lighting != nil {
		return nil
	}

	binding := c.spare
	c.spare = nil
	if binding == nil {
		var err error
		binding, err = c.lighting.CreateResourceBinding()
		if err != nil {
			return errors.Wrapf(err, "pipeline %q: create resource binding", LightingPipelineName)
		}
	}

	inputs := []struct {
		name       string
		attachment int
	}{
		{VarInColor, AttachmentColor},
		{VarInDepthZ, AttachmentDepthZ},
	}
	for _, in := range inputs {
		view := entry.textures[in.attachment].View(gfx.ViewShaderResource)
		err := binding.Set(in.name, view)
		if err != nil {
			binding.Destroy()
			return errors.Wrapf(err, "pipeline %q: set variable %q", LightingPipelineName, in.name)
		}
	}

	entry.lighting = binding
	return nil
}

// Invalidate releases every cached framebuffer, its textures and its
// lighting binding.
func (c *FramebufferCache) Invalidate() {
	if len(c.entries) > 0 {
		log.Printf("Framebuffer cache: releasing %d framebuffers", len(c.entries))
	}
	for target, entry := range c.entries {
		entry.destroy()
		delete(c.entries, target)
	}
}

// Destroy releases everything the cache owns.
func (c *FramebufferCache) Destroy() {
	c.Invalidate()
	if c.spare != nil {
		c.spare.Destroy()
		c.spare = nil
	}
}
