package gfxtest

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/renderpass-examples/gfx"
)

// Context is a recording gfx.Context. Besides recording, it checks
// the command order a real device would reject.
type Context struct {
	rec *Recorder

	pass      *RenderPass
	subpass   int
	pipeline  *Pipeline
	committed *ResourceBinding
}

var _ gfx.Context = (*Context)(nil)

// InRenderPass reports whether a render pass has begun and not
// ended yet.
func (c *Context) InRenderPass() bool {
	return c.pass != nil
}

// Subpass returns the current subpass index.
func (c *Context) Subpass() int {
	return c.subpass
}

// reset drops the state of an abandoned frame.
func (c *Context) reset() {
	c.pass = nil
	c.subpass = 0
	c.pipeline = nil
	c.committed = nil
}

func (c *Context) BeginRenderPass(info gfx.BeginRenderPassInfo) error {
	if info.RenderPass == nil {
		return errors.Wrap(gfx.ErrInvalidDesc, "begin render pass without a render pass")
	}
	if err := c.rec.record("BeginRenderPass", info.RenderPass.Desc().Name, info); err != nil {
		return err
	}
	if c.pass != nil {
		return errors.New("render pass already in progress")
	}
	rp, ok := info.RenderPass.(*RenderPass)
	if !ok {
		return errors.Wrap(gfx.ErrInvalidDesc, "foreign render pass")
	}
	if info.Framebuffer == nil || info.Framebuffer.Desc().RenderPass != info.RenderPass {
		return errors.Wrapf(gfx.ErrInvalidDesc, "framebuffer does not belong to render pass %q", rp.desc.Name)
	}
	if fb, ok := info.Framebuffer.(*Framebuffer); ok && fb.Destroyed {
		return errors.Newf("framebuffer %q was destroyed", fb.desc.Name)
	}
	if len(info.ClearValues) < len(rp.desc.Attachments) {
		return errors.Wrapf(gfx.ErrInvalidDesc, "%d clear values for %d attachments",
			len(info.ClearValues), len(rp.desc.Attachments))
	}
	c.pass = rp
	c.subpass = 0
	c.pipeline = nil
	c.committed = nil
	return nil
}

func (c *Context) NextSubpass() error {
	if err := c.rec.record("NextSubpass", "", c.subpass+1); err != nil {
		return err
	}
	if c.pass == nil {
		return gfx.ErrNoRenderPass
	}
	if c.subpass+1 >= len(c.pass.desc.Subpasses) {
		return errors.Newf("render pass %q has no subpass %d", c.pass.desc.Name, c.subpass+1)
	}
	c.subpass++
	return nil
}

func (c *Context) EndRenderPass() error {
	if err := c.rec.record("EndRenderPass", "", nil); err != nil {
		return err
	}
	if c.pass == nil {
		return gfx.ErrNoRenderPass
	}
	last := len(c.pass.desc.Subpasses) - 1
	if c.subpass != last {
		return errors.Newf("render pass %q ended in subpass %d of %d", c.pass.desc.Name, c.subpass, last+1)
	}
	c.pass = nil
	c.subpass = 0
	return nil
}

func (c *Context) SetPipeline(p gfx.Pipeline) error {
	if err := c.rec.record("SetPipeline", p.Desc().Name, p); err != nil {
		return err
	}
	tp, ok := p.(*Pipeline)
	if !ok {
		return errors.Wrap(gfx.ErrInvalidDesc, "foreign pipeline")
	}
	c.pipeline = tp
	c.committed = nil
	return nil
}

func (c *Context) CommitResources(b gfx.ResourceBinding) error {
	tb, ok := b.(*ResourceBinding)
	if !ok {
		return errors.Wrap(gfx.ErrInvalidDesc, "foreign resource binding")
	}
	if err := c.rec.record("CommitResources", tb.pipeline.desc.Name, b); err != nil {
		return err
	}
	if c.pipeline == nil || tb.pipeline != c.pipeline {
		return errors.Newf("resource binding of pipeline %q committed without its pipeline", tb.pipeline.desc.Name)
	}
	if tb.Destroyed {
		return errors.Newf("resource binding of pipeline %q was destroyed", tb.pipeline.desc.Name)
	}
	if err := tb.complete(); err != nil {
		return err
	}
	c.committed = tb
	return nil
}

func (c *Context) SetVertexBuffers(start int, bufs []gfx.Buffer, offsets []int) error {
	names := make([]string, len(bufs))
	for i, b := range bufs {
		names[i] = b.Desc().Name
	}
	if err := c.rec.record("SetVertexBuffers", "", names); err != nil {
		return err
	}
	if len(offsets) != 0 && len(offsets) != len(bufs) {
		return errors.Newf("%d offsets for %d vertex buffers", len(offsets), len(bufs))
	}
	return nil
}

func (c *Context) SetIndexBuffer(buf gfx.Buffer, offset int) error {
	return c.rec.record("SetIndexBuffer", buf.Desc().Name, offset)
}

func (c *Context) DrawIndexed(attribs gfx.DrawIndexedAttribs) error {
	if err := c.rec.record("DrawIndexed", "", attribs); err != nil {
		return err
	}
	if c.pass == nil {
		return gfx.ErrNoRenderPass
	}
	if c.pipeline == nil {
		return errors.New("draw without a pipeline")
	}
	if c.pipeline.desc.RenderPass != gfx.RenderPass(c.pass) || c.pipeline.desc.Subpass != c.subpass {
		return errors.Newf("pipeline %q is for subpass %d, current subpass is %d",
			c.pipeline.desc.Name, c.pipeline.desc.Subpass, c.subpass)
	}
	if len(c.pipeline.desc.Resources.Variables) > 0 && c.committed == nil {
		return errors.Newf("pipeline %q: draw without committed resources", c.pipeline.desc.Name)
	}
	return attribs.Check()
}

func (c *Context) WriteDynamic(buf gfx.Buffer, data any) error {
	if err := c.rec.record("WriteDynamic", buf.Desc().Name, data); err != nil {
		return err
	}
	tb, ok := buf.(*Buffer)
	if !ok {
		return errors.Wrap(gfx.ErrInvalidDesc, "foreign buffer")
	}
	if tb.desc.Usage != gfx.UsageDynamic {
		return errors.Newf("buffer %q is not dynamic", tb.desc.Name)
	}
	b, err := gfx.Encode(data)
	if err != nil {
		return errors.Wrapf(err, "encode data for buffer %q", tb.desc.Name)
	}
	if len(b) > tb.desc.Size {
		return errors.Newf("buffer %q: %d bytes written to a %d byte buffer", tb.desc.Name, len(b), tb.desc.Size)
	}
	tb.Data = b
	tb.Writes++
	return nil
}
