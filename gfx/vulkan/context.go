package vulkan

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/renderpass-examples/gfx"
)

// Context is the immediate gfx.Context of a Device. It records into
// a single primary command buffer between SwapChain.BeginFrame and
// SwapChain.Present.
type Context struct {
	dev           *Device
	commandBuffer core1_0.CommandBuffer
	recording     bool

	pass        *RenderPass
	framebuffer *Framebuffer
	subpass     int
	pipeline    *Pipeline
	committed   *ResourceBinding

	indexBuffer *Buffer
	indexOffset int
}

var _ gfx.Context = (*Context)(nil)

func newContext(d *Device) (*Context, error) {
	buffers, _, err := d.deviceDriver.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        d.commandPool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	})
	if err != nil {
		return nil, errors.Wrap(err, "allocate command buffer")
	}

	return &Context{dev: d, commandBuffer: buffers[0]}, nil
}

func (c *Context) destroy() {
	if c.commandBuffer.Initialized() {
		c.dev.deviceDriver.FreeCommandBuffers(c.commandBuffer)
		c.commandBuffer = core1_0.CommandBuffer{}
	}
}

func (c *Context) reset() {
	c.pass = nil
	c.framebuffer = nil
	c.subpass = 0
	c.pipeline = nil
	c.committed = nil
	c.indexBuffer = nil
	c.indexOffset = 0
}

// begin starts a new frame. Whatever an abandoned frame left in the
// command buffer is discarded.
func (c *Context) begin() error {
	driver := c.dev.deviceDriver
	c.reset()

	_, err := driver.ResetCommandBuffer(c.commandBuffer, 0)
	if err != nil {
		return errors.Wrap(err, "reset command buffer")
	}

	_, err = driver.BeginCommandBuffer(c.commandBuffer, core1_0.CommandBufferBeginInfo{
		Flags: core1_0.CommandBufferUsageOneTimeSubmit,
	})
	if err != nil {
		return errors.Wrap(err, "begin command buffer")
	}
	c.recording = true
	return nil
}

// end finishes recording and returns the command buffer to submit.
func (c *Context) end() (core1_0.CommandBuffer, error) {
	if !c.recording {
		return core1_0.CommandBuffer{}, errors.New("end frame: context is not recording")
	}
	if c.pass != nil {
		return core1_0.CommandBuffer{}, errors.Newf("end frame: render pass %q was not ended", c.pass.desc.Name)
	}

	c.recording = false
	_, err := c.dev.deviceDriver.EndCommandBuffer(c.commandBuffer)
	if err != nil {
		return core1_0.CommandBuffer{}, errors.Wrap(err, "end command buffer")
	}
	return c.commandBuffer, nil
}

func (c *Context) checkRecording() error {
	if !c.recording {
		return errors.New("context is not recording; call SwapChain.BeginFrame first")
	}
	return nil
}

func (c *Context) BeginRenderPass(info gfx.BeginRenderPassInfo) error {
	if err := c.checkRecording(); err != nil {
		return err
	}
	if c.pass != nil {
		return errors.Newf("render pass %q already in progress", c.pass.desc.Name)
	}

	rp, ok := info.RenderPass.(*RenderPass)
	if !ok {
		return errors.Wrap(gfx.ErrInvalidDesc, "begin render pass: render pass was not created by this device")
	}
	fb, ok := info.Framebuffer.(*Framebuffer)
	if !ok || fb.desc.RenderPass != info.RenderPass {
		return errors.Wrapf(gfx.ErrInvalidDesc, "begin render pass %q: framebuffer does not belong to it", rp.desc.Name)
	}
	if len(info.ClearValues) < len(rp.desc.Attachments) {
		return errors.Wrapf(gfx.ErrInvalidDesc, "begin render pass %q: %d clear values for %d attachments",
			rp.desc.Name, len(info.ClearValues), len(rp.desc.Attachments))
	}

	extent := core1_0.Extent2D{Width: fb.width, Height: fb.height}
	err := c.dev.deviceDriver.CmdBeginRenderPass(c.commandBuffer, core1_0.SubpassContentsInline,
		core1_0.RenderPassBeginInfo{
			RenderPass:  rp.renderPass,
			Framebuffer: fb.framebuffer,
			RenderArea: core1_0.Rect2D{
				Offset: core1_0.Offset2D{X: 0, Y: 0},
				Extent: extent,
			},
			ClearValues: clearValues(rp.desc, info.ClearValues),
		})
	if err != nil {
		return errors.Wrapf(err, "begin render pass %q", rp.desc.Name)
	}

	c.dev.deviceDriver.CmdSetViewport(c.commandBuffer, core1_0.Viewport{
		Width:    float32(fb.width),
		Height:   float32(fb.height),
		MinDepth: 0,
		MaxDepth: 1,
	})
	c.dev.deviceDriver.CmdSetScissor(c.commandBuffer, core1_0.Rect2D{Extent: extent})

	c.pass = rp
	c.framebuffer = fb
	c.subpass = 0
	c.pipeline = nil
	c.committed = nil
	return nil
}

func (c *Context) NextSubpass() error {
	if c.pass == nil {
		return gfx.ErrNoRenderPass
	}
	if c.subpass+1 >= len(c.pass.desc.Subpasses) {
		return errors.Newf("render pass %q has no subpass %d", c.pass.desc.Name, c.subpass+1)
	}

	c.dev.deviceDriver.CmdNextSubpass(c.commandBuffer, core1_0.SubpassContentsInline)
	c.subpass++
	c.pipeline = nil
	c.committed = nil
	return nil
}

func (c *Context) EndRenderPass() error {
	if c.pass == nil {
		return gfx.ErrNoRenderPass
	}
	last := len(c.pass.desc.Subpasses) - 1
	if c.subpass != last {
		return errors.Newf("render pass %q ended in subpass %d of %d", c.pass.desc.Name, c.subpass, last+1)
	}

	c.dev.deviceDriver.CmdEndRenderPass(c.commandBuffer)
	c.pass = nil
	c.framebuffer = nil
	c.subpass = 0
	c.pipeline = nil
	c.committed = nil
	return nil
}

func (c *Context) SetPipeline(p gfx.Pipeline) error {
	if c.pass == nil {
		return gfx.ErrNoRenderPass
	}
	vp, ok := p.(*Pipeline)
	if !ok {
		return errors.Wrap(gfx.ErrInvalidDesc, "set pipeline: pipeline was not created by this device")
	}
	if vp.desc.RenderPass != gfx.RenderPass(c.pass) || vp.desc.Subpass != c.subpass {
		return errors.Newf("pipeline %q is for subpass %d of render pass %q, current subpass is %d of %q",
			vp.desc.Name, vp.desc.Subpass, vp.desc.RenderPass.Desc().Name, c.subpass, c.pass.desc.Name)
	}

	c.dev.deviceDriver.CmdBindPipeline(c.commandBuffer, core1_0.PipelineBindPointGraphics, vp.pipeline)
	c.pipeline = vp
	c.committed = nil
	return nil
}

func (c *Context) CommitResources(b gfx.ResourceBinding) error {
	rb, ok := b.(*ResourceBinding)
	if !ok {
		return errors.Wrap(gfx.ErrInvalidDesc, "commit resources: binding was not created by this device")
	}
	if c.pipeline == nil || rb.pipeline != c.pipeline {
		return errors.Newf("resource binding of pipeline %q committed without its pipeline", rb.pipeline.desc.Name)
	}
	if err := rb.complete(); err != nil {
		return err
	}

	c.dev.deviceDriver.CmdBindDescriptorSets(c.commandBuffer, core1_0.PipelineBindPointGraphics, c.pipeline.pipelineLayout, 0,
		[]core1_0.DescriptorSet{rb.descriptorSet}, nil)
	c.committed = rb
	return nil
}

func (c *Context) SetVertexBuffers(start int, bufs []gfx.Buffer, offsets []int) error {
	if err := c.checkRecording(); err != nil {
		return err
	}
	if len(offsets) != 0 && len(offsets) != len(bufs) {
		return errors.Newf("%d offsets for %d vertex buffers", len(offsets), len(bufs))
	}
	if offsets == nil {
		offsets = make([]int, len(bufs))
	}

	buffers := make([]core1_0.Buffer, len(bufs))
	for i, buf := range bufs {
		vb, ok := buf.(*Buffer)
		if !ok {
			return errors.Wrapf(gfx.ErrInvalidDesc, "vertex buffer %d was not created by this device", i)
		}
		buffers[i] = vb.buffer
	}

	c.dev.deviceDriver.CmdBindVertexBuffers(c.commandBuffer, start, buffers, offsets)
	return nil
}

// SetIndexBuffer records buf for the next draw. It is bound when the
// draw supplies the index type.
func (c *Context) SetIndexBuffer(buf gfx.Buffer, offset int) error {
	if err := c.checkRecording(); err != nil {
		return err
	}
	ib, ok := buf.(*Buffer)
	if !ok {
		return errors.Wrap(gfx.ErrInvalidDesc, "index buffer was not created by this device")
	}
	c.indexBuffer = ib
	c.indexOffset = offset
	return nil
}

func (c *Context) DrawIndexed(attribs gfx.DrawIndexedAttribs) error {
	if c.pass == nil {
		return gfx.ErrNoRenderPass
	}
	if c.pipeline == nil {
		return errors.New("draw without a pipeline")
	}
	if len(c.pipeline.desc.Resources.Variables) > 0 && c.committed == nil {
		return errors.Newf("pipeline %q: draw without committed resources", c.pipeline.desc.Name)
	}
	if c.indexBuffer == nil {
		return errors.New("indexed draw without an index buffer")
	}
	if err := attribs.Check(); err != nil {
		return err
	}

	driver := c.dev.deviceDriver
	driver.CmdBindIndexBuffer(c.commandBuffer, c.indexBuffer.buffer, c.indexOffset, indexType(attribs.IndexType))
	driver.CmdDrawIndexed(c.commandBuffer, attribs.NumIndices, attribs.NumInstances,
		attribs.FirstIndex, attribs.BaseVertex, attribs.FirstInstance)
	return nil
}

// WriteDynamic maps the buffer and copies the encoded data into it.
// The buffer memory is host coherent, so the write is visible to the
// next submitted frame.
func (c *Context) WriteDynamic(buf gfx.Buffer, data any) error {
	b, ok := buf.(*Buffer)
	if !ok {
		return errors.Wrap(gfx.ErrInvalidDesc, "write dynamic: buffer was not created by this device")
	}
	if b.desc.Usage != gfx.UsageDynamic {
		return errors.Newf("buffer %q is not dynamic", b.desc.Name)
	}

	encoded, err := gfx.Encode(data)
	if err != nil {
		return errors.Wrapf(err, "encode data for buffer %q", b.desc.Name)
	}
	if len(encoded) > b.desc.Size {
		return errors.Newf("buffer %q: %d bytes written to a %d byte buffer", b.desc.Name, len(encoded), b.desc.Size)
	}

	return writeData(c.dev.deviceDriver, b.memory, 0, encoded)
}
