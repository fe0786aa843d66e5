// Package gfxtest provides an in-memory gfx.Device that records
// every call made to it, for testing rendering code without a GPU.
package gfxtest

import (
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/renderpass-examples/gfx"
)

// Call is one recorded operation.
type Call struct {
	Op   string
	Name string
	Arg  any
}

// Recorder is the ordered log of calls shared by a Device, its
// Context and every object they create.
type Recorder struct {
	Calls []Call

	// FailOn makes the named operation return the given error
	// instead of executing. The failed call is still recorded.
	FailOn map[string]error
}

func (r *Recorder) record(op, name string, arg any) error {
	r.Calls = append(r.Calls, Call{Op: op, Name: name, Arg: arg})
	if err, ok := r.FailOn[op]; ok {
		return err
	}
	return nil
}

// Ops returns the operation names of every recorded call, in order.
func (r *Recorder) Ops() []string {
	ops := make([]string, 0, len(r.Calls))
	for _, c := range r.Calls {
		ops = append(ops, c.Op)
	}
	return ops
}

// Count returns how many times op was recorded.
func (r *Recorder) Count(op string) int {
	n := 0
	for _, c := range r.Calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Find returns the recorded calls of op.
func (r *Recorder) Find(op string) []Call {
	var calls []Call
	for _, c := range r.Calls {
		if c.Op == op {
			calls = append(calls, c)
		}
	}
	return calls
}

// Index returns the position of the n-th (0-based) call of op, or
// -1 when there are not that many.
func (r *Recorder) Index(op string, n int) int {
	for i, c := range r.Calls {
		if c.Op == op {
			if n == 0 {
				return i
			}
			n--
		}
	}
	return -1
}

// Reset forgets every recorded call. FailOn is kept.
func (r *Recorder) Reset() {
	r.Calls = nil
}

// Device is a recording gfx.Device.
type Device struct {
	*Recorder
	ctx *Context
}

var _ gfx.Device = (*Device)(nil)

// NewDevice returns an empty recording device.
func NewDevice() *Device {
	rec := &Recorder{FailOn: map[string]error{}}
	return &Device{
		Recorder: rec,
		ctx:      &Context{rec: rec},
	}
}

func (d *Device) CreateRenderPass(desc gfx.RenderPassDesc) (gfx.RenderPass, error) {
	if err := d.record("CreateRenderPass", desc.Name, desc); err != nil {
		return nil, err
	}
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	return &RenderPass{rec: d.Recorder, desc: desc}, nil
}

func (d *Device) CreatePipeline(desc gfx.PipelineDesc) (gfx.Pipeline, error) {
	if err := d.record("CreatePipeline", desc.Name, desc); err != nil {
		return nil, err
	}
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	return &Pipeline{rec: d.Recorder, desc: desc, statics: map[string]gfx.Resource{}}, nil
}

func (d *Device) CreateFramebuffer(desc gfx.FramebufferDesc) (gfx.Framebuffer, error) {
	if err := d.record("CreateFramebuffer", desc.Name, desc); err != nil {
		return nil, err
	}
	w, h, err := gfx.CheckFramebuffer(&desc)
	if err != nil {
		return nil, err
	}
	return &Framebuffer{rec: d.Recorder, desc: desc, width: w, height: h}, nil
}

func (d *Device) CreateTexture(desc gfx.TextureDesc, data []byte) (gfx.Texture, error) {
	if err := d.record("CreateTexture", desc.Name, desc); err != nil {
		return nil, err
	}
	if desc.Width <= 0 || desc.Height <= 0 || desc.Format == gfx.FormatUnknown {
		return nil, errors.Wrapf(gfx.ErrInvalidDesc, "texture %q: %dx%d %s", desc.Name, desc.Width, desc.Height, desc.Format)
	}
	if desc.MipLevels > gfx.MipLevelCount(desc.Width, desc.Height) {
		return nil, errors.Wrapf(gfx.ErrInvalidDesc, "texture %q: %d mip levels for %dx%d",
			desc.Name, desc.MipLevels, desc.Width, desc.Height)
	}
	return NewTexture(d.Recorder, desc, data), nil
}

func (d *Device) CreateBuffer(desc gfx.BufferDesc, data []byte) (gfx.Buffer, error) {
	if err := d.record("CreateBuffer", desc.Name, desc); err != nil {
		return nil, err
	}
	if desc.Size <= 0 {
		return nil, errors.Wrapf(gfx.ErrInvalidDesc, "buffer %q: size %d", desc.Name, desc.Size)
	}
	if desc.Usage == gfx.UsageImmutable && data == nil {
		return nil, errors.Wrapf(gfx.ErrInvalidDesc, "buffer %q: immutable buffer without data", desc.Name)
	}
	if len(data) > desc.Size {
		return nil, errors.Wrapf(gfx.ErrInvalidDesc, "buffer %q: %d bytes of data for size %d", desc.Name, len(data), desc.Size)
	}
	return &Buffer{rec: d.Recorder, desc: desc, Data: slices.Clone(data)}, nil
}

func (d *Device) Context() gfx.Context {
	return d.ctx
}

// RenderPass is a recorded render pass.
type RenderPass struct {
	rec       *Recorder
	desc      gfx.RenderPassDesc
	Destroyed bool
}

func (p *RenderPass) Desc() gfx.RenderPassDesc { return p.desc }

func (p *RenderPass) Destroy() {
	p.rec.record("DestroyRenderPass", p.desc.Name, p)
	p.Destroyed = true
}

// Framebuffer is a recorded framebuffer.
type Framebuffer struct {
	rec       *Recorder
	desc      gfx.FramebufferDesc
	width     int
	height    int
	Destroyed bool
}

func (f *Framebuffer) Desc() gfx.FramebufferDesc { return f.desc }
func (f *Framebuffer) Width() int                { return f.width }
func (f *Framebuffer) Height() int               { return f.height }

func (f *Framebuffer) Destroy() {
	f.rec.record("DestroyFramebuffer", f.desc.Name, f)
	f.Destroyed = true
}

// Texture is a recorded texture. Its views are created once and
// returned by identity.
type Texture struct {
	rec       *Recorder
	desc      gfx.TextureDesc
	views     map[gfx.ViewKind]*TextureView
	Data      []byte
	Destroyed bool
}

// NewTexture returns a texture that records into rec. It is used by
// the recording swap chain for its back buffers.
func NewTexture(rec *Recorder, desc gfx.TextureDesc, data []byte) *Texture {
	return &Texture{
		rec:   rec,
		desc:  desc,
		views: map[gfx.ViewKind]*TextureView{},
		Data:  slices.Clone(data),
	}
}

func (t *Texture) Desc() gfx.TextureDesc { return t.desc }

func (t *Texture) View(kind gfx.ViewKind) gfx.TextureView {
	v, ok := t.views[kind]
	if !ok {
		v = &TextureView{tex: t, kind: kind}
		t.views[kind] = v
	}
	return v
}

func (t *Texture) Destroy() {
	t.rec.record("DestroyTexture", t.desc.Name, t)
	t.Destroyed = true
}

// TextureView is a view of a recorded texture.
type TextureView struct {
	tex  *Texture
	kind gfx.ViewKind
}

func (v *TextureView) Texture() gfx.Texture { return v.tex }
func (v *TextureView) Kind() gfx.ViewKind   { return v.kind }
func (v *TextureView) ResourceName() string { return v.tex.desc.Name }

// Buffer is a recorded buffer. Data holds the last bytes written.
type Buffer struct {
	rec       *Recorder
	desc      gfx.BufferDesc
	Data      []byte
	Writes    int
	Destroyed bool
}

func (b *Buffer) Desc() gfx.BufferDesc { return b.desc }
func (b *Buffer) ResourceName() string { return b.desc.Name }

func (b *Buffer) Destroy() {
	b.rec.record("DestroyBuffer", b.desc.Name, b)
	b.Destroyed = true
}
