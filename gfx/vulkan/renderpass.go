package vulkan

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/renderpass-examples/gfx"
)

// RenderPass is a gfx.RenderPass.
type RenderPass struct {
	dev        *Device
	desc       gfx.RenderPassDesc
	renderPass core1_0.RenderPass
}

var _ gfx.RenderPass = (*RenderPass)(nil)

func (r *RenderPass) Desc() gfx.RenderPassDesc { return r.desc }

func (r *RenderPass) Destroy() {
	if r.renderPass.Initialized() {
		r.dev.deviceDriver.DestroyRenderPass(r.renderPass, nil)
		r.renderPass = core1_0.RenderPass{}
	}
}

func (d *Device) CreateRenderPass(desc gfx.RenderPassDesc) (gfx.RenderPass, error) {
	err := desc.Validate()
	if err != nil {
		return nil, err
	}

	info, err := renderPassCreateInfo(desc)
	if err != nil {
		return nil, errors.Wrapf(err, "render pass %q", desc.Name)
	}

	renderPass, _, err := d.deviceDriver.CreateRenderPass(nil, info)
	if err != nil {
		return nil, errors.Wrapf(err, "create render pass %q", desc.Name)
	}

	return &RenderPass{dev: d, desc: desc, renderPass: renderPass}, nil
}

// Framebuffer is a gfx.Framebuffer.
type Framebuffer struct {
	dev           *Device
	desc          gfx.FramebufferDesc
	width, height int
	framebuffer   core1_0.Framebuffer
}

var _ gfx.Framebuffer = (*Framebuffer)(nil)

func (f *Framebuffer) Desc() gfx.FramebufferDesc { return f.desc }
func (f *Framebuffer) Width() int                { return f.width }
func (f *Framebuffer) Height() int               { return f.height }

func (f *Framebuffer) Destroy() {
	if f.framebuffer.Initialized() {
		f.dev.deviceDriver.DestroyFramebuffer(f.framebuffer, nil)
		f.framebuffer = core1_0.Framebuffer{}
	}
}

func (d *Device) CreateFramebuffer(desc gfx.FramebufferDesc) (gfx.Framebuffer, error) {
	width, height, err := gfx.CheckFramebuffer(&desc)
	if err != nil {
		return nil, err
	}

	rp, ok := desc.RenderPass.(*RenderPass)
	if !ok {
		return nil, errors.Wrapf(gfx.ErrInvalidDesc, "framebuffer %q: render pass was not created by this device", desc.Name)
	}

	var attachments []core1_0.ImageView
	for i, view := range desc.Attachments {
		v, ok := view.(*TextureView)
		if !ok {
			return nil, errors.Wrapf(gfx.ErrInvalidDesc, "framebuffer %q: attachment %d was not created by this device", desc.Name, i)
		}
		attachments = append(attachments, v.imageView())
	}

	framebuffer, _, err := d.deviceDriver.CreateFramebuffer(nil, core1_0.FramebufferCreateInfo{
		RenderPass:  rp.renderPass,
		Layers:      1,
		Attachments: attachments,
		Width:       width,
		Height:      height,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "create framebuffer %q", desc.Name)
	}

	return &Framebuffer{
		dev:         d,
		desc:        desc,
		width:       width,
		height:      height,
		framebuffer: framebuffer,
	}, nil
}
