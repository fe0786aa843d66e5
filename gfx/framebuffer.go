package gfx

import "github.com/cockroachdb/errors"

// FramebufferDesc binds concrete texture views to the attachments
// of a render pass. Attachments[i] is used for attachment i.
type FramebufferDesc struct {
	Name        string
	RenderPass  RenderPass
	Attachments []TextureView
}

// Framebuffer is the interface that defines a framebuffer created
// by a Device.
type Framebuffer interface {
	Desc() FramebufferDesc
	Width() int
	Height() int
	Destroy()
}

// CheckFramebuffer verifies that the views in d match the render
// pass attachments in count and format, and that all of them have
// the same size. It returns the framebuffer size.
func CheckFramebuffer(d *FramebufferDesc) (width, height int, err error) {
	if d.RenderPass == nil {
		return 0, 0, errors.Wrapf(ErrInvalidDesc, "framebuffer %q: no render pass", d.Name)
	}
	rp := d.RenderPass.Desc()
	if len(d.Attachments) != len(rp.Attachments) {
		return 0, 0, errors.Wrapf(ErrInvalidDesc, "framebuffer %q: %d attachments for render pass %q with %d",
			d.Name, len(d.Attachments), rp.Name, len(rp.Attachments))
	}

	for i, view := range d.Attachments {
		if view == nil {
			return 0, 0, errors.Wrapf(ErrInvalidDesc, "framebuffer %q: attachment %d is nil", d.Name, i)
		}
		td := view.Texture().Desc()
		if td.Format != rp.Attachments[i].Format {
			return 0, 0, errors.Wrapf(ErrInvalidDesc, "framebuffer %q: attachment %d is %s, render pass %q expects %s",
				d.Name, i, td.Format, rp.Name, rp.Attachments[i].Format)
		}
		if i == 0 {
			width, height = td.Width, td.Height
		} else if td.Width != width || td.Height != height {
			return 0, 0, errors.Wrapf(ErrInvalidDesc, "framebuffer %q: attachment %d is %dx%d, expected %dx%d",
				d.Name, i, td.Width, td.Height, width, height)
		}
	}
	return width, height, nil
}
