package gfx

import (
	"testing"

	"github.com/cockroachdb/errors"
)

func twoSubpassDesc() RenderPassDesc {
	return RenderPassDesc{
		Name: "test",
		Attachments: []AttachmentDesc{
			{Format: FormatRGBA8Unorm},
			{Format: FormatD32Float},
			{Format: FormatBGRA8Unorm},
		},
		Subpasses: []SubpassDesc{
			{
				RenderTargets: []AttachmentRef{{Index: 0, State: StateRenderTarget}},
				DepthStencil:  &AttachmentRef{Index: 1, State: StateDepthWrite},
			},
			{
				RenderTargets: []AttachmentRef{{Index: 2, State: StateRenderTarget}},
				Inputs:        []AttachmentRef{{Index: 0, State: StateInputAttachment}},
			},
		},
		Dependencies: []SubpassDependency{
			{Src: 0, Dst: 1},
			{Src: SubpassExternal, Dst: 0},
		},
	}
}

func TestRenderPassValidate(t *testing.T) {
	d := twoSubpassDesc()
	if err := d.Validate(); err != nil {
		t.Fatalf("RenderPassDesc.Validate: unexpected error: %v", err)
	}

	cases := []struct {
		name   string
		modify func(d *RenderPassDesc)
	}{
		{"no attachments", func(d *RenderPassDesc) { d.Attachments = nil }},
		{"no subpasses", func(d *RenderPassDesc) { d.Subpasses = nil }},
		{"unknown format", func(d *RenderPassDesc) { d.Attachments[2].Format = FormatUnknown }},
		{"render target out of range", func(d *RenderPassDesc) { d.Subpasses[1].RenderTargets[0].Index = 3 }},
		{"depth as render target", func(d *RenderPassDesc) { d.Subpasses[0].RenderTargets[0].Index = 1 }},
		{"color as depth", func(d *RenderPassDesc) { d.Subpasses[0].DepthStencil.Index = 0 }},
		{"input out of range", func(d *RenderPassDesc) { d.Subpasses[1].Inputs[0].Index = -1 }},
		{"dependency source", func(d *RenderPassDesc) { d.Dependencies[0].Src = 2 }},
		{"dependency destination", func(d *RenderPassDesc) { d.Dependencies[0].Dst = 5 }},
		{"backwards dependency", func(d *RenderPassDesc) { d.Dependencies[0] = SubpassDependency{Src: 1, Dst: 0} }},
	}
	for _, c := range cases {
		d := twoSubpassDesc()
		c.modify(&d)
		err := d.Validate()
		if err == nil {
			t.Fatalf("RenderPassDesc.Validate (%s): unexpected success", c.name)
		}
		if !errors.Is(err, ErrInvalidDesc) {
			t.Fatalf("RenderPassDesc.Validate (%s): got %v, want ErrInvalidDesc", c.name, err)
		}
	}
}

func TestFormat(t *testing.T) {
	for _, f := range []Format{FormatD16Unorm, FormatD32Float, FormatD24UnormS8Uint, FormatD32FloatS8Uint} {
		if !f.IsDepth() {
			t.Fatalf("%s.IsDepth: got false", f)
		}
	}
	for _, f := range []Format{FormatRGBA8Unorm, FormatR32Float, FormatBGRA8UnormSRGB} {
		if f.IsDepth() {
			t.Fatalf("%s.IsDepth: got true", f)
		}
	}
	if FormatD32Float.HasStencil() || !FormatD24UnormS8Uint.HasStencil() {
		t.Fatal("Format.HasStencil: wrong answer")
	}
	if s := Format(99).String(); s != "Format(99)" {
		t.Fatalf("Format.String: got %q", s)
	}
	if s := StatePresent.String(); s != "Present" {
		t.Fatalf("ResourceState.String: got %q", s)
	}
}
