package gfx

import "testing"

func TestInputLayout(t *testing.T) {
	l := InputLayout{
		{Location: 0, Slot: 0, Format: FormatRGB32Float},
		{Location: 1, Slot: 0, Format: FormatRG32Float},
		{Location: 2, Slot: 1, Format: FormatRGBA32Float, PerInstance: true},
		{Location: 3, Slot: 1, Format: FormatRGB32Float, PerInstance: true},
	}

	if n := l.Slots(); n != 2 {
		t.Fatalf("InputLayout.Slots: got %d, want 2", n)
	}
	if s := l.Stride(0); s != 20 {
		t.Fatalf("InputLayout.Stride(0): got %d, want 20", s)
	}
	if s := l.Stride(1); s != 28 {
		t.Fatalf("InputLayout.Stride(1): got %d, want 28", s)
	}
	for i, want := range []int{0, 12, 0, 16} {
		if off := l.Offset(i); off != want {
			t.Fatalf("InputLayout.Offset(%d): got %d, want %d", i, off, want)
		}
	}
	if l.PerInstance(0) || !l.PerInstance(1) {
		t.Fatal("InputLayout.PerInstance: wrong answer")
	}
}

type fakeRenderPass RenderPassDesc

func (p *fakeRenderPass) Desc() RenderPassDesc { return RenderPassDesc(*p) }
func (p *fakeRenderPass) Destroy()             {}

func TestPipelineValidate(t *testing.T) {
	rp := fakeRenderPass(twoSubpassDesc())
	valid := func() PipelineDesc {
		return PipelineDesc{
			Name:        "test",
			RenderPass:  &rp,
			Subpass:     1,
			VS:          ShaderDesc{Code: []byte{1}},
			PS:          ShaderDesc{Code: []byte{1}},
			DepthEnable: false,
			Resources: ResourceLayout{
				Variables: []ResourceVariable{
					{Name: "Constants", Kind: ResourceConstantBuffer, Binding: 0},
					{Name: "in_Color", Kind: ResourceInputAttachment, Type: VariableMutable, Binding: 1},
				},
			},
		}
	}
	d := valid()
	if err := d.Validate(); err != nil {
		t.Fatalf("PipelineDesc.Validate: unexpected error: %v", err)
	}

	cases := []struct {
		name   string
		modify func(d *PipelineDesc)
	}{
		{"no render pass", func(d *PipelineDesc) { d.RenderPass = nil }},
		{"subpass", func(d *PipelineDesc) { d.Subpass = 2 }},
		{"no code", func(d *PipelineDesc) { d.PS.Code = nil }},
		{"depth without attachment", func(d *PipelineDesc) { d.DepthEnable = true }},
		{"duplicate binding", func(d *PipelineDesc) { d.Resources.Variables[1].Binding = 0 }},
		{"duplicate name", func(d *PipelineDesc) { d.Resources.Variables[1].Name = "Constants" }},
		{"input index", func(d *PipelineDesc) { d.Resources.Variables[1].InputIndex = 1 }},
		{"sampler", func(d *PipelineDesc) {
			d.Resources.Samplers = []StaticSampler{{Texture: "in_Color"}}
		}},
	}
	for _, c := range cases {
		d := valid()
		c.modify(&d)
		if err := d.Validate(); err == nil {
			t.Fatalf("PipelineDesc.Validate (%s): unexpected success", c.name)
		}
	}
}
