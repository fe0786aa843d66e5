package gfx

import "github.com/cockroachdb/errors"

// ShaderStage identifies the programmable stage a shader runs in.
type ShaderStage uint32

const (
	ShaderStageVertex ShaderStage = 1 << iota
	ShaderStagePixel
)

// ShaderDesc describes a compiled shader program.
// Code holds the bytecode the Device consumes (SPIR-V for the
// Vulkan device).
type ShaderDesc struct {
	Name       string
	Stage      ShaderStage
	EntryPoint string
	Code       []byte
}

// LayoutElement describes one vertex attribute read from the
// buffer bound at Slot.
type LayoutElement struct {
	Location    int
	Slot        int
	Format      Format
	PerInstance bool
}

// InputLayout is the ordered list of vertex attributes of a
// pipeline. Elements that share a slot are packed tightly in
// declaration order.
type InputLayout []LayoutElement

// Slots returns the number of vertex buffer slots used by l.
func (l InputLayout) Slots() int {
	n := 0
	for _, e := range l {
		if e.Slot+1 > n {
			n = e.Slot + 1
		}
	}
	return n
}

// Stride returns the size in bytes of one vertex (or instance)
// of the buffer bound at slot.
func (l InputLayout) Stride(slot int) int {
	stride := 0
	for _, e := range l {
		if e.Slot == slot {
			stride += e.Format.Size()
		}
	}
	return stride
}

// Offset returns the byte offset of element i relative to the
// start of its slot's vertex.
func (l InputLayout) Offset(i int) int {
	off := 0
	for _, e := range l[:i] {
		if e.Slot == l[i].Slot {
			off += e.Format.Size()
		}
	}
	return off
}

// PerInstance reports whether the buffer bound at slot advances
// once per instance.
func (l InputLayout) PerInstance(slot int) bool {
	for _, e := range l {
		if e.Slot == slot {
			return e.PerInstance
		}
	}
	return false
}

// ResourceKind is the kind of shader resource a variable binds.
type ResourceKind int

const (
	ResourceConstantBuffer ResourceKind = iota
	ResourceTexture
	ResourceInputAttachment
)

// VariableType tells whether a shader resource variable is fixed
// for the lifetime of the pipeline or set per resource binding.
type VariableType int

const (
	VariableStatic VariableType = iota
	VariableMutable
)

// ResourceVariable declares a named shader input.
// Binding is the index in the pipeline's single descriptor set.
// InputIndex is the input attachment index for
// ResourceInputAttachment variables.
type ResourceVariable struct {
	Name       string
	Stages     ShaderStage
	Kind       ResourceKind
	Type       VariableType
	Binding    int
	InputIndex int
}

// Filter is a texture filtering mode.
type Filter int

const (
	FilterLinear Filter = iota
	FilterNearest
)

// AddressMode is a texture addressing mode.
type AddressMode int

const (
	AddressClamp AddressMode = iota
	AddressWrap
	AddressMirror
)

// StaticSampler is an immutable sampler attached to the texture
// variable named Texture.
type StaticSampler struct {
	Texture   string
	Filter    Filter
	AddressUV AddressMode
}

// ResourceLayout lists the shader inputs of a pipeline.
type ResourceLayout struct {
	Variables []ResourceVariable
	Samplers  []StaticSampler
}

// Variable returns the variable named name.
func (l *ResourceLayout) Variable(name string) (ResourceVariable, bool) {
	for _, v := range l.Variables {
		if v.Name == name {
			return v, true
		}
	}
	return ResourceVariable{}, false
}

// Sampler returns the static sampler bound to the texture variable
// named name.
func (l *ResourceLayout) Sampler(name string) (StaticSampler, bool) {
	for _, s := range l.Samplers {
		if s.Texture == name {
			return s, true
		}
	}
	return StaticSampler{}, false
}

// Topology is the primitive topology of a pipeline.
type Topology int

const (
	TopologyTriangleList Topology = iota
	TopologyTriangleStrip
	TopologyLineList
	TopologyPointList
)

// CullMode selects which triangle faces are discarded.
type CullMode int

const (
	CullNone CullMode = iota
	CullFront
	CullBack
)

// CompareFunc is a depth comparison function.
type CompareFunc int

const (
	CompareNever CompareFunc = iota
	CompareLess
	CompareEqual
	CompareLessEqual
	CompareGreater
	CompareNotEqual
	CompareGreaterEqual
	CompareAlways
)

// BlendMode is the blend equation applied to every render target
// of a pipeline.
type BlendMode int

const (
	BlendNone BlendMode = iota
	// BlendAdditive adds the source color to the destination.
	BlendAdditive
)

// PipelineDesc describes a graphics pipeline. A pipeline is only
// valid inside the subpass Subpass of RenderPass.
type PipelineDesc struct {
	Name        string
	RenderPass  RenderPass
	Subpass     int
	VS          ShaderDesc
	PS          ShaderDesc
	InputLayout InputLayout
	Topology    Topology
	CullMode    CullMode
	DepthEnable bool
	DepthWrite  bool
	DepthFunc   CompareFunc
	Blend       BlendMode
	Resources   ResourceLayout
}

// Validate checks d against its render pass.
func (d *PipelineDesc) Validate() error {
	if d.RenderPass == nil {
		return errors.Wrapf(ErrInvalidDesc, "pipeline %q: no render pass", d.Name)
	}
	rp := d.RenderPass.Desc()
	if d.Subpass < 0 || d.Subpass >= len(rp.Subpasses) {
		return errors.Wrapf(ErrInvalidDesc, "pipeline %q: subpass %d out of range for render pass %q",
			d.Name, d.Subpass, rp.Name)
	}
	if len(d.VS.Code) == 0 || len(d.PS.Code) == 0 {
		return errors.Wrapf(ErrInvalidDesc, "pipeline %q: missing shader code", d.Name)
	}
	if d.DepthEnable && rp.Subpasses[d.Subpass].DepthStencil == nil {
		return errors.Wrapf(ErrInvalidDesc, "pipeline %q: depth enabled but subpass %d has no depth attachment",
			d.Name, d.Subpass)
	}

	seen := map[string]bool{}
	bindings := map[int]bool{}
	inputs := len(rp.Subpasses[d.Subpass].Inputs)
	for _, v := range d.Resources.Variables {
		if seen[v.Name] {
			return errors.Wrapf(ErrInvalidDesc, "pipeline %q: duplicate variable %q", d.Name, v.Name)
		}
		if bindings[v.Binding] {
			return errors.Wrapf(ErrInvalidDesc, "pipeline %q: binding %d used twice", d.Name, v.Binding)
		}
		seen[v.Name] = true
		bindings[v.Binding] = true

		if v.Kind == ResourceInputAttachment && (v.InputIndex < 0 || v.InputIndex >= inputs) {
			return errors.Wrapf(ErrInvalidDesc, "pipeline %q: input attachment %q index %d but subpass %d has %d inputs",
				d.Name, v.Name, v.InputIndex, d.Subpass, inputs)
		}
	}
	for _, s := range d.Resources.Samplers {
		v, ok := d.Resources.Variable(s.Texture)
		if !ok || v.Kind != ResourceTexture {
			return errors.Wrapf(ErrInvalidDesc, "pipeline %q: static sampler for unknown texture %q", d.Name, s.Texture)
		}
	}
	return nil
}

// Resource is anything that can be bound to a shader resource
// variable: a Buffer or a TextureView.
type Resource interface {
	// ResourceName returns the debug name of the underlying object.
	ResourceName() string
}

// Pipeline is the interface that defines a graphics pipeline
// created by a Device.
type Pipeline interface {
	Desc() PipelineDesc

	// SetStatic binds res to the static variable named name.
	// It must be called before the first resource binding is
	// created.
	SetStatic(name string, res Resource) error

	// CreateResourceBinding creates a binding that holds the
	// static resources and has every mutable variable unset.
	CreateResourceBinding() (ResourceBinding, error)

	Destroy()
}

// ResourceBinding is the set of resources committed for a draw
// with its pipeline.
type ResourceBinding interface {
	// Set binds res to the mutable variable named name.
	Set(name string, res Resource) error

	Destroy()
}
