package gfx

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ResourceState is the state (layout) an attachment is expected
// to be in at a given point of a render pass.
type ResourceState int

const (
	StateUndefined ResourceState = iota
	StateRenderTarget
	StateDepthWrite
	StateInputAttachment
	StateShaderResource
	StatePresent
)

func (s ResourceState) String() string {
	switch s {
	case StateUndefined:
		return "Undefined"
	case StateRenderTarget:
		return "RenderTarget"
	case StateDepthWrite:
		return "DepthWrite"
	case StateInputAttachment:
		return "InputAttachment"
	case StateShaderResource:
		return "ShaderResource"
	case StatePresent:
		return "Present"
	}
	return fmt.Sprintf("ResourceState(%d)", int(s))
}

// LoadOp defines what happens to the contents of an attachment
// at the start of the first subpass that uses it.
type LoadOp int

const (
	LoadOpLoad LoadOp = iota
	LoadOpClear
	LoadOpDiscard
)

// StoreOp defines what happens to the contents of an attachment
// at the end of the render pass.
type StoreOp int

const (
	StoreOpStore StoreOp = iota
	StoreOpDiscard
)

// PipelineStage is a mask of pipeline stages that a subpass
// dependency synchronizes.
type PipelineStage uint32

const (
	StageVertexInput PipelineStage = 1 << iota
	StageVertexShader
	StageEarlyFragmentTests
	StagePixelShader
	StageLateFragmentTests
	StageRenderTarget
)

// Access is a mask of memory access types that a subpass
// dependency makes available and visible.
type Access uint32

const (
	AccessShaderRead Access = 1 << iota
	AccessInputAttachmentRead
	AccessRenderTargetRead
	AccessRenderTargetWrite
	AccessDepthStencilRead
	AccessDepthStencilWrite
)

// SubpassExternal refers to commands outside the render pass in
// a SubpassDependency.
const SubpassExternal = -1

// AttachmentDesc describes one attachment of a render pass.
type AttachmentDesc struct {
	Format       Format
	InitialState ResourceState
	FinalState   ResourceState
	LoadOp       LoadOp
	StoreOp      StoreOp
}

// AttachmentRef references an attachment by its index in
// RenderPassDesc.Attachments.
type AttachmentRef struct {
	Index int
	State ResourceState
}

// SubpassDesc lists the attachments a subpass writes, its optional
// depth-stencil attachment and the attachments it reads as inputs.
type SubpassDesc struct {
	RenderTargets []AttachmentRef
	DepthStencil  *AttachmentRef
	Inputs        []AttachmentRef
}

// SubpassDependency orders the work of subpass Src before the
// work of subpass Dst.
type SubpassDependency struct {
	Src       int
	Dst       int
	SrcStages PipelineStage
	DstStages PipelineStage
	SrcAccess Access
	DstAccess Access
}

// RenderPassDesc is the immutable description of a render pass.
// Attachments are identified by their position only.
type RenderPassDesc struct {
	Name         string
	Attachments  []AttachmentDesc
	Subpasses    []SubpassDesc
	Dependencies []SubpassDependency
}

// Validate checks that every reference in d points at a declared
// attachment or subpass.
func (d *RenderPassDesc) Validate() error {
	if len(d.Attachments) == 0 {
		return errors.Wrapf(ErrInvalidDesc, "render pass %q: no attachments", d.Name)
	}
	if len(d.Subpasses) == 0 {
		return errors.Wrapf(ErrInvalidDesc, "render pass %q: no subpasses", d.Name)
	}

	for i, att := range d.Attachments {
		if att.Format == FormatUnknown {
			return errors.Wrapf(ErrInvalidDesc, "render pass %q: attachment %d has no format", d.Name, i)
		}
	}

	checkRef := func(subpass int, kind string, ref AttachmentRef) error {
		if ref.Index < 0 || ref.Index >= len(d.Attachments) {
			return errors.Wrapf(ErrInvalidDesc, "render pass %q: subpass %d %s references attachment %d of %d",
				d.Name, subpass, kind, ref.Index, len(d.Attachments))
		}
		return nil
	}

	for i, sub := range d.Subpasses {
		for _, ref := range sub.RenderTargets {
			if err := checkRef(i, "render target", ref); err != nil {
				return err
			}
			if d.Attachments[ref.Index].Format.IsDepth() {
				return errors.Wrapf(ErrInvalidDesc, "render pass %q: subpass %d uses depth attachment %d as a render target",
					d.Name, i, ref.Index)
			}
		}
		if sub.DepthStencil != nil {
			if err := checkRef(i, "depth-stencil", *sub.DepthStencil); err != nil {
				return err
			}
			if !d.Attachments[sub.DepthStencil.Index].Format.IsDepth() {
				return errors.Wrapf(ErrInvalidDesc, "render pass %q: subpass %d depth-stencil attachment %d is %s",
					d.Name, i, sub.DepthStencil.Index, d.Attachments[sub.DepthStencil.Index].Format)
			}
		}
		for _, ref := range sub.Inputs {
			if err := checkRef(i, "input", ref); err != nil {
				return err
			}
		}
	}

	for i, dep := range d.Dependencies {
		if dep.Src != SubpassExternal && (dep.Src < 0 || dep.Src >= len(d.Subpasses)) {
			return errors.Wrapf(ErrInvalidDesc, "render pass %q: dependency %d has source subpass %d", d.Name, i, dep.Src)
		}
		if dep.Dst != SubpassExternal && (dep.Dst < 0 || dep.Dst >= len(d.Subpasses)) {
			return errors.Wrapf(ErrInvalidDesc, "render pass %q: dependency %d has destination subpass %d", d.Name, i, dep.Dst)
		}
		if dep.Src != SubpassExternal && dep.Dst != SubpassExternal && dep.Src > dep.Dst {
			return errors.Wrapf(ErrInvalidDesc, "render pass %q: dependency %d goes backwards (%d -> %d)", d.Name, i, dep.Src, dep.Dst)
		}
	}

	return nil
}

// ClearValue holds the clear color of a color attachment or the
// clear depth and stencil of a depth-stencil attachment.
type ClearValue struct {
	Color   [4]float32
	Depth   float32
	Stencil uint8
}

// RenderPass is the interface that defines a render pass
// created by a Device.
type RenderPass interface {
	Desc() RenderPassDesc
	Destroy()
}
