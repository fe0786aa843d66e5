package deferred

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/renderpass-examples/gfx"
)

// Attachment indices of the deferred shading render pass. The index
// is the only identity an attachment has.
const (
	AttachmentColor  = iota // G-buffer albedo
	AttachmentDepthZ        // G-buffer depth written as color
	AttachmentDepth         // depth buffer
	AttachmentFinal         // back buffer
	attachmentCount
)

// Subpass indices of the deferred shading render pass.
const (
	SubpassGBuffer = iota
	SubpassLighting
)

const (
	GBufferColorFormat  = gfx.FormatRGBA8Unorm
	GBufferDepthZFormat = gfx.FormatR32Float

	RenderPassName = "Deferred shading render pass desc"
)

// RenderPassDesc returns the description of the two-subpass deferred
// shading render pass. colorFormat and depthFormat are the formats of
// the swap chain's back buffer and depth buffer.
func RenderPassDesc(colorFormat, depthFormat gfx.Format) gfx.RenderPassDesc {
	attachments := make([]gfx.AttachmentDesc, attachmentCount)

	// The G-buffer only lives inside the render pass.
	attachments[AttachmentColor] = gfx.AttachmentDesc{
		Format:       GBufferColorFormat,
		InitialState: gfx.StateRenderTarget,
		FinalState:   gfx.StateInputAttachment,
		LoadOp:       gfx.LoadOpClear,
		StoreOp:      gfx.StoreOpDiscard,
	}
	attachments[AttachmentDepthZ] = gfx.AttachmentDesc{
		Format:       GBufferDepthZFormat,
		InitialState: gfx.StateRenderTarget,
		FinalState:   gfx.StateInputAttachment,
		LoadOp:       gfx.LoadOpClear,
		StoreOp:      gfx.StoreOpDiscard,
	}
	attachments[AttachmentDepth] = gfx.AttachmentDesc{
		Format:       depthFormat,
		InitialState: gfx.StateDepthWrite,
		FinalState:   gfx.StateDepthWrite,
		LoadOp:       gfx.LoadOpClear,
		StoreOp:      gfx.StoreOpDiscard,
	}
	attachments[AttachmentFinal] = gfx.AttachmentDesc{
		Format:       colorFormat,
		InitialState: gfx.StateRenderTarget,
		FinalState:   gfx.StatePresent,
		LoadOp:       gfx.LoadOpClear,
		StoreOp:      gfx.StoreOpStore,
	}

	depth := &gfx.AttachmentRef{Index: AttachmentDepth, State: gfx.StateDepthWrite}

	subpasses := make([]gfx.SubpassDesc, 2)
	subpasses[SubpassGBuffer] = gfx.SubpassDesc{
		RenderTargets: []gfx.AttachmentRef{
			{Index: AttachmentColor, State: gfx.StateRenderTarget},
			{Index: AttachmentDepthZ, State: gfx.StateRenderTarget},
		},
		DepthStencil: depth,
	}
	subpasses[SubpassLighting] = gfx.SubpassDesc{
		RenderTargets: []gfx.AttachmentRef{
			{Index: AttachmentFinal, State: gfx.StateRenderTarget},
		},
		DepthStencil: depth,
		Inputs: []gfx.AttachmentRef{
			{Index: AttachmentColor, State: gfx.StateInputAttachment},
			{Index: AttachmentDepthZ, State: gfx.StateInputAttachment},
		},
	}

	// Subpass 1 reads what subpass 0 wrote, so the writes must be
	// finished and visible before its pixel shader runs.
	dependencies := []gfx.SubpassDependency{
		{
			Src:       SubpassGBuffer,
			Dst:       SubpassLighting,
			SrcStages: gfx.StageRenderTarget | gfx.StageLateFragmentTests,
			DstStages: gfx.StagePixelShader,
			SrcAccess: gfx.AccessRenderTargetWrite | gfx.AccessDepthStencilWrite,
			DstAccess: gfx.AccessShaderRead,
		},
	}

	return gfx.RenderPassDesc{
		Name:         RenderPassName,
		Attachments:  attachments,
		Subpasses:    subpasses,
		Dependencies: dependencies,
	}
}

func createRenderPass(dev gfx.Device, sc gfx.SwapChain) (gfx.RenderPass, error) {
	scDesc := sc.Desc()
	desc := RenderPassDesc(scDesc.ColorFormat, scDesc.DepthFormat)
	if err := desc.Validate(); err != nil {
		return nil, errors.Wrapf(err, "create render pass %q", desc.Name)
	}

	rp, err := dev.CreateRenderPass(desc)
	if err != nil {
		return nil, errors.Wrapf(err, "create render pass %q", desc.Name)
	}
	return rp, nil
}
