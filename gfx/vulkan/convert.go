package vulkan

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
	"github.com/vkngwrapper/renderpass-examples/gfx"
)

var formats = map[gfx.Format]core1_0.Format{
	gfx.FormatRGBA8Unorm:     core1_0.FormatR8G8B8A8UnsignedNormalized,
	gfx.FormatRGBA8UnormSRGB: core1_0.FormatR8G8B8A8SRGB,
	gfx.FormatBGRA8Unorm:     core1_0.FormatB8G8R8A8UnsignedNormalized,
	gfx.FormatBGRA8UnormSRGB: core1_0.FormatB8G8R8A8SRGB,
	gfx.FormatR32Float:       core1_0.FormatR32SignedFloat,
	gfx.FormatRG32Float:      core1_0.FormatR32G32SignedFloat,
	gfx.FormatRGB32Float:     core1_0.FormatR32G32B32SignedFloat,
	gfx.FormatRGBA32Float:    core1_0.FormatR32G32B32A32SignedFloat,
	gfx.FormatD16Unorm:       core1_0.FormatD16UnsignedNormalized,
	gfx.FormatD32Float:       core1_0.FormatD32SignedFloat,
	gfx.FormatD24UnormS8Uint: core1_0.FormatD24UnsignedNormalizedS8UnsignedInt,
	gfx.FormatD32FloatS8Uint: core1_0.FormatD32SignedFloatS8UnsignedInt,
}

func vkFormat(f gfx.Format) (core1_0.Format, error) {
	vf, ok := formats[f]
	if !ok {
		return 0, errors.Wrapf(gfx.ErrInvalidDesc, "format %s has no Vulkan equivalent", f)
	}
	return vf, nil
}

func gfxFormat(vf core1_0.Format) gfx.Format {
	for f, candidate := range formats {
		if candidate == vf {
			return f
		}
	}
	return gfx.FormatUnknown
}

func imageLayout(s gfx.ResourceState) core1_0.ImageLayout {
	switch s {
	case gfx.StateRenderTarget:
		return core1_0.ImageLayoutColorAttachmentOptimal
	case gfx.StateDepthWrite:
		return core1_0.ImageLayoutDepthStencilAttachmentOptimal
	case gfx.StateInputAttachment, gfx.StateShaderResource:
		return core1_0.ImageLayoutShaderReadOnlyOptimal
	case gfx.StatePresent:
		return khr_swapchain.ImageLayoutPresentSrc
	}
	return core1_0.ImageLayoutUndefined
}

func loadOp(op gfx.LoadOp) core1_0.AttachmentLoadOp {
	switch op {
	case gfx.LoadOpLoad:
		return core1_0.AttachmentLoadOpLoad
	case gfx.LoadOpClear:
		return core1_0.AttachmentLoadOpClear
	}
	return core1_0.AttachmentLoadOpDontCare
}

func storeOp(op gfx.StoreOp) core1_0.AttachmentStoreOp {
	if op == gfx.StoreOpStore {
		return core1_0.AttachmentStoreOpStore
	}
	return core1_0.AttachmentStoreOpDontCare
}

func pipelineStages(s gfx.PipelineStage) core1_0.PipelineStageFlags {
	var flags core1_0.PipelineStageFlags
	if s&gfx.StageVertexInput != 0 {
		flags |= core1_0.PipelineStageVertexInput
	}
	if s&gfx.StageVertexShader != 0 {
		flags |= core1_0.PipelineStageVertexShader
	}
	if s&gfx.StageEarlyFragmentTests != 0 {
		flags |= core1_0.PipelineStageEarlyFragmentTests
	}
	if s&gfx.StagePixelShader != 0 {
		flags |= core1_0.PipelineStageFragmentShader
	}
	if s&gfx.StageLateFragmentTests != 0 {
		flags |= core1_0.PipelineStageLateFragmentTests
	}
	if s&gfx.StageRenderTarget != 0 {
		flags |= core1_0.PipelineStageColorAttachmentOutput
	}
	return flags
}

// accessFlags converts a. Subpasses that read input attachments do
// so through INPUT_ATTACHMENT_READ, which a plain shader read does
// not cover.
func accessFlags(a gfx.Access, readsInputs bool) core1_0.AccessFlags {
	var flags core1_0.AccessFlags
	if a&gfx.AccessShaderRead != 0 {
		flags |= core1_0.AccessShaderRead
		if readsInputs {
			flags |= core1_0.AccessInputAttachmentRead
		}
	}
	if a&gfx.AccessInputAttachmentRead != 0 {
		flags |= core1_0.AccessInputAttachmentRead
	}
	if a&gfx.AccessRenderTargetRead != 0 {
		flags |= core1_0.AccessColorAttachmentRead
	}
	if a&gfx.AccessRenderTargetWrite != 0 {
		flags |= core1_0.AccessColorAttachmentWrite
	}
	if a&gfx.AccessDepthStencilRead != 0 {
		flags |= core1_0.AccessDepthStencilAttachmentRead
	}
	if a&gfx.AccessDepthStencilWrite != 0 {
		flags |= core1_0.AccessDepthStencilAttachmentWrite
	}
	return flags
}

func subpassIndex(i int) int {
	if i == gfx.SubpassExternal {
		return core1_0.SubpassExternal
	}
	return i
}

func attachmentRefs(refs []gfx.AttachmentRef) []core1_0.AttachmentReference {
	var out []core1_0.AttachmentReference
	for _, ref := range refs {
		out = append(out, core1_0.AttachmentReference{
			Attachment: ref.Index,
			Layout:     imageLayout(ref.State),
		})
	}
	return out
}

// renderPassCreateInfo translates desc. Attachments that are not
// loaded start out undefined, so the first frame does not depend on
// a layout the image never had. When desc declares no dependency on
// external work, each subpass that first uses an attachment waits for
// the previous user of that attachment (the presentation engine, for
// the back buffer).
func renderPassCreateInfo(desc gfx.RenderPassDesc) (core1_0.RenderPassCreateInfo, error) {
	var info core1_0.RenderPassCreateInfo

	for i, att := range desc.Attachments {
		format, err := vkFormat(att.Format)
		if err != nil {
			return info, errors.Wrapf(err, "attachment %d", i)
		}

		initial := imageLayout(att.InitialState)
		if att.LoadOp != gfx.LoadOpLoad {
			initial = core1_0.ImageLayoutUndefined
		}

		stencilLoad, stencilStore := core1_0.AttachmentLoadOpDontCare, core1_0.AttachmentStoreOpDontCare
		if att.Format.HasStencil() {
			stencilLoad, stencilStore = loadOp(att.LoadOp), storeOp(att.StoreOp)
		}

		info.Attachments = append(info.Attachments, core1_0.AttachmentDescription{
			Format:         format,
			Samples:        core1_0.Samples1,
			LoadOp:         loadOp(att.LoadOp),
			StoreOp:        storeOp(att.StoreOp),
			StencilLoadOp:  stencilLoad,
			StencilStoreOp: stencilStore,
			InitialLayout:  initial,
			FinalLayout:    imageLayout(att.FinalState),
		})
	}

	for _, sub := range desc.Subpasses {
		subpass := core1_0.SubpassDescription{
			PipelineBindPoint: core1_0.PipelineBindPointGraphics,
			ColorAttachments:  attachmentRefs(sub.RenderTargets),
			InputAttachments:  attachmentRefs(sub.Inputs),
		}
		if sub.DepthStencil != nil {
			subpass.DepthStencilAttachment = &core1_0.AttachmentReference{
				Attachment: sub.DepthStencil.Index,
				Layout:     imageLayout(sub.DepthStencil.State),
			}
		}
		info.Subpasses = append(info.Subpasses, subpass)
	}

	external := false
	for _, dep := range desc.Dependencies {
		if dep.Src == gfx.SubpassExternal {
			external = true
		}
		srcStages, dstStages := pipelineStages(dep.SrcStages), pipelineStages(dep.DstStages)
		var dstAccess core1_0.AccessFlags
		if dep.Dst != gfx.SubpassExternal {
			dst := desc.Subpasses[dep.Dst]
			dstAccess = accessFlags(dep.DstAccess, len(dst.Inputs) > 0)
			// Depth written earlier is tested again by the consumer.
			if dst.DepthStencil != nil && dep.SrcAccess&gfx.AccessDepthStencilWrite != 0 {
				dstStages |= core1_0.PipelineStageEarlyFragmentTests | core1_0.PipelineStageLateFragmentTests
				dstAccess |= core1_0.AccessDepthStencilAttachmentRead
			}
		} else {
			dstAccess = accessFlags(dep.DstAccess, false)
		}
		info.SubpassDependencies = append(info.SubpassDependencies, core1_0.SubpassDependency{
			SrcSubpass:      subpassIndex(dep.Src),
			DstSubpass:      subpassIndex(dep.Dst),
			SrcStageMask:    srcStages,
			DstStageMask:    dstStages,
			SrcAccessMask:   accessFlags(dep.SrcAccess, false),
			DstAccessMask:   dstAccess,
			DependencyFlags: core1_0.DependencyByRegion,
		})
	}

	if !external {
		info.SubpassDependencies = append(externalDependencies(desc), info.SubpassDependencies...)
	}

	return info, nil
}

// externalDependencies returns one EXTERNAL dependency for every
// subpass that is the first to use some attachment, in subpass order.
// The layout transition of that attachment happens at the start of
// its first subpass and must not begin before the stage that waits
// for the image.
func externalDependencies(desc gfx.RenderPassDesc) []core1_0.SubpassDependency {
	firstUse := make([]int, len(desc.Attachments))
	for i := range firstUse {
		firstUse[i] = -1
	}
	use := func(subpass int, ref gfx.AttachmentRef) {
		if ref.Index < len(firstUse) && firstUse[ref.Index] < 0 {
			firstUse[ref.Index] = subpass
		}
	}
	for i, sub := range desc.Subpasses {
		for _, ref := range sub.RenderTargets {
			use(i, ref)
		}
		for _, ref := range sub.Inputs {
			use(i, ref)
		}
		if sub.DepthStencil != nil {
			use(i, *sub.DepthStencil)
		}
	}

	var deps []core1_0.SubpassDependency
	for i := range desc.Subpasses {
		var stages core1_0.PipelineStageFlags
		var access core1_0.AccessFlags
		for att, first := range firstUse {
			if first != i {
				continue
			}
			if desc.Attachments[att].Format.IsDepth() {
				stages |= core1_0.PipelineStageEarlyFragmentTests | core1_0.PipelineStageLateFragmentTests
				access |= core1_0.AccessDepthStencilAttachmentWrite
			} else {
				stages |= core1_0.PipelineStageColorAttachmentOutput
				access |= core1_0.AccessColorAttachmentWrite
			}
		}
		if stages == 0 {
			continue
		}
		deps = append(deps, core1_0.SubpassDependency{
			SrcSubpass: core1_0.SubpassExternal,
			DstSubpass: i,

			SrcStageMask:  stages,
			SrcAccessMask: 0,

			DstStageMask:  stages,
			DstAccessMask: access,
		})
	}
	return deps
}

func clearValues(desc gfx.RenderPassDesc, values []gfx.ClearValue) []core1_0.ClearValue {
	out := make([]core1_0.ClearValue, len(desc.Attachments))
	for i, att := range desc.Attachments {
		var v gfx.ClearValue
		if i < len(values) {
			v = values[i]
		}
		if att.Format.IsDepth() {
			out[i] = core1_0.ClearValueDepthStencil{Depth: v.Depth, Stencil: uint32(v.Stencil)}
		} else {
			out[i] = core1_0.ClearValueFloat(v.Color)
		}
	}
	return out
}

func compareOp(f gfx.CompareFunc) core1_0.CompareOp {
	switch f {
	case gfx.CompareLess:
		return core1_0.CompareOpLess
	case gfx.CompareEqual:
		return core1_0.CompareOpEqual
	case gfx.CompareLessEqual:
		return core1_0.CompareOpLessOrEqual
	case gfx.CompareGreater:
		return core1_0.CompareOpGreater
	case gfx.CompareNotEqual:
		return core1_0.CompareOpNotEqual
	case gfx.CompareGreaterEqual:
		return core1_0.CompareOpGreaterOrEqual
	case gfx.CompareAlways:
		return core1_0.CompareOpAlways
	}
	return core1_0.CompareOpNever
}

func cullMode(c gfx.CullMode) core1_0.CullModeFlags {
	switch c {
	case gfx.CullFront:
		return core1_0.CullModeFront
	case gfx.CullBack:
		return core1_0.CullModeBack
	}
	return core1_0.CullModeNone
}

func topology(t gfx.Topology) core1_0.PrimitiveTopology {
	switch t {
	case gfx.TopologyTriangleStrip:
		return core1_0.PrimitiveTopologyTriangleStrip
	case gfx.TopologyLineList:
		return core1_0.PrimitiveTopologyLineList
	case gfx.TopologyPointList:
		return core1_0.PrimitiveTopologyPointList
	}
	return core1_0.PrimitiveTopologyTriangleList
}

func shaderStages(s gfx.ShaderStage) core1_0.ShaderStageFlags {
	var flags core1_0.ShaderStageFlags
	if s&gfx.ShaderStageVertex != 0 {
		flags |= core1_0.StageVertex
	}
	if s&gfx.ShaderStagePixel != 0 {
		flags |= core1_0.StageFragment
	}
	return flags
}

func descriptorType(k gfx.ResourceKind) core1_0.DescriptorType {
	switch k {
	case gfx.ResourceTexture:
		return core1_0.DescriptorTypeCombinedImageSampler
	case gfx.ResourceInputAttachment:
		return core1_0.DescriptorTypeInputAttachment
	}
	return core1_0.DescriptorTypeUniformBuffer
}

func filter(f gfx.Filter) (core1_0.Filter, core1_0.SamplerMipmapMode) {
	if f == gfx.FilterNearest {
		return core1_0.FilterNearest, core1_0.SamplerMipmapModeNearest
	}
	return core1_0.FilterLinear, core1_0.SamplerMipmapModeLinear
}

func addressMode(m gfx.AddressMode) core1_0.SamplerAddressMode {
	switch m {
	case gfx.AddressWrap:
		return core1_0.SamplerAddressModeRepeat
	case gfx.AddressMirror:
		return core1_0.SamplerAddressModeMirroredRepeat
	}
	return core1_0.SamplerAddressModeClampToEdge
}

func indexType(t gfx.IndexType) core1_0.IndexType {
	if t == gfx.IndexUint16 {
		return core1_0.IndexTypeUInt16
	}
	return core1_0.IndexTypeUInt32
}

func imageUsage(bind gfx.BindFlags) core1_0.ImageUsageFlags {
	var usage core1_0.ImageUsageFlags
	if bind&gfx.BindRenderTarget != 0 {
		usage |= core1_0.ImageUsageColorAttachment
	}
	if bind&gfx.BindDepthStencil != 0 {
		usage |= core1_0.ImageUsageDepthStencilAttachment
	}
	if bind&gfx.BindShaderResource != 0 {
		usage |= core1_0.ImageUsageSampled
	}
	if bind&gfx.BindInputAttachment != 0 {
		usage |= core1_0.ImageUsageInputAttachment
	}
	return usage
}

func bufferUsage(bind gfx.BindFlags) core1_0.BufferUsageFlags {
	var usage core1_0.BufferUsageFlags
	if bind&gfx.BindVertexBuffer != 0 {
		usage |= core1_0.BufferUsageVertexBuffer
	}
	if bind&gfx.BindIndexBuffer != 0 {
		usage |= core1_0.BufferUsageIndexBuffer
	}
	if bind&gfx.BindUniformBuffer != 0 {
		usage |= core1_0.BufferUsageUniformBuffer
	}
	return usage
}

func vertexInputState(layout gfx.InputLayout) (*core1_0.PipelineVertexInputStateCreateInfo, error) {
	state := &core1_0.PipelineVertexInputStateCreateInfo{}
	for slot := 0; slot < layout.Slots(); slot++ {
		rate := core1_0.VertexInputRateVertex
		if layout.PerInstance(slot) {
			rate = core1_0.VertexInputRateInstance
		}
		state.VertexBindingDescriptions = append(state.VertexBindingDescriptions, core1_0.VertexInputBindingDescription{
			Binding:   slot,
			Stride:    layout.Stride(slot),
			InputRate: rate,
		})
	}

	for i, e := range layout {
		format, err := vkFormat(e.Format)
		if err != nil {
			return nil, errors.Wrapf(err, "vertex attribute %d", e.Location)
		}
		state.VertexAttributeDescriptions = append(state.VertexAttributeDescriptions, core1_0.VertexInputAttributeDescription{
			Binding:  e.Slot,
			Location: uint32(e.Location),
			Format:   format,
			Offset:   layout.Offset(i),
		})
	}
	return state, nil
}

func colorBlendState(mode gfx.BlendMode, targets int) *core1_0.PipelineColorBlendStateCreateInfo {
	attachment := core1_0.PipelineColorBlendAttachmentState{
		BlendEnabled:   false,
		ColorWriteMask: core1_0.ColorComponentRed | core1_0.ColorComponentGreen | core1_0.ColorComponentBlue | core1_0.ColorComponentAlpha,
	}
	if mode == gfx.BlendAdditive {
		attachment.BlendEnabled = true
		attachment.SrcColorBlendFactor = core1_0.BlendFactorOne
		attachment.DstColorBlendFactor = core1_0.BlendFactorOne
		attachment.ColorBlendOp = core1_0.BlendOpAdd
		attachment.SrcAlphaBlendFactor = core1_0.BlendFactorOne
		attachment.DstAlphaBlendFactor = core1_0.BlendFactorOne
		attachment.AlphaBlendOp = core1_0.BlendOpAdd
	}

	state := &core1_0.PipelineColorBlendStateCreateInfo{
		LogicOpEnabled: false,
		LogicOp:        core1_0.LogicOpCopy,
		BlendConstants: [4]float32{0, 0, 0, 0},
	}
	for i := 0; i < targets; i++ {
		state.Attachments = append(state.Attachments, attachment)
	}
	return state
}
