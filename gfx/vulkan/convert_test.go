package vulkan

import (
	"testing"

	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
	"github.com/vkngwrapper/renderpass-examples/gfx"
)

// twoSubpassDesc writes a color target in subpass 0 and reads it as
// an input attachment in subpass 1, which renders to the back buffer.
func twoSubpassDesc() gfx.RenderPassDesc {
	return gfx.RenderPassDesc{
		Name: "two subpasses",
		Attachments: []gfx.AttachmentDesc{
			{
				Format:       gfx.FormatRGBA8Unorm,
				InitialState: gfx.StateRenderTarget,
				FinalState:   gfx.StateInputAttachment,
				LoadOp:       gfx.LoadOpClear,
				StoreOp:      gfx.StoreOpDiscard,
			},
			{
				Format:       gfx.FormatD32Float,
				InitialState: gfx.StateDepthWrite,
				FinalState:   gfx.StateDepthWrite,
				LoadOp:       gfx.LoadOpClear,
				StoreOp:      gfx.StoreOpDiscard,
			},
			{
				Format:       gfx.FormatBGRA8UnormSRGB,
				InitialState: gfx.StateRenderTarget,
				FinalState:   gfx.StatePresent,
				LoadOp:       gfx.LoadOpClear,
				StoreOp:      gfx.StoreOpStore,
			},
		},
		Subpasses: []gfx.SubpassDesc{
			{
				RenderTargets: []gfx.AttachmentRef{{Index: 0, State: gfx.StateRenderTarget}},
				DepthStencil:  &gfx.AttachmentRef{Index: 1, State: gfx.StateDepthWrite},
			},
			{
				RenderTargets: []gfx.AttachmentRef{{Index: 2, State: gfx.StateRenderTarget}},
				DepthStencil:  &gfx.AttachmentRef{Index: 1, State: gfx.StateDepthWrite},
				Inputs:        []gfx.AttachmentRef{{Index: 0, State: gfx.StateInputAttachment}},
			},
		},
		Dependencies: []gfx.SubpassDependency{
			{
				Src:       0,
				Dst:       1,
				SrcStages: gfx.StageRenderTarget,
				DstStages: gfx.StagePixelShader,
				SrcAccess: gfx.AccessRenderTargetWrite,
				DstAccess: gfx.AccessShaderRead,
			},
		},
	}
}

func TestRenderPassCreateInfo(t *testing.T) {
	info, err := renderPassCreateInfo(twoSubpassDesc())
	if err != nil {
		t.Fatalf("renderPassCreateInfo: unexpected error: %v", err)
	}

	if len(info.Attachments) != 3 {
		t.Fatalf("got %d attachments, want 3", len(info.Attachments))
	}
	for i, att := range info.Attachments {
		if att.InitialLayout != core1_0.ImageLayoutUndefined {
			t.Errorf("attachment %d: cleared attachment starts in %v, want undefined", i, att.InitialLayout)
		}
		if att.LoadOp != core1_0.AttachmentLoadOpClear {
			t.Errorf("attachment %d: load op %v", i, att.LoadOp)
		}
	}
	if got := info.Attachments[0].FinalLayout; got != core1_0.ImageLayoutShaderReadOnlyOptimal {
		t.Errorf("G-buffer final layout %v", got)
	}
	if got := info.Attachments[2].FinalLayout; got != khr_swapchain.ImageLayoutPresentSrc {
		t.Errorf("back buffer final layout %v", got)
	}
	if got := info.Attachments[2].StoreOp; got != core1_0.AttachmentStoreOpStore {
		t.Errorf("back buffer store op %v", got)
	}
	if got := info.Attachments[1].Format; got != core1_0.FormatD32SignedFloat {
		t.Errorf("depth format %v", got)
	}

	if len(info.Subpasses) != 2 {
		t.Fatalf("got %d subpasses, want 2", len(info.Subpasses))
	}
	lighting := info.Subpasses[1]
	if len(lighting.InputAttachments) != 1 || lighting.InputAttachments[0].Attachment != 0 ||
		lighting.InputAttachments[0].Layout != core1_0.ImageLayoutShaderReadOnlyOptimal {
		t.Errorf("lighting subpass inputs %+v", lighting.InputAttachments)
	}
	if lighting.DepthStencilAttachment == nil || lighting.DepthStencilAttachment.Layout != core1_0.ImageLayoutDepthStencilAttachmentOptimal {
		t.Errorf("lighting subpass depth %+v", lighting.DepthStencilAttachment)
	}

	// The declared dependency plus one on external work for each
	// subpass that first uses an attachment.
	if len(info.SubpassDependencies) != 3 {
		t.Fatalf("got %d dependencies, want 3", len(info.SubpassDependencies))
	}
	for i, want := range []int{0, 1} {
		external := info.SubpassDependencies[i]
		if external.SrcSubpass != core1_0.SubpassExternal || external.DstSubpass != want {
			t.Errorf("dependency %d: %d -> %d, want external -> %d", i, external.SrcSubpass, external.DstSubpass, want)
		}
	}

	// The back buffer is first used by the lighting subpass, so its
	// layout transition waits for the stage the acquire semaphore
	// unblocks.
	backBuffer := info.SubpassDependencies[1]
	if backBuffer.SrcStageMask != core1_0.PipelineStageColorAttachmentOutput ||
		backBuffer.DstStageMask != core1_0.PipelineStageColorAttachmentOutput {
		t.Errorf("back buffer dependency stages %v -> %v", backBuffer.SrcStageMask, backBuffer.DstStageMask)
	}
	if backBuffer.DstAccessMask != core1_0.AccessColorAttachmentWrite {
		t.Errorf("back buffer dependency access %v", backBuffer.DstAccessMask)
	}

	gbuffer := info.SubpassDependencies[0]
	if gbuffer.DstStageMask&core1_0.PipelineStageLateFragmentTests == 0 ||
		gbuffer.DstAccessMask&core1_0.AccessDepthStencilAttachmentWrite == 0 {
		t.Errorf("first subpass dependency does not cover its depth buffer: %v %v", gbuffer.DstStageMask, gbuffer.DstAccessMask)
	}

	dep := info.SubpassDependencies[2]
	if dep.SrcSubpass != 0 || dep.DstSubpass != 1 {
		t.Errorf("dependency %d -> %d, want 0 -> 1", dep.SrcSubpass, dep.DstSubpass)
	}
	if dep.DstAccessMask&core1_0.AccessInputAttachmentRead == 0 {
		t.Errorf("dependency into an input-reading subpass lacks input attachment reads: %v", dep.DstAccessMask)
	}
	if dep.SrcAccessMask != core1_0.AccessColorAttachmentWrite {
		t.Errorf("source access %v", dep.SrcAccessMask)
	}
	if dep.DstStageMask != core1_0.PipelineStageFragmentShader {
		t.Errorf("destination stages %v", dep.DstStageMask)
	}
	if dep.DependencyFlags != core1_0.DependencyByRegion {
		t.Errorf("dependency flags %v", dep.DependencyFlags)
	}
}

func TestRenderPassCreateInfoDepthConsumer(t *testing.T) {
	desc := twoSubpassDesc()
	desc.Dependencies[0].SrcStages |= gfx.StageLateFragmentTests
	desc.Dependencies[0].SrcAccess |= gfx.AccessDepthStencilWrite

	info, err := renderPassCreateInfo(desc)
	if err != nil {
		t.Fatalf("renderPassCreateInfo: unexpected error: %v", err)
	}
	dep := info.SubpassDependencies[len(info.SubpassDependencies)-1]
	if dep.DstStageMask&core1_0.PipelineStageEarlyFragmentTests == 0 {
		t.Errorf("depth-testing subpass does not wait in early fragment tests: %v", dep.DstStageMask)
	}
	if dep.DstAccessMask&core1_0.AccessDepthStencilAttachmentRead == 0 {
		t.Errorf("depth-testing subpass lacks depth reads: %v", dep.DstAccessMask)
	}
	if dep.DstStageMask&core1_0.PipelineStageFragmentShader == 0 {
		t.Errorf("declared stages dropped: %v", dep.DstStageMask)
	}
}

func TestExternalDependenciesSkipUnusedSubpass(t *testing.T) {
	desc := twoSubpassDesc()
	desc.Subpasses[1].RenderTargets = []gfx.AttachmentRef{{Index: 0, State: gfx.StateRenderTarget}}
	desc.Subpasses[1].Inputs = nil
	desc.Attachments = desc.Attachments[:2]

	deps := externalDependencies(desc)
	if len(deps) != 1 || deps[0].DstSubpass != 0 {
		t.Fatalf("got %+v, want a single external -> 0 dependency", deps)
	}
}

func TestRenderPassCreateInfoDeclaredExternal(t *testing.T) {
	desc := twoSubpassDesc()
	desc.Dependencies = append(desc.Dependencies, gfx.SubpassDependency{
		Src:       gfx.SubpassExternal,
		Dst:       0,
		SrcStages: gfx.StageRenderTarget,
		DstStages: gfx.StageRenderTarget,
		DstAccess: gfx.AccessRenderTargetWrite,
	})

	info, err := renderPassCreateInfo(desc)
	if err != nil {
		t.Fatalf("renderPassCreateInfo: unexpected error: %v", err)
	}
	if len(info.SubpassDependencies) != 2 {
		t.Fatalf("got %d dependencies, want the 2 declared ones", len(info.SubpassDependencies))
	}
	if info.SubpassDependencies[1].SrcSubpass != core1_0.SubpassExternal {
		t.Errorf("declared external dependency not kept in place")
	}
}

func TestRenderPassCreateInfoLoadKeepsLayout(t *testing.T) {
	desc := twoSubpassDesc()
	desc.Attachments[2].LoadOp = gfx.LoadOpLoad

	info, err := renderPassCreateInfo(desc)
	if err != nil {
		t.Fatalf("renderPassCreateInfo: unexpected error: %v", err)
	}
	if got := info.Attachments[2].InitialLayout; got != core1_0.ImageLayoutColorAttachmentOptimal {
		t.Errorf("loaded attachment starts in %v, want color attachment optimal", got)
	}
}

func TestRenderPassCreateInfoUnknownFormat(t *testing.T) {
	desc := twoSubpassDesc()
	desc.Attachments[0].Format = gfx.FormatUnknown
	if _, err := renderPassCreateInfo(desc); err == nil {
		t.Fatal("renderPassCreateInfo: unknown format accepted")
	}
}

func TestClearValues(t *testing.T) {
	desc := twoSubpassDesc()
	values := clearValues(desc, []gfx.ClearValue{
		{Color: [4]float32{0.1, 0.2, 0.3, 1}},
		{Depth: 1},
		{Color: [4]float32{0, 0, 0, 1}},
	})
	if len(values) != 3 {
		t.Fatalf("got %d clear values, want 3", len(values))
	}
	if c, ok := values[0].(core1_0.ClearValueFloat); !ok || c[2] != 0.3 {
		t.Errorf("color clear value %#v", values[0])
	}
	if d, ok := values[1].(core1_0.ClearValueDepthStencil); !ok || d.Depth != 1 {
		t.Errorf("depth clear value %#v", values[1])
	}

	// Missing values clear to zero.
	if got := clearValues(desc, nil); len(got) != 3 {
		t.Errorf("got %d clear values without input, want 3", len(got))
	}
}

func TestFormats(t *testing.T) {
	for f, vf := range formats {
		if got := gfxFormat(vf); got != f {
			t.Errorf("gfxFormat(%v) = %v, want %v", vf, got, f)
		}
		got, err := vkFormat(f)
		if err != nil || got != vf {
			t.Errorf("vkFormat(%v) = %v, %v", f, got, err)
		}
	}
	if got := gfxFormat(core1_0.FormatR8UnsignedNormalized); got != gfx.FormatUnknown {
		t.Errorf("unmapped format converted to %v", got)
	}
}

func TestVertexInputState(t *testing.T) {
	layout := gfx.InputLayout{
		{Location: 0, Slot: 0, Format: gfx.FormatRGB32Float},
		{Location: 1, Slot: 0, Format: gfx.FormatRG32Float},
		{Location: 2, Slot: 1, Format: gfx.FormatRGBA32Float, PerInstance: true},
		{Location: 3, Slot: 1, Format: gfx.FormatRGB32Float, PerInstance: true},
	}

	state, err := vertexInputState(layout)
	if err != nil {
		t.Fatalf("vertexInputState: unexpected error: %v", err)
	}

	wantBindings := []core1_0.VertexInputBindingDescription{
		{Binding: 0, Stride: 20, InputRate: core1_0.VertexInputRateVertex},
		{Binding: 1, Stride: 28, InputRate: core1_0.VertexInputRateInstance},
	}
	if len(state.VertexBindingDescriptions) != len(wantBindings) {
		t.Fatalf("got %d bindings, want %d", len(state.VertexBindingDescriptions), len(wantBindings))
	}
	for i, want := range wantBindings {
		if got := state.VertexBindingDescriptions[i]; got != want {
			t.Errorf("binding %d: got %+v, want %+v", i, got, want)
		}
	}

	wantOffsets := []int{0, 12, 0, 16}
	for i, want := range wantOffsets {
		got := state.VertexAttributeDescriptions[i]
		if got.Offset != want || got.Location != uint32(i) {
			t.Errorf("attribute %d: location %d offset %d, want offset %d", i, got.Location, got.Offset, want)
		}
	}
}

func TestColorBlendState(t *testing.T) {
	state := colorBlendState(gfx.BlendAdditive, 1)
	if len(state.Attachments) != 1 {
		t.Fatalf("got %d blend attachments, want 1", len(state.Attachments))
	}
	a := state.Attachments[0]
	if !a.BlendEnabled || a.SrcColorBlendFactor != core1_0.BlendFactorOne || a.DstColorBlendFactor != core1_0.BlendFactorOne {
		t.Errorf("additive blend state %+v", a)
	}

	if state := colorBlendState(gfx.BlendNone, 2); len(state.Attachments) != 2 || state.Attachments[1].BlendEnabled {
		t.Errorf("opaque blend state %+v", state.Attachments)
	}
}
