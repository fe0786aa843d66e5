package deferred

import (
	"log"

	"github.com/cockroachdb/errors"
	"github.com/loov/hrtime"
	"github.com/vkngwrapper/renderpass-examples/gfx"
)

// Shader resource variable names, as declared in the shaders.
const (
	VarConstants = "Constants"
	VarTexture   = "g_Texture"
	VarInColor   = "in_Color"
	VarInDepthZ  = "in_DepthZ"
)

const (
	CubePipelineName     = "Cube PSO"
	LightingPipelineName = "Deferred lighting PSO"
)

// Programs holds the compiled shaders of both pipelines.
type Programs struct {
	CubeVS  gfx.ShaderDesc
	CubePS  gfx.ShaderDesc
	LightVS gfx.ShaderDesc
	LightPS gfx.ShaderDesc
}

// cubeLayout is the per-vertex part of both input layouts.
var cubeLayout = gfx.InputLayout{
	{Location: 0, Slot: 0, Format: gfx.FormatRGB32Float}, // position
	{Location: 1, Slot: 0, Format: gfx.FormatRG32Float},  // uv
}

// CubePipelineDesc describes the pipeline that renders the cube grid
// into the G-buffer.
func CubePipelineDesc(rp gfx.RenderPass, p Programs) gfx.PipelineDesc {
	return gfx.PipelineDesc{
		Name:        CubePipelineName,
		RenderPass:  rp,
		Subpass:     SubpassGBuffer,
		VS:          p.CubeVS,
		PS:          p.CubePS,
		InputLayout: cubeLayout,
		Topology:    gfx.TopologyTriangleList,
		CullMode:    gfx.CullBack,
		DepthEnable: true,
		DepthWrite:  true,
		DepthFunc:   gfx.CompareLess,
		Resources: gfx.ResourceLayout{
			Variables: []gfx.ResourceVariable{
				{Name: VarConstants, Stages: gfx.ShaderStageVertex, Kind: gfx.ResourceConstantBuffer, Type: gfx.VariableStatic, Binding: 0},
				{Name: VarTexture, Stages: gfx.ShaderStagePixel, Kind: gfx.ResourceTexture, Type: gfx.VariableMutable, Binding: 1},
			},
			Samplers: []gfx.StaticSampler{
				{Texture: VarTexture, Filter: gfx.FilterLinear, AddressUV: gfx.AddressClamp},
			},
		},
	}
}

// LightingPipelineDesc describes the pipeline that draws one light
// volume per instance and shades it from the G-buffer, which it reads
// as input attachments.
func LightingPipelineDesc(rp gfx.RenderPass, p Programs) gfx.PipelineDesc {
	layout := append(gfx.InputLayout{}, cubeLayout...)
	layout = append(layout,
		gfx.LayoutElement{Location: 2, Slot: 1, Format: gfx.FormatRGBA32Float, PerInstance: true}, // position, size
		gfx.LayoutElement{Location: 3, Slot: 1, Format: gfx.FormatRGB32Float, PerInstance: true},  // color
	)

	return gfx.PipelineDesc{
		Name:        LightingPipelineName,
		RenderPass:  rp,
		Subpass:     SubpassLighting,
		VS:          p.LightVS,
		PS:          p.LightPS,
		InputLayout: layout,
		Topology:    gfx.TopologyTriangleList,
		CullMode:    gfx.CullBack,
		DepthEnable: true,
		DepthWrite:  false,
		DepthFunc:   gfx.CompareLessEqual,
		Blend:       gfx.BlendAdditive,
		Resources: gfx.ResourceLayout{
			Variables: []gfx.ResourceVariable{
				{Name: VarConstants, Stages: gfx.ShaderStageVertex, Kind: gfx.ResourceConstantBuffer, Type: gfx.VariableStatic, Binding: 0},
				{Name: VarInColor, Stages: gfx.ShaderStagePixel, Kind: gfx.ResourceInputAttachment, Type: gfx.VariableMutable, Binding: 1, InputIndex: 0},
				{Name: VarInDepthZ, Stages: gfx.ShaderStagePixel, Kind: gfx.ResourceInputAttachment, Type: gfx.VariableMutable, Binding: 2, InputIndex: 1},
			},
		},
	}
}

// buildPipeline creates the pipeline described by desc, binds the
// static resources and returns a resource binding that already holds
// them.
func buildPipeline(dev gfx.Device, desc gfx.PipelineDesc, statics map[string]gfx.Resource) (gfx.Pipeline, gfx.ResourceBinding, error) {
	start := hrtime.Now()
	pso, err := dev.CreatePipeline(desc)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "create pipeline %q", desc.Name)
	}
	log.Printf("Created pipeline %q in %s", desc.Name, hrtime.Since(start))

	for name, res := range statics {
		err = pso.SetStatic(name, res)
		if err != nil {
			pso.Destroy()
			return nil, nil, errors.Wrapf(err, "pipeline %q: set static variable %q", desc.Name, name)
		}
	}

	binding, err := pso.CreateResourceBinding()
	if err != nil {
		pso.Destroy()
		return nil, nil, errors.Wrapf(err, "pipeline %q: create resource binding", desc.Name)
	}
	return pso, binding, nil
}
