package vulkan

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/renderpass-examples/gfx"
)

// Pipeline is a gfx.Pipeline. Its resources live in a single
// descriptor set whose bindings are the variables' Binding fields.
type Pipeline struct {
	dev  *Device
	desc gfx.PipelineDesc

	samplers            []core1_0.Sampler
	descriptorSetLayout core1_0.DescriptorSetLayout
	pipelineLayout      core1_0.PipelineLayout
	pipeline            core1_0.Pipeline

	statics map[string]gfx.Resource
	bound   bool
}

var _ gfx.Pipeline = (*Pipeline)(nil)

func (p *Pipeline) Desc() gfx.PipelineDesc { return p.desc }

func (p *Pipeline) Destroy() {
	driver := p.dev.deviceDriver
	if p.pipeline.Initialized() {
		driver.DestroyPipeline(p.pipeline, nil)
		p.pipeline = core1_0.Pipeline{}
	}
	if p.pipelineLayout.Initialized() {
		driver.DestroyPipelineLayout(p.pipelineLayout, nil)
		p.pipelineLayout = core1_0.PipelineLayout{}
	}
	if p.descriptorSetLayout.Initialized() {
		driver.DestroyDescriptorSetLayout(p.descriptorSetLayout, nil)
		p.descriptorSetLayout = core1_0.DescriptorSetLayout{}
	}
	for _, sampler := range p.samplers {
		driver.DestroySampler(sampler, nil)
	}
	p.samplers = nil
}

func bytesToBytecode(b []byte) []uint32 {
	byteCode := make([]uint32, len(b)/4)
	for i := 0; i < len(byteCode); i++ {
		byteIndex := i * 4
		byteCode[i] = 0
		byteCode[i] |= uint32(b[byteIndex])
		byteCode[i] |= uint32(b[byteIndex+1]) << 8
		byteCode[i] |= uint32(b[byteIndex+2]) << 16
		byteCode[i] |= uint32(b[byteIndex+3]) << 24
	}

	return byteCode
}

// CreatePipeline creates a graphics pipeline. Viewport and scissor
// are dynamic and follow the framebuffer the pipeline is used with.
func (d *Device) CreatePipeline(desc gfx.PipelineDesc) (gfx.Pipeline, error) {
	err := desc.Validate()
	if err != nil {
		return nil, err
	}

	rp, ok := desc.RenderPass.(*RenderPass)
	if !ok {
		return nil, errors.Wrapf(gfx.ErrInvalidDesc, "pipeline %q: render pass was not created by this device", desc.Name)
	}

	p := &Pipeline{dev: d, desc: desc, statics: map[string]gfx.Resource{}}
	err = p.create(rp)
	if err != nil {
		p.Destroy()
		return nil, errors.Wrapf(err, "create pipeline %q", desc.Name)
	}
	return p, nil
}

func (p *Pipeline) createShaderModule(shader gfx.ShaderDesc) (core1_0.ShaderModule, error) {
	if len(shader.Code)%4 != 0 {
		return core1_0.ShaderModule{}, errors.Wrapf(gfx.ErrInvalidDesc, "shader %q: SPIR-V size %d is not a multiple of 4", shader.Name, len(shader.Code))
	}
	module, _, err := p.dev.deviceDriver.CreateShaderModule(nil, core1_0.ShaderModuleCreateInfo{
		Code: bytesToBytecode(shader.Code),
	})
	if err != nil {
		return core1_0.ShaderModule{}, errors.Wrapf(err, "shader %q", shader.Name)
	}
	return module, nil
}

func entryPoint(shader gfx.ShaderDesc) string {
	if shader.EntryPoint == "" {
		return "main"
	}
	return shader.EntryPoint
}

func (p *Pipeline) createSampler(s gfx.StaticSampler) (core1_0.Sampler, error) {
	f, mipmapMode := filter(s.Filter)
	address := addressMode(s.AddressUV)
	sampler, _, err := p.dev.deviceDriver.CreateSampler(nil, core1_0.SamplerCreateInfo{
		MagFilter:    f,
		MinFilter:    f,
		AddressModeU: address,
		AddressModeV: address,
		AddressModeW: address,

		BorderColor: core1_0.BorderColorIntOpaqueBlack,

		MipmapMode: mipmapMode,
		MinLod:     0,
		MaxLod:     1000,
	})
	return sampler, err
}

func (p *Pipeline) createDescriptorSetLayout() error {
	var bindings []core1_0.DescriptorSetLayoutBinding
	for _, v := range p.desc.Resources.Variables {
		binding := core1_0.DescriptorSetLayoutBinding{
			Binding:         v.Binding,
			DescriptorType:  descriptorType(v.Kind),
			DescriptorCount: 1,

			StageFlags: shaderStages(v.Stages),
		}

		// Textures without a declared sampler get a linear, clamped one.
		if v.Kind == gfx.ResourceTexture {
			s, ok := p.desc.Resources.Sampler(v.Name)
			if !ok {
				s = gfx.StaticSampler{Texture: v.Name, Filter: gfx.FilterLinear, AddressUV: gfx.AddressClamp}
			}
			sampler, err := p.createSampler(s)
			if err != nil {
				return errors.Wrapf(err, "sampler for %q", v.Name)
			}
			p.samplers = append(p.samplers, sampler)
			binding.ImmutableSamplers = []core1_0.Sampler{sampler}
		}

		bindings = append(bindings, binding)
	}

	var err error
	p.descriptorSetLayout, _, err = p.dev.deviceDriver.CreateDescriptorSetLayout(nil, core1_0.DescriptorSetLayoutCreateInfo{
		Bindings: bindings,
	})
	return err
}

func (p *Pipeline) create(rp *RenderPass) error {
	vertShader, err := p.createShaderModule(p.desc.VS)
	if err != nil {
		return err
	}
	defer p.dev.deviceDriver.DestroyShaderModule(vertShader, nil)

	fragShader, err := p.createShaderModule(p.desc.PS)
	if err != nil {
		return err
	}
	defer p.dev.deviceDriver.DestroyShaderModule(fragShader, nil)

	vertexInput, err := vertexInputState(p.desc.InputLayout)
	if err != nil {
		return err
	}

	err = p.createDescriptorSetLayout()
	if err != nil {
		return err
	}

	p.pipelineLayout, _, err = p.dev.deviceDriver.CreatePipelineLayout(nil, core1_0.PipelineLayoutCreateInfo{
		SetLayouts: []core1_0.DescriptorSetLayout{
			p.descriptorSetLayout,
		},
	})
	if err != nil {
		return err
	}

	inputAssembly := &core1_0.PipelineInputAssemblyStateCreateInfo{
		Topology:               topology(p.desc.Topology),
		PrimitiveRestartEnable: false,
	}

	vertStage := core1_0.PipelineShaderStageCreateInfo{
		Stage:  core1_0.StageVertex,
		Module: vertShader,
		Name:   entryPoint(p.desc.VS),
	}

	fragStage := core1_0.PipelineShaderStageCreateInfo{
		Stage:  core1_0.StageFragment,
		Module: fragShader,
		Name:   entryPoint(p.desc.PS),
	}

	// One viewport and scissor, set when the render pass begins.
	viewport := &core1_0.PipelineViewportStateCreateInfo{
		Viewports: []core1_0.Viewport{{MaxDepth: 1}},
		Scissors:  []core1_0.Rect2D{{}},
	}
	dynamicState := &core1_0.PipelineDynamicStateCreateInfo{
		DynamicStates: []core1_0.DynamicState{core1_0.DynamicStateViewport, core1_0.DynamicStateScissor},
	}

	// Projections built for Vulkan flip Y, which turns counter-clockwise
	// front faces clockwise on screen.
	rasterization := &core1_0.PipelineRasterizationStateCreateInfo{
		DepthClampEnable:        false,
		RasterizerDiscardEnable: false,

		PolygonMode: core1_0.PolygonModeFill,
		CullMode:    cullMode(p.desc.CullMode),
		FrontFace:   core1_0.FrontFaceClockwise,

		DepthBiasEnable: false,

		LineWidth: 1.0,
	}

	multisample := &core1_0.PipelineMultisampleStateCreateInfo{
		SampleShadingEnable:  false,
		RasterizationSamples: core1_0.Samples1,
		MinSampleShading:     1.0,
	}

	depthStencil := &core1_0.PipelineDepthStencilStateCreateInfo{
		DepthTestEnable:  p.desc.DepthEnable,
		DepthWriteEnable: p.desc.DepthEnable && p.desc.DepthWrite,
		DepthCompareOp:   compareOp(p.desc.DepthFunc),
	}

	subpass := rp.desc.Subpasses[p.desc.Subpass]
	colorBlend := colorBlendState(p.desc.Blend, len(subpass.RenderTargets))

	pipelines, _, err := p.dev.deviceDriver.CreateGraphicsPipelines(&p.dev.pipelineCache, nil,
		core1_0.GraphicsPipelineCreateInfo{
			Stages: []core1_0.PipelineShaderStageCreateInfo{
				vertStage,
				fragStage,
			},
			VertexInputState:   vertexInput,
			InputAssemblyState: inputAssembly,
			ViewportState:      viewport,
			RasterizationState: rasterization,
			MultisampleState:   multisample,
			DepthStencilState:  depthStencil,
			ColorBlendState:    colorBlend,
			DynamicState:       dynamicState,
			Layout:             p.pipelineLayout,
			RenderPass:         rp.renderPass,
			Subpass:            p.desc.Subpass,
			BasePipelineIndex:  -1,
		},
	)
	if err != nil {
		return err
	}
	p.pipeline = pipelines[0]

	return nil
}

// variable returns the variable named name after checking that res,
// a resource of this device, can be bound to it.
func (p *Pipeline) variable(name string, typ gfx.VariableType, res gfx.Resource) (gfx.ResourceVariable, error) {
	v, ok := p.desc.Resources.Variable(name)
	if !ok {
		return v, errors.Wrapf(gfx.ErrNotFound, "pipeline %q: variable %q", p.desc.Name, name)
	}
	if v.Type != typ {
		return v, errors.Newf("pipeline %q: variable %q has the wrong type", p.desc.Name, name)
	}
	switch v.Kind {
	case gfx.ResourceConstantBuffer:
		if _, ok := res.(*Buffer); !ok {
			return v, errors.Newf("pipeline %q: variable %q needs a buffer created by this device", p.desc.Name, name)
		}
	case gfx.ResourceTexture, gfx.ResourceInputAttachment:
		view, ok := res.(*TextureView)
		if !ok || view.Kind() != gfx.ViewShaderResource {
			return v, errors.Newf("pipeline %q: variable %q needs a shader resource view created by this device", p.desc.Name, name)
		}
	}
	return v, nil
}

func (p *Pipeline) SetStatic(name string, res gfx.Resource) error {
	v, err := p.variable(name, gfx.VariableStatic, res)
	if err != nil {
		return err
	}
	if p.bound {
		return errors.Newf("pipeline %q: static variable %q set after a resource binding was created", p.desc.Name, v.Name)
	}
	p.statics[name] = res
	return nil
}

// CreateResourceBinding allocates a descriptor set from a pool of
// its own and writes the static resources into it.
func (p *Pipeline) CreateResourceBinding() (gfx.ResourceBinding, error) {
	b := &ResourceBinding{pipeline: p, bound: map[string]bool{}}
	err := b.create()
	if err != nil {
		b.Destroy()
		return nil, errors.Wrapf(err, "create resource binding for pipeline %q", p.desc.Name)
	}
	p.bound = true
	return b, nil
}

// ResourceBinding is a gfx.ResourceBinding backed by one descriptor
// set.
type ResourceBinding struct {
	pipeline       *Pipeline
	descriptorPool core1_0.DescriptorPool
	descriptorSet  core1_0.DescriptorSet
	bound          map[string]bool
}

var _ gfx.ResourceBinding = (*ResourceBinding)(nil)

func (b *ResourceBinding) create() error {
	driver := b.pipeline.dev.deviceDriver

	counts := map[core1_0.DescriptorType]int{}
	for _, v := range b.pipeline.desc.Resources.Variables {
		counts[descriptorType(v.Kind)]++
	}
	var poolSizes []core1_0.DescriptorPoolSize
	for typ, count := range counts {
		poolSizes = append(poolSizes, core1_0.DescriptorPoolSize{
			Type:            typ,
			DescriptorCount: count,
		})
	}

	var err error
	b.descriptorPool, _, err = driver.CreateDescriptorPool(nil, core1_0.DescriptorPoolCreateInfo{
		MaxSets:   1,
		PoolSizes: poolSizes,
	})
	if err != nil {
		return err
	}

	sets, _, err := driver.AllocateDescriptorSets(core1_0.DescriptorSetAllocateInfo{
		DescriptorPool: b.descriptorPool,
		SetLayouts:     []core1_0.DescriptorSetLayout{b.pipeline.descriptorSetLayout},
	})
	if err != nil {
		return err
	}
	b.descriptorSet = sets[0]

	for name, res := range b.pipeline.statics {
		v, _ := b.pipeline.desc.Resources.Variable(name)
		err = b.write(v, res)
		if err != nil {
			return err
		}
	}
	return nil
}

func (b *ResourceBinding) write(v gfx.ResourceVariable, res gfx.Resource) error {
	write := core1_0.WriteDescriptorSet{
		DstSet:          b.descriptorSet,
		DstBinding:      v.Binding,
		DstArrayElement: 0,

		DescriptorType: descriptorType(v.Kind),
	}

	switch r := res.(type) {
	case *Buffer:
		write.BufferInfo = []core1_0.DescriptorBufferInfo{
			{
				Buffer: r.buffer,
				Offset: 0,
				Range:  r.desc.Size,
			},
		}
	case *TextureView:
		write.ImageInfo = []core1_0.DescriptorImageInfo{
			{
				ImageView:   r.imageView(),
				ImageLayout: core1_0.ImageLayoutShaderReadOnlyOptimal,
			},
		}
	}

	err := b.pipeline.dev.deviceDriver.UpdateDescriptorSets([]core1_0.WriteDescriptorSet{write}, nil)
	if err != nil {
		return errors.Wrapf(err, "write variable %q", v.Name)
	}
	b.bound[v.Name] = true
	return nil
}

func (b *ResourceBinding) Set(name string, res gfx.Resource) error {
	v, err := b.pipeline.variable(name, gfx.VariableMutable, res)
	if err != nil {
		return err
	}
	return b.write(v, res)
}

func (b *ResourceBinding) Destroy() {
	if b.descriptorPool.Initialized() {
		b.pipeline.dev.deviceDriver.DestroyDescriptorPool(b.descriptorPool, nil)
		b.descriptorPool = core1_0.DescriptorPool{}
	}
}

func (b *ResourceBinding) complete() error {
	for _, v := range b.pipeline.desc.Resources.Variables {
		if !b.bound[v.Name] {
			return errors.Newf("pipeline %q: variable %q is not bound", b.pipeline.desc.Name, v.Name)
		}
	}
	return nil
}
