// Package deferred renders a grid of textured cubes lit by thousands
// of light volumes, using one render pass with two subpasses: the
// first fills a G-buffer, the second reads it back through input
// attachments while accumulating the lights into the back buffer.
package deferred

import (
	"fmt"
	"image"
	"log"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/vkngwrapper/renderpass-examples/gfx"
)

// FrameState is the position of the Renderer inside a frame.
type FrameState int

const (
	StateIdle FrameState = iota
	StateGeometryPass
	StateLightingPass
)

func (s FrameState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateGeometryPass:
		return "GeometryPass"
	case StateLightingPass:
		return "LightingPass"
	}
	return fmt.Sprintf("FrameState(%d)", int(s))
}

// LightAnimator may move, resize or recolor lights in place once per
// Update, before they are uploaded.
type LightAnimator func(lights []Light, currTime, elapsed float64)

// Assets are the inputs the Renderer cannot build itself.
type Assets struct {
	Programs Programs
	Texture  *image.RGBA
}

type Config struct {
	LightCount int
	Seed       uint64
}

// Renderer owns every object needed to draw a frame. It is not safe
// for concurrent use.
type Renderer struct {
	dev gfx.Device
	ctx gfx.Context
	sc  gfx.SwapChain

	renderPass       gfx.RenderPass
	cubePipeline     gfx.Pipeline
	cubeBinding      gfx.ResourceBinding
	lightingPipeline gfx.Pipeline
	framebuffers     *FramebufferCache

	constants    gfx.Buffer
	cubeVertices gfx.Buffer
	cubeIndices  gfx.Buffer
	indexCount   int
	cubeTexture  gfx.Texture

	generator   *LightGenerator
	lights      []Light
	lightBuffer gfx.Buffer

	camera        *Camera
	worldViewProj mgl32.Mat4
	state         FrameState

	// Animator is nil by default: lights stay where they were
	// generated.
	Animator LightAnimator
}

// New creates the render pass, both pipelines and the static
// resources, then generates the initial light set. Any failure
// releases what was already created.
func New(dev gfx.Device, sc gfx.SwapChain, assets Assets, cfg Config) (*Renderer, error) {
	r := &Renderer{
		dev:           dev,
		ctx:           dev.Context(),
		sc:            sc,
		generator:     NewLightGenerator(cfg.Seed),
		camera:        NewCamera(),
		worldViewProj: mgl32.Ident4(),
	}

	err := r.init(assets, cfg)
	if err != nil {
		r.Destroy()
		return nil, err
	}
	return r, nil
}

func (r *Renderer) init(assets Assets, cfg Config) error {
	var err error

	r.renderPass, err = createRenderPass(r.dev, r.sc)
	if err != nil {
		return err
	}

	err = r.createConstants()
	if err != nil {
		return err
	}

	err = r.createCube()
	if err != nil {
		return err
	}

	err = r.createTexture(assets.Texture)
	if err != nil {
		return err
	}

	err = r.createPipelines(assets.Programs)
	if err != nil {
		return err
	}

	lightCount := cfg.LightCount
	if lightCount == 0 {
		lightCount = DefaultLights
	}
	return r.SetLightCount(lightCount)
}

func (r *Renderer) createConstants() error {
	desc := gfx.BufferDesc{
		Name:  "VS constants CB",
		Size:  16 * 4,
		Usage: gfx.UsageDynamic,
		Bind:  gfx.BindUniformBuffer,
	}
	var err error
	r.constants, err = r.dev.CreateBuffer(desc, nil)
	if err != nil {
		return errors.Wrapf(err, "create buffer %q", desc.Name)
	}
	return nil
}

func (r *Renderer) createCube() error {
	vertices, indices, err := LoadCube()
	if err != nil {
		return err
	}

	r.cubeVertices, err = r.createImmutableBuffer("Cube vertex buffer", gfx.BindVertexBuffer, vertices)
	if err != nil {
		return err
	}
	r.cubeIndices, err = r.createImmutableBuffer("Cube index buffer", gfx.BindIndexBuffer, indices)
	if err != nil {
		return err
	}
	r.indexCount = len(indices)
	return nil
}

func (r *Renderer) createImmutableBuffer(name string, bind gfx.BindFlags, data any) (gfx.Buffer, error) {
	b, err := gfx.Encode(data)
	if err != nil {
		return nil, errors.Wrapf(err, "encode buffer %q", name)
	}
	desc := gfx.BufferDesc{
		Name:  name,
		Size:  len(b),
		Usage: gfx.UsageImmutable,
		Bind:  bind,
	}
	buf, err := r.dev.CreateBuffer(desc, b)
	if err != nil {
		return nil, errors.Wrapf(err, "create buffer %q", name)
	}
	return buf, nil
}

func (r *Renderer) createTexture(img *image.RGBA) error {
	if img == nil {
		return errors.New("create texture \"Cube texture\": no image")
	}
	desc := gfx.TextureDesc{
		Name:      "Cube texture",
		Width:     img.Rect.Dx(),
		Height:    img.Rect.Dy(),
		Format:    gfx.FormatRGBA8UnormSRGB,
		Bind:      gfx.BindShaderResource,
		MipLevels: gfx.MipLevelCount(img.Rect.Dx(), img.Rect.Dy()),
	}
	var err error
	r.cubeTexture, err = r.dev.CreateTexture(desc, img.Pix)
	if err != nil {
		return errors.Wrapf(err, "create texture %q", desc.Name)
	}
	return nil
}

func (r *Renderer) createPipelines(programs Programs) error {
	statics := map[string]gfx.Resource{VarConstants: r.constants}

	var err error
	r.cubePipeline, r.cubeBinding, err = buildPipeline(r.dev, CubePipelineDesc(r.renderPass, programs), statics)
	if err != nil {
		return err
	}
	err = r.cubeBinding.Set(VarTexture, r.cubeTexture.View(gfx.ViewShaderResource))
	if err != nil {
		return errors.Wrapf(err, "pipeline %q: set variable %q", CubePipelineName, VarTexture)
	}

	pso, binding, err := buildPipeline(r.dev, LightingPipelineDesc(r.renderPass, programs), statics)
	if err != nil {
		return err
	}
	r.lightingPipeline = pso
	r.framebuffers = NewFramebufferCache(r.dev, r.sc, r.renderPass, pso, binding)
	return nil
}

// LightCount returns the number of lights drawn per frame.
func (r *Renderer) LightCount() int {
	return len(r.lights)
}

// Lights returns the current light set.
func (r *Renderer) Lights() []Light {
	return r.lights
}

// State returns where the renderer is inside a frame.
func (r *Renderer) State() FrameState {
	return r.state
}

// Framebuffers returns the framebuffer cache.
func (r *Renderer) Framebuffers() *FramebufferCache {
	return r.framebuffers
}

// SetLightCount regenerates the light set with n lights, clamped to
// [MinLights, MaxLights], and recreates the light buffer to fit it.
// It does nothing when the clamped count has not changed.
func (r *Renderer) SetLightCount(n int) error {
	n = ClampLightCount(n)
	if r.lightBuffer != nil && n == len(r.lights) {
		return nil
	}

	desc := gfx.BufferDesc{
		Name:  "Lights buffer",
		Size:  n * LightSize,
		Usage: gfx.UsageDynamic,
		Bind:  gfx.BindVertexBuffer,
	}
	buf, err := r.dev.CreateBuffer(desc, nil)
	if err != nil {
		return errors.Wrapf(err, "create buffer %q", desc.Name)
	}
	if r.lightBuffer != nil {
		r.lightBuffer.Destroy()
	}
	r.lightBuffer = buf
	r.lights = r.generator.Generate(n)

	log.Printf("Light count: %d", n)
	return nil
}

// Update advances the scene to currTime. elapsed is the time since
// the previous Update, in seconds.
func (r *Renderer) Update(currTime, elapsed float64) {
	if r.Animator != nil {
		r.Animator(r.lights, currTime, elapsed)
	}

	scDesc := r.sc.Desc()
	r.camera.Update(currTime, scDesc.Width, scDesc.Height)
	r.worldViewProj = r.camera.WorldViewProj()
}

// Resize drops every framebuffer so that the next frame builds new
// ones with the new size. It must be called after the swap chain is
// resized and before the next Render.
func (r *Renderer) Resize(width, height int) {
	log.Printf("Resize to %dx%d", width, height)
	r.framebuffers.Invalidate()
}

// Render records one frame into the current back buffer: the cube
// grid into the G-buffer, then the light volumes into the back
// buffer. A failure abandons the frame.
func (r *Renderer) Render() (err error) {
	if r.state != StateIdle {
		return errors.Newf("render: frame already in %s", r.state)
	}
	defer func() {
		if err != nil {
			r.state = StateIdle
		}
	}()

	target := r.sc.CurrentBackBuffer()

	err = r.geometryPass(target)
	if err != nil {
		return errors.Wrap(err, "geometry pass")
	}

	err = r.lightingPass(target)
	if err != nil {
		return errors.Wrap(err, "lighting pass")
	}

	err = r.ctx.EndRenderPass()
	if err != nil {
		return errors.Wrap(err, "end render pass")
	}
	r.state = StateIdle
	return nil
}

func (r *Renderer) geometryPass(target gfx.TextureView) error {
	fb, err := r.framebuffers.Get(target)
	if err != nil {
		return err
	}

	clearValues := make([]gfx.ClearValue, attachmentCount)
	clearValues[AttachmentColor].Color = [4]float32{0, 0, 0, 0}
	clearValues[AttachmentDepthZ].Color = [4]float32{1, 1, 1, 1}
	clearValues[AttachmentDepth].Depth = 1
	clearValues[AttachmentFinal].Color = [4]float32{0, 0, 0, 0}

	err = r.ctx.BeginRenderPass(gfx.BeginRenderPassInfo{
		RenderPass:  r.renderPass,
		Framebuffer: fb,
		ClearValues: clearValues,
	})
	if err != nil {
		return err
	}
	r.state = StateGeometryPass

	err = r.ctx.WriteDynamic(r.constants, r.worldViewProj)
	if err != nil {
		return err
	}

	err = r.ctx.SetPipeline(r.cubePipeline)
	if err != nil {
		return err
	}
	err = r.ctx.CommitResources(r.cubeBinding)
	if err != nil {
		return err
	}
	err = r.ctx.SetVertexBuffers(0, []gfx.Buffer{r.cubeVertices}, nil)
	if err != nil {
		return err
	}
	err = r.ctx.SetIndexBuffer(r.cubeIndices, 0)
	if err != nil {
		return err
	}

	return r.ctx.DrawIndexed(gfx.DrawIndexedAttribs{
		NumIndices:   r.indexCount,
		NumInstances: CubeInstances,
		IndexType:    gfx.IndexUint32,
	})
}

func (r *Renderer) lightingPass(target gfx.TextureView) error {
	err := r.ctx.NextSubpass()
	if err != nil {
		return err
	}
	r.state = StateLightingPass

	err = r.ctx.WriteDynamic(r.lightBuffer, r.lights)
	if err != nil {
		return err
	}

	binding, ok := r.framebuffers.LightingBinding(target)
	if !ok {
		return errors.Newf("no lighting binding for %q", target.ResourceName())
	}

	err = r.ctx.SetPipeline(r.lightingPipeline)
	if err != nil {
		return err
	}
	err = r.ctx.CommitResources(binding)
	if err != nil {
		return err
	}
	err = r.ctx.SetVertexBuffers(0, []gfx.Buffer{r.cubeVertices, r.lightBuffer}, nil)
	if err != nil {
		return err
	}
	err = r.ctx.SetIndexBuffer(r.cubeIndices, 0)
	if err != nil {
		return err
	}

	return r.ctx.DrawIndexed(gfx.DrawIndexedAttribs{
		NumIndices:   r.indexCount,
		NumInstances: len(r.lights),
		IndexType:    gfx.IndexUint32,
	})
}

// Destroy releases every object the renderer owns.
func (r *Renderer) Destroy() {
	if r.framebuffers != nil {
		r.framebuffers.Destroy()
		r.framebuffers = nil
	}
	if r.lightingPipeline != nil {
		r.lightingPipeline.Destroy()
		r.lightingPipeline = nil
	}
	if r.cubeBinding != nil {
		r.cubeBinding.Destroy()
		r.cubeBinding = nil
	}
	if r.cubePipeline != nil {
		r.cubePipeline.Destroy()
		r.cubePipeline = nil
	}
	if r.lightBuffer != nil {
		r.lightBuffer.Destroy()
		r.lightBuffer = nil
	}
	if r.cubeTexture != nil {
		r.cubeTexture.Destroy()
		r.cubeTexture = nil
	}
	if r.cubeIndices != nil {
		r.cubeIndices.Destroy()
		r.cubeIndices = nil
	}
	if r.cubeVertices != nil {
		r.cubeVertices.Destroy()
		r.cubeVertices = nil
	}
	if r.constants != nil {
		r.constants.Destroy()
		r.constants = nil
	}
	if r.renderPass != nil {
		r.renderPass.Destroy()
		r.renderPass = nil
	}
}
