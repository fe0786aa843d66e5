// Package gfx defines the contract between rendering code and the
// graphics engine that executes it: a Device that creates objects,
// a Context that records commands and a SwapChain that owns the
// presentable images.
package gfx

import "github.com/cockroachdb/errors"

// Device is the interface that creates GPU objects.
type Device interface {
	CreateRenderPass(desc RenderPassDesc) (RenderPass, error)
	CreatePipeline(desc PipelineDesc) (Pipeline, error)
	CreateFramebuffer(desc FramebufferDesc) (Framebuffer, error)

	// CreateTexture creates a texture. When data is not nil it
	// holds the tightly packed texels of the first mip level.
	CreateTexture(desc TextureDesc, data []byte) (Texture, error)

	// CreateBuffer creates a buffer. Immutable buffers must be
	// created with data.
	CreateBuffer(desc BufferDesc, data []byte) (Buffer, error)

	// Context returns the immediate context of the device.
	Context() Context
}

// BeginRenderPassInfo describes the render pass instance that
// Context.BeginRenderPass starts. ClearValues[i] is used for
// attachment i when its load operation is LoadOpClear.
type BeginRenderPassInfo struct {
	RenderPass  RenderPass
	Framebuffer Framebuffer
	ClearValues []ClearValue
}

// IndexType is the type of the indices in an index buffer.
type IndexType int

const (
	IndexUint32 IndexType = iota
	IndexUint16
)

// DrawIndexedAttribs describes an indexed, instanced draw.
type DrawIndexedAttribs struct {
	NumIndices    int
	NumInstances  int
	IndexType     IndexType
	FirstIndex    int
	BaseVertex    int
	FirstInstance int
}

// Check rejects draws that would not produce any primitive.
func (a DrawIndexedAttribs) Check() error {
	if a.NumIndices < 1 || a.NumInstances < 1 {
		return errors.Wrapf(ErrInvalidDesc, "draw of %d indices in %d instances", a.NumIndices, a.NumInstances)
	}
	return nil
}

// Context is the interface that records rendering commands.
// Commands are recorded in call order; a Context is not safe for
// concurrent use.
type Context interface {
	BeginRenderPass(info BeginRenderPassInfo) error
	NextSubpass() error
	EndRenderPass() error

	SetPipeline(p Pipeline) error
	CommitResources(b ResourceBinding) error
	SetVertexBuffers(start int, bufs []Buffer, offsets []int) error
	SetIndexBuffer(buf Buffer, offset int) error
	DrawIndexed(attribs DrawIndexedAttribs) error

	// WriteDynamic discards the contents of the dynamic buffer buf
	// and replaces them with data, encoded in the device byte order.
	WriteDynamic(buf Buffer, data any) error
}

// SwapChainDesc describes the images of a swap chain.
type SwapChainDesc struct {
	Width       int
	Height      int
	ColorFormat Format
	DepthFormat Format
}

// SwapChain is the interface that owns the presentable images.
type SwapChain interface {
	Desc() SwapChainDesc

	// CurrentBackBuffer returns the render target view of the image
	// acquired by the last BeginFrame. The same image always yields
	// the same view.
	CurrentBackBuffer() TextureView

	// BeginFrame waits for the previous frame and acquires the next
	// image. Commands left in the device context by a frame that was
	// abandoned before Present are discarded, including an open render
	// pass. It returns ErrOutOfDate when the swap chain must be resized
	// first.
	BeginFrame() error

	// Present submits the recorded commands and presents the
	// current image. It returns ErrOutOfDate when the swap chain
	// must be resized.
	Present() error

	Resize(width, height int) error
}
