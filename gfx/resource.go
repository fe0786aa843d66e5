package gfx

import (
	"bytes"
	"encoding/binary"
	"math"
)

// BindFlags describes how a texture or buffer may be bound.
type BindFlags uint32

const (
	BindRenderTarget BindFlags = 1 << iota
	BindDepthStencil
	BindShaderResource
	BindInputAttachment
	BindVertexBuffer
	BindIndexBuffer
	BindUniformBuffer
)

// Usage tells how often the CPU updates a buffer.
type Usage int

const (
	// UsageImmutable buffers are initialized at creation and never
	// written again.
	UsageImmutable Usage = iota
	// UsageDynamic buffers are rewritten wholesale with
	// Context.WriteDynamic, at most once per frame.
	UsageDynamic
)

// TextureDesc describes a 2D texture.
type TextureDesc struct {
	Name      string
	Width     int
	Height    int
	Format    Format
	Bind      BindFlags
	MipLevels int
}

// MipLevelCount returns the number of levels in a full mip chain of
// a width x height texture.
func MipLevelCount(width, height int) int {
	if width < 1 || height < 1 {
		return 1
	}
	return int(math.Floor(math.Log2(float64(max(width, height))))) + 1
}

// ViewKind selects the way a texture is viewed.
type ViewKind int

const (
	ViewRenderTarget ViewKind = iota
	ViewDepthStencil
	ViewShaderResource
)

// Texture is the interface that defines a texture created by a
// Device or owned by a SwapChain.
type Texture interface {
	Desc() TextureDesc
	// View returns the view of the given kind. Views are owned by
	// their texture and compare equal across calls.
	View(kind ViewKind) TextureView
	Destroy()
}

// TextureView is a typed view of a texture.
type TextureView interface {
	Resource
	Texture() Texture
	Kind() ViewKind
}

// BufferDesc describes a GPU buffer.
type BufferDesc struct {
	Name  string
	Size  int
	Usage Usage
	Bind  BindFlags
}

// Buffer is the interface that defines a buffer created by a
// Device.
type Buffer interface {
	Resource
	Desc() BufferDesc
	Destroy()
}

// ByteOrder is the byte order of data handed to a Device. GPUs
// share the host's.
var ByteOrder binary.ByteOrder = binary.NativeEndian

// Encode serializes data, which must be a fixed-size value or a
// slice of fixed-size values, in ByteOrder.
func Encode(data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, ByteOrder, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
