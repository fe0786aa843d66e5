package gfx

import "fmt"

// Format identifies the pixel layout of a texture or the
// component layout of a vertex element.
type Format int

const (
	FormatUnknown Format = iota
	FormatRGBA8Unorm
	FormatRGBA8UnormSRGB
	FormatBGRA8Unorm
	FormatBGRA8UnormSRGB
	FormatR32Float
	FormatRG32Float
	FormatRGB32Float
	FormatRGBA32Float
	FormatD16Unorm
	FormatD32Float
	FormatD24UnormS8Uint
	FormatD32FloatS8Uint
)

var formatNames = map[Format]string{
	FormatUnknown:        "Unknown",
	FormatRGBA8Unorm:     "RGBA8Unorm",
	FormatRGBA8UnormSRGB: "RGBA8UnormSRGB",
	FormatBGRA8Unorm:     "BGRA8Unorm",
	FormatBGRA8UnormSRGB: "BGRA8UnormSRGB",
	FormatR32Float:       "R32Float",
	FormatRG32Float:      "RG32Float",
	FormatRGB32Float:     "RGB32Float",
	FormatRGBA32Float:    "RGBA32Float",
	FormatD16Unorm:       "D16Unorm",
	FormatD32Float:       "D32Float",
	FormatD24UnormS8Uint: "D24UnormS8Uint",
	FormatD32FloatS8Uint: "D32FloatS8Uint",
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// IsDepth reports whether f is a depth or depth-stencil format.
func (f Format) IsDepth() bool {
	switch f {
	case FormatD16Unorm, FormatD32Float, FormatD24UnormS8Uint, FormatD32FloatS8Uint:
		return true
	}
	return false
}

// HasStencil reports whether f carries a stencil component.
func (f Format) HasStencil() bool {
	return f == FormatD24UnormS8Uint || f == FormatD32FloatS8Uint
}

// Size returns the size in bytes of one texel or vertex element
// of format f, or 0 for FormatUnknown.
func (f Format) Size() int {
	switch f {
	case FormatRGBA8Unorm, FormatRGBA8UnormSRGB, FormatBGRA8Unorm, FormatBGRA8UnormSRGB,
		FormatR32Float, FormatD32Float, FormatD24UnormS8Uint:
		return 4
	case FormatD16Unorm:
		return 2
	case FormatRG32Float, FormatD32FloatS8Uint:
		return 8
	case FormatRGB32Float:
		return 12
	case FormatRGBA32Float:
		return 16
	}
	return 0
}
