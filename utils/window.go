package utils

import (
	"github.com/cockroachdb/errors"
	"github.com/veandco/go-sdl2/sdl"
)

// CreateWindow initializes SDL video and opens a resizable Vulkan
// window. The caller destroys the window and calls sdl.Quit.
func CreateWindow(title string, width, height int) (*sdl.Window, error) {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, errors.Wrap(err, "init SDL")
	}

	window, err := sdl.CreateWindow(title, sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED, int32(width), int32(height), sdl.WINDOW_SHOWN|sdl.WINDOW_VULKAN|sdl.WINDOW_RESIZABLE)
	if err != nil {
		sdl.Quit()
		return nil, errors.Wrap(err, "create window")
	}
	return window, nil
}

// DrawableSize returns the size of the window in pixels, or zero
// when the window is minimized.
func DrawableSize(window *sdl.Window) (int, int) {
	if (window.GetFlags() & sdl.WINDOW_MINIMIZED) != 0 {
		return 0, 0
	}
	w, h := window.VulkanGetDrawableSize()
	return int(w), int(h)
}
