package vulkan

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
	"github.com/vkngwrapper/renderpass-examples/gfx"
)

type swapChainSupportDetails struct {
	Capabilities *khr_surface.SurfaceCapabilities
	Formats      []khr_surface.SurfaceFormat
	PresentModes []khr_surface.PresentMode
}

func (d *Device) querySwapChainSupport(device core1_0.PhysicalDevice) (swapChainSupportDetails, error) {
	var details swapChainSupportDetails
	var err error

	details.Capabilities, _, err = d.surfaceExtension.GetPhysicalDeviceSurfaceCapabilities(d.surface, device)
	if err != nil {
		return details, err
	}

	details.Formats, _, err = d.surfaceExtension.GetPhysicalDeviceSurfaceFormats(d.surface, device)
	if err != nil {
		return details, err
	}

	details.PresentModes, _, err = d.surfaceExtension.GetPhysicalDeviceSurfacePresentModes(d.surface, device)
	return details, err
}

func chooseSwapSurfaceFormat(availableFormats []khr_surface.SurfaceFormat) khr_surface.SurfaceFormat {
	for _, format := range availableFormats {
		if format.Format == core1_0.FormatB8G8R8A8SRGB && format.ColorSpace == khr_surface.ColorSpaceSRGBNonlinear {
			return format
		}
	}

	return availableFormats[0]
}

func chooseSwapPresentMode(availablePresentModes []khr_surface.PresentMode) khr_surface.PresentMode {
	for _, presentMode := range availablePresentModes {
		if presentMode == khr_surface.PresentModeMailbox {
			return presentMode
		}
	}

	return khr_surface.PresentModeFIFO
}

func chooseSwapExtent(capabilities *khr_surface.SurfaceCapabilities, width, height int) core1_0.Extent2D {
	if capabilities.CurrentExtent.Width != -1 {
		return capabilities.CurrentExtent
	}

	width = min(max(width, capabilities.MinImageExtent.Width), capabilities.MaxImageExtent.Width)
	height = min(max(height, capabilities.MinImageExtent.Height), capabilities.MaxImageExtent.Height)
	return core1_0.Extent2D{Width: width, Height: height}
}

// SwapChain is a gfx.SwapChain that keeps one frame in flight:
// BeginFrame waits until the previous frame's commands have executed
// before the context records the next ones.
type SwapChain struct {
	dev  *Device
	desc gfx.SwapChainDesc

	swapchain khr_swapchain.Swapchain
	images    []*Texture
	current   int

	imageAvailable core1_0.Semaphore
	renderFinished []core1_0.Semaphore
	inFlight       core1_0.Fence

	// acquired is set between a successful BeginFrame and Present.
	acquired bool
}

var _ gfx.SwapChain = (*SwapChain)(nil)

// NewSwapChain creates a swap chain for the device's window, sized
// width x height unless the surface dictates its own extent.
func NewSwapChain(d *Device, width, height int) (*SwapChain, error) {
	depthFormat, err := d.findDepthFormat()
	if err != nil {
		return nil, err
	}

	s := &SwapChain{dev: d}
	s.desc.DepthFormat = gfxFormat(depthFormat)

	err = s.createSyncObjects()
	if err == nil {
		err = s.create(width, height)
	}
	if err != nil {
		s.Destroy()
		return nil, errors.Wrap(err, "create swap chain")
	}
	return s, nil
}

func (s *SwapChain) createSyncObjects() error {
	driver := s.dev.deviceDriver

	var err error
	s.imageAvailable, _, err = driver.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
	if err != nil {
		return err
	}

	s.inFlight, _, err = driver.CreateFence(nil, core1_0.FenceCreateInfo{
		Flags: core1_0.FenceCreateSignaled,
	})
	return err
}

func (s *SwapChain) create(width, height int) error {
	d := s.dev

	swapchainSupport, err := d.querySwapChainSupport(d.physicalDevice)
	if err != nil {
		return err
	}

	surfaceFormat := chooseSwapSurfaceFormat(swapchainSupport.Formats)
	presentMode := chooseSwapPresentMode(swapchainSupport.PresentModes)
	extent := chooseSwapExtent(swapchainSupport.Capabilities, width, height)

	colorFormat := gfxFormat(surfaceFormat.Format)
	if colorFormat == gfx.FormatUnknown {
		return errors.Errorf("unsupported surface format %s", surfaceFormat.Format)
	}

	imageCount := swapchainSupport.Capabilities.MinImageCount + 1
	if swapchainSupport.Capabilities.MaxImageCount > 0 && swapchainSupport.Capabilities.MaxImageCount < imageCount {
		imageCount = swapchainSupport.Capabilities.MaxImageCount
	}

	sharingMode := core1_0.SharingModeExclusive
	var queueFamilyIndices []int

	indices := d.queueFamilies
	if *indices.GraphicsFamily != *indices.PresentFamily {
		sharingMode = core1_0.SharingModeConcurrent
		queueFamilyIndices = append(queueFamilyIndices, *indices.GraphicsFamily, *indices.PresentFamily)
	}

	s.swapchain, _, err = d.swapchainExtension.CreateSwapchain(nil, khr_swapchain.SwapchainCreateInfo{
		Surface: d.surface,

		MinImageCount:    imageCount,
		ImageFormat:      surfaceFormat.Format,
		ImageColorSpace:  surfaceFormat.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       core1_0.ImageUsageColorAttachment,

		ImageSharingMode:   sharingMode,
		QueueFamilyIndices: queueFamilyIndices,

		PreTransform:   swapchainSupport.Capabilities.CurrentTransform,
		CompositeAlpha: khr_surface.CompositeAlphaOpaque,
		PresentMode:    presentMode,
		Clipped:        true,
	})
	if err != nil {
		return err
	}

	s.desc.Width = extent.Width
	s.desc.Height = extent.Height
	s.desc.ColorFormat = colorFormat

	images, _, err := d.swapchainExtension.GetSwapchainImages(s.swapchain)
	if err != nil {
		return err
	}

	for i, image := range images {
		tex, err := d.wrapSwapchainImage(image, gfx.TextureDesc{
			Name:      fmt.Sprintf("Back buffer %d", i),
			Width:     extent.Width,
			Height:    extent.Height,
			Format:    colorFormat,
			Bind:      gfx.BindRenderTarget,
			MipLevels: 1,
		})
		if err != nil {
			return err
		}
		s.images = append(s.images, tex)

		semaphore, _, err := d.deviceDriver.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
		if err != nil {
			return err
		}
		s.renderFinished = append(s.renderFinished, semaphore)
	}
	s.current = 0

	return nil
}

func (s *SwapChain) cleanup() {
	driver := s.dev.deviceDriver

	for _, image := range s.images {
		image.Destroy()
	}
	s.images = nil

	for _, semaphore := range s.renderFinished {
		driver.DestroySemaphore(semaphore, nil)
	}
	s.renderFinished = nil

	if s.swapchain.Initialized() {
		s.dev.swapchainExtension.DestroySwapchain(s.swapchain, nil)
		s.swapchain = khr_swapchain.Swapchain{}
	}
}

func (s *SwapChain) Desc() gfx.SwapChainDesc { return s.desc }

func (s *SwapChain) CurrentBackBuffer() gfx.TextureView {
	return s.images[s.current].View(gfx.ViewRenderTarget)
}

// BeginFrame waits for the previous frame, acquires the next image
// and starts recording the device context.
func (s *SwapChain) BeginFrame() error {
	driver := s.dev.deviceDriver

	// A frame that was abandoned after its image was acquired still
	// holds the acquire semaphore; consume it before reusing it.
	if s.acquired {
		_, err := driver.ResetFences(s.inFlight)
		if err != nil {
			return err
		}
		_, err = driver.QueueSubmit(s.dev.graphicsQueue, &s.inFlight, core1_0.SubmitInfo{
			WaitSemaphores:   []core1_0.Semaphore{s.imageAvailable},
			WaitDstStageMask: []core1_0.PipelineStageFlags{core1_0.PipelineStageBottomOfPipe},
		})
		if err != nil {
			return err
		}
		s.acquired = false
	}

	_, err := driver.WaitForFences(true, common.NoTimeout, s.inFlight)
	if err != nil {
		return err
	}

	imageIndex, res, err := s.dev.swapchainExtension.AcquireNextImage(s.swapchain, common.NoTimeout, &s.imageAvailable, nil)
	if res == khr_swapchain.VKErrorOutOfDate {
		return gfx.ErrOutOfDate
	} else if err != nil {
		return err
	}
	s.current = imageIndex
	s.acquired = true

	return s.dev.ctx.begin()
}

// Present submits the recorded commands and queues the current image
// for presentation.
func (s *SwapChain) Present() error {
	driver := s.dev.deviceDriver
	if !s.acquired {
		return errors.New("present: no frame in progress")
	}

	cmd, err := s.dev.ctx.end()
	if err != nil {
		return err
	}

	_, err = driver.ResetFences(s.inFlight)
	if err != nil {
		return err
	}

	_, err = driver.QueueSubmit(s.dev.graphicsQueue, &s.inFlight,
		core1_0.SubmitInfo{
			WaitSemaphores:   []core1_0.Semaphore{s.imageAvailable},
			WaitDstStageMask: []core1_0.PipelineStageFlags{core1_0.PipelineStageColorAttachmentOutput},
			CommandBuffers:   []core1_0.CommandBuffer{cmd},
			SignalSemaphores: []core1_0.Semaphore{s.renderFinished[s.current]},
		},
	)
	if err != nil {
		return err
	}
	s.acquired = false

	res, err := s.dev.swapchainExtension.QueuePresent(s.dev.presentQueue, khr_swapchain.PresentInfo{
		WaitSemaphores: []core1_0.Semaphore{s.renderFinished[s.current]},
		Swapchains:     []khr_swapchain.Swapchain{s.swapchain},
		ImageIndices:   []int{s.current},
	})
	if res == khr_swapchain.VKErrorOutOfDate || res == khr_swapchain.VKSuboptimal {
		return gfx.ErrOutOfDate
	} else if err != nil {
		return err
	}

	return nil
}

// Resize recreates the swap chain images. Views returned by
// CurrentBackBuffer before the call are invalid afterwards.
func (s *SwapChain) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return errors.Newf("resize swap chain to %dx%d", width, height)
	}

	err := s.dev.WaitIdle()
	if err != nil {
		return err
	}

	s.cleanup()
	err = s.create(width, height)
	if err != nil {
		return errors.Wrap(err, "recreate swap chain")
	}
	return nil
}

func (s *SwapChain) Destroy() {
	driver := s.dev.deviceDriver
	s.cleanup()

	if s.inFlight.Initialized() {
		driver.DestroyFence(s.inFlight, nil)
		s.inFlight = core1_0.Fence{}
	}
	if s.imageAvailable.Initialized() {
		driver.DestroySemaphore(s.imageAvailable, nil)
		s.imageAvailable = core1_0.Semaphore{}
	}
}
