package vulkan

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/renderpass-examples/gfx"
)

// Texture is a gfx.Texture backed by a Vulkan image. Swap chain
// images are wrapped without owning the image or its memory.
type Texture struct {
	dev    *Device
	desc   gfx.TextureDesc
	format core1_0.Format
	aspect core1_0.ImageAspectFlags
	owned  bool

	image  core1_0.Image
	memory core1_0.DeviceMemory
	view   core1_0.ImageView
	views  map[gfx.ViewKind]*TextureView
}

// TextureView is a gfx.TextureView. All kinds of view of a texture
// share its single image view; the kind selects the layout the
// image is used in.
type TextureView struct {
	tex  *Texture
	kind gfx.ViewKind
}

var _ gfx.Texture = (*Texture)(nil)
var _ gfx.TextureView = (*TextureView)(nil)

func (t *Texture) Desc() gfx.TextureDesc { return t.desc }

func (t *Texture) View(kind gfx.ViewKind) gfx.TextureView {
	v, ok := t.views[kind]
	if !ok {
		v = &TextureView{tex: t, kind: kind}
		t.views[kind] = v
	}
	return v
}

func (t *Texture) Destroy() {
	if t.view.Initialized() {
		t.dev.deviceDriver.DestroyImageView(t.view, nil)
		t.view = core1_0.ImageView{}
	}
	if !t.owned {
		return
	}
	if t.image.Initialized() {
		t.dev.deviceDriver.DestroyImage(t.image, nil)
		t.image = core1_0.Image{}
	}
	if t.memory.Initialized() {
		t.dev.deviceDriver.FreeMemory(t.memory, nil)
		t.memory = core1_0.DeviceMemory{}
	}
}

func (v *TextureView) ResourceName() string { return v.tex.desc.Name }
func (v *TextureView) Texture() gfx.Texture { return v.tex }
func (v *TextureView) Kind() gfx.ViewKind   { return v.kind }

func (v *TextureView) imageView() core1_0.ImageView { return v.tex.view }

// CreateTexture creates a device-local 2D texture. When data is not
// nil the first mip level is uploaded through a staging buffer and
// the remaining levels are generated by blitting.
func (d *Device) CreateTexture(desc gfx.TextureDesc, data []byte) (gfx.Texture, error) {
	t, err := d.createTexture(desc, data)
	if err != nil {
		return nil, errors.Wrapf(err, "create texture %q", desc.Name)
	}
	return t, nil
}

func (d *Device) createTexture(desc gfx.TextureDesc, data []byte) (*Texture, error) {
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, errors.Wrapf(gfx.ErrInvalidDesc, "size %dx%d", desc.Width, desc.Height)
	}
	if desc.MipLevels < 1 {
		desc.MipLevels = 1
	}
	if full := gfx.MipLevelCount(desc.Width, desc.Height); desc.MipLevels > full {
		return nil, errors.Wrapf(gfx.ErrInvalidDesc, "%d mip levels for a %dx%d texture, at most %d",
			desc.MipLevels, desc.Width, desc.Height, full)
	}
	format, err := vkFormat(desc.Format)
	if err != nil {
		return nil, err
	}

	t := &Texture{
		dev:    d,
		desc:   desc,
		format: format,
		aspect: core1_0.ImageAspectColor,
		owned:  true,
		views:  map[gfx.ViewKind]*TextureView{},
	}
	if desc.Format.IsDepth() {
		t.aspect = core1_0.ImageAspectDepth
		if desc.Format.HasStencil() {
			t.aspect |= core1_0.ImageAspectStencil
		}
	}

	usage := imageUsage(desc.Bind)
	if data != nil {
		if len(data) != desc.Width*desc.Height*desc.Format.Size() {
			return nil, errors.Wrapf(gfx.ErrInvalidDesc, "%d bytes of data for a %dx%d %s texture",
				len(data), desc.Width, desc.Height, desc.Format)
		}
		usage |= core1_0.ImageUsageTransferDst
		if desc.MipLevels > 1 {
			usage |= core1_0.ImageUsageTransferSrc
		}
	}

	t.image, t.memory, err = d.createImage(desc.Width, desc.Height, desc.MipLevels, format,
		core1_0.ImageTilingOptimal, usage, core1_0.MemoryPropertyDeviceLocal)
	if err != nil {
		t.Destroy()
		return nil, err
	}

	if data != nil {
		err = d.uploadTexture(t, data)
		if err != nil {
			t.Destroy()
			return nil, err
		}
	}

	t.view, err = d.createImageView(t.image, format, t.aspect, desc.MipLevels)
	if err != nil {
		t.Destroy()
		return nil, err
	}

	return t, nil
}

// wrapSwapchainImage wraps an image owned by the presentation engine.
func (d *Device) wrapSwapchainImage(image core1_0.Image, desc gfx.TextureDesc) (*Texture, error) {
	format, err := vkFormat(desc.Format)
	if err != nil {
		return nil, err
	}

	t := &Texture{
		dev:    d,
		desc:   desc,
		format: format,
		aspect: core1_0.ImageAspectColor,
		image:  image,
		views:  map[gfx.ViewKind]*TextureView{},
	}
	t.view, err = d.createImageView(image, format, t.aspect, 1)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (d *Device) uploadTexture(t *Texture, data []byte) error {
	stagingBuffer, stagingMemory, err := d.createBuffer(len(data), core1_0.BufferUsageTransferSrc, core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent)
	if err != nil {
		return err
	}

	defer d.deviceDriver.DestroyBuffer(stagingBuffer, nil)
	defer d.deviceDriver.FreeMemory(stagingMemory, nil)

	err = writeData(d.deviceDriver, stagingMemory, 0, data)
	if err != nil {
		return err
	}

	err = d.transitionImageLayout(t.image, core1_0.ImageLayoutUndefined, core1_0.ImageLayoutTransferDstOptimal, t.desc.MipLevels)
	if err != nil {
		return err
	}
	err = d.copyBufferToImage(stagingBuffer, t.image, t.desc.Width, t.desc.Height)
	if err != nil {
		return err
	}

	if t.desc.MipLevels > 1 {
		return d.generateMipmaps(t.image, t.format, t.desc.Width, t.desc.Height, t.desc.MipLevels)
	}
	return d.transitionImageLayout(t.image, core1_0.ImageLayoutTransferDstOptimal, core1_0.ImageLayoutShaderReadOnlyOptimal, t.desc.MipLevels)
}

// Buffer is a gfx.Buffer. Immutable buffers live in device-local
// memory; dynamic buffers stay host visible and are rewritten in
// place.
type Buffer struct {
	dev    *Device
	desc   gfx.BufferDesc
	buffer core1_0.Buffer
	memory core1_0.DeviceMemory
}

var _ gfx.Buffer = (*Buffer)(nil)

func (b *Buffer) ResourceName() string { return b.desc.Name }
func (b *Buffer) Desc() gfx.BufferDesc { return b.desc }

func (b *Buffer) Destroy() {
	if b.buffer.Initialized() {
		b.dev.deviceDriver.DestroyBuffer(b.buffer, nil)
		b.buffer = core1_0.Buffer{}
	}
	if b.memory.Initialized() {
		b.dev.deviceDriver.FreeMemory(b.memory, nil)
		b.memory = core1_0.DeviceMemory{}
	}
}

// CreateBuffer creates a buffer. Immutable buffers are filled from
// data through a staging buffer; dynamic buffers are filled directly
// when data is not nil.
func (d *Device) CreateBuffer(desc gfx.BufferDesc, data []byte) (gfx.Buffer, error) {
	b, err := d.createGfxBuffer(desc, data)
	if err != nil {
		return nil, errors.Wrapf(err, "create buffer %q", desc.Name)
	}
	return b, nil
}

func (d *Device) createGfxBuffer(desc gfx.BufferDesc, data []byte) (*Buffer, error) {
	if desc.Size <= 0 {
		return nil, errors.Wrapf(gfx.ErrInvalidDesc, "size %d", desc.Size)
	}
	if len(data) > desc.Size {
		return nil, errors.Wrapf(gfx.ErrInvalidDesc, "%d bytes of data for a %d byte buffer", len(data), desc.Size)
	}

	b := &Buffer{dev: d, desc: desc}
	usage := bufferUsage(desc.Bind)

	var err error
	if desc.Usage == gfx.UsageDynamic {
		b.buffer, b.memory, err = d.createBuffer(desc.Size, usage, core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent)
		if err == nil && data != nil {
			err = writeData(d.deviceDriver, b.memory, 0, data)
		}
		if err != nil {
			b.Destroy()
			return nil, err
		}
		return b, nil
	}

	if data == nil {
		return nil, errors.Wrap(gfx.ErrInvalidDesc, "immutable buffer without data")
	}

	stagingBuffer, stagingMemory, err := d.createBuffer(len(data), core1_0.BufferUsageTransferSrc, core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent)
	if err != nil {
		return nil, err
	}

	defer d.deviceDriver.DestroyBuffer(stagingBuffer, nil)
	defer d.deviceDriver.FreeMemory(stagingMemory, nil)

	err = writeData(d.deviceDriver, stagingMemory, 0, data)
	if err != nil {
		return nil, err
	}

	b.buffer, b.memory, err = d.createBuffer(desc.Size, usage|core1_0.BufferUsageTransferDst, core1_0.MemoryPropertyDeviceLocal)
	if err == nil {
		err = d.copyBuffer(stagingBuffer, b.buffer, len(data))
	}
	if err != nil {
		b.Destroy()
		return nil, err
	}
	return b, nil
}

func writeData(driver core1_0.DeviceDriver, memory core1_0.DeviceMemory, offset int, data []byte) error {
	memoryPtr, _, err := driver.MapMemory(memory, offset, len(data), 0)
	if err != nil {
		return err
	}
	defer driver.UnmapMemory(memory)

	copy(unsafe.Slice((*byte)(memoryPtr), len(data)), data)
	return nil
}

func (d *Device) createBuffer(size int, usage core1_0.BufferUsageFlags, properties core1_0.MemoryPropertyFlags) (core1_0.Buffer, core1_0.DeviceMemory, error) {
	buffer, _, err := d.deviceDriver.CreateBuffer(nil, core1_0.BufferCreateInfo{
		Size:        size,
		Usage:       usage,
		SharingMode: core1_0.SharingModeExclusive,
	})
	if err != nil {
		return core1_0.Buffer{}, core1_0.DeviceMemory{}, err
	}

	memRequirements := d.deviceDriver.GetBufferMemoryRequirements(buffer)
	memoryTypeIndex, err := d.findMemoryType(memRequirements.MemoryTypeBits, properties)
	if err != nil {
		d.deviceDriver.DestroyBuffer(buffer, nil)
		return core1_0.Buffer{}, core1_0.DeviceMemory{}, err
	}

	memory, _, err := d.deviceDriver.AllocateMemory(nil, core1_0.MemoryAllocateInfo{
		AllocationSize:  memRequirements.Size,
		MemoryTypeIndex: memoryTypeIndex,
	})
	if err != nil {
		d.deviceDriver.DestroyBuffer(buffer, nil)
		return core1_0.Buffer{}, core1_0.DeviceMemory{}, err
	}

	_, err = d.deviceDriver.BindBufferMemory(buffer, memory, 0)
	if err != nil {
		d.deviceDriver.DestroyBuffer(buffer, nil)
		d.deviceDriver.FreeMemory(memory, nil)
		return core1_0.Buffer{}, core1_0.DeviceMemory{}, err
	}
	return buffer, memory, nil
}

func (d *Device) copyBuffer(srcBuffer core1_0.Buffer, dstBuffer core1_0.Buffer, size int) error {
	buffer, err := d.beginSingleTimeCommands()
	if err != nil {
		return err
	}

	err = d.deviceDriver.CmdCopyBuffer(buffer, srcBuffer, dstBuffer,
		core1_0.BufferCopy{
			SrcOffset: 0,
			DstOffset: 0,
			Size:      size,
		},
	)
	if err != nil {
		d.deviceDriver.FreeCommandBuffers(buffer)
		return err
	}

	return d.endSingleTimeCommands(buffer)
}

func (d *Device) createImage(width, height int, mipLevels int, format core1_0.Format, tiling core1_0.ImageTiling, usage core1_0.ImageUsageFlags, memoryProperties core1_0.MemoryPropertyFlags) (core1_0.Image, core1_0.DeviceMemory, error) {
	image, _, err := d.deviceDriver.CreateImage(nil, core1_0.ImageCreateInfo{
		ImageType: core1_0.ImageType2D,
		Extent: core1_0.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
		MipLevels:     mipLevels,
		ArrayLayers:   1,
		Format:        format,
		Tiling:        tiling,
		InitialLayout: core1_0.ImageLayoutUndefined,
		Usage:         usage,
		SharingMode:   core1_0.SharingModeExclusive,
		Samples:       core1_0.Samples1,
	})
	if err != nil {
		return core1_0.Image{}, core1_0.DeviceMemory{}, err
	}

	memReqs := d.deviceDriver.GetImageMemoryRequirements(image)
	memoryIndex, err := d.findMemoryType(memReqs.MemoryTypeBits, memoryProperties)
	if err != nil {
		d.deviceDriver.DestroyImage(image, nil)
		return core1_0.Image{}, core1_0.DeviceMemory{}, err
	}

	imageMemory, _, err := d.deviceDriver.AllocateMemory(nil, core1_0.MemoryAllocateInfo{
		AllocationSize:  memReqs.Size,
		MemoryTypeIndex: memoryIndex,
	})
	if err != nil {
		d.deviceDriver.DestroyImage(image, nil)
		return core1_0.Image{}, core1_0.DeviceMemory{}, err
	}

	_, err = d.deviceDriver.BindImageMemory(image, imageMemory, 0)
	if err != nil {
		d.deviceDriver.DestroyImage(image, nil)
		d.deviceDriver.FreeMemory(imageMemory, nil)
		return core1_0.Image{}, core1_0.DeviceMemory{}, err
	}

	return image, imageMemory, nil
}

func (d *Device) createImageView(image core1_0.Image, format core1_0.Format, aspect core1_0.ImageAspectFlags, mipLevels int) (core1_0.ImageView, error) {
	imageView, _, err := d.deviceDriver.CreateImageView(nil, core1_0.ImageViewCreateInfo{
		Image:    image,
		ViewType: core1_0.ImageViewType2D,
		Format:   format,
		SubresourceRange: core1_0.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   0,
			LevelCount:     mipLevels,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	})
	return imageView, err
}

func (d *Device) transitionImageLayout(image core1_0.Image, oldLayout core1_0.ImageLayout, newLayout core1_0.ImageLayout, mipLevels int) error {
	var sourceStage, destStage core1_0.PipelineStageFlags
	var sourceAccess, destAccess core1_0.AccessFlags

	if oldLayout == core1_0.ImageLayoutUndefined && newLayout == core1_0.ImageLayoutTransferDstOptimal {
		sourceAccess = 0
		destAccess = core1_0.AccessTransferWrite
		sourceStage = core1_0.PipelineStageTopOfPipe
		destStage = core1_0.PipelineStageTransfer
	} else if oldLayout == core1_0.ImageLayoutTransferDstOptimal && newLayout == core1_0.ImageLayoutShaderReadOnlyOptimal {
		sourceAccess = core1_0.AccessTransferWrite
		destAccess = core1_0.AccessShaderRead
		sourceStage = core1_0.PipelineStageTransfer
		destStage = core1_0.PipelineStageFragmentShader
	} else {
		return errors.Errorf("unexpected layout transition: %s -> %s", oldLayout, newLayout)
	}

	buffer, err := d.beginSingleTimeCommands()
	if err != nil {
		return err
	}

	err = d.deviceDriver.CmdPipelineBarrier(buffer, sourceStage, destStage, 0, nil, nil, []core1_0.ImageMemoryBarrier{
		{
			OldLayout:           oldLayout,
			NewLayout:           newLayout,
			SrcQueueFamilyIndex: -1,
			DstQueueFamilyIndex: -1,
			Image:               image,
			SubresourceRange: core1_0.ImageSubresourceRange{
				AspectMask:     core1_0.ImageAspectColor,
				BaseMipLevel:   0,
				LevelCount:     mipLevels,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
			SrcAccessMask: sourceAccess,
			DstAccessMask: destAccess,
		},
	})
	if err != nil {
		d.deviceDriver.FreeCommandBuffers(buffer)
		return err
	}

	return d.endSingleTimeCommands(buffer)
}

func (d *Device) copyBufferToImage(buffer core1_0.Buffer, image core1_0.Image, width, height int) error {
	cmdBuffer, err := d.beginSingleTimeCommands()
	if err != nil {
		return err
	}

	err = d.deviceDriver.CmdCopyBufferToImage(cmdBuffer, buffer, image, core1_0.ImageLayoutTransferDstOptimal,
		core1_0.BufferImageCopy{
			BufferOffset:      0,
			BufferRowLength:   0,
			BufferImageHeight: 0,

			ImageSubresource: core1_0.ImageSubresourceLayers{
				AspectMask:     core1_0.ImageAspectColor,
				MipLevel:       0,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
			ImageOffset: core1_0.Offset3D{X: 0, Y: 0, Z: 0},
			ImageExtent: core1_0.Extent3D{Width: width, Height: height, Depth: 1},
		},
	)
	if err != nil {
		d.deviceDriver.FreeCommandBuffers(cmdBuffer)
		return err
	}

	return d.endSingleTimeCommands(cmdBuffer)
}

func (d *Device) generateMipmaps(image core1_0.Image, imageFormat core1_0.Format, width, height int, mipLevels int) error {
	properties := d.instanceDriver.GetPhysicalDeviceFormatProperties(d.physicalDevice, imageFormat)

	if (properties.OptimalTilingFeatures & core1_0.FormatFeatureSampledImageFilterLinear) == 0 {
		return errors.Errorf("texture image format %s does not support linear blitting", imageFormat)
	}

	commandBuffer, err := d.beginSingleTimeCommands()
	if err != nil {
		return err
	}
	err = recordMipmaps(d.deviceDriver, commandBuffer, image, width, height, mipLevels)
	if err != nil {
		d.deviceDriver.FreeCommandBuffers(commandBuffer)
		return err
	}
	return d.endSingleTimeCommands(commandBuffer)
}

// recordMipmaps blits each level of image into the next one and
// leaves every level shader readable.
func recordMipmaps(driver core1_0.DeviceDriver, commandBuffer core1_0.CommandBuffer, image core1_0.Image, width, height int, mipLevels int) error {
	barrier := core1_0.ImageMemoryBarrier{
		Image:               image,
		SrcQueueFamilyIndex: -1,
		DstQueueFamilyIndex: -1,
		SubresourceRange: core1_0.ImageSubresourceRange{
			AspectMask:     core1_0.ImageAspectColor,
			BaseArrayLayer: 0,
			LayerCount:     1,
			LevelCount:     1,
		},
	}

	mipWidth := width
	mipHeight := height
	for i := 1; i < mipLevels; i++ {
		barrier.SubresourceRange.BaseMipLevel = i - 1
		barrier.OldLayout = core1_0.ImageLayoutTransferDstOptimal
		barrier.NewLayout = core1_0.ImageLayoutTransferSrcOptimal
		barrier.SrcAccessMask = core1_0.AccessTransferWrite
		barrier.DstAccessMask = core1_0.AccessTransferRead

		err := driver.CmdPipelineBarrier(commandBuffer, core1_0.PipelineStageTransfer, core1_0.PipelineStageTransfer, 0, nil, nil, []core1_0.ImageMemoryBarrier{barrier})
		if err != nil {
			return err
		}

		nextMipWidth := max(mipWidth/2, 1)
		nextMipHeight := max(mipHeight/2, 1)
		err = driver.CmdBlitImage(commandBuffer, image, core1_0.ImageLayoutTransferSrcOptimal, image, core1_0.ImageLayoutTransferDstOptimal, []core1_0.ImageBlit{
			{
				SrcSubresource: core1_0.ImageSubresourceLayers{
					AspectMask:     core1_0.ImageAspectColor,
					MipLevel:       i - 1,
					BaseArrayLayer: 0,
					LayerCount:     1,
				},
				SrcOffsets: [2]core1_0.Offset3D{
					{X: 0, Y: 0, Z: 0},
					{X: mipWidth, Y: mipHeight, Z: 1},
				},

				DstSubresource: core1_0.ImageSubresourceLayers{
					AspectMask:     core1_0.ImageAspectColor,
					MipLevel:       i,
					BaseArrayLayer: 0,
					LayerCount:     1,
				},
				DstOffsets: [2]core1_0.Offset3D{
					{X: 0, Y: 0, Z: 0},
					{X: nextMipWidth, Y: nextMipHeight, Z: 1},
				},
			},
		}, core1_0.FilterLinear)
		if err != nil {
			return err
		}

		barrier.OldLayout = core1_0.ImageLayoutTransferSrcOptimal
		barrier.NewLayout = core1_0.ImageLayoutShaderReadOnlyOptimal
		barrier.SrcAccessMask = core1_0.AccessTransferRead
		barrier.DstAccessMask = core1_0.AccessShaderRead
		err = driver.CmdPipelineBarrier(commandBuffer, core1_0.PipelineStageTransfer, core1_0.PipelineStageFragmentShader, 0, nil, nil, []core1_0.ImageMemoryBarrier{barrier})
		if err != nil {
			return err
		}

		mipWidth = nextMipWidth
		mipHeight = nextMipHeight
	}

	barrier.SubresourceRange.BaseMipLevel = mipLevels - 1
	barrier.OldLayout = core1_0.ImageLayoutTransferDstOptimal
	barrier.NewLayout = core1_0.ImageLayoutShaderReadOnlyOptimal
	barrier.SrcAccessMask = core1_0.AccessTransferWrite
	barrier.DstAccessMask = core1_0.AccessShaderRead

	return driver.CmdPipelineBarrier(
		commandBuffer,
		core1_0.PipelineStageTransfer,
		core1_0.PipelineStageFragmentShader,
		0, nil, nil,
		[]core1_0.ImageMemoryBarrier{barrier})
}
