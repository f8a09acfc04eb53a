// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package device

import (
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"

	"github.com/devblok/globe/present"
	"github.com/devblok/globe/resource"
)

// ErrNoMemoryType is returned when no heap satisfies a request.
var ErrNoMemoryType = errors.New("suitable memory type not found")

// memoryTypeIndex picks the first type allowed by filter whose
// property flags include want.
func memoryTypeIndex(types []vk.MemoryPropertyFlags, filter uint32, want vk.MemoryPropertyFlags) (uint32, error) {
	for idx := uint32(0); idx < uint32(len(types)); idx++ {
		if filter&(1<<idx) != 0 && types[idx]&want == want {
			return idx, nil
		}
	}
	return 0, ErrNoMemoryType
}

func (v *Vulkan) memoryTypes() []vk.MemoryPropertyFlags {
	types := make([]vk.MemoryPropertyFlags, v.memory.MemoryTypeCount)
	for i := range types {
		v.memory.MemoryTypes[i].Deref()
		types[i] = v.memory.MemoryTypes[i].PropertyFlags
	}
	return types
}

// malloc allocates device memory for req, tracked by the ledger.
func (v *Vulkan) malloc(kind string, req vk.MemoryRequirements, prop vk.MemoryPropertyFlagBits) (vk.DeviceMemory, *resource.Allocation, error) {
	typeIdx, err := memoryTypeIndex(v.memoryTypes(), req.MemoryTypeBits, vk.MemoryPropertyFlags(prop))
	if err != nil {
		return nil, nil, err
	}

	mai := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: typeIdx,
	}
	var memory vk.DeviceMemory
	if err := check("vk.AllocateMemory()", vk.AllocateMemory(v.device, &mai, nil, &memory)); err != nil {
		return nil, nil, err
	}
	device := v.device
	alloc := v.ledger.Track(kind, uint64(req.Size), func() {
		vk.FreeMemory(device, memory, nil)
	})
	return memory, alloc, nil
}

// CreateDepthBuffer creates a depth image of the given size with its
// view. Freeing the returned allocation destroys the view, the image
// and its memory.
func (v *Vulkan) CreateDepthBuffer(size present.Extent, format present.Format) (present.ImageView, *resource.Allocation, error) {
	if v.device == nil {
		return 0, nil, ErrNotOpen
	}
	ici := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    vk.Format(format),
		Extent: vk.Extent3D{
			Width:  size.Width,
			Height: size.Height,
			Depth:  1,
		},
		MipLevels:   1,
		ArrayLayers: 1,
		Samples:     vk.SampleCount1Bit,
		Tiling:      vk.ImageTilingOptimal,
		Usage:       vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit),
	}

	var image vk.Image
	if err := check("vk.CreateImage()", vk.CreateImage(v.device, &ici, nil, &image)); err != nil {
		return 0, nil, err
	}

	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(v.device, image, &req)
	req.Deref()

	memory, mem, err := v.malloc("depth", req, vk.MemoryPropertyDeviceLocalBit)
	if err != nil {
		vk.DestroyImage(v.device, image, nil)
		return 0, nil, err
	}
	if err := check("vk.BindImageMemory()", vk.BindImageMemory(v.device, image, memory, 0)); err != nil {
		vk.DestroyImage(v.device, image, nil)
		mem.Free()
		return 0, nil, err
	}

	view, err := v.createView(image, vk.Format(format), vk.ImageAspectDepthBit)
	if err != nil {
		vk.DestroyImage(v.device, image, nil)
		mem.Free()
		return 0, nil, err
	}
	handle := v.views.put(view)

	device := v.device
	alloc := v.ledger.Track("depth image", 0, func() {
		v.DestroyImageView(handle)
		vk.DestroyImage(device, image, nil)
		mem.Free()
	})
	return handle, alloc, nil
}
