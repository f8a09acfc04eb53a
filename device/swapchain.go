// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package device

import (
	"time"
	"unsafe"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"

	"github.com/devblok/globe/present"
)

var compositeAlphaFlags = []vk.CompositeAlphaFlagBits{
	vk.CompositeAlphaOpaqueBit,
	vk.CompositeAlphaPreMultipliedBit,
	vk.CompositeAlphaPostMultipliedBit,
	vk.CompositeAlphaInheritBit,
}

// CreateSwapchain implements present.Device. The old swapchain named in
// cfg stays alive, the caller destroys it.
func (v *Vulkan) CreateSwapchain(cfg present.SwapchainConfig) (present.Swapchain, error) {
	if v.device == nil {
		return 0, ErrNotOpen
	}

	var caps vk.SurfaceCapabilities
	if err := check("vk.GetPhysicalDeviceSurfaceCapabilities()", vk.GetPhysicalDeviceSurfaceCapabilities(v.gpu, v.surface, &caps)); err != nil {
		return 0, err
	}
	caps.Deref()

	compositeAlpha := vk.CompositeAlphaOpaqueBit
	for _, flag := range compositeAlphaFlags {
		if caps.SupportedCompositeAlpha&vk.CompositeAlphaFlags(flag) != 0 {
			compositeAlpha = flag
			break
		}
	}

	scci := vk.SwapchainCreateInfo{
		SType:           vk.StructureTypeSwapchainCreateInfo,
		Surface:         v.surface,
		MinImageCount:   cfg.MinImageCount,
		ImageFormat:     vk.Format(cfg.Format.Format),
		ImageColorSpace: vk.ColorSpace(cfg.Format.ColorSpace),
		ImageExtent: vk.Extent2D{
			Width:  cfg.Extent.Width,
			Height: cfg.Extent.Height,
		},
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     vk.SurfaceTransformFlagBits(cfg.PreTransform),
		CompositeAlpha:   compositeAlpha,
		PresentMode:      vk.PresentMode(cfg.PresentMode),
		Clipped:          vk.True,
		ImageArrayLayers: 1,
		ImageSharingMode: vk.SharingModeExclusive,
		OldSwapchain:     v.swapchains.get(cfg.Old),
	}

	var swapchain vk.Swapchain
	if err := check("vk.CreateSwapchain()", vk.CreateSwapchain(v.device, &scci, nil, &swapchain)); err != nil {
		return 0, err
	}
	return v.swapchains.put(swapchain), nil
}

// DestroySwapchain implements present.Device
func (v *Vulkan) DestroySwapchain(sc present.Swapchain) {
	swapchain, ok := v.swapchains.take(sc)
	if !ok {
		return
	}
	for _, img := range v.ownedImages[sc] {
		v.images.take(img)
	}
	delete(v.ownedImages, sc)
	vk.DestroySwapchain(v.device, swapchain, nil)
}

// SwapchainImages implements present.Device
func (v *Vulkan) SwapchainImages(sc present.Swapchain) ([]present.Image, error) {
	if images, ok := v.ownedImages[sc]; ok {
		return images, nil
	}
	swapchain, ok := v.swapchains.lookup(sc)
	if !ok {
		return nil, errors.Wrap(ErrUnknown, "swapchain")
	}

	var count uint32
	if err := check("vk.GetSwapchainImages()", vk.GetSwapchainImages(v.device, swapchain, &count, nil)); err != nil {
		return nil, err
	}
	raw := make([]vk.Image, count)
	if err := check("vk.GetSwapchainImages()", vk.GetSwapchainImages(v.device, swapchain, &count, raw)); err != nil {
		return nil, err
	}

	images := make([]present.Image, 0, count)
	for _, img := range raw[:count] {
		images = append(images, v.images.put(img))
	}
	v.ownedImages[sc] = images
	return images, nil
}

// AcquireNextImage implements present.Device. A suboptimal acquire
// still returns a usable index next to the error.
func (v *Vulkan) AcquireNextImage(sc present.Swapchain, wait time.Duration, sem present.Semaphore) (uint32, error) {
	var idx uint32
	result := vk.AcquireNextImage(v.device, v.swapchains.get(sc), timeout(wait), v.semaphores.get(sem), nil, &idx)
	return idx, check("vk.AcquireNextImage()", result)
}

// CreateImageView implements present.Device
func (v *Vulkan) CreateImageView(img present.Image, format present.Format) (present.ImageView, error) {
	image, ok := v.images.lookup(img)
	if !ok {
		return 0, errors.Wrap(ErrUnknown, "image")
	}
	view, err := v.createView(image, vk.Format(format), vk.ImageAspectColorBit)
	if err != nil {
		return 0, err
	}
	return v.views.put(view), nil
}

func (v *Vulkan) createView(image vk.Image, format vk.Format, aspect vk.ImageAspectFlagBits) (vk.ImageView, error) {
	ivci := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(aspect),
			LevelCount: 1,
			LayerCount: 1,
		},
	}

	var view vk.ImageView
	if err := check("vk.CreateImageView()", vk.CreateImageView(v.device, &ivci, nil, &view)); err != nil {
		return nil, err
	}
	return view, nil
}

// DestroyImageView implements present.Device
func (v *Vulkan) DestroyImageView(iv present.ImageView) {
	if view, ok := v.views.take(iv); ok {
		vk.DestroyImageView(v.device, view, nil)
	}
}

// CreateFramebuffer implements present.Device
func (v *Vulkan) CreateFramebuffer(rp present.RenderPass, attachments []present.ImageView, size present.Extent) (present.Framebuffer, error) {
	renderPass, ok := v.renderPasses.lookup(rp)
	if !ok {
		return 0, errors.Wrap(ErrUnknown, "render pass")
	}
	views := make([]vk.ImageView, 0, len(attachments))
	for _, a := range attachments {
		view, ok := v.views.lookup(a)
		if !ok {
			return 0, errors.Wrap(ErrUnknown, "attachment")
		}
		views = append(views, view)
	}

	fci := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      renderPass,
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           size.Width,
		Height:          size.Height,
		Layers:          1,
	}

	var framebuffer vk.Framebuffer
	if err := check("vk.CreateFramebuffer()", vk.CreateFramebuffer(v.device, &fci, nil, &framebuffer)); err != nil {
		return 0, err
	}
	return v.framebuffers.put(framebuffer), nil
}

// DestroyFramebuffer implements present.Device
func (v *Vulkan) DestroyFramebuffer(fb present.Framebuffer) {
	if framebuffer, ok := v.framebuffers.take(fb); ok {
		vk.DestroyFramebuffer(v.device, framebuffer, nil)
	}
}

// QueuePresent implements present.Device. A desired present time is
// chained in when info carries one.
func (v *Vulkan) QueuePresent(q present.Queue, info present.PresentInfo) error {
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: uint32(len(info.Wait)),
		PWaitSemaphores:    v.semaphoreList(info.Wait),
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{v.swapchains.get(info.Swapchain)},
		PImageIndices:      []uint32{info.Index},
	}

	if info.Time != nil {
		times := vk.PresentTimesInfoGOOGLE{
			SType:          vk.StructureTypePresentTimesInfoGoogle,
			SwapchainCount: 1,
			PTimes: []vk.PresentTimeGOOGLE{{
				PresentID:          info.Time.PresentID,
				DesiredPresentTime: info.Time.DesiredPresentTime,
			}},
		}
		ref, _ := times.PassRef()
		defer times.Free()
		presentInfo.PNext = unsafe.Pointer(ref)
	}

	return check("vk.QueuePresent()", vk.QueuePresent(v.queues.get(q), &presentInfo))
}

// RefreshCycleDuration implements present.Device
func (v *Vulkan) RefreshCycleDuration(sc present.Swapchain) (uint64, error) {
	var rcd vk.RefreshCycleDurationGOOGLE
	if err := check("vk.GetRefreshCycleDurationGOOGLE()", vk.GetRefreshCycleDurationGOOGLE(v.device, v.swapchains.get(sc), &rcd)); err != nil {
		return 0, err
	}
	rcd.Deref()
	if rcd.RefreshDuration == 0 {
		return 0, present.ErrTimingUnsupported
	}
	return rcd.RefreshDuration, nil
}

// maxTimingRecords bounds one history drain.
const maxTimingRecords = 64

// PastPresentationTiming implements present.Device
func (v *Vulkan) PastPresentationTiming(sc present.Swapchain) ([]present.PastPresentationTiming, error) {
	swapchain := v.swapchains.get(sc)
	return drainTimings(func(count *uint32, raw *vk.PastPresentationTimingGOOGLE) vk.Result {
		return vk.GetPastPresentationTimingGOOGLE(v.device, swapchain, count, raw)
	})
}

// drainTimings fetches history records one at a time, the binding
// marshals a single struct per call. Incomplete means more are queued.
func drainTimings(fetch func(*uint32, *vk.PastPresentationTimingGOOGLE) vk.Result) ([]present.PastPresentationTiming, error) {
	var out []present.PastPresentationTiming
	for len(out) < maxTimingRecords {
		var raw vk.PastPresentationTimingGOOGLE
		count := uint32(1)
		result := fetch(&count, &raw)
		if err := check("vk.GetPastPresentationTimingGOOGLE()", result); err != nil {
			return out, err
		}
		if count == 0 {
			break
		}
		raw.Deref()
		out = append(out, present.PastPresentationTiming{
			PresentID:           raw.PresentID,
			DesiredPresentTime:  raw.DesiredPresentTime,
			ActualPresentTime:   raw.ActualPresentTime,
			EarliestPresentTime: raw.EarliestPresentTime,
			PresentMargin:       raw.PresentMargin,
		})
		if result != vk.Incomplete {
			break
		}
	}
	return out, nil
}
