// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package present

import "time"

// Device is the logical device and the surface it presents to, as seen
// by the Engine. Implementations translate the opaque handles into
// native objects and native results into the errors of this package:
// ErrOutOfDate, ErrSuboptimal and ErrDeviceLost must be returned as is
// (or wrapped) so that the Engine can classify them.
type Device interface {
	// QueueFamilies lists every queue family of the physical device.
	QueueFamilies() []QueueFamily
	// SurfaceSupport reports whether the family can present to the surface.
	SurfaceSupport(family uint32) (bool, error)
	SurfaceFormats() ([]SurfaceFormat, error)
	SurfaceCapabilities() (SurfaceCapabilities, error)
	SurfacePresentModes() ([]PresentMode, error)
	// HasExtension reports whether a device extension is enabled.
	HasExtension(name string) bool

	GetQueue(family uint32) (Queue, error)

	CreateSwapchain(cfg SwapchainConfig) (Swapchain, error)
	DestroySwapchain(sc Swapchain)
	SwapchainImages(sc Swapchain) ([]Image, error)
	AcquireNextImage(sc Swapchain, timeout time.Duration, sem Semaphore) (uint32, error)

	CreateImageView(img Image, format Format) (ImageView, error)
	DestroyImageView(v ImageView)
	CreateFramebuffer(rp RenderPass, attachments []ImageView, extent Extent) (Framebuffer, error)
	DestroyFramebuffer(fb Framebuffer)

	CreateCommandPool(family uint32) (CommandPool, error)
	DestroyCommandPool(p CommandPool)
	AllocateCommandBuffers(p CommandPool, count uint32) ([]CommandBuffer, error)
	FreeCommandBuffers(p CommandPool, cbs []CommandBuffer)
	// RecordOwnershipRelease appends the barrier handing img from the
	// graphics family over to the present family.
	RecordOwnershipRelease(cb CommandBuffer, img Image, graphics, present uint32) error
	// RecordPresentBuffer records a complete command buffer that
	// acquires img on the present family.
	RecordPresentBuffer(cb CommandBuffer, img Image, graphics, present uint32) error

	CreateSemaphore() (Semaphore, error)
	DestroySemaphore(s Semaphore)
	// CreateFence creates a fence, signaled when asked to.
	CreateFence(signaled bool) (Fence, error)
	DestroyFence(f Fence)
	WaitForFence(f Fence, timeout time.Duration) error
	ResetFence(f Fence) error

	QueueSubmit(q Queue, info SubmitInfo, fence Fence) error
	QueuePresent(q Queue, info PresentInfo) error
	WaitIdle() error

	// RefreshCycleDuration and PastPresentationTiming are only called
	// when the display timing extension is enabled.
	RefreshCycleDuration(sc Swapchain) (uint64, error)
	PastPresentationTiming(sc Swapchain) ([]PastPresentationTiming, error)
}

// Window is the surface provider, as far as the Engine cares.
type Window interface {
	// Extent is the last known drawable size of the window.
	Extent() Extent
}

// Clock supplies the monotonic time in nanoseconds, 0 when unknown.
type Clock interface {
	Now() uint64
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() uint64

// Now implements interface
func (f ClockFunc) Now() uint64 {
	return f()
}

// Sink receives notifications the Engine raises outside of its return values.
type Sink interface {
	ResizeRequired()
}

type nopSink struct{}

func (nopSink) ResizeRequired() {}
