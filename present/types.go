// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package present

import "fmt"

// Opaque handles minted by a Device. The zero value of each is the null handle.
type (
	Swapchain     uint64
	Image         uint64
	ImageView     uint64
	Framebuffer   uint64
	RenderPass    uint64
	CommandPool   uint64
	CommandBuffer uint64
	Semaphore     uint64
	Fence         uint64
	Queue         uint64
)

// Null handles
const (
	NullSwapchain     Swapchain     = 0
	NullSemaphore     Semaphore     = 0
	NullFence         Fence         = 0
	NullCommandBuffer CommandBuffer = 0
	NullImageView     ImageView     = 0
)

// Format is a pixel format, numerically identical to VkFormat.
type Format int32

// Formats the engine and its tests refer to by name.
const (
	FormatUndefined     Format = 0
	FormatR8G8B8A8Unorm Format = 37
	FormatR8G8B8A8Srgb  Format = 43
	FormatB8G8R8A8Unorm Format = 44
	FormatB8G8R8A8Srgb  Format = 50
	FormatD16Unorm      Format = 124
	FormatD32Sfloat     Format = 126
)

func (f Format) String() string {
	switch f {
	case FormatUndefined:
		return "UNDEFINED"
	case FormatR8G8B8A8Unorm:
		return "R8G8B8A8_UNORM"
	case FormatR8G8B8A8Srgb:
		return "R8G8B8A8_SRGB"
	case FormatB8G8R8A8Unorm:
		return "B8G8R8A8_UNORM"
	case FormatB8G8R8A8Srgb:
		return "B8G8R8A8_SRGB"
	case FormatD16Unorm:
		return "D16_UNORM"
	case FormatD32Sfloat:
		return "D32_SFLOAT"
	}
	return fmt.Sprintf("Format(%d)", int32(f))
}

// ColorSpace is numerically identical to VkColorSpaceKHR.
type ColorSpace int32

// ColorSpaceSrgbNonlinear is the only color space every surface supports.
const ColorSpaceSrgbNonlinear ColorSpace = 0

// SurfaceFormat pairs a format with the color space it is presented in.
type SurfaceFormat struct {
	Format     Format
	ColorSpace ColorSpace
}

// PresentMode is the queuing discipline of the swapchain, numerically
// identical to VkPresentModeKHR.
type PresentMode int32

// Present modes
const (
	PresentModeImmediate   PresentMode = 0
	PresentModeMailbox     PresentMode = 1
	PresentModeFIFO        PresentMode = 2
	PresentModeFIFORelaxed PresentMode = 3
)

func (m PresentMode) String() string {
	switch m {
	case PresentModeImmediate:
		return "IMMEDIATE"
	case PresentModeMailbox:
		return "MAILBOX"
	case PresentModeFIFO:
		return "FIFO"
	case PresentModeFIFORelaxed:
		return "FIFO_RELAXED"
	}
	return fmt.Sprintf("PresentMode(%d)", int32(m))
}

// ParsePresentMode maps a configuration string onto a PresentMode.
func ParsePresentMode(s string) (PresentMode, error) {
	switch s {
	case "IMMEDIATE", "immediate":
		return PresentModeImmediate, nil
	case "MAILBOX", "mailbox":
		return PresentModeMailbox, nil
	case "FIFO", "fifo", "":
		return PresentModeFIFO, nil
	case "FIFO_RELAXED", "fifo_relaxed":
		return PresentModeFIFORelaxed, nil
	}
	return PresentModeFIFO, fmt.Errorf("unknown present mode %q", s)
}

// Extent is a two dimensional size in pixels.
type Extent struct {
	Width  uint32
	Height uint32
}

// ExtentUndefined is reported by surfaces whose size follows the swapchain.
const ExtentUndefined uint32 = 0xFFFFFFFF

// Transform mirrors VkSurfaceTransformFlagsKHR.
type Transform uint32

// TransformIdentity is preferred whenever the surface supports it.
const TransformIdentity Transform = 0x00000001

// SurfaceCapabilities is what the surface reports about the swapchains it accepts.
type SurfaceCapabilities struct {
	MinImageCount       uint32
	MaxImageCount       uint32 // 0 means no upper bound
	CurrentExtent       Extent
	MinExtent           Extent
	MaxExtent           Extent
	SupportedTransforms Transform
	CurrentTransform    Transform
}

// QueueFamily describes one queue family of the physical device.
type QueueFamily struct {
	Graphics bool
}

// SwapchainConfig is handed to Device.CreateSwapchain.
type SwapchainConfig struct {
	MinImageCount uint32
	Format        SurfaceFormat
	Extent        Extent
	PreTransform  Transform
	PresentMode   PresentMode
	Old           Swapchain
}

// SubmitInfo describes one queue submission.
type SubmitInfo struct {
	Wait           []Semaphore
	CommandBuffers []CommandBuffer
	Signal         []Semaphore
}

// PresentTime is the desired presentation of one image, as understood by
// the display timing extension.
type PresentTime struct {
	PresentID          uint32
	DesiredPresentTime uint64
}

// PresentInfo describes a present request for a single swapchain image.
type PresentInfo struct {
	Wait      []Semaphore
	Swapchain Swapchain
	Index     uint32

	// Time is nil unless frame pacing is active.
	Time *PresentTime
}

// PastPresentationTiming is one entry of the display timing history.
type PastPresentationTiming struct {
	PresentID           uint32
	DesiredPresentTime  uint64
	ActualPresentTime   uint64
	EarliestPresentTime uint64
	PresentMargin       uint64
}

// State of the swapchain owned by an Engine.
type State int

// Swapchain lifecycle states
const (
	StateUninitialized State = iota
	StateCreated
	StateRecreating
	StateDestroyed
	StateDetached
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateCreated:
		return "created"
	case StateRecreating:
		return "recreating"
	case StateDestroyed:
		return "destroyed"
	case StateDetached:
		return "detached"
	}
	return "unknown"
}
