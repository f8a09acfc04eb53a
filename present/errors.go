// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package present

import "github.com/pkg/errors"

var (
	// ErrResizeRequired tells the caller to invoke Resize before acquiring again.
	ErrResizeRequired = errors.New("swapchain resize required")

	// ErrOutOfDate and ErrSuboptimal are reported by a Device when the
	// swapchain no longer matches the surface.
	ErrOutOfDate  = errors.New("swapchain out of date")
	ErrSuboptimal = errors.New("swapchain suboptimal")

	// ErrDeviceLost is fatal, the device must be torn down.
	ErrDeviceLost = errors.New("device lost")

	ErrNoPresentQueue     = errors.New("no queue family can present to the surface")
	ErrNoGraphicsQueue    = errors.New("no queue family supports graphics")
	ErrNotPrepared        = errors.New("PrepareForSwapchain was not called")
	ErrNoSwapchain        = errors.New("no swapchain")
	ErrDetached           = errors.New("swapchain was detached")
	ErrZeroExtent         = errors.New("surface extent is zero")
	ErrIndexOutOfRange    = errors.New("swapchain image index out of range")
	ErrNoSurfaceFormats   = errors.New("surface reports no formats")
	ErrTimingUnsupported  = errors.New("display timing is not supported")
	ErrSwapchainExtension = errors.New("swapchain extension is not available")
)

// IsResizeRequired reports whether err asks for a swapchain resize.
func IsResizeRequired(err error) bool {
	return errors.Is(err, ErrResizeRequired)
}

func stale(err error) bool {
	return errors.Is(err, ErrOutOfDate) || errors.Is(err, ErrSuboptimal)
}
