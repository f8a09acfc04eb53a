// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package present owns the swapchain and the frame submission protocol.
//
// An Engine is bound to one Device and one Window. Every frame the
// application driver calls, in this order:
//
//	idx, err := engine.AcquireNextImageIndex()
//	cb, _ := engine.CurrentRenderCommandBuffer()
//	fb, _ := engine.CurrentFramebuffer()
//	// record into cb, targeting fb
//	engine.InsertPresentCommandsToBuffer(cb)
//	err = engine.SubmitAndPresent(NullSemaphore)
//
// Whenever ErrResizeRequired comes back, the driver calls Resize and
// re-attaches its render pass before acquiring again.
//
// The engine is driven from a single goroutine. All GPU side ordering is
// expressed through the semaphores and fences it owns, there are no host
// locks around per-frame state.
package present
