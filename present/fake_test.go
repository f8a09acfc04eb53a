// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package present_test

import (
	"errors"
	"sync"
	"time"

	"github.com/devblok/globe/present"
)

var errTimeout = errors.New("fence wait timed out")

type fakeFence struct {
	signaled chan struct{}
}

func (f *fakeFence) signal() {
	select {
	case <-f.signaled:
	default:
		close(f.signaled)
	}
}

// fakeDevice is an in-memory present.Device. Fences only signal when
// submitted work completes (autoSignal) or the test says so.
type fakeDevice struct {
	mu sync.Mutex

	families   []present.QueueFamily
	presenting map[uint32]bool
	formats    []present.SurfaceFormat
	caps       present.SurfaceCapabilities
	modes      []present.PresentMode
	extensions map[string]bool

	autoSignal bool
	refresh    uint64
	timings    []present.PastPresentationTiming
	timingErr  error

	acquireErr error
	submitErr  error
	presentErr error

	next       uint64
	live       map[uint64]string
	fences     map[present.Fence]*fakeFence
	swapchains map[present.Swapchain]present.SwapchainConfig
	acquireIdx uint32

	created   []present.SwapchainConfig
	destroyed []present.Swapchain
	submits   []fakeSubmit
	presents  []present.PresentInfo
	releases  []present.CommandBuffer
	recorded  int
	waitIdles int
	waited    []present.Fence
}

type fakeSubmit struct {
	queue present.Queue
	info  present.SubmitInfo
	fence present.Fence
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		families:   []present.QueueFamily{{Graphics: true}},
		presenting: map[uint32]bool{0: true},
		formats: []present.SurfaceFormat{
			{Format: present.FormatB8G8R8A8Unorm, ColorSpace: present.ColorSpaceSrgbNonlinear},
			{Format: present.FormatR8G8B8A8Unorm, ColorSpace: present.ColorSpaceSrgbNonlinear},
		},
		caps: present.SurfaceCapabilities{
			MinImageCount:       2,
			MaxImageCount:       3,
			CurrentExtent:       present.Extent{Width: 800, Height: 600},
			MinExtent:           present.Extent{Width: 1, Height: 1},
			MaxExtent:           present.Extent{Width: 4096, Height: 4096},
			SupportedTransforms: present.TransformIdentity,
			CurrentTransform:    present.TransformIdentity,
		},
		modes:      []present.PresentMode{present.PresentModeFIFO, present.PresentModeImmediate},
		extensions: map[string]bool{present.SwapchainExtension: true},
		autoSignal: true,
		live:       make(map[uint64]string),
		fences:     make(map[present.Fence]*fakeFence),
		swapchains: make(map[present.Swapchain]present.SwapchainConfig),
	}
}

// separateQueues makes family 0 graphics only and family 1 present only.
func (d *fakeDevice) separateQueues() {
	d.families = []present.QueueFamily{{Graphics: true}, {Graphics: false}}
	d.presenting = map[uint32]bool{1: true}
}

func (d *fakeDevice) mint(kind string) uint64 {
	d.next++
	d.live[d.next] = kind
	return d.next
}

func (d *fakeDevice) free(h uint64) {
	delete(d.live, h)
}

func (d *fakeDevice) liveCount(kind string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, k := range d.live {
		if k == kind {
			n++
		}
	}
	return n
}

// signalFence completes the fence as the GPU would.
func (d *fakeDevice) signalFence(f present.Fence) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fences[f].signal()
}

func (d *fakeDevice) fenceSignaled(f present.Fence) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	select {
	case <-d.fences[f].signaled:
		return true
	default:
		return false
	}
}

func (d *fakeDevice) QueueFamilies() []present.QueueFamily { return d.families }

func (d *fakeDevice) SurfaceSupport(family uint32) (bool, error) {
	return d.presenting[family], nil
}

func (d *fakeDevice) SurfaceFormats() ([]present.SurfaceFormat, error) { return d.formats, nil }

func (d *fakeDevice) SurfaceCapabilities() (present.SurfaceCapabilities, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.caps, nil
}

func (d *fakeDevice) SurfacePresentModes() ([]present.PresentMode, error) { return d.modes, nil }

func (d *fakeDevice) HasExtension(name string) bool { return d.extensions[name] }

func (d *fakeDevice) GetQueue(family uint32) (present.Queue, error) {
	return present.Queue(100 + family), nil
}

func (d *fakeDevice) CreateSwapchain(cfg present.SwapchainConfig) (present.Swapchain, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sc := present.Swapchain(d.mint("swapchain"))
	d.swapchains[sc] = cfg
	d.created = append(d.created, cfg)
	d.acquireIdx = 0
	return sc, nil
}

func (d *fakeDevice) DestroySwapchain(sc present.Swapchain) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.free(uint64(sc))
	delete(d.swapchains, sc)
	d.destroyed = append(d.destroyed, sc)
}

func (d *fakeDevice) SwapchainImages(sc present.Swapchain) ([]present.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cfg := d.swapchains[sc]
	images := make([]present.Image, cfg.MinImageCount)
	for i := range images {
		d.next++
		images[i] = present.Image(d.next)
	}
	return images, nil
}

func (d *fakeDevice) AcquireNextImage(sc present.Swapchain, timeout time.Duration, sem present.Semaphore) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.acquireErr != nil {
		err := d.acquireErr
		d.acquireErr = nil
		return 0, err
	}
	n := d.swapchains[sc].MinImageCount
	idx := d.acquireIdx % n
	d.acquireIdx++
	return idx, nil
}

func (d *fakeDevice) CreateImageView(img present.Image, format present.Format) (present.ImageView, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return present.ImageView(d.mint("view")), nil
}

func (d *fakeDevice) DestroyImageView(v present.ImageView) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.free(uint64(v))
}

func (d *fakeDevice) CreateFramebuffer(rp present.RenderPass, attachments []present.ImageView, extent present.Extent) (present.Framebuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return present.Framebuffer(d.mint("framebuffer")), nil
}

func (d *fakeDevice) DestroyFramebuffer(fb present.Framebuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.free(uint64(fb))
}

func (d *fakeDevice) CreateCommandPool(family uint32) (present.CommandPool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return present.CommandPool(d.mint("pool")), nil
}

func (d *fakeDevice) DestroyCommandPool(p present.CommandPool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.free(uint64(p))
}

func (d *fakeDevice) AllocateCommandBuffers(p present.CommandPool, count uint32) ([]present.CommandBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cbs := make([]present.CommandBuffer, count)
	for i := range cbs {
		cbs[i] = present.CommandBuffer(d.mint("commandbuffer"))
	}
	return cbs, nil
}

func (d *fakeDevice) FreeCommandBuffers(p present.CommandPool, cbs []present.CommandBuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, cb := range cbs {
		d.free(uint64(cb))
	}
}

func (d *fakeDevice) RecordOwnershipRelease(cb present.CommandBuffer, img present.Image, graphics, pres uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.releases = append(d.releases, cb)
	return nil
}

func (d *fakeDevice) RecordPresentBuffer(cb present.CommandBuffer, img present.Image, graphics, pres uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recorded++
	return nil
}

func (d *fakeDevice) CreateSemaphore() (present.Semaphore, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return present.Semaphore(d.mint("semaphore")), nil
}

func (d *fakeDevice) DestroySemaphore(s present.Semaphore) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.free(uint64(s))
}

func (d *fakeDevice) CreateFence(signaled bool) (present.Fence, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	f := present.Fence(d.mint("fence"))
	ff := &fakeFence{signaled: make(chan struct{})}
	if signaled {
		ff.signal()
	}
	d.fences[f] = ff
	return f, nil
}

func (d *fakeDevice) DestroyFence(f present.Fence) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.free(uint64(f))
}

func (d *fakeDevice) WaitForFence(f present.Fence, timeout time.Duration) error {
	d.mu.Lock()
	ch := d.fences[f].signaled
	d.waited = append(d.waited, f)
	d.mu.Unlock()

	if timeout == 0 {
		<-ch
		return nil
	}
	select {
	case <-ch:
		return nil
	case <-time.After(timeout):
		return errTimeout
	}
}

func (d *fakeDevice) ResetFence(f present.Fence) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fences[f] = &fakeFence{signaled: make(chan struct{})}
	return nil
}

func (d *fakeDevice) QueueSubmit(q present.Queue, info present.SubmitInfo, fence present.Fence) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.submitErr != nil {
		err := d.submitErr
		d.submitErr = nil
		return err
	}
	d.submits = append(d.submits, fakeSubmit{queue: q, info: info, fence: fence})
	if d.autoSignal && fence != present.NullFence {
		d.fences[fence].signal()
	}
	return nil
}

func (d *fakeDevice) QueuePresent(q present.Queue, info present.PresentInfo) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.presents = append(d.presents, info)
	if d.presentErr != nil {
		err := d.presentErr
		d.presentErr = nil
		return err
	}
	return nil
}

func (d *fakeDevice) WaitIdle() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.waitIdles++
	return nil
}

func (d *fakeDevice) RefreshCycleDuration(sc present.Swapchain) (uint64, error) {
	if d.refresh == 0 {
		return 0, present.ErrTimingUnsupported
	}
	return d.refresh, nil
}

func (d *fakeDevice) PastPresentationTiming(sc present.Swapchain) ([]present.PastPresentationTiming, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timingErr != nil {
		return nil, d.timingErr
	}
	t := d.timings
	d.timings = nil
	return t, nil
}

type fakeWindow struct {
	extent present.Extent
}

func (w *fakeWindow) Extent() present.Extent { return w.extent }

type countingSink struct {
	resizes int
}

func (s *countingSink) ResizeRequired() { s.resizes++ }
