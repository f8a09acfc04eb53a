// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package device implements present.Device on top of vulkan-go. It owns
// the logical device and hands out integer handles standing in for the
// driver objects.
package device

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	vk "github.com/vulkan-go/vulkan"

	"github.com/devblok/globe/core"
	"github.com/devblok/globe/present"
	"github.com/devblok/globe/resource"
)

// Device errors
var (
	ErrNoDevice    = errors.New("no such physical device")
	ErrNoSurface   = errors.New("instance has no surface")
	ErrNotOpen     = errors.New("logical device not created")
	ErrAlreadyOpen = errors.New("logical device already created")
	ErrNoQueues    = errors.New("physical device has no queue families")
	ErrUnknown     = errors.New("unknown handle")
)

// Configuration selects the physical device to use.
type Configuration struct {
	// Device indexes core.Instance.AvailableDevices.
	Device int
}

// Vulkan is a physical device, its surface and, once opened, the
// logical device created on it.
type Vulkan struct {
	log      logrus.FieldLogger
	instance core.Instance
	ledger   *resource.Ledger

	gpu       vk.PhysicalDevice
	surface   vk.Surface
	families  []vk.QueueFamilyProperties
	memory    vk.PhysicalDeviceMemoryProperties
	available []string
	enabled   map[string]bool
	device    vk.Device

	queues       *table[present.Queue, vk.Queue]
	familyQueues map[uint32]present.Queue
	swapchains   *table[present.Swapchain, vk.Swapchain]
	ownedImages  map[present.Swapchain][]present.Image
	images       *table[present.Image, vk.Image]
	views        *table[present.ImageView, vk.ImageView]
	framebuffers *table[present.Framebuffer, vk.Framebuffer]
	renderPasses *table[present.RenderPass, vk.RenderPass]
	pools        *table[present.CommandPool, vk.CommandPool]
	buffers      *table[present.CommandBuffer, vk.CommandBuffer]
	semaphores   *table[present.Semaphore, vk.Semaphore]
	fences       *table[present.Fence, vk.Fence]
}

// New inspects the configured physical device. Surface queries work
// right away, everything else needs Open.
func New(instance core.Instance, cfg Configuration, log logrus.FieldLogger) (*Vulkan, error) {
	if log == nil {
		log = logrus.New()
	}
	gpus := instance.AvailableDevices()
	if cfg.Device < 0 || cfg.Device >= len(gpus) {
		return nil, errors.Wrapf(ErrNoDevice, "index %d of %d", cfg.Device, len(gpus))
	}
	surface := instance.Surface()
	if surface == vk.NullSurface {
		return nil, ErrNoSurface
	}
	gpu := gpus[cfg.Device]

	var familyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &familyCount, nil)
	if familyCount == 0 {
		return nil, ErrNoQueues
	}
	families := make([]vk.QueueFamilyProperties, familyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &familyCount, families)
	for i := range families {
		families[i].Deref()
	}

	var memory vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(gpu, &memory)
	memory.Deref()

	available, failed := core.DeviceExtensions(gpu)
	if failed {
		log.Warn("device extension query failed")
	}

	return &Vulkan{
		log:          log.WithField("device", cfg.Device),
		instance:     instance,
		ledger:       resource.NewLedger(log),
		gpu:          gpu,
		surface:      surface,
		families:     families,
		memory:       memory,
		available:    available,
		enabled:      make(map[string]bool),
		queues:       newTable[present.Queue, vk.Queue](),
		familyQueues: make(map[uint32]present.Queue),
		swapchains:   newTable[present.Swapchain, vk.Swapchain](),
		ownedImages:  make(map[present.Swapchain][]present.Image),
		images:       newTable[present.Image, vk.Image](),
		views:        newTable[present.ImageView, vk.ImageView](),
		framebuffers: newTable[present.Framebuffer, vk.Framebuffer](),
		renderPasses: newTable[present.RenderPass, vk.RenderPass](),
		pools:        newTable[present.CommandPool, vk.CommandPool](),
		buffers:      newTable[present.CommandBuffer, vk.CommandBuffer](),
		semaphores:   newTable[present.Semaphore, vk.Semaphore](),
		fences:       newTable[present.Fence, vk.Fence](),
	}, nil
}

// AvailableExtensions lists the extensions the physical device advertises.
func (v *Vulkan) AvailableExtensions() []string {
	return v.available
}

// Ledger tracks memory allocated through this device.
func (v *Vulkan) Ledger() *resource.Ledger {
	return v.ledger
}

// Open creates the logical device with one queue on each family and
// the given extensions enabled.
func (v *Vulkan) Open(families []uint32, extensions []string) error {
	if v.device != nil {
		return ErrAlreadyOpen
	}

	queueInfos := make([]vk.DeviceQueueCreateInfo, 0, len(families))
	for _, family := range families {
		queueInfos = append(queueInfos, vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: family,
			QueueCount:       1,
			PQueuePriorities: []float32{1},
		})
	}

	names := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		names = append(names, ext+"\x00")
	}

	dci := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(names)),
		PpEnabledExtensionNames: names,
	}

	var device vk.Device
	if err := check("vk.CreateDevice()", vk.CreateDevice(v.gpu, &dci, nil, &device)); err != nil {
		return err
	}
	v.device = device
	for _, ext := range extensions {
		v.enabled[ext] = true
	}
	v.log.WithFields(logrus.Fields{
		"families":   families,
		"extensions": extensions,
	}).Debug("logical device created")
	return nil
}

// QueueFamilies implements present.Device
func (v *Vulkan) QueueFamilies() []present.QueueFamily {
	out := make([]present.QueueFamily, len(v.families))
	for i, f := range v.families {
		out[i].Graphics = f.QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0
	}
	return out
}

// SurfaceSupport implements present.Device
func (v *Vulkan) SurfaceSupport(family uint32) (bool, error) {
	var supported vk.Bool32
	if err := check("vk.GetPhysicalDeviceSurfaceSupport()", vk.GetPhysicalDeviceSurfaceSupport(v.gpu, family, v.surface, &supported)); err != nil {
		return false, err
	}
	return supported.B(), nil
}

// SurfaceFormats implements present.Device
func (v *Vulkan) SurfaceFormats() ([]present.SurfaceFormat, error) {
	var count uint32
	if err := check("vk.GetPhysicalDeviceSurfaceFormats()", vk.GetPhysicalDeviceSurfaceFormats(v.gpu, v.surface, &count, nil)); err != nil {
		return nil, err
	}
	formats := make([]vk.SurfaceFormat, count)
	if err := check("vk.GetPhysicalDeviceSurfaceFormats()", vk.GetPhysicalDeviceSurfaceFormats(v.gpu, v.surface, &count, formats)); err != nil {
		return nil, err
	}
	out := make([]present.SurfaceFormat, 0, count)
	for _, f := range formats[:count] {
		f.Deref()
		out = append(out, present.SurfaceFormat{
			Format:     present.Format(f.Format),
			ColorSpace: present.ColorSpace(f.ColorSpace),
		})
	}
	return out, nil
}

// SurfaceCapabilities implements present.Device
func (v *Vulkan) SurfaceCapabilities() (present.SurfaceCapabilities, error) {
	var caps vk.SurfaceCapabilities
	if err := check("vk.GetPhysicalDeviceSurfaceCapabilities()", vk.GetPhysicalDeviceSurfaceCapabilities(v.gpu, v.surface, &caps)); err != nil {
		return present.SurfaceCapabilities{}, err
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()
	return present.SurfaceCapabilities{
		MinImageCount:       caps.MinImageCount,
		MaxImageCount:       caps.MaxImageCount,
		CurrentExtent:       extent(caps.CurrentExtent),
		MinExtent:           extent(caps.MinImageExtent),
		MaxExtent:           extent(caps.MaxImageExtent),
		SupportedTransforms: present.Transform(caps.SupportedTransforms),
		CurrentTransform:    present.Transform(caps.CurrentTransform),
	}, nil
}

func extent(e vk.Extent2D) present.Extent {
	return present.Extent{Width: e.Width, Height: e.Height}
}

// SurfacePresentModes implements present.Device
func (v *Vulkan) SurfacePresentModes() ([]present.PresentMode, error) {
	var count uint32
	if err := check("vk.GetPhysicalDeviceSurfacePresentModes()", vk.GetPhysicalDeviceSurfacePresentModes(v.gpu, v.surface, &count, nil)); err != nil {
		return nil, err
	}
	modes := make([]vk.PresentMode, count)
	if err := check("vk.GetPhysicalDeviceSurfacePresentModes()", vk.GetPhysicalDeviceSurfacePresentModes(v.gpu, v.surface, &count, modes)); err != nil {
		return nil, err
	}
	out := make([]present.PresentMode, 0, count)
	for _, m := range modes[:count] {
		out = append(out, present.PresentMode(m))
	}
	return out, nil
}

// HasExtension implements present.Device
func (v *Vulkan) HasExtension(name string) bool {
	return v.enabled[name]
}

// GetQueue implements present.Device
func (v *Vulkan) GetQueue(family uint32) (present.Queue, error) {
	if v.device == nil {
		return 0, ErrNotOpen
	}
	if q, ok := v.familyQueues[family]; ok {
		return q, nil
	}
	var queue vk.Queue
	vk.GetDeviceQueue(v.device, family, 0, &queue)
	q := v.queues.put(queue)
	v.familyQueues[family] = q
	return q, nil
}

// WaitIdle implements present.Device
func (v *Vulkan) WaitIdle() error {
	if v.device == nil {
		return nil
	}
	return check("vk.DeviceWaitIdle()", vk.DeviceWaitIdle(v.device))
}

// Destroy waits for the device to go idle, destroys whatever handles
// are still around and then the logical device.
func (v *Vulkan) Destroy() {
	if v.device == nil {
		return
	}
	if err := v.WaitIdle(); err != nil {
		v.log.WithError(err).Warn("device did not go idle")
	}
	if err := v.ledger.Close(); err != nil {
		v.log.WithError(err).Warn("device memory outlived its owners")
	}

	leaked := 0
	v.framebuffers.drain(func(_ present.Framebuffer, fb vk.Framebuffer) {
		leaked++
		vk.DestroyFramebuffer(v.device, fb, nil)
	})
	v.views.drain(func(_ present.ImageView, iv vk.ImageView) {
		leaked++
		vk.DestroyImageView(v.device, iv, nil)
	})
	v.renderPasses.drain(func(_ present.RenderPass, rp vk.RenderPass) {
		leaked++
		vk.DestroyRenderPass(v.device, rp, nil)
	})
	v.buffers.drain(func(present.CommandBuffer, vk.CommandBuffer) {})
	v.pools.drain(func(_ present.CommandPool, p vk.CommandPool) {
		leaked++
		vk.DestroyCommandPool(v.device, p, nil)
	})
	v.semaphores.drain(func(_ present.Semaphore, s vk.Semaphore) {
		leaked++
		vk.DestroySemaphore(v.device, s, nil)
	})
	v.fences.drain(func(_ present.Fence, f vk.Fence) {
		leaked++
		vk.DestroyFence(v.device, f, nil)
	})
	v.swapchains.drain(func(_ present.Swapchain, sc vk.Swapchain) {
		leaked++
		vk.DestroySwapchain(v.device, sc, nil)
	})
	if leaked > 0 {
		v.log.WithField("objects", leaked).Warn("destroyed objects left behind by their owners")
	}

	vk.DestroyDevice(v.device, nil)
	v.device = nil
}
