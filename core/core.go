// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package core holds the ambient pieces every globe program needs:
// configuration, logging, timing and the Vulkan instance.
package core

import (
	vk "github.com/vulkan-go/vulkan"
)

// Instance describes a Vulkan instance and supporting methods.
// Once created it is ready to use.
type Instance interface {
	// PhysicalDevicesInfo returns a struct for each Physical Device
	// along with info about those devices
	PhysicalDevicesInfo() []PhysicalDeviceInfo

	// AvailableDevices returns handles of Physical Devices
	// from the Vulkan API
	AvailableDevices() []vk.PhysicalDevice

	// SetSurface hands a window surface to the instance, which
	// destroys it along with itself
	SetSurface(vk.Surface)

	// Surface returns the window surface, or vk.NullSurface
	Surface() vk.Surface

	// Extensions returns enabled instance extensions
	Extensions() []string

	// Inner returns the vk.Instance
	Inner() vk.Instance

	// Destroy destroys internal members
	Destroy()
}

// PhysicalDeviceInfo describes available physical properties of a rendering device
type PhysicalDeviceInfo struct {
	ID            int
	VendorID      int
	DriverVersion int
	Name          string
	Invalid       bool
	Extensions    []string
	Layers        []string
	Memory        uint64
}

// HasExtension reports whether the device advertises the extension.
func (p PhysicalDeviceInfo) HasExtension(name string) bool {
	for _, ext := range p.Extensions {
		if ext == name {
			return true
		}
	}
	return false
}
