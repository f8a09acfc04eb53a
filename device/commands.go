// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package device

import (
	"time"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"

	"github.com/devblok/globe/present"
)

// CreateCommandPool implements present.Device. Buffers from the pool
// can be reset one by one.
func (v *Vulkan) CreateCommandPool(family uint32) (present.CommandPool, error) {
	if v.device == nil {
		return 0, ErrNotOpen
	}
	cpci := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
		QueueFamilyIndex: family,
	}

	var commandPool vk.CommandPool
	if err := check("vk.CreateCommandPool()", vk.CreateCommandPool(v.device, &cpci, nil, &commandPool)); err != nil {
		return 0, err
	}
	return v.pools.put(commandPool), nil
}

// DestroyCommandPool implements present.Device
func (v *Vulkan) DestroyCommandPool(p present.CommandPool) {
	if pool, ok := v.pools.take(p); ok {
		vk.DestroyCommandPool(v.device, pool, nil)
	}
}

// AllocateCommandBuffers implements present.Device
func (v *Vulkan) AllocateCommandBuffers(p present.CommandPool, count uint32) ([]present.CommandBuffer, error) {
	pool, ok := v.pools.lookup(p)
	if !ok {
		return nil, errors.Wrap(ErrUnknown, "command pool")
	}
	cbai := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: count,
	}

	raw := make([]vk.CommandBuffer, count)
	if err := check("vk.AllocateCommandBuffers()", vk.AllocateCommandBuffers(v.device, &cbai, raw)); err != nil {
		return nil, err
	}
	out := make([]present.CommandBuffer, 0, count)
	for _, cb := range raw {
		out = append(out, v.buffers.put(cb))
	}
	return out, nil
}

// FreeCommandBuffers implements present.Device
func (v *Vulkan) FreeCommandBuffers(p present.CommandPool, cbs []present.CommandBuffer) {
	raw := make([]vk.CommandBuffer, 0, len(cbs))
	for _, cb := range cbs {
		if buffer, ok := v.buffers.take(cb); ok {
			raw = append(raw, buffer)
		}
	}
	if len(raw) == 0 {
		return
	}
	vk.FreeCommandBuffers(v.device, v.pools.get(p), uint32(len(raw)), raw)
}

// ownershipBarrier moves img from the graphics to the present family,
// the layout stays PRESENT_SRC on both sides.
func ownershipBarrier(img vk.Image, graphics, pres uint32, src, dst vk.AccessFlagBits) vk.ImageMemoryBarrier {
	return vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       vk.AccessFlags(src),
		DstAccessMask:       vk.AccessFlags(dst),
		OldLayout:           vk.ImageLayoutPresentSrc,
		NewLayout:           vk.ImageLayoutPresentSrc,
		SrcQueueFamilyIndex: graphics,
		DstQueueFamilyIndex: pres,
		Image:               img,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}
}

// RecordOwnershipRelease implements present.Device
func (v *Vulkan) RecordOwnershipRelease(cb present.CommandBuffer, img present.Image, graphics, pres uint32) error {
	buffer, ok := v.buffers.lookup(cb)
	if !ok {
		return errors.Wrap(ErrUnknown, "command buffer")
	}
	barrier := ownershipBarrier(v.images.get(img), graphics, pres, vk.AccessColorAttachmentWriteBit, 0)
	vk.CmdPipelineBarrier(buffer,
		vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit),
		0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
	return nil
}

// RecordPresentBuffer implements present.Device
func (v *Vulkan) RecordPresentBuffer(cb present.CommandBuffer, img present.Image, graphics, pres uint32) error {
	buffer, ok := v.buffers.lookup(cb)
	if !ok {
		return errors.Wrap(ErrUnknown, "command buffer")
	}
	cbbi := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageSimultaneousUseBit),
	}
	if err := check("vk.BeginCommandBuffer()", vk.BeginCommandBuffer(buffer, &cbbi)); err != nil {
		return err
	}
	barrier := ownershipBarrier(v.images.get(img), graphics, pres, 0, vk.AccessColorAttachmentWriteBit)
	vk.CmdPipelineBarrier(buffer,
		vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
	return check("vk.EndCommandBuffer()", vk.EndCommandBuffer(buffer))
}

// CreateSemaphore implements present.Device
func (v *Vulkan) CreateSemaphore() (present.Semaphore, error) {
	if v.device == nil {
		return 0, ErrNotOpen
	}
	sci := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var semaphore vk.Semaphore
	if err := check("vk.CreateSemaphore()", vk.CreateSemaphore(v.device, &sci, nil, &semaphore)); err != nil {
		return 0, err
	}
	return v.semaphores.put(semaphore), nil
}

// DestroySemaphore implements present.Device
func (v *Vulkan) DestroySemaphore(s present.Semaphore) {
	if semaphore, ok := v.semaphores.take(s); ok {
		vk.DestroySemaphore(v.device, semaphore, nil)
	}
}

// CreateFence implements present.Device
func (v *Vulkan) CreateFence(signaled bool) (present.Fence, error) {
	if v.device == nil {
		return 0, ErrNotOpen
	}
	fci := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		fci.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	if err := check("vk.CreateFence()", vk.CreateFence(v.device, &fci, nil, &fence)); err != nil {
		return 0, err
	}
	return v.fences.put(fence), nil
}

// DestroyFence implements present.Device
func (v *Vulkan) DestroyFence(f present.Fence) {
	if fence, ok := v.fences.take(f); ok {
		vk.DestroyFence(v.device, fence, nil)
	}
}

// WaitForFence implements present.Device
func (v *Vulkan) WaitForFence(f present.Fence, wait time.Duration) error {
	fence, ok := v.fences.lookup(f)
	if !ok {
		return errors.Wrap(ErrUnknown, "fence")
	}
	return check("vk.WaitForFences()", vk.WaitForFences(v.device, 1, []vk.Fence{fence}, vk.True, timeout(wait)))
}

// ResetFence implements present.Device
func (v *Vulkan) ResetFence(f present.Fence) error {
	fence, ok := v.fences.lookup(f)
	if !ok {
		return errors.Wrap(ErrUnknown, "fence")
	}
	return check("vk.ResetFences()", vk.ResetFences(v.device, 1, []vk.Fence{fence}))
}

// QueueSubmit implements present.Device. Every wait happens at the
// colour attachment output stage.
func (v *Vulkan) QueueSubmit(q present.Queue, info present.SubmitInfo, f present.Fence) error {
	queue, ok := v.queues.lookup(q)
	if !ok {
		return errors.Wrap(ErrUnknown, "queue")
	}
	stages := make([]vk.PipelineStageFlags, len(info.Wait))
	for i := range stages {
		stages[i] = vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
	}
	buffers := make([]vk.CommandBuffer, 0, len(info.CommandBuffers))
	for _, cb := range info.CommandBuffers {
		buffers = append(buffers, v.buffers.get(cb))
	}

	submit := []vk.SubmitInfo{{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   uint32(len(info.Wait)),
		PWaitSemaphores:      v.semaphoreList(info.Wait),
		PWaitDstStageMask:    stages,
		CommandBufferCount:   uint32(len(buffers)),
		PCommandBuffers:      buffers,
		SignalSemaphoreCount: uint32(len(info.Signal)),
		PSignalSemaphores:    v.semaphoreList(info.Signal),
	}}
	return check("vk.QueueSubmit()", vk.QueueSubmit(queue, 1, submit, v.fences.get(f)))
}

func (v *Vulkan) semaphoreList(handles []present.Semaphore) []vk.Semaphore {
	if len(handles) == 0 {
		return nil
	}
	out := make([]vk.Semaphore, 0, len(handles))
	for _, h := range handles {
		out = append(out, v.semaphores.get(h))
	}
	return out
}
