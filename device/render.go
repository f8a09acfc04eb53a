// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package device

import (
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"

	"github.com/devblok/globe/present"
)

// CreateRenderPass creates a single subpass pass that clears a colour
// attachment of the given format, leaving it ready for present, and a
// depth attachment.
func (v *Vulkan) CreateRenderPass(color, depth present.Format) (present.RenderPass, error) {
	if v.device == nil {
		return 0, ErrNotOpen
	}
	attachments := []vk.AttachmentDescription{{
		Format:         vk.Format(color),
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutPresentSrc,
	}, {
		Format:         vk.Format(depth),
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpDontCare,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
	}}

	colorRef := []vk.AttachmentReference{{
		Attachment: 0,
		Layout:     vk.ImageLayoutColorAttachmentOptimal,
	}}
	depthRef := &vk.AttachmentReference{
		Attachment: 1,
		Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
	}

	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit),
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:       vk.PipelineBindPointGraphics,
		ColorAttachmentCount:    uint32(len(colorRef)),
		PColorAttachments:       colorRef,
		PDepthStencilAttachment: depthRef,
	}

	rpci := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}

	var renderPass vk.RenderPass
	if err := check("vk.CreateRenderPass()", vk.CreateRenderPass(v.device, &rpci, nil, &renderPass)); err != nil {
		return 0, err
	}
	return v.renderPasses.put(renderPass), nil
}

// DestroyRenderPass destroys a pass made by CreateRenderPass.
func (v *Vulkan) DestroyRenderPass(rp present.RenderPass) {
	if renderPass, ok := v.renderPasses.take(rp); ok {
		vk.DestroyRenderPass(v.device, renderPass, nil)
	}
}

// BeginCommandBuffer starts recording cb for a single submission.
func (v *Vulkan) BeginCommandBuffer(cb present.CommandBuffer) error {
	buffer, ok := v.buffers.lookup(cb)
	if !ok {
		return errors.Wrap(ErrUnknown, "command buffer")
	}
	cbbi := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	return check("vk.BeginCommandBuffer()", vk.BeginCommandBuffer(buffer, &cbbi))
}

// EndCommandBuffer finishes recording cb.
func (v *Vulkan) EndCommandBuffer(cb present.CommandBuffer) error {
	buffer, ok := v.buffers.lookup(cb)
	if !ok {
		return errors.Wrap(ErrUnknown, "command buffer")
	}
	return check("vk.EndCommandBuffer()", vk.EndCommandBuffer(buffer))
}

// CmdBeginRenderPass begins rp on fb, clearing colour to clear and
// depth to 1.
func (v *Vulkan) CmdBeginRenderPass(cb present.CommandBuffer, rp present.RenderPass, fb present.Framebuffer, size present.Extent, clear [4]float32) {
	clearValues := make([]vk.ClearValue, 2)
	clearValues[0].SetColor(clear[:])
	clearValues[1].SetDepthStencil(1, 0)

	rpbi := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  v.renderPasses.get(rp),
		Framebuffer: v.framebuffers.get(fb),
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: vk.Extent2D{Width: size.Width, Height: size.Height},
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
	vk.CmdBeginRenderPass(v.buffers.get(cb), &rpbi, vk.SubpassContentsInline)
}

// CmdEndRenderPass ends the pass begun on cb.
func (v *Vulkan) CmdEndRenderPass(cb present.CommandBuffer) {
	vk.CmdEndRenderPass(v.buffers.get(cb))
}
