package app

import (
	"github.com/vk/rendergraph/internal/registry"
	"github.com/vk/rendergraph/modules/buffer"
	"github.com/vk/rendergraph/modules/descriptorset"
	"github.com/vk/rendergraph/modules/device"
	"github.com/vk/rendergraph/modules/renderer"
	"github.com/vk/rendergraph/modules/shaderlib"
	"github.com/vk/rendergraph/modules/swapchain"
	"github.com/vk/rendergraph/modules/texture"
)

// coreModules is the default set of node types compiled into the
// binary.
var coreModules = []registry.Module{
	&device.Module{},
	&swapchain.Module{},
	&buffer.Module{},
	&texture.Module{},
	&shaderlib.Module{},
	&descriptorset.Module{},
	&renderer.Module{},
}
