package resource

// Handle is an opaque 64-bit GPU object handle. The engine never
// dereferences a handle; it only stores, forwards, and compares them.
// The zero value is the null handle.
type Handle uint64

// Typed handle aliases. Distinct types keep producer/consumer wiring
// honest: a slot declared as Buffer cannot silently receive an image.
type (
	Instance            Handle
	Device              Handle
	Queue               Handle
	Surface             Handle
	Swapchain           Handle
	Buffer              Handle
	Image               Handle
	ImageView           Handle
	Sampler             Handle
	DescriptorSet       Handle
	DescriptorSetLayout Handle
	Pipeline            Handle
	PipelineLayout      Handle
	RenderPass          Handle
	Framebuffer         Handle
	CommandPool         Handle
	CommandBuffer       Handle
	Fence               Handle
	Semaphore           Handle
	ShaderModule        Handle
)

// IsNull reports whether h is the null handle.
func (h Handle) IsNull() bool { return h == 0 }
