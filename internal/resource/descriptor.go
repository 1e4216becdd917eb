package resource

import "fmt"

// DescriptorKind classifies a shader descriptor binding. Values mirror
// the descriptor types a reflection pass reports for a compiled shader.
type DescriptorKind uint8

const (
	DescriptorUnknown DescriptorKind = iota
	DescriptorUniformBuffer
	DescriptorStorageBuffer
	DescriptorSampledImage
	DescriptorStorageImage
	DescriptorCombinedImageSampler
	DescriptorSampler
)

// String returns the snake_case name used in manifests and logs.
func (d DescriptorKind) String() string {
	switch d {
	case DescriptorUnknown:
		return "unknown"
	case DescriptorUniformBuffer:
		return "uniform_buffer"
	case DescriptorStorageBuffer:
		return "storage_buffer"
	case DescriptorSampledImage:
		return "sampled_image"
	case DescriptorStorageImage:
		return "storage_image"
	case DescriptorCombinedImageSampler:
		return "combined_image_sampler"
	case DescriptorSampler:
		return "sampler"
	}
	return fmt.Sprintf("descriptor_kind(%d)", uint8(d))
}

// ParseDescriptorKind maps a manifest string to a DescriptorKind.
func ParseDescriptorKind(s string) (DescriptorKind, error) {
	switch s {
	case "uniform_buffer":
		return DescriptorUniformBuffer, nil
	case "storage_buffer":
		return DescriptorStorageBuffer, nil
	case "sampled_image":
		return DescriptorSampledImage, nil
	case "storage_image":
		return DescriptorStorageImage, nil
	case "combined_image_sampler":
		return DescriptorCombinedImageSampler, nil
	case "sampler":
		return DescriptorSampler, nil
	}
	return DescriptorUnknown, fmt.Errorf("unknown descriptor kind %q", s)
}

// Lifetime classifies who owns the value stored in a slot.
type Lifetime uint8

const (
	// LifetimeOwned: the producing node created the object and frees it
	// in Cleanup.
	LifetimeOwned Lifetime = iota
	// LifetimeBorrowed: the value references an object owned elsewhere;
	// the slot never frees it.
	LifetimeBorrowed
	// LifetimeTransient: valid for at most one frame (acquired image
	// index, per-frame view).
	LifetimeTransient
)

// Compatible reports whether a stored value can satisfy a descriptor
// binding of the given kind. A bare sampler is accepted for a combined
// binding because image view and sampler may arrive as two separate
// connections and are paired later by the binder.
func Compatible(v Value, d DescriptorKind) bool {
	if IsEmpty(v) {
		return false
	}
	switch d {
	case DescriptorUniformBuffer, DescriptorStorageBuffer:
		return v.Kind() == KindBuffer
	case DescriptorSampledImage, DescriptorStorageImage:
		return v.Kind() == KindImageView || v.Kind() == KindImage
	case DescriptorCombinedImageSampler:
		switch v.Kind() {
		case KindCombinedImageSampler, KindImageView, KindImage, KindSampler:
			return true
		}
		return false
	case DescriptorSampler:
		return v.Kind() == KindSampler
	case DescriptorUnknown:
		return false
	}
	return false
}
