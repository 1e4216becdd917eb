package resource

import "fmt"

// Value is the closed set of things a slot can hold. Every consumption
// site type-switches over the concrete kinds; adding a kind without
// updating a switch is a compile- or test-time failure, never a silent
// fallthrough.
type Value interface {
	resourceValue()
	// Kind reports the semantic kind of the stored value.
	Kind() Kind
}

// Kind identifies the semantic type of a slot or value.
type Kind uint8

const (
	KindEmpty Kind = iota
	KindBuffer
	KindImage
	KindImageView
	KindSampler
	KindCombinedImageSampler
	KindHandle // any other typed handle (device, render pass, pipeline, ...)
	KindStructRef
	KindInt
	KindFloat
	KindBool
	KindString
	KindArray
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindBuffer:
		return "buffer"
	case KindImage:
		return "image"
	case KindImageView:
		return "image_view"
	case KindSampler:
		return "sampler"
	case KindCombinedImageSampler:
		return "combined_image_sampler"
	case KindHandle:
		return "handle"
	case KindStructRef:
		return "struct_ref"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Empty is the explicit "nothing here yet" value. It is the legal state
// of a slot before its first write and the placeholder for execute-only
// bindings that are resolved per frame.
type Empty struct{}

func (Empty) resourceValue() {}

// Kind implements Value.
func (Empty) Kind() Kind { return KindEmpty }

// BufferVal carries a buffer handle.
type BufferVal struct {
	H Buffer
}

func (BufferVal) resourceValue() {}

// Kind implements Value.
func (BufferVal) Kind() Kind { return KindBuffer }

// ImageVal carries an image handle.
type ImageVal struct {
	H Image
}

func (ImageVal) resourceValue() {}

// Kind implements Value.
func (ImageVal) Kind() Kind { return KindImage }

// ImageViewVal carries an image view handle.
type ImageViewVal struct {
	H ImageView
}

func (ImageViewVal) resourceValue() {}

// Kind implements Value.
func (ImageViewVal) Kind() Kind { return KindImageView }

// SamplerVal carries a sampler handle.
type SamplerVal struct {
	H Sampler
}

func (SamplerVal) resourceValue() {}

// Kind implements Value.
func (SamplerVal) Kind() Kind { return KindSampler }

// CombinedImageSamplerVal pairs an image view with the sampler used to
// read it, matching a combined-image-sampler descriptor binding.
type CombinedImageSamplerVal struct {
	View    ImageView
	Sampler Sampler
}

func (CombinedImageSamplerVal) resourceValue() {}

// Kind implements Value.
func (CombinedImageSamplerVal) Kind() Kind { return KindCombinedImageSampler }

// HandleVal carries any typed handle that is not descriptor-bindable
// (devices, pipelines, render passes, command pools, and so on). Type
// names the underlying handle type for diagnostics.
type HandleVal struct {
	H    Handle
	Type string
}

func (HandleVal) resourceValue() {}

// Kind implements Value.
func (HandleVal) Kind() Kind { return KindHandle }

// StructRef is a borrowed reference to a struct owned by another node.
// The slot system manages only the reference, never the referent's
// lifetime: Owner names the producing node and InvalidatedBy names the
// event topic after which the referent must be re-read.
type StructRef struct {
	Ptr           any
	Owner         string
	InvalidatedBy string
}

func (StructRef) resourceValue() {}

// Kind implements Value.
func (StructRef) Kind() Kind { return KindStructRef }

// IntVal carries a signed integer.
type IntVal struct {
	V int64
}

func (IntVal) resourceValue() {}

// Kind implements Value.
func (IntVal) Kind() Kind { return KindInt }

// FloatVal carries a float64.
type FloatVal struct {
	V float64
}

func (FloatVal) resourceValue() {}

// Kind implements Value.
func (FloatVal) Kind() Kind { return KindFloat }

// BoolVal carries a bool.
type BoolVal struct {
	V bool
}

func (BoolVal) resourceValue() {}

// Kind implements Value.
func (BoolVal) Kind() Kind { return KindBool }

// StringVal carries a string.
type StringVal struct {
	V string
}

func (StringVal) resourceValue() {}

// Kind implements Value.
func (StringVal) Kind() Kind { return KindString }

// ArrayVal carries an ordered collection of values, typically one
// element per swapchain image.
type ArrayVal struct {
	Elems []Value
}

func (ArrayVal) resourceValue() {}

// Kind implements Value.
func (ArrayVal) Kind() Kind { return KindArray }

// IsEmpty reports whether v is nil or the explicit Empty placeholder.
func IsEmpty(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Empty)
	return ok
}

// Equal compares two values by identity of their payloads. It is the
// comparison the dirty-cache and write-dedup layers rely on: equal means
// "binding this again would be a no-op".
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch av := a.(type) {
	case Empty:
		return true
	case BufferVal:
		return av == b.(BufferVal)
	case ImageVal:
		return av == b.(ImageVal)
	case ImageViewVal:
		return av == b.(ImageViewVal)
	case SamplerVal:
		return av == b.(SamplerVal)
	case CombinedImageSamplerVal:
		return av == b.(CombinedImageSamplerVal)
	case HandleVal:
		return av == b.(HandleVal)
	case StructRef:
		return av.Ptr == b.(StructRef).Ptr
	case IntVal:
		return av == b.(IntVal)
	case FloatVal:
		return av == b.(FloatVal)
	case BoolVal:
		return av == b.(BoolVal)
	case StringVal:
		return av == b.(StringVal)
	case ArrayVal:
		bv := b.(ArrayVal)
		if len(av.Elems) != len(bv.Elems) {
			return false
		}
		for i := range av.Elems {
			if !Equal(av.Elems[i], bv.Elems[i]) {
				return false
			}
		}
		return true
	}
	panic(fmt.Sprintf("resource: Equal not implemented for kind %s", a.Kind()))
}
