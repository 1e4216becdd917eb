// Package resource defines the value model shared by every slot in the
// render graph: opaque GPU handle types, a closed variant type over the
// kinds of values a slot may carry, and the descriptor-kind vocabulary
// used to match values against shader reflection data.
package resource
