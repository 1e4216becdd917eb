// Package slot implements the named, typed storage cells that connect
// nodes in the render graph: fixed slots declared by a node type's
// schema, and variadic slots created per connection and validated
// against shader reflection data each compile pass.
package slot
