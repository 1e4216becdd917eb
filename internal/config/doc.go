// Package config loads the HCL graph description: node blocks,
// connect blocks, and graph-wide settings. The loaded model is
// format-agnostic; only this package touches HCL parsing.
package config
