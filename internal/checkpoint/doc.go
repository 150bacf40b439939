// Package checkpoint saves and restores optimizer state.
//
// Files use the SafeTensors layout:
//
//	[8 bytes: header size (uint64 LE)]
//	[header: JSON, tensor entries + "__metadata__"]
//	[tensor data: raw little-endian bytes, entries sorted by name]
//
// The metadata records the optimizer name, update rule, iteration count,
// loss scale and a SHA-256 checksum of the data section.
//
// Example usage:
//
//	if err := checkpoint.Save("opt.safetensors", opt); err != nil {
//	    return err
//	}
//
//	// Later, with an optimizer built on the same variables:
//	if err := checkpoint.Load("opt.safetensors", opt); err != nil {
//	    return err
//	}
package checkpoint
