// Package registry talks to an npm-compatible package registry. It fetches
// package metadata, lists the published versions of a package in semantic
// version order and resolves "latest" to a concrete version.
//
// Listing and resolution never fail: an unreachable registry or a malformed
// document reads as "no versions known", so callers can report a clear
// "package not found" instead of a transport error.
package registry
