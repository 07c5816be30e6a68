//go:build !debug

package build

// DEBUG indicates whether this is a debug build. When true, Critical and
// Severe panic instead of merely logging, so invariant violations are
// caught in development and CI rather than surfacing in a guardian's logs.
const DEBUG = false
