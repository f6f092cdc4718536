package headless

import "github.com/Carmen-Shannon/oxy-sky/engine/renderer"

// BackendBuilderOption is a functional option for configuring a headless backend.
type BackendBuilderOption func(*backend)

// WithDrawFault installs a hook consulted before every draw; a non-nil error fails that draw.
// Tests use it to simulate a backend rejecting a stale mesh.
//
// Parameters:
//   - fault: the hook, receiving the mesh about to be drawn
//
// Returns:
//   - BackendBuilderOption: option function to apply
func WithDrawFault(fault func(m renderer.Mesh) error) BackendBuilderOption {
	return func(b *backend) {
		b.drawFault = fault
	}
}

// WithSize sets the initial surface size reported to Resize callers.
//
// Parameters:
//   - width, height: surface size in pixels
//
// Returns:
//   - BackendBuilderOption: option function to apply
func WithSize(width, height int) BackendBuilderOption {
	return func(b *backend) {
		b.width, b.height = width, height
	}
}
