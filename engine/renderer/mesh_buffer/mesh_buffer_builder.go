package mesh_buffer

// MeshBufferBuilderOption is a functional option for configuring a MeshBuffer during NewMeshBuffer.
type MeshBufferBuilderOption func(*meshBuffer)

// WithLabel sets the debug label of the buffer. Defaults to "mesh-<uuid>".
//
// Parameters:
//   - label: the label
//
// Returns:
//   - MeshBufferBuilderOption: option function to apply
func WithLabel(label string) MeshBufferBuilderOption {
	return func(m *meshBuffer) {
		m.label = label
	}
}

// WithInstanceCapacity sets the maximum number of instance records. Required for layouts with instance attributes.
//
// Parameters:
//   - capacity: maximum instance records
//
// Returns:
//   - MeshBufferBuilderOption: option function to apply
func WithInstanceCapacity(capacity int) MeshBufferBuilderOption {
	return func(m *meshBuffer) {
		m.instanceCapacity = capacity
	}
}

// WithReleaseStagingOnUpload drops the CPU staging arrays after the first successful Upload.
// Used by cached render systems whose data is uploaded once and never rewritten in place.
//
// Returns:
//   - MeshBufferBuilderOption: option function to apply
func WithReleaseStagingOnUpload() MeshBufferBuilderOption {
	return func(m *meshBuffer) {
		m.releaseOnUpload = true
	}
}
