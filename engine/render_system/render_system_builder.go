package render_system

import (
	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-sky/engine/logger"
)

// RenderSystemBuilderOption is a functional option used to configure a render system during construction.
type RenderSystemBuilderOption func(*renderSystem)

// WithName overrides the system name used in logs and buffer labels.
//
// Parameters:
//   - name: the system name
//
// Returns:
//   - RenderSystemBuilderOption: a function that sets the name
func WithName(name string) RenderSystemBuilderOption {
	return func(s *renderSystem) {
		s.name = name
	}
}

// WithLogger sets the logger. The default discards everything.
//
// Parameters:
//   - l: the logger
//
// Returns:
//   - RenderSystemBuilderOption: a function that sets the logger
func WithLogger(l logger.Logger) RenderSystemBuilderOption {
	return func(s *renderSystem) {
		s.logger = l
	}
}

// WithPreHooks registers hooks run before every draw pass.
func WithPreHooks(hooks ...Hook) RenderSystemBuilderOption {
	return func(s *renderSystem) {
		s.pre = append(s.pre, hooks...)
	}
}

// WithPostHooks registers hooks run after every draw pass.
func WithPostHooks(hooks ...Hook) RenderSystemBuilderOption {
	return func(s *renderSystem) {
		s.post = append(s.post, hooks...)
	}
}

// WithBufferCapacity sets the record capacity of each buffer allocated by the streaming strategies.
//
// Parameters:
//   - records: records per buffer, must be positive
//
// Returns:
//   - RenderSystemBuilderOption: a function that sets the capacity
func WithBufferCapacity(records int) RenderSystemBuilderOption {
	return func(s *renderSystem) {
		s.capacity = records
	}
}

// WithBackToFront sorts renderables by decreasing camera distance once per frame before drawing.
func WithBackToFront(enabled bool) RenderSystemBuilderOption {
	return func(s *renderSystem) {
		s.backToFront = enabled
	}
}

// WithLineAlphaScale scales the alpha of every line vertex.
func WithLineAlphaScale(scale float32) RenderSystemBuilderOption {
	return func(s *renderSystem) {
		s.lineAlphaScale = scale
	}
}

// WithBackgroundLoading builds vertex data for point clouds of at least threshold particles on a worker
// pool instead of the render thread. A threshold of 0 disables background loading.
//
// Parameters:
//   - threshold: minimum particle count loaded in the background
//   - workers: maximum concurrent conversions
//
// Returns:
//   - RenderSystemBuilderOption: a function that enables background loading
func WithBackgroundLoading(threshold, workers int) RenderSystemBuilderOption {
	return func(s *renderSystem) {
		s.bgThreshold = threshold
		s.loaderWorkers = workers
	}
}

// WithWorkerPool runs background conversions on an existing pool. The system keeps at most queueSize
// conversions queued or running, so submitting never blocks the render thread. Systems sharing a pool must
// split its queue between them. The caller stops the pool.
//
// Parameters:
//   - pool: the worker pool
//   - queueSize: the share of the pool's task queue this system may fill, at least 1
//
// Returns:
//   - RenderSystemBuilderOption: a function that sets the worker pool
func WithWorkerPool(pool worker.DynamicWorkerPool, queueSize int) RenderSystemBuilderOption {
	return func(s *renderSystem) {
		s.submit = pool.SubmitTask
		s.maxPending = max(queueSize, 1)
	}
}
