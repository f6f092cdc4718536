package engine

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-sky/engine/camera"
	"github.com/Carmen-Shannon/oxy-sky/engine/logger"
	"github.com/Carmen-Shannon/oxy-sky/engine/profiler"
	"github.com/Carmen-Shannon/oxy-sky/engine/renderer"
	"github.com/Carmen-Shannon/oxy-sky/engine/scene"
	"github.com/Carmen-Shannon/oxy-sky/engine/window"
)

// engine implements the Engine interface.
// Coordinates the tick, render and window threads.
type engine struct {
	tickRateChannel chan time.Duration // dynamic tick rate updates
	resizeChannel   chan [2]int        // pending surface size, applied by the render goroutine

	running atomic.Bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once

	window   window.Window
	renderer renderer.Renderer
	scene    scene.Scene
	camera   camera.Camera
	logger   logger.Logger

	profiler         *profiler.Profiler
	profilingEnabled atomic.Bool

	engineTickRate time.Duration
	tickCallback   func(deltaTime float32)
	renderCallback func(deltaTime float32)

	// Simulation time advances by wall time multiplied by timeWarp on every render frame.
	clockMu  sync.Mutex
	simTime  time.Time
	timeWarp float64

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped
	maxFrames        int           // frames rendered before quitting; 0 = unbounded
	frames           atomic.Int64
	skippedFrames    atomic.Int64
}

// Engine is the main entry point for the viewer.
// It owns the render goroutine, the only goroutine that touches the GPU, plus the tick loop and the window.
type Engine interface {
	// Window returns the window, or nil when rendering offscreen.
	Window() window.Window

	// Renderer returns the frame renderer.
	Renderer() renderer.Renderer

	// Scene returns the scene drawn every frame.
	Scene() scene.Scene

	// Camera returns the camera the scene is drawn from.
	Camera() camera.Camera

	// EnableProfiler enables per-interval frame statistics in the log.
	EnableProfiler()

	// DisableProfiler disables frame statistics.
	DisableProfiler()

	// SetTickRate sets the tick rate in ticks per second.
	//
	// Parameters:
	//   - fps: target ticks per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each tick. Use it for input and camera movement.
	//
	// Parameters:
	//   - callback: function receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback registers the function called on the render goroutine after each frame.
	//
	// Parameters:
	//   - callback: function receiving the delta time in seconds
	SetRenderCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	// Pass 0 to uncap the render loop (default).
	SetRenderFrameLimit(fps float64)

	// SimulationTime returns the time the scene is currently drawn at.
	SimulationTime() time.Time

	// SetTimeWarp sets how many simulated seconds pass per wall-clock second. Negative values run backwards.
	SetTimeWarp(warp float64)

	// Frames returns the number of frames presented so far.
	Frames() int

	// Run starts the tick and render goroutines and blocks until Quit, the window closing, or the frame
	// limit set with WithMaxFrames. With a window, Run must be called from the main goroutine.
	Run()

	// Quit signals every engine goroutine to stop. Safe to call multiple times and from any goroutine.
	Quit()
}

// NewEngine creates a new Engine. Panics without a renderer, a scene, or a camera.
//
// Parameters:
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		tickRateChannel: make(chan time.Duration, 1),
		resizeChannel:   make(chan [2]int, 1),
		quitChannel:     make(chan struct{}),
		engineTickRate:  time.Second / 60,
		simTime:         time.Now().UTC(),
		timeWarp:        1,
	}
	for _, opt := range options {
		opt(e)
	}
	e.logger = logger.OrNop(e.logger)
	if e.renderer == nil {
		panic("engine: NewEngine requires a renderer, see WithRenderer")
	}
	if e.scene == nil {
		panic("engine: NewEngine requires a scene, see WithScene")
	}
	if e.camera == nil {
		panic("engine: NewEngine requires a camera, see WithCamera")
	}
	if e.profiler == nil {
		e.profiler = profiler.NewProfiler(profiler.WithLogger(e.logger))
	}

	if e.window != nil {
		e.window.SetResizeCallback(e.queueResize)
	}
	return e
}

func (e *engine) Window() window.Window       { return e.window }
func (e *engine) Renderer() renderer.Renderer { return e.renderer }
func (e *engine) Scene() scene.Scene          { return e.scene }
func (e *engine) Camera() camera.Camera       { return e.camera }

func (e *engine) Run() {
	e.running.Store(true)
	e.handle()
	if e.window != nil {
		e.window.ProcessMessages()
		e.signalQuit()
	}
	e.wg.Wait()
	if e.window != nil {
		if err := e.window.Close(); err != nil {
			e.logger.Warnf("engine: close window: %v", err)
		}
	}
	e.logger.Infof("engine: stopped after %d frames (%d skipped)", e.frames.Load(), e.skippedFrames.Load())
}

func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel once.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		e.running.Store(false)
		close(e.quitChannel)
	})
}

// handle launches the tick and render goroutines.
func (e *engine) handle() {
	e.wg.Add(2)
	go e.handleEngine()
	go e.handleRender()
}

// handleEngine fires the tick callback at the configured rate and applies rate changes from
// tickRateChannel. Exits when the quit channel is closed.
func (e *engine) handleEngine() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()
	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now
			if e.tickCallback != nil {
				e.tickCallback(dt)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// handleRender runs the render loop. A panic is logged and stops the engine. The scene's GPU resources
// are released here on exit since they belong to this goroutine.
func (e *engine) handleRender() {
	defer e.wg.Done()
	defer e.scene.Dispose()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Errorf("engine: render goroutine recovered from panic: %v", r)
			e.signalQuit()
		}
	}()

	lastRender := time.Now()
	for {
		select {
		case <-e.quitChannel:
			return
		default:
		}

		now := time.Now()
		dt := now.Sub(lastRender)
		lastRender = now

		if err := e.renderFrame(dt); err != nil {
			e.logger.Errorf("engine: frame %d: %v", e.frames.Load(), err)
		}
		if e.renderCallback != nil {
			e.renderCallback(float32(dt.Seconds()))
		}
		if e.maxFrames > 0 && e.frames.Load() >= int64(e.maxFrames) {
			e.signalQuit()
			return
		}

		if e.renderFrameLimit > 0 {
			if remaining := e.renderFrameLimit - time.Since(lastRender); remaining > 0 {
				time.Sleep(remaining)
			}
		}
	}
}

// renderFrame draws one frame: pending resizes, camera update, simulation clock, then
// BeginFrame, scene render, EndFrame and Present.
//
// Parameters:
//   - dt: wall time since the previous frame
//
// Returns:
//   - error: the scene's render error; the frame is still presented
func (e *engine) renderFrame(dt time.Duration) error {
	select {
	case size := <-e.resizeChannel:
		e.renderer.Resize(size[0], size[1])
		e.camera.SetAspect(float32(size[0]) / float32(size[1]))
	default:
	}

	e.camera.Update(dt.Seconds())
	t := e.advanceClock(dt)

	if err := e.renderer.BeginFrame(); err != nil {
		e.skippedFrames.Add(1)
		e.logger.Debugf("engine: frame skipped: %v", err)
		return nil
	}
	err := e.scene.Render(e.camera, t)
	e.renderer.EndFrame()
	e.renderer.Present()
	e.frames.Add(1)

	if e.profilingEnabled.Load() {
		e.profiler.Tick(e.scene.Stats())
	}
	if err != nil {
		return fmt.Errorf("render scene: %w", err)
	}
	return nil
}

func (e *engine) advanceClock(dt time.Duration) time.Time {
	e.clockMu.Lock()
	defer e.clockMu.Unlock()
	e.simTime = e.simTime.Add(time.Duration(float64(dt) * e.timeWarp))
	return e.simTime
}

// queueResize hands a new surface size to the render goroutine, replacing any size not yet applied.
func (e *engine) queueResize(width, height int) {
	size := [2]int{width, height}
	select {
	case e.resizeChannel <- size:
	default:
		select {
		case <-e.resizeChannel:
		default:
		}
		e.resizeChannel <- size
	}
}

func (e *engine) EnableProfiler() {
	e.profilingEnabled.Store(true)
}

func (e *engine) DisableProfiler() {
	e.profilingEnabled.Store(false)
}

// SetTickRate takes effect immediately when the engine is running.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Duration(float64(time.Second) / fps)

	if !e.running.Load() {
		e.engineTickRate = newRate
		return
	}
	// replace a pending update rather than block
	select {
	case e.tickRateChannel <- newRate:
	default:
		select {
		case <-e.tickRateChannel:
		default:
		}
		e.tickRateChannel <- newRate
	}
}

func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

func (e *engine) SetRenderCallback(callback func(deltaTime float32)) {
	e.renderCallback = callback
}

func (e *engine) SetRenderFrameLimit(fps float64) {
	e.renderFrameLimit = frameDuration(fps)
}

func (e *engine) SimulationTime() time.Time {
	e.clockMu.Lock()
	defer e.clockMu.Unlock()
	return e.simTime
}

func (e *engine) SetTimeWarp(warp float64) {
	e.clockMu.Lock()
	defer e.clockMu.Unlock()
	e.timeWarp = warp
}

func (e *engine) Frames() int {
	return int(e.frames.Load())
}

// frameDuration converts a rate to a period, 0 for non-positive rates.
func frameDuration(fps float64) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / fps)
}
