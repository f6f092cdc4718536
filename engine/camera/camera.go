// package camera provides the viewpoint the render systems draw from. Positions are kept in double precision
// and matrices are built camera-relative, so the projection-view matrix always has the eye at the origin and
// vertex positions are offset by the camera position on the GPU.
package camera

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
)

type cameraImpl struct {
	mu *sync.Mutex

	up mgl64.Vec3

	fov    float32
	aspect float32
	near   float32
	far    float32

	position  mgl64.Vec3
	direction mgl64.Vec3
	velocity  mgl64.Vec3
	hasPrev   bool

	view           mgl32.Mat4
	projection     mgl32.Mat4
	projectionView mgl32.Mat4

	controller CameraController
}

// Camera is the viewpoint consumed by the render systems.
type Camera interface {
	// Position returns the world-space eye position.
	//
	// Returns:
	//   - mgl64.Vec3: the eye position
	Position() mgl64.Vec3

	// Direction returns the normalized view direction.
	//
	// Returns:
	//   - mgl32.Vec3: the view direction
	Direction() mgl32.Vec3

	// Up returns the camera's up vector.
	//
	// Returns:
	//   - mgl32.Vec3: the up vector
	Up() mgl32.Vec3

	// Velocity returns the eye velocity in units per second, measured across the last two updates.
	//
	// Returns:
	//   - mgl64.Vec3: the velocity
	Velocity() mgl64.Vec3

	// Fov returns the vertical field of view in radians.
	Fov() float32

	// Aspect returns the aspect ratio (width / height).
	Aspect() float32

	// Near returns the near clipping plane distance.
	Near() float32

	// Far returns the far clipping plane distance.
	Far() float32

	// View returns the camera-relative view matrix.
	View() mgl32.Mat4

	// Projection returns the perspective projection matrix.
	Projection() mgl32.Mat4

	// ProjectionView returns Projection * View. Vertex positions must be made camera-relative before being
	// multiplied by it.
	//
	// Returns:
	//   - mgl32.Mat4: the combined matrix
	ProjectionView() mgl32.Mat4

	// Distance returns the distance from the eye to a world-space point.
	//
	// Parameters:
	//   - p: the point
	//
	// Returns:
	//   - float64: the distance
	Distance(p mgl64.Vec3) float64

	// Controller returns the attached CameraController, or nil.
	Controller() CameraController

	// SetController attaches a CameraController.
	SetController(ctrl CameraController)

	// SetFov sets the field of view in radians and recomputes matrices.
	SetFov(fov float32)

	// SetAspect sets the aspect ratio and recomputes matrices.
	SetAspect(aspect float32)

	// SetPosition places the eye and points it at target. Used when no controller is attached.
	//
	// Parameters:
	//   - eye: the eye position
	//   - target: the look-at point
	SetPosition(eye, target mgl64.Vec3)

	// Update reads the controller's position and target, recomputes matrices and the velocity estimate.
	//
	// Parameters:
	//   - dt: seconds since the previous update; the velocity is left unchanged when dt <= 0
	Update(dt float64)
}

var _ Camera = &cameraImpl{}

// NewCamera creates a Camera at the origin looking down -Z.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:        &sync.Mutex{},
		up:        mgl64.Vec3{0, 1, 0},
		fov:       mgl32.DegToRad(45),
		aspect:    1.0,
		near:      0.1,
		far:       1e9,
		direction: mgl64.Vec3{0, 0, -1},
	}
	for _, option := range options {
		option(c)
	}
	if c.controller != nil {
		c.position, c.direction = lookFrom(c.controller.Position(), c.controller.Target(), c.direction)
	}
	c.updateMatrices()
	return c
}

func (c *cameraImpl) Position() mgl64.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

func (c *cameraImpl) Direction() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return vec32(c.direction)
}

func (c *cameraImpl) Up() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return vec32(c.up)
}

func (c *cameraImpl) Velocity() mgl64.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.velocity
}

func (c *cameraImpl) Fov() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fov
}

func (c *cameraImpl) Aspect() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aspect
}

func (c *cameraImpl) Near() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.near
}

func (c *cameraImpl) Far() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.far
}

func (c *cameraImpl) View() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

func (c *cameraImpl) Projection() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projection
}

func (c *cameraImpl) ProjectionView() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projectionView
}

func (c *cameraImpl) Distance(p mgl64.Vec3) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return p.Sub(c.position).Len()
}

func (c *cameraImpl) Controller() CameraController {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.controller
}

func (c *cameraImpl) SetController(ctrl CameraController) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controller = ctrl
}

func (c *cameraImpl) SetFov(fov float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fov = fov
	c.updateMatrices()
}

func (c *cameraImpl) SetAspect(aspect float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aspect = aspect
	c.updateMatrices()
}

func (c *cameraImpl) SetPosition(eye, target mgl64.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.position, c.direction = lookFrom(eye, target, c.direction)
	c.hasPrev = false
	c.updateMatrices()
}

func (c *cameraImpl) Update(dt float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.controller == nil {
		return
	}
	prev := c.position
	c.position, c.direction = lookFrom(c.controller.Position(), c.controller.Target(), c.direction)
	if c.hasPrev && dt > 0 {
		c.velocity = c.position.Sub(prev).Mul(1 / dt)
	}
	c.hasPrev = true
	c.updateMatrices()
}

// updateMatrices recomputes the camera-relative view, the projection and their product.
// Caller must hold the mutex.
func (c *cameraImpl) updateMatrices() {
	c.view = mgl32.LookAtV(mgl32.Vec3{}, vec32(c.direction), vec32(c.up))
	c.projection = mgl32.Perspective(c.fov, c.aspect, c.near, c.far)
	c.projectionView = c.projection.Mul4(c.view)
}

// lookFrom returns the eye and the normalized direction towards target, keeping fallback when they coincide.
func lookFrom(eye, target, fallback mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	d := target.Sub(eye)
	if d.Len() < 1e-12 {
		return eye, fallback
	}
	return eye, d.Normalize()
}

func vec32(v mgl64.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{float32(v[0]), float32(v[1]), float32(v[2])}
}
