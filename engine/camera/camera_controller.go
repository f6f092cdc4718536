package camera

import "github.com/go-gl/mathgl/mgl64"

// CameraController owns the eye position and target. The Camera reads them on Update.
// Orbit methods move the eye on a sphere around the target; pan methods translate eye and target together
// along the eye's local axes.
type CameraController interface {
	// Position returns the eye position.
	//
	// Returns:
	//   - mgl64.Vec3: world-space eye position
	Position() mgl64.Vec3

	// Target returns the look-at point.
	//
	// Returns:
	//   - mgl64.Vec3: world-space target
	Target() mgl64.Vec3

	// SetTarget moves the pivot and recomputes the eye from the orbit angles.
	//
	// Parameters:
	//   - target: world-space pivot
	SetTarget(target mgl64.Vec3)

	// Zoom moves the eye towards the target. The step is proportional to the current radius so zooming
	// feels the same at parsec and kilometre scales.
	//
	// Parameters:
	//   - delta: positive zooms in
	Zoom(delta float64)

	OrbitLeft()
	OrbitRight()
	OrbitUp()
	OrbitDown()

	// Radius returns the distance between eye and target.
	Radius() float64

	// SetRadius sets the orbit radius, clamped to the controller's bounds.
	SetRadius(radius float64)

	// Azimuth returns the horizontal angle around the Y axis in radians.
	Azimuth() float64

	// Elevation returns the vertical angle from the horizontal plane in radians.
	Elevation() float64

	// PanRight translates along the local right axis.
	PanRight(delta float64)

	// PanUp translates along the local up axis.
	PanUp(delta float64)

	// PanForward translates along the view direction.
	PanForward(delta float64)
}
