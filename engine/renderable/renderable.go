// package renderable defines the objects handed to the render systems each frame: a closed set of shapes,
// the geometry each shape carries, and the Renderable capability the render systems read under lock.
package renderable

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// Shape is the closed set of geometry kinds a render system can dispatch on.
type Shape int

const (
	ShapePoint Shape = iota
	ShapeQuad
	ShapeLineStrip
	ShapeModel
)

func (s Shape) String() string {
	switch s {
	case ShapePoint:
		return "point"
	case ShapeQuad:
		return "quad"
	case ShapeLineStrip:
		return "line-strip"
	case ShapeModel:
		return "model"
	default:
		return fmt.Sprintf("Shape(%d)", int(s))
	}
}

// ComponentType tags a renderable for the per-type visibility multipliers in the render settings.
// The numeric value is the index into settings.RenderSettings.ComponentAlphas.
type ComponentType int

const (
	ComponentStars ComponentType = iota
	ComponentParticles
	ComponentGalaxies
	ComponentClusters
	ComponentOrbits
	ComponentBillboards
	ComponentOthers
)

// Ordinals converts component types to alpha table indices.
func Ordinals(types []ComponentType) []int {
	out := make([]int, len(types))
	for i, t := range types {
		out[i] = int(t)
	}
	return out
}

// Variability is the light curve of a variable star. Times are days relative to the renderable's epoch.
type Variability struct {
	Magnitudes []float64
	Times      []float64
}

// Particle is one point of a point or quad renderable.
type Particle struct {
	Position mgl64.Vec3
	// ProperMotion is the displacement per day.
	ProperMotion mgl64.Vec3
	Size         float64
	Color        [4]float64
	Variability  *Variability
}

// LineStrip is the geometry of a line-strip renderable.
type LineStrip struct {
	Points []mgl64.Vec3
	// Times are optional per-point timestamps, used to fade the strip along its length.
	Times         []float64
	Color         [4]float32
	ClosedLoop    bool
	PrimitiveSize float32
	CoordEnabled  bool
}

// Highlight describes how a selected renderable is drawn.
type Highlight struct {
	Enabled bool
	// Plain highlights use Color; otherwise ColorMap colours each particle.
	Plain    bool
	Color    [4]float32
	ColorMap func(p Particle) [4]float32
	// AllVisible forces a minimum point size and switches to the highlight opacity limits.
	AllVisible bool
	SizeFactor float32
}

// Geometry is a tagged variant: Particles is set for ShapePoint and ShapeQuad, Line for ShapeLineStrip.
type Geometry struct {
	Shape     Shape
	Particles []Particle
	Line      *LineStrip
	// Visible filters particles; nil keeps all of them.
	Visible func(index int, p Particle) bool
}

// Renderable is the capability a render system needs from a scene object. Geometry returns internal
// storage and must be called while holding the renderable's lock. Its slices are replaced or appended to,
// never modified in place, so a Geometry taken under the lock may be read after unlocking. The other
// accessors never wait on the lock.
type Renderable interface {
	sync.Locker

	ID() uuid.UUID
	Name() string
	Shape() Shape
	ComponentTypes() []ComponentType
	Opacity() float32
	Highlight() Highlight

	// Position is the reference position used for back-to-front sorting.
	Position() mgl64.Vec3

	// Epoch is the reference time of positions and proper motions.
	Epoch() time.Time

	// Version increases whenever the data a render system uploads changes.
	Version() uint64

	Disposed() bool
	Geometry() Geometry
}
