package bspbuilder

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/bf2_collision_browser/utils"
)

const (
	AXIS_X = 0
	AXIS_Y = 1
	AXIS_Z = 2
)

// Plane is axis aligned: axis 0 is parallel to ZY and passes (val, _, _),
// axis 1 parallel to XZ through (_, val, _), axis 2 parallel to XY through (_, _, val)
type Plane struct {
	Val    float32
	Axis   int
	Normal mgl32.Vec3
	Point  mgl32.Vec3
	D      float32
}

func NewPlane(val float32, axis int) Plane {
	p := Plane{
		Val:  val,
		Axis: axis,
	}
	p.Normal[axis] = 1
	p.Point[axis] = val
	p.D = -utils.Dot(p.Normal, p.Point)
	return p
}
