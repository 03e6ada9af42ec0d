package bspbuilder

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/bf2_collision_browser/utils"
)

type PolyType uint8

const (
	POLY_FRONT PolyType = iota
	POLY_BACK
	POLY_COPLANAR
	POLY_STRADDLE
)

func (pt PolyType) String() string {
	switch pt {
	case POLY_FRONT:
		return "front"
	case POLY_BACK:
		return "back"
	case POLY_COPLANAR:
		return "coplanar"
	case POLY_STRADDLE:
		return "straddle"
	default:
		return "unknown"
	}
}

// upper bound of edge intersection parameter, kept from DICE tools
const straddleEpsilon = float32(0.999999)

// Poly is per triangle data used only while building tree
type Poly struct {
	FaceIndex int
	Indexes   [3]uint16
	Points    [3]mgl32.Vec3
	Center    mgl32.Vec3
	Normal    mgl32.Vec3
	D         float32
}

func NewPoly(faceIndex int, face [3]uint16, verts []mgl32.Vec3) Poly {
	p := Poly{
		FaceIndex: faceIndex,
		Indexes:   face,
	}
	for i := range p.Points {
		p.Points[i] = verts[face[i]]
	}

	for _, point := range p.Points {
		p.Center = p.Center.Add(point)
	}
	p.Center = p.Center.Mul(1.0 / float32(len(p.Points)))

	a := p.Points[0].Sub(p.Points[1])
	b := p.Points[2].Sub(p.Points[1])
	p.Normal = utils.Normalize(utils.Cross(a, b))
	p.D = -utils.Dot(p.Normal, p.Center)
	return p
}

// intersects walks triangle edges looking for one crossed by plane.
// Edge that starts on the plane right after a parallel edge is not counted.
func (p *Poly) intersects(plane *Plane) bool {
	if p.Normal == plane.Normal {
		return false
	}

	lastSideParallel := false
	for vertex := range p.Points {
		prevVertex := vertex - 1
		if vertex == 0 {
			prevVertex = len(p.Points) - 1
		}

		edgeDelta := p.Points[vertex].Sub(p.Points[prevVertex])
		denom := utils.Dot(edgeDelta, plane.Normal)
		if denom != 0 {
			numer := utils.Dot(p.Points[prevVertex], plane.Normal) + plane.D
			t := float32(-numer / denom)
			if !(lastSideParallel && t == 0) {
				if t > 0 && t < straddleEpsilon {
					return true
				}
			}
		}
		lastSideParallel = denom == 0
	}
	return false
}

func (p *Poly) Classify(plane *Plane) PolyType {
	if p.intersects(plane) {
		return POLY_STRADDLE
	}

	delta := p.Center.Sub(plane.Point)
	dotp := utils.Dot(delta, plane.Normal)
	switch {
	case dotp == 0:
		return POLY_COPLANAR
	case dotp < 0:
		return POLY_FRONT
	default:
		return POLY_BACK
	}
}
