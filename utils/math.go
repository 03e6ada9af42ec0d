package utils

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Every intermediate result below is converted to float32 explicitly.
// Conversion forces rounding and forbids fused multiply-add, so the BSP
// builder produces the same planes on every architecture.

func Dot(a, b mgl32.Vec3) float32 {
	s := float32(a[0]*b[0]) + float32(a[1]*b[1])
	return float32(s) + float32(a[2]*b[2])
}

func Cross(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{
		float32(a[1]*b[2]) - float32(a[2]*b[1]),
		float32(a[2]*b[0]) - float32(a[0]*b[2]),
		float32(a[0]*b[1]) - float32(a[1]*b[0]),
	}
}

func Length(v mgl32.Vec3) float32 {
	return math32.Sqrt(Dot(v, v))
}

// Normalize returns v unchanged when it has zero length
func Normalize(v mgl32.Vec3) mgl32.Vec3 {
	l := Length(v)
	if l == 0 {
		return v
	}
	return v.Mul(1 / l)
}

func Abs32(v float32) float32 {
	return math32.Abs(v)
}

// CalcBounds returns per-axis minimum and maximum, zero vectors for empty input
func CalcBounds(verts []mgl32.Vec3) (min, max mgl32.Vec3) {
	if len(verts) == 0 {
		return
	}
	min, max = verts[0], verts[0]
	for _, v := range verts[1:] {
		for i := 0; i < 3; i++ {
			if v[i] < min[i] {
				min[i] = v[i]
			}
			if v[i] > max[i] {
				max[i] = v[i]
			}
		}
	}
	return
}
