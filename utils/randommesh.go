package utils

import (
	"math/rand"

	"github.com/Pallinder/go-randomdata"
	"github.com/go-gl/mathgl/mgl32"
)

// RandomMesh generates reproducible scattered unit triangles. Every face gets
// own three corners of a unit cube placed at random integer position inside
// [-extent, extent), so axis planes through vertices never cut a face.
// Same seed always gives the same mesh.
func RandomMesh(seed int64, faceCount, extent int) (verts []mgl32.Vec3, faces [][3]uint16) {
	randomdata.CustomRand(rand.New(rand.NewSource(seed)))

	if faceCount < 0 {
		faceCount = 0
	}
	if faceCount > 0x10000/3 {
		faceCount = 0x10000 / 3
	}
	if extent < 1 {
		extent = 1
	}

	verts = make([]mgl32.Vec3, 0, faceCount*3)
	faces = make([][3]uint16, faceCount)
	for i := range faces {
		var origin mgl32.Vec3
		for j := range origin {
			origin[j] = float32(randomdata.Number(-extent, extent))
		}

		// three distinct cube corners never lie on one line
		a := randomdata.Number(0, 8)
		b := (a + 1 + randomdata.Number(0, 7)) % 8
		c := a
		for c == a || c == b {
			c = randomdata.Number(0, 8)
		}
		for k, corner := range [3]int{a, b, c} {
			faces[i][k] = uint16(len(verts))
			verts = append(verts, origin.Add(mgl32.Vec3{
				float32(corner & 1), float32((corner >> 1) & 1), float32((corner >> 2) & 1),
			}))
		}
	}
	return
}

// RandomName returns deterministic silly name for generated samples
func RandomName(seed int64) string {
	randomdata.CustomRand(rand.New(rand.NewSource(seed)))
	return randomdata.SillyName()
}
