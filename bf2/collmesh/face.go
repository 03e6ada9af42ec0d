package collmesh

import (
	"github.com/mogaika/bf2_collision_browser/utils"
)

const FACE_SIZE = 8

type Face struct {
	Verts    [3]uint16
	Material uint16
}

func loadFace(bs *utils.BufStack) Face {
	var f Face
	for i := range f.Verts {
		f.Verts[i] = bs.ReadLU16()
	}
	f.Material = bs.ReadLU16()
	return f
}

func (f *Face) save(bw *utils.BufWriter) {
	bw.WriteLU16Array(f.Verts[:])
	bw.WriteLU16(f.Material)
}

// Inverted returns same face with opposite winding
func (f Face) Inverted() Face {
	return Face{
		Verts:    [3]uint16{f.Verts[2], f.Verts[1], f.Verts[0]},
		Material: f.Material,
	}
}
