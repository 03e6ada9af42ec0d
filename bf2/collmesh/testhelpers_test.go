package collmesh

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/bf2_collision_browser/bf2/bspbuilder"
	"github.com/mogaika/bf2_collision_browser/utils"
)

func testExportOptions() ExportOptions {
	return ExportOptions{
		UpdateBounds: true,
		UpdateBSP:    true,
		Builder:      bspbuilder.DefaultOptions(),
	}
}

func wedgeCol() *Col {
	return &Col{
		Type: COL_PROJECTILE,
		Faces: []Face{
			{Verts: [3]uint16{0, 1, 2}, Material: 0},
			{Verts: [3]uint16{0, 1, 3}, Material: 1},
		},
		Verts:         []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1}},
		VertMaterials: []uint16{0, 0, 0, 1},
	}
}

func singleColMesh(name string, col *Col) *CollMesh {
	return &CollMesh{
		Name:    name,
		Version: EXPORT_VERSION,
		GeomParts: []*GeomPart{{
			Geoms: []*Geom{{Cols: []*Col{col}}},
		}},
	}
}

type rawNode struct {
	val    float32
	flags  uint32
	fields [2]uint32
}

type rawWedge struct {
	version   [2]uint32
	marker    uint8
	nodes     []rawNode
	faceRefs  []uint16
	debugMesh []int32
	withDebug bool
}

// wedge file with degenerate BSP as produced by exporter
func defaultRawWedge() rawWedge {
	return rawWedge{
		version: [2]uint32{0, 9},
		marker:  '1',
		nodes: []rawNode{
			{val: 1, flags: 0x2000C, fields: [2]uint32{0, 2}},
		},
		faceRefs: []uint16{0, 1},
	}
}

func (r rawWedge) bytes() []byte {
	bw := utils.NewBufWriter()
	bw.WriteLU32(r.version[0])
	bw.WriteLU32(r.version[1])
	bw.WriteLU32(1) // geom parts
	bw.WriteLU32(1) // geoms
	bw.WriteLU32(1) // cols

	bw.WriteLU32(0) // projectile
	bw.WriteLU32(2)
	bw.WriteLU16Array([]uint16{0, 1, 2, 0})
	bw.WriteLU16Array([]uint16{0, 1, 3, 1})
	bw.WriteLU32(4)
	bw.WriteLFArray([]float32{0, 0, 0, 1, 0, 0, 0, 1, 0, 0, 0, 1})
	bw.WriteLU16Array([]uint16{0, 0, 0, 1})
	bw.WriteLFArray([]float32{0, 0, 0})
	bw.WriteLFArray([]float32{1, 1, 1})

	bw.WriteU8(r.marker)
	if r.marker == '1' {
		bw.WriteLFArray([]float32{0, 0, 0})
		bw.WriteLFArray([]float32{1, 1, 1})
		bw.WriteLU32(uint32(len(r.nodes)))
		for _, n := range r.nodes {
			bw.WriteLF(n.val)
			bw.WriteLU32(n.flags)
			bw.WriteLU32Array(n.fields[:])
		}
		bw.WriteLU32(uint32(len(r.faceRefs)))
		bw.WriteLU16Array(r.faceRefs)
	}
	if r.withDebug {
		bw.WriteLU32(uint32(len(r.debugMesh)))
		bw.WriteLI32Array(r.debugMesh)
	}
	return bw.Bytes()
}
