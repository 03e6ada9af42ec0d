package collmesh

import (
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/bf2_collision_browser/bf2/bspbuilder"
	"github.com/mogaika/bf2_collision_browser/utils"
)

type ColType uint32

const (
	COL_PROJECTILE ColType = iota
	COL_VEHICLE
	COL_SOLDIER
	COL_AI
)

func (t ColType) String() string {
	switch t {
	case COL_PROJECTILE:
		return "projectile"
	case COL_VEHICLE:
		return "vehicle"
	case COL_SOLDIER:
		return "soldier"
	case COL_AI:
		return "ai"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(t))
	}
}

const (
	bspMarkerAbsent  = '0'
	bspMarkerPresent = '1'

	// max vertex count addressable by u16 face indexes
	MAX_VERTS = 0x10000
)

type Col struct {
	Type          ColType
	Faces         []Face
	Verts         []mgl32.Vec3
	VertMaterials []uint16
	Min           mgl32.Vec3
	Max           mgl32.Vec3
	Bsp           *BSP
	// per-face helper data of version 10 files, unknown meaning, -1 when unset.
	// Only loaded, never exported.
	DebugMesh []int32
}

func loadCol(bs *utils.BufStack, version [2]uint32) (*Col, error) {
	c := &Col{
		Type: ColType(bs.ReadLU32()),
	}

	faceCount := int(bs.ReadLU32())
	if !bs.CanRead(faceCount, FACE_SIZE) {
		return nil, corruptf("Faces: %v", bs.Err())
	}
	c.Faces = make([]Face, faceCount)
	for i := range c.Faces {
		c.Faces[i] = loadFace(bs)
	}

	vertCount := int(bs.ReadLU32())
	if !bs.CanRead(vertCount, 12+2) {
		return nil, corruptf("Verts: %v", bs.Err())
	}
	coords := bs.ReadLFArray(vertCount * 3)
	c.Verts = make([]mgl32.Vec3, vertCount)
	for i := range c.Verts {
		copy(c.Verts[i][:], coords[i*3:])
	}
	c.VertMaterials = bs.ReadLU16Array(vertCount)

	c.Min = loadVec3(bs)
	c.Max = loadVec3(bs)

	switch marker := bs.ReadU8(); {
	case bs.Err() != nil:
		return nil, corruptf("%v", bs.Err())
	case marker == bspMarkerPresent:
		bsp, err := loadBSP(bs, len(c.Faces))
		if err != nil {
			return nil, err
		}
		c.Bsp = bsp
	case marker != bspMarkerAbsent:
		return nil, corruptf("Invalid BSP marker 0x%.2x at 0x%x", marker, bs.Pos()-1)
	}

	if version[0] == 0 && version[1] >= 10 {
		c.DebugMesh = bs.ReadLI32Array(int(bs.ReadLU32()))
	}

	if bs.Err() != nil {
		return nil, corruptf("%v", bs.Err())
	}
	return c, nil
}

// Prepare returns export-ready copy of col: validated, faces stably sorted
// by material, bounds and BSP updated according to opts. Receiver is not modified.
func (c *Col) Prepare(opts ExportOptions) (*Col, error) {
	if len(c.VertMaterials) != len(c.Verts) {
		return nil, invalidf("vertex materials don't match vertex count (%d != %d)", len(c.VertMaterials), len(c.Verts))
	}
	if len(c.Verts) > MAX_VERTS {
		return nil, invalidf("%d vertices, max %d", len(c.Verts), MAX_VERTS)
	}
	for i, f := range c.Faces {
		for _, v := range f.Verts {
			if int(v) >= len(c.Verts) {
				return nil, invalidf("face %d references vertex %d (%d vertices)", i, v, len(c.Verts))
			}
		}
	}

	order := make([]int, len(c.Faces))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return c.Faces[order[i]].Material < c.Faces[order[j]].Material
	})

	p := &Col{
		Type:          c.Type,
		Faces:         make([]Face, len(c.Faces)),
		Verts:         append([]mgl32.Vec3{}, c.Verts...),
		VertMaterials: append([]uint16{}, c.VertMaterials...),
		Min:           c.Min,
		Max:           c.Max,
	}
	newIndex := make([]int, len(c.Faces))
	for i, old := range order {
		p.Faces[i] = c.Faces[old]
		newIndex[old] = i
	}

	if opts.UpdateBounds {
		p.Min, p.Max = utils.CalcBounds(p.Verts)
	}

	if opts.UpdateBSP || c.Bsp == nil {
		opts.Log.Printf("Building BSP: %d faces, %d verts", len(p.Faces), len(p.Verts))
		bsp, err := BuildBSP(p.Verts, p.Faces, opts.Builder)
		if err != nil {
			return nil, err
		}
		opts.Log.Printf("BSP built: %+v", bsp.Stats())
		p.Bsp = bsp
	} else {
		bsp, err := c.Bsp.remapped(newIndex)
		if err != nil {
			return nil, err
		}
		p.Bsp = bsp
	}
	return p, nil
}

// save writes already prepared col
func (c *Col) save(bw *utils.BufWriter) error {
	bw.WriteLU32(uint32(c.Type))

	bw.WriteLU32(uint32(len(c.Faces)))
	for i := range c.Faces {
		c.Faces[i].save(bw)
	}

	bw.WriteLU32(uint32(len(c.Verts)))
	for _, v := range c.Verts {
		saveVec3(bw, v)
	}
	bw.WriteLU16Array(c.VertMaterials)

	saveVec3(bw, c.Min)
	saveVec3(bw, c.Max)

	if c.Bsp == nil {
		bw.WriteU8(bspMarkerAbsent)
		return nil
	}
	bw.WriteU8(bspMarkerPresent)
	return c.Bsp.save(bw, len(c.Faces))
}

// RebuildBSP replaces tree with freshly built one for current faces
func (c *Col) RebuildBSP(opts bspbuilder.Options) error {
	bsp, err := BuildBSP(c.Verts, c.Faces, opts)
	if err != nil {
		return err
	}
	c.Bsp = bsp
	return nil
}
