package collmesh

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/bf2_collision_browser/utils"
)

func fourFaceCol() *Col {
	return &Col{
		Type: COL_VEHICLE,
		Faces: []Face{
			{Verts: [3]uint16{0, 1, 2}, Material: 2},
			{Verts: [3]uint16{1, 2, 3}, Material: 0},
			{Verts: [3]uint16{2, 3, 0}, Material: 1},
			{Verts: [3]uint16{3, 0, 1}, Material: 0},
		},
		Verts:         []mgl32.Vec3{{0, 0, 0}, {4, 0, 0}, {0, 4, 0}, {0, 0, 4}},
		VertMaterials: []uint16{2, 0, 1, 0},
		Min:           mgl32.Vec3{-1, -1, -1},
		Max:           mgl32.Vec3{9, 9, 9},
	}
}

func TestPrepareStableSort(t *testing.T) {
	col := fourFaceCol()
	original := fourFaceCol()

	p, err := col.Prepare(testExportOptions())
	if err != nil {
		t.Fatal(err)
	}

	expected := []Face{original.Faces[1], original.Faces[3], original.Faces[2], original.Faces[0]}
	if !reflect.DeepEqual(p.Faces, expected) {
		t.Errorf("prepared faces %v; expected %v", p.Faces, expected)
	}
	if !reflect.DeepEqual(col.Faces, original.Faces) {
		t.Errorf("Prepare modified source faces: %v", col.Faces)
	}
	if p.Min != (mgl32.Vec3{0, 0, 0}) || p.Max != (mgl32.Vec3{4, 4, 4}) {
		t.Errorf("prepared bounds %v %v; expected recomputed", p.Min, p.Max)
	}
	if col.Bsp != nil {
		t.Errorf("Prepare set Bsp on source col")
	}
}

func TestPrepareKeepsBounds(t *testing.T) {
	opts := testExportOptions()
	opts.UpdateBounds = false
	p, err := fourFaceCol().Prepare(opts)
	if err != nil {
		t.Fatal(err)
	}
	if p.Min != (mgl32.Vec3{-1, -1, -1}) || p.Max != (mgl32.Vec3{9, 9, 9}) {
		t.Errorf("bounds %v %v; expected stored ones", p.Min, p.Max)
	}
}

func TestPrepareRemapsReusedBSP(t *testing.T) {
	col := fourFaceCol()
	col.Bsp = &BSP{
		Nodes: []BSPNode{{
			SplitPlaneVal:  1,
			SplitPlaneAxis: 0,
			Parent:         BSP_NONE,
			Children:       [2]int{BSP_NONE, BSP_NONE},
			Faces:          [2][]int{{0, 1}, {2, 3}},
		}},
		Root: 0,
	}

	opts := testExportOptions()
	opts.UpdateBSP = false
	p, err := col.Prepare(opts)
	if err != nil {
		t.Fatal(err)
	}

	// sorted order is [1 3 2 0], old face 0 is now 3 and so on
	if !reflect.DeepEqual(p.Bsp.Nodes[0].Faces, [2][]int{{3, 0}, {2, 1}}) {
		t.Errorf("remapped faces %v; expected [[3 0] [2 1]]", p.Bsp.Nodes[0].Faces)
	}
	if !reflect.DeepEqual(col.Bsp.Nodes[0].Faces, [2][]int{{0, 1}, {2, 3}}) {
		t.Errorf("source BSP modified: %v", col.Bsp.Nodes[0].Faces)
	}
	for side, faces := range p.Bsp.Nodes[0].Faces {
		for i, iFace := range faces {
			if p.Faces[iFace] != col.Faces[col.Bsp.Nodes[0].Faces[side][i]] {
				t.Errorf("side %d ref %d points to other face", side, i)
			}
		}
	}
}

func TestPrepareInvalid(t *testing.T) {
	var invalidTests = []struct {
		name   string
		modify func(c *Col)
	}{
		{"vertex materials mismatch", func(c *Col) { c.VertMaterials = c.VertMaterials[:3] }},
		{"face out of range", func(c *Col) { c.Faces[2].Verts[1] = 4 }},
		{"too many verts", func(c *Col) {
			c.Verts = make([]mgl32.Vec3, MAX_VERTS+1)
			c.VertMaterials = make([]uint16, MAX_VERTS+1)
		}},
		{"reused bsp face out of range", func(c *Col) {
			c.Bsp = &BSP{
				Nodes: []BSPNode{{
					Parent:   BSP_NONE,
					Children: [2]int{BSP_NONE, BSP_NONE},
					Faces:    [2][]int{{0, 9}, {}},
				}},
			}
		}},
	}

	for _, test := range invalidTests {
		col := fourFaceCol()
		test.modify(col)
		opts := testExportOptions()
		opts.UpdateBSP = false
		if _, err := col.Prepare(opts); errors.Cause(err) != ErrInvalidGeometry {
			t.Errorf("%s: err %v; expected ErrInvalidGeometry", test.name, err)
		}
	}
}

func TestExportLeafTooLarge(t *testing.T) {
	col := &Col{
		Verts:         []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		VertMaterials: []uint16{0, 0, 0},
	}
	for i := 0; i < 300; i++ {
		col.Faces = append(col.Faces, Face{Verts: [3]uint16{0, 1, 2}})
	}

	_, err := singleColMesh("big", col).Marshal(testExportOptions())
	if errors.Cause(err) != ErrInvalidGeometry {
		t.Errorf("Marshal() with 300 faces in one leaf: err %v; expected ErrInvalidGeometry", err)
	}
}

func TestExportDeterministic(t *testing.T) {
	verts, tris := utils.RandomMesh(99, 100, 6)
	col := &Col{
		Type:          COL_SOLDIER,
		Verts:         verts,
		VertMaterials: make([]uint16, len(verts)),
	}
	for i, tri := range tris {
		col.Faces = append(col.Faces, Face{Verts: tri, Material: uint16(i % 3)})
	}
	cm := singleColMesh("random", col)

	first, err := cm.Marshal(testExportOptions())
	if err != nil {
		t.Fatal(err)
	}
	second, err := cm.Marshal(testExportOptions())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("two exports of same mesh differ")
	}

	loaded, err := FromBytes(first, "random")
	if err != nil {
		t.Fatal(err)
	}
	opts := testExportOptions()
	opts.UpdateBSP = false
	third, err := loaded.Marshal(opts)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, third) {
		t.Errorf("load and export with kept BSP differs from first export")
	}

	// every face must be reachable from its own centroid
	lcol := loaded.GeomParts[0].Geoms[0].Cols[0]
	if stats := lcol.Bsp.Stats(); stats.Nodes < 2 || stats.MaxDepth < 2 {
		t.Fatalf("expected multi node tree, got %+v", stats)
	}
	for iFace, f := range lcol.Faces {
		var c mgl32.Vec3
		for _, v := range f.Verts {
			c = c.Add(lcol.Verts[v])
		}
		c = c.Mul(1.0 / 3.0)
		found := false
		for _, i := range lcol.Bsp.Locate(c) {
			if i == iFace {
				found = true
			}
		}
		if !found {
			t.Errorf("face %d not located at its centroid %v", iFace, c)
		}
	}
}

func TestColTypeString(t *testing.T) {
	for colType, expected := range map[ColType]string{
		COL_PROJECTILE: "projectile",
		COL_VEHICLE:    "vehicle",
		COL_SOLDIER:    "soldier",
		COL_AI:         "ai",
		ColType(7):     "unknown(7)",
	} {
		if s := colType.String(); s != expected {
			t.Errorf("ColType(%d).String()=%q; expected %q", uint32(colType), s, expected)
		}
	}
}
