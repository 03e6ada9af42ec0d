package collmesh

import (
	"bytes"
	"io"
	"reflect"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

func TestExportWedge(t *testing.T) {
	cm := singleColMesh("wedge", wedgeCol())

	data, err := cm.Marshal(testExportOptions())
	if err != nil {
		t.Fatal(err)
	}
	expected := defaultRawWedge().bytes()
	if !bytes.Equal(data, expected) {
		t.Errorf("Marshal()=\n% x\nexpected\n% x", data, expected)
	}
}

func TestLoadWedge(t *testing.T) {
	cm, err := FromBytes(defaultRawWedge().bytes(), "wedge")
	if err != nil {
		t.Fatal(err)
	}
	if cm.Version != [2]uint32{0, 9} || len(cm.GeomParts) != 1 {
		t.Fatalf("loaded %+v", cm)
	}

	col, err := cm.Col(0, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	expected := wedgeCol()
	if !reflect.DeepEqual(col.Faces, expected.Faces) ||
		!reflect.DeepEqual(col.Verts, expected.Verts) ||
		!reflect.DeepEqual(col.VertMaterials, expected.VertMaterials) {
		t.Errorf("col geometry %+v; expected %+v", col, expected)
	}
	if col.Min != (mgl32.Vec3{0, 0, 0}) || col.Max != (mgl32.Vec3{1, 1, 1}) {
		t.Errorf("bounds %v %v", col.Min, col.Max)
	}
	if col.DebugMesh != nil {
		t.Errorf("DebugMesh %v on version 9", col.DebugMesh)
	}

	expectedBSP := &BSP{
		Min: mgl32.Vec3{0, 0, 0},
		Max: mgl32.Vec3{1, 1, 1},
		Nodes: []BSPNode{{
			SplitPlaneVal:  1,
			SplitPlaneAxis: 0,
			Parent:         BSP_NONE,
			Children:       [2]int{BSP_NONE, BSP_NONE},
			Faces:          [2][]int{{0, 1}, {}},
		}},
		Root: 0,
	}
	if !reflect.DeepEqual(col.Bsp, expectedBSP) {
		t.Errorf("BSP %+v; expected %+v", col.Bsp, expectedBSP)
	}

	built, err := BuildBSP(expected.Verts, expected.Faces, testExportOptions().Builder)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(built, expectedBSP) {
		t.Errorf("BuildBSP()=%+v; expected %+v", built, expectedBSP)
	}
}

func TestRoundTripKeepBSP(t *testing.T) {
	data := defaultRawWedge().bytes()
	cm, err := FromBytes(data, "wedge")
	if err != nil {
		t.Fatal(err)
	}

	opts := testExportOptions()
	opts.UpdateBSP = false
	opts.UpdateBounds = false
	out, err := cm.Marshal(opts)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, data) {
		t.Errorf("re-export differs:\n% x\nexpected\n% x", out, data)
	}
}

func TestLoadVersions(t *testing.T) {
	var versionTests = []struct {
		version   [2]uint32
		withDebug bool
		err       error
	}{
		{[2]uint32{0, 8}, false, ErrUnsupportedVersion},
		{[2]uint32{0, 9}, false, nil},
		{[2]uint32{0, 10}, true, nil},
		{[2]uint32{0, 11}, false, ErrUnsupportedVersion},
		{[2]uint32{1, 9}, false, nil},
		// debug mesh is read only for major 0
		{[2]uint32{1, 10}, false, nil},
		{[2]uint32{0, 10}, false, ErrCorruptFile},
	}

	for _, test := range versionTests {
		raw := defaultRawWedge()
		raw.version = test.version
		raw.withDebug = test.withDebug
		raw.debugMesh = []int32{-1, 0}

		cm, err := FromBytes(raw.bytes(), "wedge")
		if errors.Cause(err) != test.err {
			t.Errorf("version %v debug %v: err %v; expected %v", test.version, test.withDebug, err, test.err)
			continue
		}
		if err != nil {
			if cm != nil {
				t.Errorf("version %v: mesh returned together with error", test.version)
			}
			continue
		}
		col := cm.GeomParts[0].Geoms[0].Cols[0]
		if test.withDebug && !reflect.DeepEqual(col.DebugMesh, []int32{-1, 0}) {
			t.Errorf("version %v: DebugMesh %v; expected [-1 0]", test.version, col.DebugMesh)
		}
	}
}

func TestExportDropsDebugMesh(t *testing.T) {
	raw := defaultRawWedge()
	raw.version = [2]uint32{0, 10}
	raw.withDebug = true
	raw.debugMesh = []int32{-1, 0}

	cm, err := FromBytes(raw.bytes(), "wedge")
	if err != nil {
		t.Fatal(err)
	}
	out, err := cm.Marshal(testExportOptions())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, defaultRawWedge().bytes()) {
		t.Errorf("version 10 re-export is not plain version 9 file")
	}
}

func TestLoadTrailingBytes(t *testing.T) {
	data := append(defaultRawWedge().bytes(), 0)
	if _, err := FromBytes(data, "wedge"); errors.Cause(err) != ErrCorruptFile {
		t.Errorf("trailing byte: err %v; expected ErrCorruptFile", err)
	}
}

func TestLoadTruncated(t *testing.T) {
	data := defaultRawWedge().bytes()
	for size := 0; size < len(data); size++ {
		if _, err := FromBytes(data[:size], "wedge"); errors.Cause(err) != ErrCorruptFile {
			t.Errorf("truncated to %d bytes: err %v; expected ErrCorruptFile", size, err)
		}
	}
}

func TestLoadCorruptedBSP(t *testing.T) {
	var corruptTests = []struct {
		name     string
		marker   uint8
		nodes    []rawNode
		faceRefs []uint16
	}{
		{"bad marker", '2', nil, nil},
		{"binary one marker", 1, nil, nil},
		{"axis 3", '1', []rawNode{{1, 0x2000F, [2]uint32{0, 2}}}, []uint16{0, 1}},
		{"child out of range", '1', []rawNode{{1, 0x8, [2]uint32{5, 0}}}, []uint16{}},
		{"face refs window", '1', []rawNode{{1, 0x3000C, [2]uint32{0, 3}}}, []uint16{0, 1}},
		{"face ref past faces", '1', []rawNode{{1, 0x2000C, [2]uint32{0, 2}}}, []uint16{0, 5}},
		{"multiple roots", '1', []rawNode{
			{1, 0x1000C, [2]uint32{0, 1}},
			{1, 0x1000C, [2]uint32{1, 2}},
		}, []uint16{0, 1}},
		{"no root", '1', []rawNode{{1, 0x8, [2]uint32{0, 0}}}, []uint16{}},
		{"multiple parents", '1', []rawNode{
			{1, 0x0, [2]uint32{1, 2}},
			{1, 0x8, [2]uint32{2, 0}},
			{1, 0x1000C, [2]uint32{0, 1}},
		}, []uint16{0, 1}},
	}

	for _, test := range corruptTests {
		raw := defaultRawWedge()
		raw.marker = test.marker
		raw.nodes = test.nodes
		raw.faceRefs = test.faceRefs
		if _, err := FromBytes(raw.bytes(), "wedge"); errors.Cause(err) != ErrCorruptFile {
			t.Errorf("%s: err %v; expected ErrCorruptFile", test.name, err)
		}
	}
}

func TestLoadWithoutBSP(t *testing.T) {
	raw := defaultRawWedge()
	raw.marker = '0'
	cm, err := FromBytes(raw.bytes(), "wedge")
	if err != nil {
		t.Fatal(err)
	}
	col := cm.GeomParts[0].Geoms[0].Cols[0]
	if col.Bsp != nil {
		t.Errorf("Bsp=%v; expected nil", col.Bsp)
	}

	// missing tree is always built on export
	opts := testExportOptions()
	opts.UpdateBSP = false
	out, err := cm.Marshal(opts)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, defaultRawWedge().bytes()) {
		t.Errorf("export of col without BSP differs from reference")
	}
}

type failReader struct{}

func (failReader) Read(p []byte) (int, error) {
	return 0, io.ErrClosedPipe
}

func TestLoadReaderError(t *testing.T) {
	if _, err := Load(failReader{}, "wedge"); errors.Cause(err) != io.ErrClosedPipe {
		t.Errorf("Load(failing reader) err %v; expected io.ErrClosedPipe", err)
	}
}

func TestNameRequired(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Errorf("New(\"\")=nil error")
	}
	if _, err := Load(bytes.NewReader(defaultRawWedge().bytes()), ""); err == nil {
		t.Errorf("Load without name=nil error")
	}
	if name := NameFromPath("/tmp/objects/tank_hull.collisionmesh"); name != "tank_hull" {
		t.Errorf("NameFromPath()=%q; expected tank_hull", name)
	}
}

func TestExportVersionHeader(t *testing.T) {
	cm, err := New("empty")
	if err != nil {
		t.Fatal(err)
	}
	cm.Version = [2]uint32{0, 10}
	out, err := cm.Marshal(testExportOptions())
	if err != nil {
		t.Fatal(err)
	}
	expected := []byte{0, 0, 0, 0, 9, 0, 0, 0, 0, 0, 0, 0}
	if !bytes.Equal(out, expected) {
		t.Errorf("Marshal(empty)=% x; expected % x", out, expected)
	}
}

func TestExportFailureWritesNothing(t *testing.T) {
	col := wedgeCol()
	col.VertMaterials = col.VertMaterials[:3]
	cm := singleColMesh("bad", col)

	var buf bytes.Buffer
	err := cm.Export(&buf, testExportOptions())
	if errors.Cause(err) != ErrInvalidGeometry {
		t.Errorf("Export() err %v; expected ErrInvalidGeometry", err)
	}
	if buf.Len() != 0 {
		t.Errorf("Export() wrote %d bytes on error", buf.Len())
	}
}

type shortWriter struct{}

func (shortWriter) Write(p []byte) (int, error) { return len(p) / 2, nil }

func TestExportWriter(t *testing.T) {
	cm := singleColMesh("wedge", wedgeCol())

	var buf bytes.Buffer
	if err := cm.Export(&buf, testExportOptions()); err != nil {
		t.Fatal(err)
	}
	if expected := defaultRawWedge().bytes(); !bytes.Equal(buf.Bytes(), expected) {
		t.Errorf("Export()=\n% x\nexpected\n% x", buf.Bytes(), expected)
	}

	if err := cm.Export(shortWriter{}, testExportOptions()); errors.Cause(err) != io.ErrShortWrite {
		t.Errorf("Export(short) err %v; expected io.ErrShortWrite", err)
	}
}

func TestRebuildBSPProgress(t *testing.T) {
	cm := gltfTestMesh()
	var calls [][2]int
	err := cm.RebuildBSP(testExportOptions().Builder, nil, func(done, total int) {
		calls = append(calls, [2]int{done, total})
	})
	if err != nil {
		t.Fatal(err)
	}
	expected := [][2]int{{1, 4}, {2, 4}, {3, 4}, {4, 4}}
	if !reflect.DeepEqual(calls, expected) {
		t.Errorf("progress calls %v; expected %v", calls, expected)
	}
	cm.Cols(func(iPart, iGeom, iCol int, col *Col) error {
		if col.Bsp == nil {
			t.Errorf("N%dG%dC%d has no BSP", iPart, iGeom, iCol)
		}
		return nil
	})

	if err := cm.RebuildBSP(testExportOptions().Builder, nil, nil); err != nil {
		t.Errorf("RebuildBSP(no progress) err %v", err)
	}
}
