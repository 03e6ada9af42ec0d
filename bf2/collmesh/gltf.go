package collmesh

import (
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/mogaika/bf2_collision_browser/utils"
	"github.com/mogaika/bf2_collision_browser/utils/gltfutils"
)

func ColPrefix(iPart, iGeom int, colType ColType) string {
	return fmt.Sprintf("N%dG%dC%d__", iPart, iGeom, colType)
}

// checkColPrefixes rejects geoms with several cols of same type,
// their names made by ColPrefix would collide
func (cm *CollMesh) checkColPrefixes() error {
	for iPart, part := range cm.GeomParts {
		for iGeom, geom := range part.Geoms {
			seen := make(map[ColType]int, len(geom.Cols))
			for iCol, col := range geom.Cols {
				if first, ok := seen[col.Type]; ok {
					return invalidf("GeomPart %d Geom %d: cols %d and %d have same type %v",
						iPart, iGeom, first, iCol, col.Type)
				}
				seen[col.Type] = iCol
			}
		}
	}
	return nil
}

var colPrefixRe = regexp.MustCompile(`^N(\d+)G(\d+)C(\d+)__`)

var materialNameRe = regexp.MustCompile(`^material_(\d+)(_doublesided)?$`)

func materialName(material uint16, doubleSided bool) string {
	if doubleSided {
		return fmt.Sprintf("material_%d_doublesided", material)
	}
	return fmt.Sprintf("material_%d", material)
}

type gltfMaterialKey struct {
	material    uint16
	doubleSided bool
}

// splitBackfaces separates faces having reversed twin with same material.
// First face of every pair is returned in doubleSided, twin is dropped.
func splitBackfaces(faces []Face) (single []Face, doubleSided []Face) {
	type key struct {
		verts    [3]uint16
		material uint16
	}
	pending := make(map[key]int)
	paired := make([]bool, len(faces))
	twin := make([]bool, len(faces))
	for i, f := range faces {
		inv := f.Inverted()
		if j, ok := pending[key{inv.Verts, f.Material}]; ok && !paired[j] {
			paired[j] = true
			twin[i] = true
			continue
		}
		pending[key{f.Verts, f.Material}] = i
	}
	for i, f := range faces {
		switch {
		case twin[i]:
		case paired[i]:
			doubleSided = append(doubleSided, f)
		default:
			single = append(single, f)
		}
	}
	return
}

// ExportGLTF makes node hierarchy name -> N{part}__name -> N{part}G{geom}__name
// -> N{part}G{geom}C{type}__name with one mesh per col.
// Face pairs with opposite winding are exported once with double sided material.
func (cm *CollMesh) ExportGLTF() (*gltf.Document, error) {
	if err := cm.checkColPrefixes(); err != nil {
		return nil, err
	}
	doc := gltfutils.NewDocument()

	materials := make(map[gltfMaterialKey]uint32)
	getMaterial := func(k gltfMaterialKey) uint32 {
		if index, ok := materials[k]; ok {
			return index
		}
		doc.Materials = append(doc.Materials, &gltf.Material{
			Name:        materialName(k.material, k.doubleSided),
			DoubleSided: k.doubleSided,
		})
		index := uint32(len(doc.Materials) - 1)
		materials[k] = index
		return index
	}

	root := &gltf.Node{Name: cm.Name}
	gltfutils.AddRootNode(doc, root)

	for iPart, part := range cm.GeomParts {
		partNode := &gltf.Node{Name: fmt.Sprintf("N%d__%s", iPart, cm.Name)}
		root.Children = append(root.Children, gltfutils.AddNode(doc, partNode))

		for iGeom, geom := range part.Geoms {
			geomNode := &gltf.Node{Name: fmt.Sprintf("N%dG%d__%s", iPart, iGeom, cm.Name)}
			partNode.Children = append(partNode.Children, gltfutils.AddNode(doc, geomNode))

			for iCol, col := range geom.Cols {
				for i, f := range col.Faces {
					for _, v := range f.Verts {
						if int(v) >= len(col.Verts) {
							return nil, invalidf("GeomPart %d Geom %d Col %d: face %d references vertex %d (%d vertices)",
								iPart, iGeom, iCol, i, v, len(col.Verts))
						}
					}
				}

				name := ColPrefix(iPart, iGeom, col.Type) + cm.Name
				mesh := &gltf.Mesh{Name: name}

				positions := make([][3]float32, len(col.Verts))
				for i, v := range col.Verts {
					positions[i] = v
				}
				positionAccessor := modeler.WritePosition(doc, positions)

				single, doubleSided := splitBackfaces(col.Faces)
				groups := make(map[gltfMaterialKey][]uint32)
				keys := make([]gltfMaterialKey, 0)
				for _, set := range []struct {
					faces       []Face
					doubleSided bool
				}{{single, false}, {doubleSided, true}} {
					for _, f := range set.faces {
						k := gltfMaterialKey{f.Material, set.doubleSided}
						if _, ok := groups[k]; !ok {
							keys = append(keys, k)
						}
						groups[k] = append(groups[k],
							uint32(f.Verts[0]), uint32(f.Verts[1]), uint32(f.Verts[2]))
					}
				}
				sort.Slice(keys, func(i, j int) bool {
					if keys[i].material != keys[j].material {
						return keys[i].material < keys[j].material
					}
					return !keys[i].doubleSided && keys[j].doubleSided
				})

				for _, k := range keys {
					indicesAccessor := modeler.WriteIndices(doc, groups[k])
					mesh.Primitives = append(mesh.Primitives, &gltf.Primitive{
						Indices:    gltf.Index(indicesAccessor),
						Attributes: map[string]uint32{"POSITION": positionAccessor},
						Material:   gltf.Index(getMaterial(k)),
					})
				}

				doc.Meshes = append(doc.Meshes, mesh)
				colNode := &gltf.Node{
					Name: name,
					Mesh: gltf.Index(uint32(len(doc.Meshes) - 1)),
				}
				geomNode.Children = append(geomNode.Children, gltfutils.AddNode(doc, colNode))
			}
		}
	}

	return doc, nil
}

func (cm *CollMesh) ExportGLB(w io.Writer) error {
	doc, err := cm.ExportGLTF()
	if err != nil {
		return err
	}
	return gltfutils.ExportBinary(w, doc)
}

type ImportOptions struct {
	// add reversed face for every face of double sided material
	Backfaces bool
	Log       *Logger
}

func DefaultImportOptions() ImportOptions {
	return ImportOptions{Backfaces: true}
}

func ReadGLTF(r io.Reader, name string, opts ImportOptions) (*CollMesh, error) {
	doc, err := gltfutils.Decode(r)
	if err != nil {
		return nil, err
	}
	return FromGLTF(doc, name, opts)
}

type colAddress struct {
	part, geom int
	colType    ColType
}

func parseColPrefix(name string) (colAddress, bool, error) {
	m := colPrefixRe.FindStringSubmatch(name)
	if m == nil {
		return colAddress{}, false, nil
	}
	var nums [3]int
	for i := range nums {
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return colAddress{}, false, errors.Wrapf(ErrInvalidGeometry, "node %q: %v", name, err)
		}
		nums[i] = n
	}
	if nums[2] < int(COL_PROJECTILE) || nums[2] > int(COL_AI) {
		return colAddress{}, false, errors.Wrapf(ErrInvalidGeometry, "node %q: invalid col index %d, must be in 0-3", name, nums[2])
	}
	return colAddress{nums[0], nums[1], ColType(nums[2])}, true, nil
}

func gltfFaceMaterial(doc *gltf.Document, primitive *gltf.Primitive) (uint16, bool) {
	if primitive.Material == nil || int(*primitive.Material) >= len(doc.Materials) {
		return 0, false
	}
	mat := doc.Materials[*primitive.Material]
	if m := materialNameRe.FindStringSubmatch(mat.Name); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n <= 0xffff {
			return uint16(n), mat.DoubleSided
		}
	}
	return uint16(*primitive.Material), mat.DoubleSided
}

func colFromGLTFMesh(doc *gltf.Document, mesh *gltf.Mesh, colType ColType, opts ImportOptions) (*Col, error) {
	col := &Col{Type: colType}

	// primitives commonly share one position accessor
	offsets := make(map[uint32]int)
	for iPrimitive, primitive := range mesh.Primitives {
		if primitive.Mode != gltf.PrimitiveTriangles {
			return nil, invalidf("mesh %q primitive %d is not triangle list", mesh.Name, iPrimitive)
		}
		if primitive.Indices == nil {
			return nil, invalidf("mesh %q primitive %d has no indices", mesh.Name, iPrimitive)
		}
		iPosition, ok := primitive.Attributes["POSITION"]
		if !ok || int(iPosition) >= len(doc.Accessors) || int(*primitive.Indices) >= len(doc.Accessors) {
			return nil, invalidf("mesh %q primitive %d has no positions", mesh.Name, iPrimitive)
		}

		offset, ok := offsets[iPosition]
		if !ok {
			positions, err := modeler.ReadPosition(doc, doc.Accessors[iPosition], make([][3]float32, 0))
			if err != nil {
				return nil, errors.Wrapf(err, "Failed to read mesh %q vertices", mesh.Name)
			}
			offset = len(col.Verts)
			offsets[iPosition] = offset
			for _, p := range positions {
				col.Verts = append(col.Verts, mgl32.Vec3(p))
			}
			if len(col.Verts) > MAX_VERTS {
				return nil, invalidf("mesh %q has more than %d vertices", mesh.Name, MAX_VERTS)
			}
		}

		indices, err := modeler.ReadIndices(doc, doc.Accessors[*primitive.Indices], make([]uint32, 0))
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to read mesh %q indices", mesh.Name)
		}
		if len(indices)%3 != 0 {
			return nil, invalidf("mesh %q primitive %d has %d indices, not triangulated", mesh.Name, iPrimitive, len(indices))
		}

		material, doubleSided := gltfFaceMaterial(doc, primitive)
		for i := 0; i < len(indices); i += 3 {
			var f Face
			f.Material = material
			for j := range f.Verts {
				v := offset + int(indices[i+j])
				if v >= len(col.Verts) {
					return nil, invalidf("mesh %q primitive %d references vertex %d", mesh.Name, iPrimitive, v)
				}
				f.Verts[j] = uint16(v)
			}
			col.Faces = append(col.Faces, f)
			if doubleSided && opts.Backfaces {
				col.Faces = append(col.Faces, f.Inverted())
			}
		}
	}

	// vertex takes material of last face using it
	col.VertMaterials = make([]uint16, len(col.Verts))
	for _, f := range col.Faces {
		for _, v := range f.Verts {
			col.VertMaterials[v] = f.Material
		}
	}
	return col, nil
}

// FromGLTF collects every scene node named N{part}G{geom}C{type}__ into mesh.
// Part and geom indexes are compacted keeping their order, node transforms are ignored.
func FromGLTF(doc *gltf.Document, name string, opts ImportOptions) (*CollMesh, error) {
	cm, err := New(name)
	if err != nil {
		return nil, err
	}

	cols := make(map[colAddress]*Col)
	err = gltfutils.WalkScene(doc, func(iNode uint32, node *gltf.Node) error {
		if node.Mesh == nil {
			return nil
		}
		addr, ok, err := parseColPrefix(node.Name)
		if err != nil {
			return err
		}
		if !ok {
			opts.Log.Printf("Skipping node %q without col prefix", node.Name)
			return nil
		}
		if _, exists := cols[addr]; exists {
			return invalidf("node %q has duplicated N%dG%dC%d", node.Name, addr.part, addr.geom, addr.colType)
		}
		if int(*node.Mesh) >= len(doc.Meshes) {
			return invalidf("node %q mesh %d out of range", node.Name, *node.Mesh)
		}
		col, err := colFromGLTFMesh(doc, doc.Meshes[*node.Mesh], addr.colType, opts)
		if err != nil {
			return err
		}
		opts.Log.Col(addr.part, addr.geom, addr.colType).Printf("Imported %q: %d faces, %d verts", node.Name, len(col.Faces), len(col.Verts))
		cols[addr] = col
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, invalidf("no N{part}G{geom}C{col}__ nodes found")
	}

	addrs := make([]colAddress, 0, len(cols))
	for addr := range cols {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool {
		a, b := addrs[i], addrs[j]
		if a.part != b.part {
			return a.part < b.part
		}
		if a.geom != b.geom {
			return a.geom < b.geom
		}
		return a.colType < b.colType
	})

	var part *GeomPart
	var geom *Geom
	lastPart, lastGeom := -1, -1
	for _, addr := range addrs {
		if addr.part != lastPart {
			part = &GeomPart{}
			cm.GeomParts = append(cm.GeomParts, part)
			lastPart, lastGeom = addr.part, -1
		}
		if addr.geom != lastGeom {
			geom = &Geom{}
			part.Geoms = append(part.Geoms, geom)
			lastGeom = addr.geom
		}
		geom.Cols = append(geom.Cols, cols[addr])
	}

	for _, part := range cm.GeomParts {
		for _, geom := range part.Geoms {
			for _, col := range geom.Cols {
				col.Min, col.Max = utils.CalcBounds(col.Verts)
			}
		}
	}
	return cm, nil
}
