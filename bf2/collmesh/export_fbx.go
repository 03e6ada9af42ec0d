package collmesh

import (
	"io"

	"github.com/mogaika/fbx"
	"github.com/mogaika/fbx/builders/bfbx73"

	"github.com/mogaika/bf2_collision_browser/utils/fbxbuilder"
)

// shared between models, created on first use
type fbxMaterials struct {
	f   *fbxbuilder.FBXBuilder
	ids map[uint16]int64
}

func (fm *fbxMaterials) get(material uint16) int64 {
	if id, ok := fm.ids[material]; ok {
		return id
	}
	id := fm.f.GenerateId()
	fm.ids[material] = id
	fm.f.AddObjects(bfbx73.Material(id, materialName(material, false)+"\x00\x01Material", "").AddNodes(
		bfbx73.Version(102),
		bfbx73.ShadingModel("lambert"),
		bfbx73.MultiLayer(0),
	))
	return id
}

func fbxColGeometry(id int64, col *Col, slots map[uint16]int32) *fbx.Node {
	vertices := make([]float64, 0, len(col.Verts)*3)
	for _, v := range col.Verts {
		vertices = append(vertices, float64(v[0]), float64(v[1]), float64(v[2]))
	}

	// last index of polygon is stored as -(i)-1
	indexes := make([]int32, 0, len(col.Faces)*3)
	materials := make([]int32, len(col.Faces))
	for i, f := range col.Faces {
		indexes = append(indexes, int32(f.Verts[0]), int32(f.Verts[1]), -int32(f.Verts[2])-1)
		materials[i] = slots[f.Material]
	}

	return bfbx73.Geometry(id, "\x00\x01Geometry", "Mesh").AddNodes(
		bfbx73.GeometryVersion(124),
		bfbx73.Vertices(vertices),
		bfbx73.PolygonVertexIndex(indexes),
		bfbx73.LayerElementMaterial(0).AddNodes(
			bfbx73.Version(101),
			bfbx73.Name(""),
			bfbx73.MappingInformationType("ByPolygon"),
			bfbx73.ReferenceInformationType("IndexToDirect"),
			bfbx73.Materials(materials),
		),
		bfbx73.Layer(0).AddNodes(
			bfbx73.Version(100),
			bfbx73.LayerElement().AddNodes(
				bfbx73.Type("LayerElementMaterial"),
				bfbx73.TypedIndex(0),
			),
		),
	)
}

// ExportFbxScene builds one Model with Geometry per col, named with ColPrefix.
// Face materials become Material objects connected to models in slot order.
func (cm *CollMesh) ExportFbxScene() (*fbxbuilder.FBXBuilder, error) {
	if err := cm.checkColPrefixes(); err != nil {
		return nil, err
	}

	f := fbxbuilder.NewFBXBuilder(cm.Name + ".fbx")
	fm := &fbxMaterials{f: f, ids: make(map[uint16]int64)}

	err := cm.Cols(func(iPart, iGeom, iCol int, col *Col) error {
		for i, face := range col.Faces {
			for _, v := range face.Verts {
				if int(v) >= len(col.Verts) {
					return invalidf("GeomPart %d Geom %d Col %d: face %d references vertex %d (%d vertices)",
						iPart, iGeom, iCol, i, v, len(col.Verts))
				}
			}
		}

		modelId := f.GenerateId()
		geometryId := f.GenerateId()

		slots := make(map[uint16]int32)
		order := make([]uint16, 0)
		for _, face := range col.Faces {
			if _, ok := slots[face.Material]; !ok {
				slots[face.Material] = int32(len(order))
				order = append(order, face.Material)
			}
		}

		model := bfbx73.Model(modelId, ColPrefix(iPart, iGeom, col.Type)+cm.Name+"\x00\x01Model", "Mesh").AddNodes(
			bfbx73.Version(232),
			bfbx73.Shading(true),
			bfbx73.Culling("CullingOff"),
		)
		f.AddObjects(model, fbxColGeometry(geometryId, col, slots))
		f.AddConnections(
			bfbx73.C("OO", geometryId, modelId),
			bfbx73.C("OO", modelId, 0),
		)
		for _, material := range order {
			f.AddConnections(bfbx73.C("OO", fm.get(material), modelId))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (cm *CollMesh) ExportFbx(w io.Writer) error {
	f, err := cm.ExportFbxScene()
	if err != nil {
		return err
	}
	return f.Write(w)
}
