package fbxbuilder

import (
	"io"
	"os"
	"path/filepath"

	"github.com/mogaika/fbx"
	"github.com/mogaika/fbx/builders/bfbx73"
	"github.com/pkg/errors"
)

const FBX_CREATOR = "FBX SDK/FBX Plugins version 2013.3 build=20121223"
const FBX_APPLICATION_VENDOR = "BF2 Modding Community"
const FBX_APPLICATION_NAME = "bf2_collision_browser"
const FBX_APPLICATION_VERSION = "1.0"

// fixed timestamps keep output reproducible
const FBX_DATE_TIME_GMT = "01/01/1970 00:00:00.000"
const FBX_CREATION_TIME = "1970-01-01 10:00:00:000"

var FBX_FILE_ID []byte = []byte{
	0x28, 0xb3, 0x2a, 0xeb, 0xb6, 0x24, 0xcc, 0xc2,
	0xbf, 0xc8, 0xb0, 0x2a, 0xa9, 0x2b, 0xfc, 0xf1}

type FBXBuilder struct {
	f      *fbx.FBX
	lastId int64

	objects     *fbx.Node
	connections *fbx.Node
}

func NewFBXBuilder(filename string) *FBXBuilder {
	f := &FBXBuilder{
		lastId:      1000000,
		f:           fbx.NewFBX(7400),
		objects:     bfbx73.Objects(),
		connections: bfbx73.Connections(),
	}
	f.createHeaders(filename)
	return f
}

func (f *FBXBuilder) sceneInfo(filename string) *fbx.Node {
	return bfbx73.SceneInfo("GlobalInfo\x00\x01SceneInfo", "UserData").AddNodes(
		bfbx73.Type("UserData"),
		bfbx73.Version(100),
		bfbx73.MetaData().AddNodes(
			bfbx73.Version(100),
			bfbx73.Title(""),
			bfbx73.Subject(""),
			bfbx73.Author(""),
			bfbx73.Keywords(""),
			bfbx73.Revision(""),
			bfbx73.Comment(""),
		),
		bfbx73.Properties70().AddNodes(
			bfbx73.P("DocumentUrl", "KString", "Url", "", filename),
			bfbx73.P("SrcDocumentUrl", "KString", "Url", "", filename),
			bfbx73.P("Original", "Compound", "", ""),
			bfbx73.P("Original|ApplicationVendor", "KString", "", "", FBX_APPLICATION_VENDOR),
			bfbx73.P("Original|ApplicationName", "KString", "", "", FBX_APPLICATION_NAME),
			bfbx73.P("Original|ApplicationVersion", "KString", "", "", FBX_APPLICATION_VERSION),
			bfbx73.P("Original|DateTime_GMT", "DateTime", "", "", FBX_DATE_TIME_GMT),
			bfbx73.P("Original|FileName", "KString", "", "", filepath.Base(filename)),
		),
	)
}

// collision meshes are Y-up, same as the game
func (f *FBXBuilder) globalSettings() *fbx.Node {
	return bfbx73.GlobalSettings().AddNodes(
		bfbx73.Version(1000),
		bfbx73.Properties70().AddNodes(
			bfbx73.P("UpAxis", "int", "Integer", "", int32(1)),
			bfbx73.P("UpAxisSign", "int", "Integer", "", int32(1)),
			bfbx73.P("FrontAxis", "int", "Integer", "", int32(2)),
			bfbx73.P("FrontAxisSign", "int", "Integer", "", int32(1)),
			bfbx73.P("CoordAxis", "int", "Integer", "", int32(0)),
			bfbx73.P("CoordAxisSign", "int", "Integer", "", int32(1)),
			bfbx73.P("UnitScaleFactor", "double", "Number", "", float64(100)),
			bfbx73.P("OriginalUnitScaleFactor", "double", "Number", "", float64(100)),
		),
	)
}

func (f *FBXBuilder) definitions() *fbx.Node {
	return bfbx73.Definitions().AddNodes(
		bfbx73.Version(100),
		bfbx73.Count(1),
		bfbx73.ObjectType("GlobalSettings").AddNodes(
			bfbx73.Count(1),
		),
		bfbx73.ObjectType("Model").AddNodes(
			bfbx73.Count(0),
			bfbx73.PropertyTemplate("FbxNode").AddNodes(
				bfbx73.Properties70().AddNodes(
					bfbx73.P("Show", "bool", "", "", int32(1)),
					bfbx73.P("Lcl Translation", "Lcl Translation", "", "A", float64(0), float64(0), float64(0)),
					bfbx73.P("Lcl Rotation", "Lcl Rotation", "", "A", float64(0), float64(0), float64(0)),
					bfbx73.P("Lcl Scaling", "Lcl Scaling", "", "A", float64(1), float64(1), float64(1)),
					bfbx73.P("Visibility", "Visibility", "", "A", float64(1)),
				),
			),
		),
		bfbx73.ObjectType("Material").AddNodes(
			bfbx73.Count(0),
			bfbx73.PropertyTemplate("FbxSurfaceLambert").AddNodes(
				bfbx73.Properties70().AddNodes(
					bfbx73.P("ShadingModel", "KString", "", "", "Lambert"),
					bfbx73.P("DiffuseColor", "Color", "", "A", float64(0.8), float64(0.8), float64(0.8)),
					bfbx73.P("DiffuseFactor", "Number", "", "A", float64(1)),
				),
			),
		),
		bfbx73.ObjectType("Geometry").AddNodes(
			bfbx73.Count(0),
			bfbx73.PropertyTemplate("FbxMesh").AddNodes(
				bfbx73.Properties70().AddNodes(
					bfbx73.P("Color", "ColorRGB", "Color", "", float64(1), float64(1), float64(1)),
					bfbx73.P("Primary Visibility", "bool", "", "", int32(1)),
				),
			),
		),
	)
}

func (f *FBXBuilder) createHeaders(filename string) {
	f.Root().AddNodes(
		bfbx73.FBXHeaderExtension().AddNodes(
			bfbx73.FBXHeaderVersion(1003),
			bfbx73.FBXVersion(7400),
			bfbx73.EncryptionType(0),
			bfbx73.CreationTimeStamp().AddNodes(
				bfbx73.Version(1000),
				bfbx73.Year(1970),
				bfbx73.Month(1),
				bfbx73.Day(1),
				bfbx73.Hour(10),
				bfbx73.Minute(0),
				bfbx73.Second(0),
				bfbx73.Millisecond(0),
			),
			bfbx73.Creator(FBX_CREATOR),
			f.sceneInfo(filename),
		),
		bfbx73.FileId(FBX_FILE_ID),
		bfbx73.CreationTime(FBX_CREATION_TIME),
		bfbx73.Creator(FBX_CREATOR),
		f.globalSettings(),
		bfbx73.Documents().AddNodes(
			bfbx73.Count(1),
			bfbx73.Document(f.GenerateId(), "Scene", "Scene").AddNodes(
				bfbx73.Properties70().AddNodes(
					bfbx73.P("SourceObject", "object", "", ""),
					bfbx73.P("ActiveAnimStackName", "KString", "", "", ""),
				),
				bfbx73.RootNode(0),
			),
		),
		bfbx73.References(),
		f.definitions(),
		f.objects,
		f.connections,
		bfbx73.Takes().AddNodes(
			bfbx73.Current(""),
		),
	)
}

// ObjectCounts returns number of objects per node name (Model, Geometry, ...)
func (f *FBXBuilder) ObjectCounts() map[string]int32 {
	counts := make(map[string]int32)
	for _, object := range f.objects.Nodes {
		counts[object.Name]++
	}
	return counts
}

func (f *FBXBuilder) countDefinitions() {
	definitions := f.Root().GetNode("Definitions")
	totalCount := int32(1) // GlobalSettings

	for name, count := range f.ObjectCounts() {
		totalCount += count

		var objectType *fbx.Node
		for _, ot := range definitions.GetNodes("ObjectType") {
			if ot.Properties[0].(string) == name {
				objectType = ot
			}
		}
		if objectType == nil {
			objectType = bfbx73.ObjectType(name)
			definitions.AddNode(objectType)
		}
		objectType.GetOrAddNode(bfbx73.Count(0)).Properties[0] = count
	}

	definitions.GetOrAddNode(bfbx73.Count(0)).Properties[0] = totalCount
}

func (f *FBXBuilder) Root() *fbx.Node {
	return &f.f.Root
}

func (f *FBXBuilder) Objects() *fbx.Node     { return f.objects }
func (f *FBXBuilder) Connections() *fbx.Node { return f.connections }

func (f *FBXBuilder) GenerateId() int64 {
	f.lastId++
	return f.lastId
}

// Write encodes into temporary file first, fbx.Write expects seekable file
func (f *FBXBuilder) Write(w io.Writer) error {
	f.countDefinitions()

	tempFile, err := os.CreateTemp("", "fbxexport.*.fbx")
	if err != nil {
		return errors.Wrapf(err, "Unable to create temporary file")
	}
	defer os.Remove(tempFile.Name())
	defer tempFile.Close()

	if err := fbx.Write(tempFile, f.f); err != nil {
		return errors.Wrapf(err, "Unable to encode fbx")
	}

	if _, err := tempFile.Seek(0, io.SeekStart); err != nil {
		return errors.Wrapf(err, "Unable to seek")
	}
	if _, err := io.Copy(w, tempFile); err != nil {
		return errors.Wrapf(err, "Unable to copy fbx")
	}
	return nil
}

func (f *FBXBuilder) AddObjects(nodes ...*fbx.Node)     { f.objects.AddNodes(nodes...) }
func (f *FBXBuilder) AddConnections(nodes ...*fbx.Node) { f.connections.AddNodes(nodes...) }
