package web

import (
	"bytes"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/mogaika/bf2_collision_browser/bf2/collmesh"
	"github.com/mogaika/bf2_collision_browser/bf2/occluders"
	"github.com/mogaika/bf2_collision_browser/status"
	"github.com/mogaika/bf2_collision_browser/utils"
	"github.com/mogaika/bf2_collision_browser/vfs"
	"github.com/mogaika/bf2_collision_browser/webutils"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

func errorCode(err error) int {
	switch errors.Cause(err) {
	case collmesh.ErrCorruptFile, collmesh.ErrUnsupportedVersion,
		collmesh.ErrInvalidGeometry, occluders.ErrInvalidFormat:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func loadCollMesh(file string) (*collmesh.CollMesh, error) {
	data, err := vfs.ReadFile(ServerDirectory, file)
	if err != nil {
		return nil, err
	}
	return collmesh.FromBytes(data, collmesh.NameFromPath(file))
}

func loadCol(r *http.Request) (*collmesh.Col, error) {
	vars := mux.Vars(r)
	cm, err := loadCollMesh(vars["file"])
	if err != nil {
		return nil, err
	}
	var idx [3]int
	for i, key := range []string{"part", "geom", "col"} {
		if idx[i], err = strconv.Atoi(vars[key]); err != nil {
			return nil, errors.Errorf("param %q is not integer", vars[key])
		}
	}
	return cm.Col(idx[0], idx[1], idx[2])
}

func HandlerAjaxFiles(w http.ResponseWriter, r *http.Request) {
	files, err := vfs.ListByExt(ServerDirectory, ".collisionmesh", ".occ")
	if err != nil {
		webutils.WriteError(w, err)
		return
	}
	webutils.WriteJson(w, files)
}

func HandlerAjaxCollMesh(w http.ResponseWriter, r *http.Request) {
	cm, err := loadCollMesh(mux.Vars(r)["file"])
	if err != nil {
		webutils.WriteError(w, err, errorCode(err))
		return
	}
	webutils.WriteJson(w, cm.Info())
}

type jsonBSPNode struct {
	Val      float32  `json:"val"`
	Axis     uint32   `json:"axis"`
	Parent   int      `json:"parent"`
	Children [2]int   `json:"children"`
	Faces    [2][]int `json:"faces"`
}

func HandlerAjaxCollMeshBSP(w http.ResponseWriter, r *http.Request) {
	col, err := loadCol(r)
	if err != nil {
		webutils.WriteError(w, err, errorCode(err))
		return
	}
	if col.Bsp == nil {
		webutils.WriteError(w, errors.New("Col has no BSP"), http.StatusNotFound)
		return
	}

	nodes := make([]jsonBSPNode, len(col.Bsp.Nodes))
	for i, node := range col.Bsp.Nodes {
		nodes[i] = jsonBSPNode{
			Val:      node.SplitPlaneVal,
			Axis:     node.SplitPlaneAxis,
			Parent:   node.Parent,
			Children: node.Children,
			Faces:    node.Faces,
		}
	}
	webutils.WriteJson(w, map[string]interface{}{
		"min":   col.Bsp.Min,
		"max":   col.Bsp.Max,
		"root":  col.Bsp.Root,
		"nodes": nodes,
		"stats": col.Bsp.Stats(),
		"tree":  col.Bsp.Format(col.Faces),
	})
}

func HandlerAjaxCollMeshLocate(w http.ResponseWriter, r *http.Request) {
	var p mgl32.Vec3
	for i, key := range []string{"x", "y", "z"} {
		v, err := strconv.ParseFloat(r.URL.Query().Get(key), 32)
		if err != nil {
			webutils.WriteError(w, errors.Wrapf(err, "Invalid %s coordinate", key), http.StatusBadRequest)
			return
		}
		p[i] = float32(v)
	}

	col, err := loadCol(r)
	if err != nil {
		webutils.WriteError(w, err, errorCode(err))
		return
	}
	if col.Bsp == nil {
		webutils.WriteError(w, errors.New("Col has no BSP"), http.StatusNotFound)
		return
	}

	indexes := col.Bsp.Locate(p)
	faces := make([]collmesh.Face, len(indexes))
	for i, iFace := range indexes {
		faces[i] = col.Faces[iFace]
	}
	webutils.WriteJson(w, map[string]interface{}{
		"point":   p,
		"indexes": indexes,
		"faces":   faces,
	})
}

func HandlerAjaxOcc(w http.ResponseWriter, r *http.Request) {
	file := mux.Vars(r)["file"]
	data, err := vfs.ReadFile(ServerDirectory, file)
	if err != nil {
		webutils.WriteError(w, err)
		return
	}
	occ, err := occluders.Parse(bytes.NewReader(data), collmesh.NameFromPath(file))
	if err != nil {
		webutils.WriteError(w, err, errorCode(err))
		return
	}
	webutils.WriteJson(w, occ)
}

func HandlerDumpCollMesh(w http.ResponseWriter, r *http.Request) {
	cm, err := loadCollMesh(mux.Vars(r)["file"])
	if err != nil {
		webutils.WriteError(w, err, errorCode(err))
		return
	}
	webutils.WriteText(w, utils.SDump(cm))
}

func exportOptions(log *collmesh.Logger) collmesh.ExportOptions {
	opts := collmesh.DefaultExportOptions()
	opts.Log = log
	return opts
}

func HandlerExportCollMesh(w http.ResponseWriter, r *http.Request) {
	file := mux.Vars(r)["file"]
	format := mux.Vars(r)["format"]
	cm, err := loadCollMesh(file)
	if err != nil {
		webutils.WriteError(w, err, errorCode(err))
		return
	}

	var buf bytes.Buffer
	switch format {
	case "glb":
		err = cm.ExportGLB(&buf)
	case "obj":
		err = cm.ExportObj(&buf)
	case "fbx":
		err = cm.ExportFbx(&buf)
	case "yaml":
		var data []byte
		if data, err = cm.Info().MarshalYaml(); err == nil {
			buf.Write(data)
		}
	case "collisionmesh":
		err = cm.Export(&buf, exportOptions(nil))
	default:
		webutils.WriteError(w, errors.Errorf("Unknown export format %q", format), http.StatusBadRequest)
		return
	}
	if err != nil {
		webutils.WriteError(w, err, errorCode(err))
		return
	}
	webutils.WriteFile(w, &buf, cm.Name+"."+format)
}

func HandlerUploadCollMesh(w http.ResponseWriter, r *http.Request) {
	file := mux.Vars(r)["file"]
	data, err := webutils.ReadFormFile(r, "model")
	if err != nil {
		webutils.WriteError(w, err, http.StatusBadRequest)
		return
	}

	cm, err := collmesh.ReadGLTF(bytes.NewReader(data), collmesh.NameFromPath(file), collmesh.DefaultImportOptions())
	if err != nil {
		webutils.WriteError(w, err, errorCode(err))
		return
	}
	out, err := cm.Marshal(exportOptions(nil))
	if err != nil {
		webutils.WriteError(w, err, errorCode(err))
		return
	}
	if err := vfs.WriteFile(ServerDirectory, file, out); err != nil {
		webutils.WriteError(w, err)
		return
	}
	StatusHub.Info(file, "Uploaded %d bytes", len(out))
	webutils.WriteJson(w, cm.Info())
}

func HandlerWsStatus(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[web] ws upgrade error: %v", err)
		return
	}
	StatusHub.Attach(conn)
}

// HandlerWsRebuild streams builder log of every col, saves file and
// finishes with DONE message carrying new summary
func HandlerWsRebuild(w http.ResponseWriter, r *http.Request) {
	file := mux.Vars(r)["file"]
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[web] ws upgrade error: %v", err)
		return
	}

	hub := status.NewHub()
	done := hub.Attach(conn)
	defer func() {
		hub.Close()
		<-done
	}()

	fail := func(err error) {
		hub.Error(file, "%v", err)
		StatusHub.Error(file, "%v", err)
	}

	logger := collmesh.NewLogger(io.MultiWriter(hub.Writer(file), StatusHub.Writer(file)))

	cm, err := loadCollMesh(file)
	if err != nil {
		fail(err)
		return
	}

	opts := exportOptions(logger)
	progress := func(done, total int) {
		hub.Progress(file, float32(done)/float32(total), "Rebuilt %d of %d cols", done, total)
	}
	if err := cm.RebuildBSP(opts.Builder, logger, progress); err != nil {
		fail(err)
		return
	}
	opts.UpdateBSP = false
	out, err := cm.Marshal(opts)
	if err != nil {
		fail(err)
		return
	}
	if err := vfs.WriteFile(ServerDirectory, file, out); err != nil {
		fail(err)
		return
	}

	info := cm.Info()
	hub.Done(file, info, "Rebuilt %d cols, %d bytes written", len(info.Cols), len(out))
	StatusHub.Done(file, info, "Rebuilt %q", file)
	log.Printf("[web] Rebuilt %q", file)
}
