package web

import (
	"log"
	"net/http"
	"os"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/mogaika/bf2_collision_browser/status"
	"github.com/mogaika/bf2_collision_browser/vfs"
)

var ServerDirectory vfs.Directory

// StatusHub receives progress of every long operation
var StatusHub = status.NewHub()

func NewRouter(d vfs.Directory, webPath string) *mux.Router {
	ServerDirectory = d

	r := mux.NewRouter()
	r.HandleFunc("/json/files", HandlerAjaxFiles)
	r.HandleFunc("/json/collmesh/{file}", HandlerAjaxCollMesh)
	r.HandleFunc("/json/collmesh/{file}/{part:[0-9]+}/{geom:[0-9]+}/{col:[0-9]+}/bsp", HandlerAjaxCollMeshBSP)
	r.HandleFunc("/json/collmesh/{file}/{part:[0-9]+}/{geom:[0-9]+}/{col:[0-9]+}/locate", HandlerAjaxCollMeshLocate)
	r.HandleFunc("/json/occ/{file}", HandlerAjaxOcc)
	r.HandleFunc("/dump/collmesh/{file}", HandlerDumpCollMesh)
	r.HandleFunc("/export/collmesh/{file}/{format}", HandlerExportCollMesh)
	r.HandleFunc("/upload/collmesh/{file}", HandlerUploadCollMesh).Methods("POST")
	r.HandleFunc("/ws/status", HandlerWsStatus)
	r.HandleFunc("/ws/rebuild/{file}", HandlerWsRebuild)

	if webPath != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(webPath)))
	}
	return r
}

func StartServer(addr string, d vfs.Directory, webPath string) error {
	r := NewRouter(d, webPath)

	h := handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(r)
	h = handlers.LoggingHandler(os.Stdout, h)

	log.Printf("[web] Starting server %v", addr)

	return http.ListenAndServe(addr, h)
}
