package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/mogaika/bf2_collision_browser/bf2/collmesh"
	"github.com/mogaika/bf2_collision_browser/bf2/occluders"
	"github.com/mogaika/bf2_collision_browser/config"
	"github.com/mogaika/bf2_collision_browser/utils"
)

type params struct {
	mode       string
	in         string
	out        string
	name       string
	yaml       bool
	keepBSP    bool
	keepBounds bool
	verbose    bool
	seed       int64
	faces      int
	extent     int
}

func outPath(p *params, ext string) string {
	if p.out != "" {
		return p.out
	}
	return strings.TrimSuffix(p.in, filepath.Ext(p.in)) + ext
}

func exportOptions(p *params, logger *collmesh.Logger) collmesh.ExportOptions {
	opts := collmesh.DefaultExportOptions()
	if p.keepBSP {
		opts.UpdateBSP = false
	}
	if p.keepBounds {
		opts.UpdateBounds = false
	}
	opts.Log = logger
	return opts
}

func writeInfo(w io.Writer, cm *collmesh.CollMesh, asYaml bool) error {
	info := cm.Info()
	var data []byte
	var err error
	if asYaml {
		data, err = info.MarshalYaml()
	} else {
		data, err = json.MarshalIndent(info, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return errors.Wrapf(err, "Failed to marshal info")
	}
	_, err = w.Write(data)
	return err
}

func writeTree(w io.Writer, cm *collmesh.CollMesh) error {
	return cm.Cols(func(iPart, iGeom, iCol int, col *collmesh.Col) error {
		fmt.Fprintf(w, "%s: %d faces %d verts\n", collmesh.ColPrefix(iPart, iGeom, col.Type), len(col.Faces), len(col.Verts))
		if col.Bsp == nil {
			fmt.Fprintln(w, " no bsp")
			return nil
		}
		fmt.Fprintf(w, " %+v\n", col.Bsp.Stats())
		_, err := io.WriteString(w, col.Bsp.Format(col.Faces))
		return err
	})
}

func writeOcc(w io.Writer, occ *occluders.OccluderPlanes) error {
	fmt.Fprintf(w, "%s: %d groups\n", occ.Name, len(occ.Groups))
	for i, g := range occ.Groups {
		quads, err := g.Quads()
		if err != nil {
			return errors.WithMessagef(err, "Group %d", i)
		}
		fmt.Fprintf(w, " group %d: %d planes %d verts\n", i, len(quads), len(g.Verts))
	}
	return nil
}

// sampleMesh generates scattered unit triangles for each of four col types
func sampleMesh(p *params) (*collmesh.CollMesh, error) {
	name := p.name
	if name == "" {
		name = utils.RandomName(p.seed)
	}
	cm, err := collmesh.New(name)
	if err != nil {
		return nil, err
	}

	geom := &collmesh.Geom{}
	for colType := collmesh.COL_PROJECTILE; colType <= collmesh.COL_AI; colType++ {
		verts, faces := utils.RandomMesh(p.seed+int64(colType), p.faces, p.extent)
		col := &collmesh.Col{
			Type:          colType,
			Verts:         verts,
			Faces:         make([]collmesh.Face, len(faces)),
			VertMaterials: make([]uint16, len(verts)),
		}
		for i, f := range faces {
			col.Faces[i] = collmesh.Face{Verts: f, Material: uint16(i % 4)}
			for _, iv := range f {
				col.VertMaterials[iv] = col.Faces[i].Material
			}
		}
		geom.Cols = append(geom.Cols, col)
	}
	cm.GeomParts = []*collmesh.GeomPart{{Geoms: []*collmesh.Geom{geom}}}
	return cm, nil
}

func run(p *params, stdout io.Writer, logger *collmesh.Logger) error {
	if p.in == "" && p.mode != "sample" {
		return errors.Errorf("-in required for mode %q", p.mode)
	}

	switch p.mode {
	case "info", "dump", "tree", "rebuild", "togltf", "toobj", "tofbx":
		cm, err := collmesh.Open(p.in)
		if err != nil {
			return err
		}
		switch p.mode {
		case "info":
			return writeInfo(stdout, cm, p.yaml)
		case "dump":
			utils.FDump(stdout, cm)
			return nil
		case "tree":
			return writeTree(stdout, cm)
		case "rebuild":
			return cm.ExportFile(outPath(p, ".collisionmesh"), exportOptions(p, logger))
		case "togltf":
			return writeFile(outPath(p, ".glb"), cm.ExportGLB)
		case "toobj":
			return writeFile(outPath(p, ".obj"), cm.ExportObj)
		case "tofbx":
			return writeFile(outPath(p, ".fbx"), cm.ExportFbx)
		}
	case "fromgltf":
		f, err := os.Open(p.in)
		if err != nil {
			return errors.Wrapf(err, "Failed to open %q", p.in)
		}
		defer f.Close()
		name := p.name
		if name == "" {
			name = collmesh.NameFromPath(p.in)
		}
		opts := collmesh.DefaultImportOptions()
		opts.Log = logger
		cm, err := collmesh.ReadGLTF(f, name, opts)
		if err != nil {
			return err
		}
		return cm.ExportFile(outPath(p, ".collisionmesh"), exportOptions(p, logger))
	case "occ":
		occ, err := occluders.Open(p.in)
		if err != nil {
			return err
		}
		if p.out != "" {
			return occ.ExportFile(p.out)
		}
		return writeOcc(stdout, occ)
	case "sample":
		cm, err := sampleMesh(p)
		if err != nil {
			return err
		}
		out := p.out
		if out == "" {
			out = cm.Name + ".collisionmesh"
		}
		if err := cm.ExportFile(out, exportOptions(p, logger)); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%s\n", out)
		return nil
	}
	return errors.Errorf("Unknown mode %q", p.mode)
}

func writeFile(path string, export func(w io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "Failed to create %q", path)
	}
	if err := export(f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "Failed to close %q", path)
	}
	return nil
}

func main() {
	var p params
	var configPath string
	flag.StringVar(&p.mode, "mode", "info", "info|dump|tree|rebuild|togltf|fromgltf|toobj|tofbx|occ|sample")
	flag.StringVar(&p.in, "in", "", "Input .collisionmesh, .glb/.gltf or .occ file")
	flag.StringVar(&p.out, "out", "", "Output file, derived from -in when empty")
	flag.StringVar(&p.name, "name", "", "Mesh name override")
	flag.BoolVar(&p.yaml, "yaml", false, "Print info as yaml instead of json")
	flag.BoolVar(&p.keepBSP, "keepbsp", false, "Keep stored BSP trees instead of rebuilding")
	flag.BoolVar(&p.keepBounds, "keepbounds", false, "Keep stored bounds instead of recalculating")
	flag.BoolVar(&p.verbose, "v", false, "Verbose builder log")
	flag.Int64Var(&p.seed, "seed", 1, "Random seed for sample mode")
	flag.IntVar(&p.faces, "faces", 200, "Faces per col for sample mode")
	flag.IntVar(&p.extent, "extent", 16, "Half size of sample mode grid")
	flag.StringVar(&configPath, "config", "", "Path to yaml config")
	flag.Parse()

	if configPath != "" {
		c, err := config.LoadFile(configPath)
		if err != nil {
			log.Fatal(err)
		}
		config.Set(c)
	}

	var logger *collmesh.Logger
	if p.verbose {
		logger = collmesh.NewLogger(os.Stderr)
	}

	if err := run(&p, os.Stdout, logger); err != nil {
		log.Fatalf("[collmeshtool] %v", err)
	}
}
