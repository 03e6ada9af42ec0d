package collmesh

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/mogaika/bf2_collision_browser/bf2/bspbuilder"
	"github.com/mogaika/bf2_collision_browser/config"
	"github.com/mogaika/bf2_collision_browser/utils"
)

// version always written by Export
var EXPORT_VERSION = [2]uint32{0, 9}

type Geom struct {
	Cols []*Col
}

// GeomPart corresponds to geometry part index of .tweak file
type GeomPart struct {
	Geoms []*Geom
}

type CollMesh struct {
	Name      string
	Version   [2]uint32
	GeomParts []*GeomPart
}

func New(name string) (*CollMesh, error) {
	if name == "" {
		return nil, errors.New("file or name required")
	}
	return &CollMesh{
		Name:    name,
		Version: EXPORT_VERSION,
	}, nil
}

// NameFromPath returns file base name without extension
func NameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func versionSupported(version [2]uint32) bool {
	return version[1] >= 9 && version[1] <= 10
}

func Open(path string) (*CollMesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to open %q", path)
	}
	defer f.Close()
	return Load(f, NameFromPath(path))
}

// Load reads whole stream and decodes it
func Load(r io.Reader, name string) (*CollMesh, error) {
	if name == "" {
		return nil, errors.New("file or name required")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to read %q", name)
	}
	return FromBytes(data, name)
}

func FromBytes(data []byte, name string) (*CollMesh, error) {
	cm, err := New(name)
	if err != nil {
		return nil, err
	}

	bs := utils.NewBufStack("collisionmesh", data).SetName(name)

	cm.Version[0] = bs.ReadLU32()
	cm.Version[1] = bs.ReadLU32()
	if bs.Err() != nil {
		return nil, corruptf("Header: %v", bs.Err())
	}
	if !versionSupported(cm.Version) {
		return nil, errors.Wrapf(ErrUnsupportedVersion, "%q has version %v", name, cm.Version)
	}

	partCount := int(bs.ReadLU32())
	if !bs.CanRead(partCount, 4) {
		return nil, corruptf("GeomParts: %v", bs.Err())
	}
	cm.GeomParts = make([]*GeomPart, partCount)
	for iPart := range cm.GeomParts {
		part := &GeomPart{}
		geomCount := int(bs.ReadLU32())
		if !bs.CanRead(geomCount, 4) {
			return nil, corruptf("GeomPart %d: %v", iPart, bs.Err())
		}
		part.Geoms = make([]*Geom, geomCount)
		for iGeom := range part.Geoms {
			geom := &Geom{}
			colCount := int(bs.ReadLU32())
			if !bs.CanRead(colCount, 4) {
				return nil, corruptf("GeomPart %d Geom %d: %v", iPart, iGeom, bs.Err())
			}
			geom.Cols = make([]*Col, colCount)
			for iCol := range geom.Cols {
				col, err := loadCol(bs, cm.Version)
				if err != nil {
					return nil, errors.WithMessagef(err, "GeomPart %d Geom %d Col %d", iPart, iGeom, iCol)
				}
				geom.Cols[iCol] = col
			}
			part.Geoms[iGeom] = geom
		}
		cm.GeomParts[iPart] = part
	}

	if err := bs.VerifySize(); err != nil {
		return nil, corruptf("%q: reading finished and position != size: %v", name, err)
	}
	return cm, nil
}

type ExportOptions struct {
	UpdateBounds bool
	UpdateBSP    bool
	Builder      bspbuilder.Options
	Log          *Logger
}

func BuilderOptionsFromConfig(c *config.Config) bspbuilder.Options {
	return bspbuilder.Options{
		CoplanarWeight:  c.Builder.CoplanarWeight,
		IntersectWeight: c.Builder.IntersectWeight,
		SplitWeight:     c.Builder.SplitWeight,
		MinSplitMetric:  c.Builder.MinSplitMetric,
		MaxDepth:        c.Builder.MaxDepth,
		CacheLimit:      c.Builder.CacheLimit,
	}
}

func DefaultExportOptions() ExportOptions {
	c := config.Get()
	return ExportOptions{
		UpdateBounds: c.Export.UpdateBounds,
		UpdateBSP:    c.Export.UpdateBSP,
		Builder:      BuilderOptionsFromConfig(c),
	}
}

// Marshal encodes mesh as version 9 file. Nothing is produced on error.
func (cm *CollMesh) Marshal(opts ExportOptions) ([]byte, error) {
	bw, err := cm.marshal(opts)
	if err != nil {
		return nil, err
	}
	return bw.Bytes(), nil
}

func (cm *CollMesh) marshal(opts ExportOptions) (*utils.BufWriter, error) {
	bw := utils.NewBufWriter()
	bw.WriteLU32(EXPORT_VERSION[0])
	bw.WriteLU32(EXPORT_VERSION[1])

	bw.WriteLU32(uint32(len(cm.GeomParts)))
	for iPart, part := range cm.GeomParts {
		bw.WriteLU32(uint32(len(part.Geoms)))
		for iGeom, geom := range part.Geoms {
			bw.WriteLU32(uint32(len(geom.Cols)))
			for iCol, col := range geom.Cols {
				colOpts := opts
				colOpts.Log = opts.Log.Col(iPart, iGeom, col.Type)
				colOpts.Log.Printf("[%s] col %d, %d faces", cm.Name, iCol, len(col.Faces))
				prepared, err := col.Prepare(colOpts)
				if err != nil {
					return nil, errors.WithMessagef(err, "GeomPart %d Geom %d Col %d", iPart, iGeom, iCol)
				}
				if err := prepared.save(bw); err != nil {
					return nil, errors.WithMessagef(err, "GeomPart %d Geom %d Col %d", iPart, iGeom, iCol)
				}
			}
		}
	}
	return bw, nil
}

func (cm *CollMesh) Export(w io.Writer, opts ExportOptions) error {
	bw, err := cm.marshal(opts)
	if err != nil {
		return err
	}
	if _, err := bw.WriteTo(w); err != nil {
		return errors.WithMessagef(err, "Failed to write %q", cm.Name)
	}
	return nil
}

// ExportFile writes into temporary file first, so failed export keeps old file intact
func (cm *CollMesh) ExportFile(path string, opts ExportOptions) error {
	data, err := cm.Marshal(opts)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0666); err != nil {
		return errors.Wrapf(err, "Failed to write %q", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "Failed to replace %q", path)
	}
	return nil
}

// Cols calls cb for every col in file order
func (cm *CollMesh) Cols(cb func(iPart, iGeom, iCol int, col *Col) error) error {
	for iPart, part := range cm.GeomParts {
		for iGeom, geom := range part.Geoms {
			for iCol, col := range geom.Cols {
				if err := cb(iPart, iGeom, iCol, col); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (cm *CollMesh) Col(iPart, iGeom, iCol int) (*Col, error) {
	if iPart < 0 || iPart >= len(cm.GeomParts) {
		return nil, errors.Errorf("GeomPart %d not found (%d parts)", iPart, len(cm.GeomParts))
	}
	part := cm.GeomParts[iPart]
	if iGeom < 0 || iGeom >= len(part.Geoms) {
		return nil, errors.Errorf("Geom %d not found (%d geoms)", iGeom, len(part.Geoms))
	}
	geom := part.Geoms[iGeom]
	if iCol < 0 || iCol >= len(geom.Cols) {
		return nil, errors.Errorf("Col %d not found (%d cols)", iCol, len(geom.Cols))
	}
	return geom.Cols[iCol], nil
}

// RebuildBSP replaces every tree in place.
// progress, when set, is called after every col with count of rebuilt cols.
func (cm *CollMesh) RebuildBSP(opts bspbuilder.Options, log *Logger, progress func(done, total int)) error {
	total := 0
	cm.Cols(func(int, int, int, *Col) error {
		total++
		return nil
	})

	done := 0
	return cm.Cols(func(iPart, iGeom, iCol int, col *Col) error {
		colLog := log.Col(iPart, iGeom, col.Type)
		colLog.Printf("Rebuilding col %d: %d faces", iCol, len(col.Faces))
		if err := col.RebuildBSP(opts); err != nil {
			return errors.WithMessagef(err, "GeomPart %d Geom %d Col %d", iPart, iGeom, iCol)
		}
		colLog.Printf("%+v", col.Bsp.Stats())
		done++
		if progress != nil {
			progress(done, total)
		}
		return nil
	})
}
