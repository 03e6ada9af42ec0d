package collmesh

import (
	"sort"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type ColInfo struct {
	GeomPart  int        `json:"geom_part" yaml:"geom_part"`
	Geom      int        `json:"geom" yaml:"geom"`
	Col       int        `json:"col" yaml:"col"`
	Type      string     `json:"type" yaml:"type"`
	Faces     int        `json:"faces" yaml:"faces"`
	Verts     int        `json:"verts" yaml:"verts"`
	Materials []uint16   `json:"materials" yaml:"materials,flow"`
	Min       mgl32.Vec3 `json:"min" yaml:"min,flow"`
	Max       mgl32.Vec3 `json:"max" yaml:"max,flow"`
	HasBSP    bool       `json:"has_bsp" yaml:"has_bsp"`
	BSP       *BSPStats  `json:"bsp,omitempty" yaml:"bsp,omitempty"`
	DebugMesh int        `json:"debug_mesh" yaml:"debug_mesh"`
}

type Info struct {
	Name      string    `json:"name" yaml:"name"`
	Version   [2]uint32 `json:"version" yaml:"version,flow"`
	GeomParts int       `json:"geom_parts" yaml:"geom_parts"`
	Cols      []ColInfo `json:"cols" yaml:"cols"`
}

func (c *Col) Materials() []uint16 {
	set := make(map[uint16]struct{})
	for _, f := range c.Faces {
		set[f.Material] = struct{}{}
	}
	result := make([]uint16, 0, len(set))
	for m := range set {
		result = append(result, m)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

func (cm *CollMesh) Info() *Info {
	info := &Info{
		Name:      cm.Name,
		Version:   cm.Version,
		GeomParts: len(cm.GeomParts),
		Cols:      make([]ColInfo, 0),
	}
	cm.Cols(func(iPart, iGeom, iCol int, col *Col) error {
		ci := ColInfo{
			GeomPart:  iPart,
			Geom:      iGeom,
			Col:       iCol,
			Type:      col.Type.String(),
			Faces:     len(col.Faces),
			Verts:     len(col.Verts),
			Materials: col.Materials(),
			Min:       col.Min,
			Max:       col.Max,
			HasBSP:    col.Bsp != nil,
			DebugMesh: len(col.DebugMesh),
		}
		if col.Bsp != nil {
			stats := col.Bsp.Stats()
			ci.BSP = &stats
		}
		info.Cols = append(info.Cols, ci)
		return nil
	})
	return info
}

func (info *Info) MarshalYaml() ([]byte, error) {
	data, err := yaml.Marshal(info)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to marshal yaml")
	}
	return data, nil
}
