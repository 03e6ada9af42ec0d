package collmesh

import (
	"bufio"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

func (cm *CollMesh) ExportObj(_w io.Writer) error {
	if err := cm.checkColPrefixes(); err != nil {
		return err
	}
	bw := bufio.NewWriter(_w)
	w := func(format string, args ...interface{}) {
		fmt.Fprintf(bw, format+"\n", args...)
	}

	w("# %s", cm.Name)

	iV := 1
	cm.Cols(func(iPart, iGeom, iCol int, col *Col) error {
		w("o N%dG%dC%d", iPart, iGeom, col.Type)
		for _, v := range col.Verts {
			w("v %f %f %f", v[0], v[1], v[2])
		}

		lastMaterial := -1
		for _, f := range col.Faces {
			if int(f.Material) != lastMaterial {
				lastMaterial = int(f.Material)
				w("usemtl material_%d", f.Material)
			}
			w("f %d %d %d", iV+int(f.Verts[0]), iV+int(f.Verts[1]), iV+int(f.Verts[2]))
		}
		iV += len(col.Verts)
		return nil
	})

	if err := bw.Flush(); err != nil {
		return errors.Wrapf(err, "Failed to write obj of %q", cm.Name)
	}
	return nil
}
