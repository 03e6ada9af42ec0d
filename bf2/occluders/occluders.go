package occluders

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/bf2_collision_browser/config"
)

const HEADER = "OCCLUDERPLANESv0.2"

var ErrInvalidFormat = errors.New("invalid .occ file format")

// Group of quads, plane holds 4 indexes into group Verts
type Group struct {
	Planes [][4]int32
	Verts  []mgl32.Vec3
}

type OccluderPlanes struct {
	Name   string
	Groups []*Group
}

func New(name string) (*OccluderPlanes, error) {
	if name == "" {
		return nil, errors.New("occ_file or name required")
	}
	return &OccluderPlanes{Name: name}, nil
}

func Open(path string) (*OccluderPlanes, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to open %q", path)
	}
	defer f.Close()

	base := filepath.Base(path)
	return Parse(f, strings.TrimSuffix(base, filepath.Ext(base)))
}

// Parse decodes text in configured code page
func Parse(r io.Reader, name string) (*OccluderPlanes, error) {
	occ, err := New(name)
	if err != nil {
		return nil, err
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to read %q", name)
	}
	text, err := config.Get().Charmap().NewDecoder().Bytes(raw)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidFormat, "%q: %v", name, err)
	}

	lines, err := tokenize(text)
	if err != nil {
		return nil, err
	}

	p := &parser{lines: lines}
	if l, ok := p.next(); !ok || len(l.tokens) != 1 || l.tokens[0].Type != TOKEN_HEADER {
		return nil, errors.Wrapf(ErrInvalidFormat, "missing or unsupported .occ file version")
	}

	for !p.eof() {
		if l, _ := p.next(); len(l.tokens) != 1 || l.tokens[0].Type != TOKEN_GROUP {
			return nil, p.errorf(l, "expected GROUP")
		}
		group := &Group{}

		planeCount, err := p.count()
		if err != nil {
			return nil, err
		}
		group.Planes = make([][4]int32, planeCount)
		for i := range group.Planes {
			l, ok := p.next()
			if !ok {
				return nil, p.errorf(l, "unexpected end of file, %d of %d planes read", i, planeCount)
			}
			if len(l.tokens) != 4 {
				return nil, p.errorf(l, "plane must have 4 indexes, got %d", len(l.tokens))
			}
			for j, tok := range l.tokens {
				v, err := strconv.ParseInt(string(tok.Lexeme), 10, 32)
				if err != nil {
					return nil, p.errorf(l, "invalid index %q", tok.Lexeme)
				}
				group.Planes[i][j] = int32(v)
			}
		}

		vertCount, err := p.count()
		if err != nil {
			return nil, err
		}
		group.Verts = make([]mgl32.Vec3, vertCount)
		for i := range group.Verts {
			l, ok := p.next()
			if !ok {
				return nil, p.errorf(l, "unexpected end of file, %d of %d vertices read", i, vertCount)
			}
			if len(l.tokens) != 3 {
				return nil, p.errorf(l, "vertex must have 3 coordinates, got %d", len(l.tokens))
			}
			for j, tok := range l.tokens {
				v, err := strconv.ParseFloat(string(tok.Lexeme), 32)
				if err != nil || tok.Type != TOKEN_NUMBER {
					return nil, p.errorf(l, "invalid coordinate %q", tok.Lexeme)
				}
				group.Verts[i][j] = float32(v)
			}
		}

		occ.Groups = append(occ.Groups, group)
	}
	return occ, nil
}

type parser struct {
	lines []line
	pos   int
}

func (p *parser) eof() bool {
	return p.pos >= len(p.lines)
}

func (p *parser) next() (line, bool) {
	if p.eof() {
		number := 1
		if len(p.lines) != 0 {
			number = p.lines[len(p.lines)-1].number + 1
		}
		return line{number: number}, false
	}
	l := p.lines[p.pos]
	p.pos++
	return l, true
}

func (p *parser) errorf(l line, format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidFormat, "line %d: "+format, append([]interface{}{l.number}, args...)...)
}

// count reads line with single non negative integer
func (p *parser) count() (int, error) {
	l, ok := p.next()
	if !ok {
		return 0, p.errorf(l, "unexpected end of file, count expected")
	}
	if len(l.tokens) != 1 || l.tokens[0].Type != TOKEN_NUMBER {
		return 0, p.errorf(l, "count expected")
	}
	n, err := strconv.ParseUint(string(l.tokens[0].Lexeme), 10, 31)
	if err != nil {
		return 0, p.errorf(l, "invalid count %q", l.tokens[0].Lexeme)
	}
	// every element takes at least one line
	if int(n) > len(p.lines)-p.pos {
		return 0, p.errorf(l, "count %d exceeds rest of file", n)
	}
	return int(n), nil
}

func formatFloat(v float32) string {
	s := strconv.FormatFloat(float64(v), 'g', -1, 32)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

func (occ *OccluderPlanes) Marshal() ([]byte, error) {
	var b bytes.Buffer
	b.WriteString(HEADER + "\n")
	for _, group := range occ.Groups {
		b.WriteString("GROUP\n")
		b.WriteString(strconv.Itoa(len(group.Planes)) + "\n")
		for _, plane := range group.Planes {
			b.WriteString(strings.Join([]string{
				strconv.Itoa(int(plane[0])), strconv.Itoa(int(plane[1])),
				strconv.Itoa(int(plane[2])), strconv.Itoa(int(plane[3])),
			}, " ") + "\n")
		}
		b.WriteString(strconv.Itoa(len(group.Verts)) + "\n")
		for _, v := range group.Verts {
			b.WriteString(formatFloat(v[0]) + " " + formatFloat(v[1]) + " " + formatFloat(v[2]) + "\n")
		}
	}

	data, err := config.Get().Charmap().NewEncoder().Bytes(b.Bytes())
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to encode %q", occ.Name)
	}
	return data, nil
}

func (occ *OccluderPlanes) Export(w io.Writer) error {
	data, err := occ.Marshal()
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return errors.Wrapf(err, "Failed to write %q", occ.Name)
	}
	return nil
}

func (occ *OccluderPlanes) ExportFile(path string) error {
	data, err := occ.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0666); err != nil {
		return errors.Wrapf(err, "Failed to write %q", path)
	}
	return nil
}

// Quads returns absolute positions of every plane, used for previews
func (g *Group) Quads() ([][4]mgl32.Vec3, error) {
	result := make([][4]mgl32.Vec3, len(g.Planes))
	for i, plane := range g.Planes {
		for j, index := range plane {
			if index < 0 || int(index) >= len(g.Verts) {
				return nil, errors.Wrapf(ErrInvalidFormat, "plane %d references vertex %d (%d vertices)", i, index, len(g.Verts))
			}
			result[i][j] = g.Verts[index]
		}
	}
	return result, nil
}
