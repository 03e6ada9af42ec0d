package bspbuilder

import (
	"sort"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/bf2_collision_browser/utils"
)

// NO_NODE marks leaf side in Node.Children and missing Tree.Root
const NO_NODE = -1

type Options struct {
	CoplanarWeight  float32 // emphasis on keeping coplanar polygons to minimum
	IntersectWeight float32 // emphasis on keeping intersecting polygons to minimum
	SplitWeight     float32 // emphasis on equal front/back split
	MinSplitMetric  float32 // worst acceptable metric, stop splitting above it

	// subsets at this depth become leaves, 0 means unlimited
	MaxDepth int
	// max count of cached classifications (one byte each), 0 disables cache
	CacheLimit int
}

func DefaultOptions() Options {
	return Options{
		CoplanarWeight:  0.5,
		IntersectWeight: 1.0,
		SplitWeight:     1.0,
		MinSplitMetric:  0.5,
		CacheLimit:      64 << 20,
	}
}

type Node struct {
	Plane    Plane
	Children [2]int   // front/back node index or NO_NODE for leaf side
	Faces    [2][]int // front/back face indexes, set only for leaf side
}

func (n *Node) IsLeaf(side int) bool {
	return n.Children[side] == NO_NODE
}

type Tree struct {
	Nodes []Node
	Root  int
}

// planeId packs (vertex index, axis) so sorting ids sorts by vertex then axis
type planeId uint32

func newPlaneId(vert uint16, axis int) planeId {
	return planeId(uint32(vert)*3 + uint32(axis))
}

func (id planeId) vertex() int { return int(id / 3) }
func (id planeId) axis() int   { return int(id % 3) }

type splitPlane struct {
	plane Plane
	cache []PolyType
}

type builder struct {
	opts        Options
	verts       []mgl32.Vec3
	polys       []Poly
	planes      map[planeId]*splitPlane
	cacheBudget int
	nodes       []Node
}

type buildTask struct {
	polys  []int
	parent int
	side   int
	depth  int
}

// Build partitions faces into binary tree of axis aligned planes.
// Tree.Root is NO_NODE when no acceptable split plane exists for whole set.
func Build(verts []mgl32.Vec3, faces [][3]uint16, opts Options) (*Tree, error) {
	b := &builder{
		opts:        opts,
		verts:       verts,
		polys:       make([]Poly, len(faces)),
		planes:      make(map[planeId]*splitPlane),
		cacheBudget: opts.CacheLimit,
	}

	all := make([]int, len(faces))
	for i, face := range faces {
		for _, v := range face {
			if int(v) >= len(verts) {
				return nil, errors.Errorf("Face %d references vertex %d, only %d vertices", i, v, len(verts))
			}
		}
		b.polys[i] = NewPoly(i, face, verts)
		all[i] = i
	}

	tree := &Tree{Root: NO_NODE}
	stack := []buildTask{{polys: all, parent: NO_NODE}}

	for len(stack) != 0 {
		task := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		var sp *splitPlane
		if b.opts.MaxDepth == 0 || task.depth < b.opts.MaxDepth {
			sp = b.findBestSplitPlane(task.polys)
		}

		if sp == nil {
			if task.parent != NO_NODE {
				b.nodes[task.parent].Faces[task.side] = b.faceIndexes(task.polys)
			}
			continue
		}

		front := make([]int, 0, len(task.polys))
		back := make([]int, 0, len(task.polys))
		for _, iPoly := range task.polys {
			switch b.classify(sp, iPoly) {
			case POLY_STRADDLE, POLY_COPLANAR:
				front = append(front, iPoly)
				back = append(back, iPoly)
			case POLY_FRONT:
				front = append(front, iPoly)
			case POLY_BACK:
				back = append(back, iPoly)
			}
		}

		index := len(b.nodes)
		b.nodes = append(b.nodes, Node{
			Plane:    sp.plane,
			Children: [2]int{NO_NODE, NO_NODE},
		})
		if task.parent == NO_NODE {
			tree.Root = index
		} else {
			b.nodes[task.parent].Children[task.side] = index
		}

		// front is popped first
		stack = append(stack,
			buildTask{polys: back, parent: index, side: 1, depth: task.depth + 1},
			buildTask{polys: front, parent: index, side: 0, depth: task.depth + 1})
	}

	tree.Nodes = b.nodes
	return tree, nil
}

func (b *builder) faceIndexes(polys []int) []int {
	result := make([]int, len(polys))
	for i, iPoly := range polys {
		result[i] = b.polys[iPoly].FaceIndex
	}
	return result
}

// candidatePlanes returns every (vertex, axis) plane proposed by subset.
// Corner k of triangle proposes plane on axis k through its vertex.
func (b *builder) candidatePlanes(polys []int) []planeId {
	ids := make([]planeId, 0, len(polys)*3)
	for _, iPoly := range polys {
		for axis, vert := range b.polys[iPoly].Indexes {
			ids = append(ids, newPlaneId(vert, axis))
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	unique := ids[:0]
	for i, id := range ids {
		if i == 0 || id != ids[i-1] {
			unique = append(unique, id)
		}
	}
	return unique
}

func (b *builder) splitPlane(id planeId) *splitPlane {
	if sp, ok := b.planes[id]; ok {
		return sp
	}
	sp := &splitPlane{
		plane: NewPlane(b.verts[id.vertex()][id.axis()], id.axis()),
	}
	if b.cacheBudget >= len(b.polys) && len(b.polys) != 0 {
		b.cacheBudget -= len(b.polys)
		sp.cache = make([]PolyType, len(b.polys))
		for i := range b.polys {
			sp.cache[i] = b.polys[i].Classify(&sp.plane)
		}
	}
	b.planes[id] = sp
	return sp
}

func (b *builder) classify(sp *splitPlane, iPoly int) PolyType {
	if sp.cache != nil {
		return sp.cache[iPoly]
	}
	return b.polys[iPoly].Classify(&sp.plane)
}

func (b *builder) metric(front, back, coplanar, intersect, total int) float32 {
	splitRatio := float32(front) / float32(front+back)
	intersectRatio := float32(intersect) / float32(total)
	coplanarRatio := float32(coplanar) / float32(total)

	m := float32(utils.Abs32(0.5-splitRatio)*b.opts.SplitWeight) +
		float32(intersectRatio*b.opts.IntersectWeight)
	return float32(m) + float32(coplanarRatio*b.opts.CoplanarWeight)
}

func (b *builder) findBestSplitPlane(polys []int) *splitPlane {
	bestMetric := math32.Inf(1)
	var best *splitPlane

	for _, id := range b.candidatePlanes(polys) {
		sp := b.splitPlane(id)

		var coplanar, intersect, front, back int
		for _, iPoly := range polys {
			switch b.classify(sp, iPoly) {
			case POLY_STRADDLE:
				intersect++
			case POLY_COPLANAR:
				coplanar++
			case POLY_FRONT:
				front++
			case POLY_BACK:
				back++
			}
		}

		// can't split into two sets
		if front == 0 || back == 0 {
			continue
		}

		metric := b.metric(front, back, coplanar, intersect, len(polys))
		if metric > b.opts.MinSplitMetric {
			continue
		}
		if metric < bestMetric {
			bestMetric = metric
			best = sp
		}
	}

	return best
}
