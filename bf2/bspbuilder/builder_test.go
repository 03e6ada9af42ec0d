package bspbuilder

import (
	"reflect"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/bf2_collision_browser/utils"
)

func TestBuildSingleFace(t *testing.T) {
	verts := []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}
	tree, err := Build(verts, [][3]uint16{{0, 1, 2}}, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if tree.Root != NO_NODE || len(tree.Nodes) != 0 {
		t.Errorf("Build(single face)=%+v; expected no root", tree)
	}
}

func TestBuildEmpty(t *testing.T) {
	tree, err := Build(nil, nil, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if tree.Root != NO_NODE {
		t.Errorf("Build(empty).Root=%d; expected NO_NODE", tree.Root)
	}
}

func TestBuildTwoSeparatedFaces(t *testing.T) {
	verts := []mgl32.Vec3{
		{0, 0, 0}, {1, 0, 0}, {0, 1, 0},
		{2, 0, 0}, {3, 0, 0}, {2, 1, 0},
	}
	faces := [][3]uint16{{0, 1, 2}, {3, 4, 5}}

	tree, err := Build(verts, faces, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if tree.Root != 0 || len(tree.Nodes) != 1 {
		t.Fatalf("Build()=%+v; expected single node", tree)
	}

	node := tree.Nodes[0]
	if node.Plane.Val != 2 || node.Plane.Axis != AXIS_X {
		t.Errorf("split plane %v|%d; expected 2|0", node.Plane.Val, node.Plane.Axis)
	}
	if !node.IsLeaf(0) || !node.IsLeaf(1) {
		t.Errorf("children %v; expected both leaves", node.Children)
	}
	if !reflect.DeepEqual(node.Faces, [2][]int{{0}, {1}}) {
		t.Errorf("faces %v; expected [[0] [1]]", node.Faces)
	}
}

func TestBuildInvalidVertex(t *testing.T) {
	verts := []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}
	if _, err := Build(verts, [][3]uint16{{0, 1, 3}}, DefaultOptions()); err == nil {
		t.Errorf("Build(face with vertex 3 of 3)=nil error")
	}
}

func randomMesh(seed int64) ([]mgl32.Vec3, [][3]uint16) {
	return utils.RandomMesh(seed, 120, 8)
}

// every face lands in some leaf and never on the wrong side of its ancestors
func checkPartition(t *testing.T, tree *Tree, verts []mgl32.Vec3, faces [][3]uint16) {
	t.Helper()

	seen := make([]bool, len(faces))
	type entry struct {
		node  int
		path  []*Plane
		sides []int
	}
	stack := []entry{{node: tree.Root}}
	visited := make(map[int]bool)
	for len(stack) != 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[e.node] {
			t.Fatalf("node %d reachable twice", e.node)
		}
		visited[e.node] = true

		node := &tree.Nodes[e.node]
		for side := 0; side < 2; side++ {
			path := append(append([]*Plane{}, e.path...), &node.Plane)
			sides := append(append([]int{}, e.sides...), side)
			if !node.IsLeaf(side) {
				stack = append(stack, entry{node.Children[side], path, sides})
				continue
			}
			for _, iFace := range node.Faces[side] {
				seen[iFace] = true
				p := NewPoly(iFace, faces[iFace], verts)
				for i, plane := range path {
					pt := p.Classify(plane)
					if (sides[i] == 0 && pt == POLY_BACK) || (sides[i] == 1 && pt == POLY_FRONT) {
						t.Errorf("face %d is %v of plane %v|%d but placed on side %d",
							iFace, pt, plane.Val, plane.Axis, sides[i])
					}
				}
			}
		}
	}
	if len(visited) != len(tree.Nodes) {
		t.Errorf("reached %d of %d nodes", len(visited), len(tree.Nodes))
	}
	for iFace, ok := range seen {
		if !ok {
			t.Errorf("face %d not found in any leaf", iFace)
		}
	}
}

// requireTree fails unless builder produced real split hierarchy
func requireTree(t *testing.T, tree *Tree) {
	t.Helper()
	if tree.Root == NO_NODE || len(tree.Nodes) < 2 {
		t.Fatalf("expected multi node tree, got root %d with %d nodes", tree.Root, len(tree.Nodes))
	}
}

func TestBuildPartition(t *testing.T) {
	for _, seed := range []int64{1, 2, 3, 1337} {
		verts, faces := randomMesh(seed)
		tree, err := Build(verts, faces, DefaultOptions())
		if err != nil {
			t.Fatal(err)
		}
		requireTree(t, tree)
		checkPartition(t, tree, verts, faces)
	}
}

func TestBuildDeterministic(t *testing.T) {
	verts, faces := randomMesh(7)
	tree1, err := Build(verts, faces, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	tree2, err := Build(verts, faces, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	requireTree(t, tree1)
	if !reflect.DeepEqual(tree1, tree2) {
		t.Errorf("two builds of same mesh differ")
	}
}

func TestBuildCacheDoesNotChangeResult(t *testing.T) {
	verts, faces := randomMesh(11)

	cached := DefaultOptions()
	uncached := DefaultOptions()
	uncached.CacheLimit = 0
	// enough budget only for part of planes
	partial := DefaultOptions()
	partial.CacheLimit = len(faces) * 5

	expected, err := Build(verts, faces, cached)
	if err != nil {
		t.Fatal(err)
	}
	requireTree(t, expected)
	for _, opts := range []Options{uncached, partial} {
		tree, err := Build(verts, faces, opts)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(tree, expected) {
			t.Errorf("tree with CacheLimit %d differs from cached one", opts.CacheLimit)
		}
	}
}

func TestBuildMaxDepth(t *testing.T) {
	verts, faces := randomMesh(5)

	opts := DefaultOptions()
	opts.MaxDepth = 1
	tree, err := Build(verts, faces, opts)
	if err != nil {
		t.Fatal(err)
	}
	if tree.Root == NO_NODE || len(tree.Nodes) != 1 {
		t.Fatalf("MaxDepth 1 produced root %d with %d nodes; expected single root", tree.Root, len(tree.Nodes))
	}
	checkPartition(t, tree, verts, faces)

	opts.MaxDepth = 3
	tree, err = Build(verts, faces, opts)
	if err != nil {
		t.Fatal(err)
	}
	requireTree(t, tree)
	if len(tree.Nodes) > 7 {
		t.Errorf("MaxDepth 3 produced %d nodes; expected at most 7", len(tree.Nodes))
	}
	checkPartition(t, tree, verts, faces)
}

func TestCandidatePlanesSortedUnique(t *testing.T) {
	verts := []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	b := &builder{
		verts: verts,
		polys: []Poly{
			NewPoly(0, [3]uint16{0, 1, 2}, verts),
			NewPoly(1, [3]uint16{0, 1, 3}, verts),
			NewPoly(2, [3]uint16{3, 1, 0}, verts),
		},
	}
	ids := b.candidatePlanes([]int{0, 1, 2})
	expected := []planeId{
		newPlaneId(0, 0), newPlaneId(0, 2),
		newPlaneId(1, 1),
		newPlaneId(2, 2),
		newPlaneId(3, 0), newPlaneId(3, 2),
	}
	if !reflect.DeepEqual(ids, expected) {
		t.Errorf("candidatePlanes()=%v; expected %v", ids, expected)
	}
}
