package collmesh

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/bf2_collision_browser/bf2/bspbuilder"
	"github.com/mogaika/bf2_collision_browser/utils"
)

// BSP_NONE marks leaf side in BSPNode.Children and root's parent
const BSP_NONE = -1

const (
	BSP_NODE_SIZE = 16

	bspAxisMask     = 0x3
	bspLeafFlag     = 0x4 // shifted left by side
	bspLeafCountOff = 16  // plus side * 8
)

// https://en.wikipedia.org/wiki/Binary_space_partitioning
type BSPNode struct {
	// axis 0 == parallel to ZY plane and intersecting (val, _, _) point
	// axis 1 == parallel to XZ plane and intersecting (_, val, _) point
	// axis 2 == parallel to XY plane and intersecting (_, _, val) point
	SplitPlaneVal  float32
	SplitPlaneAxis uint32

	Parent   int
	Children [2]int // front/back, BSP_NONE when side is leaf
	// front/back face indexes, only for leaf side.
	// Face that straddles split plane goes to both sides (same as DICE tools).
	Faces [2][]int
}

type BSP struct {
	Min   mgl32.Vec3
	Max   mgl32.Vec3
	Nodes []BSPNode
	Root  int
}

func corruptf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrCorruptFile, format, args...)
}

func invalidf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidGeometry, format, args...)
}

func loadVec3(bs *utils.BufStack) mgl32.Vec3 {
	return mgl32.Vec3{bs.ReadLF(), bs.ReadLF(), bs.ReadLF()}
}

func saveVec3(bw *utils.BufWriter, v mgl32.Vec3) {
	bw.WriteLF(v[0])
	bw.WriteLF(v[1])
	bw.WriteLF(v[2])
}

type bspLeafRef struct {
	start uint32
	count uint32
}

func loadBSP(bs *utils.BufStack, faceCount int) (*BSP, error) {
	b := &BSP{Root: BSP_NONE}
	b.Min = loadVec3(bs)
	b.Max = loadVec3(bs)

	nodeCount := int(bs.ReadLU32())
	if !bs.CanRead(nodeCount, BSP_NODE_SIZE) {
		return nil, corruptf("BSP: %v", bs.Err())
	}

	b.Nodes = make([]BSPNode, nodeCount)
	leafRefs := make([][2]bspLeafRef, nodeCount)
	for i := range b.Nodes {
		node := &b.Nodes[i]
		node.SplitPlaneVal = bs.ReadLF()
		flags := bs.ReadLU32()
		node.SplitPlaneAxis = flags & bspAxisMask
		node.Parent = BSP_NONE

		if node.SplitPlaneAxis > 2 {
			return nil, corruptf("BSP: node %d has invalid axis %d", i, node.SplitPlaneAxis)
		}

		fields := bs.ReadLU32Array(2)
		for side, field := range fields {
			if flags&(bspLeafFlag<<side) != 0 {
				node.Children[side] = BSP_NONE
				leafRefs[i][side] = bspLeafRef{
					start: field,
					count: (flags >> (bspLeafCountOff + side*8)) & 0xff,
				}
			} else {
				if field >= uint32(nodeCount) {
					return nil, corruptf("BSP: node %d child %d out of range (%d nodes)", i, field, nodeCount)
				}
				node.Children[side] = int(field)
			}
		}
	}

	faceRefs := bs.ReadLU16Array(int(bs.ReadLU32()))
	if bs.Err() != nil {
		return nil, corruptf("BSP: %v", bs.Err())
	}

	for i := range b.Nodes {
		node := &b.Nodes[i]
		for side := 0; side < 2; side++ {
			if child := node.Children[side]; child != BSP_NONE {
				if b.Nodes[child].Parent != BSP_NONE {
					return nil, corruptf("BSP: node %d has multiple parents", child)
				}
				b.Nodes[child].Parent = i
				continue
			}

			ref := leafRefs[i][side]
			if uint64(ref.start)+uint64(ref.count) > uint64(len(faceRefs)) {
				return nil, corruptf("BSP: node %d face refs [%d:+%d] out of range (%d refs)",
					i, ref.start, ref.count, len(faceRefs))
			}
			faces := make([]int, 0, ref.count)
			for _, faceRef := range faceRefs[ref.start : ref.start+ref.count] {
				if int(faceRef) >= faceCount {
					return nil, corruptf("BSP: face ref %d out of range (%d faces)", faceRef, faceCount)
				}
				faces = append(faces, int(faceRef))
			}
			node.Faces[side] = faces
		}
	}

	for i := range b.Nodes {
		if b.Nodes[i].Parent == BSP_NONE {
			if b.Root != BSP_NONE {
				return nil, corruptf("BSP: found multiple root nodes")
			}
			b.Root = i
		}
	}
	if b.Root == BSP_NONE {
		return nil, corruptf("BSP: root node not found")
	}
	return b, nil
}

// preorder lists reachable nodes as node, front subtree, back subtree
func (b *BSP) preorder() ([]int, error) {
	if b.Root < 0 || b.Root >= len(b.Nodes) {
		return nil, invalidf("BSP: root %d out of range (%d nodes)", b.Root, len(b.Nodes))
	}

	visited := make([]bool, len(b.Nodes))
	order := make([]int, 0, len(b.Nodes))
	stack := []int{b.Root}
	for len(stack) != 0 {
		iNode := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if visited[iNode] {
			return nil, invalidf("BSP: node %d reachable twice", iNode)
		}
		visited[iNode] = true
		order = append(order, iNode)

		node := &b.Nodes[iNode]
		for side := 1; side >= 0; side-- {
			if child := node.Children[side]; child != BSP_NONE {
				if child < 0 || child >= len(b.Nodes) {
					return nil, invalidf("BSP: node %d child %d out of range", iNode, child)
				}
				stack = append(stack, child)
			}
		}
	}
	return order, nil
}

func (b *BSP) save(bw *utils.BufWriter, faceCount int) error {
	order, err := b.preorder()
	if err != nil {
		return err
	}

	position := make([]int, len(b.Nodes))
	for i, iNode := range order {
		position[iNode] = i
	}

	saveVec3(bw, b.Min)
	saveVec3(bw, b.Max)
	bw.WriteLU32(uint32(len(order)))

	faceRefs := make([]uint16, 0)
	for _, iNode := range order {
		node := &b.Nodes[iNode]
		if node.SplitPlaneAxis > 2 {
			return invalidf("BSP: node %d has invalid axis %d", iNode, node.SplitPlaneAxis)
		}

		flags := node.SplitPlaneAxis & bspAxisMask
		var fields [2]uint32
		for side := 0; side < 2; side++ {
			if child := node.Children[side]; child != BSP_NONE {
				fields[side] = uint32(position[child])
				continue
			}

			faces := node.Faces[side]
			if len(faces) > 0xff {
				return invalidf("BSP: node %d leaf holds %d faces, max 255", iNode, len(faces))
			}
			fields[side] = uint32(len(faceRefs))
			for _, iFace := range faces {
				if iFace < 0 || iFace >= faceCount || iFace > 0xffff {
					return invalidf("BSP: node %d references face %d (%d faces)", iNode, iFace, faceCount)
				}
				faceRefs = append(faceRefs, uint16(iFace))
			}
			flags |= bspLeafFlag << side
			flags |= uint32(len(faces)) << (bspLeafCountOff + side*8)
		}

		bw.WriteLF(node.SplitPlaneVal)
		bw.WriteLU32(flags)
		bw.WriteLU32(fields[0])
		bw.WriteLU32(fields[1])
	}

	bw.WriteLU32(uint32(len(faceRefs)))
	bw.WriteLU16Array(faceRefs)
	return nil
}

func (b *BSP) Clone() *BSP {
	c := &BSP{
		Min:   b.Min,
		Max:   b.Max,
		Root:  b.Root,
		Nodes: make([]BSPNode, len(b.Nodes)),
	}
	for i, node := range b.Nodes {
		for side := 0; side < 2; side++ {
			if node.Faces[side] != nil {
				node.Faces[side] = append([]int{}, node.Faces[side]...)
			}
		}
		c.Nodes[i] = node
	}
	return c
}

// remapped returns copy with leaf face indexes translated by newIndex[old]
func (b *BSP) remapped(newIndex []int) (*BSP, error) {
	c := b.Clone()
	for i := range c.Nodes {
		for side := 0; side < 2; side++ {
			for j, iFace := range c.Nodes[i].Faces[side] {
				if iFace < 0 || iFace >= len(newIndex) {
					return nil, invalidf("BSP: node %d references face %d (%d faces)", i, iFace, len(newIndex))
				}
				c.Nodes[i].Faces[side][j] = newIndex[iFace]
			}
		}
	}
	return c, nil
}

// BuildBSP builds tree for col geometry. When no split plane is acceptable
// (single face, flat geometry) it makes single node with all faces on front
// side and plane through max x, same as 3ds max exporter does.
func BuildBSP(verts []mgl32.Vec3, faces []Face, opts bspbuilder.Options) (*BSP, error) {
	tris := make([][3]uint16, len(faces))
	for i := range faces {
		tris[i] = faces[i].Verts
	}

	tree, err := bspbuilder.Build(verts, tris, opts)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidGeometry, err.Error())
	}

	b := &BSP{Root: BSP_NONE}
	b.Min, b.Max = utils.CalcBounds(verts)

	if tree.Root == bspbuilder.NO_NODE {
		var maxX float32
		for i, v := range verts {
			if i == 0 || v[0] > maxX {
				maxX = v[0]
			}
		}
		all := make([]int, len(faces))
		for i := range all {
			all[i] = i
		}
		b.Nodes = []BSPNode{{
			SplitPlaneVal:  maxX,
			SplitPlaneAxis: bspbuilder.AXIS_X,
			Parent:         BSP_NONE,
			Children:       [2]int{BSP_NONE, BSP_NONE},
			Faces:          [2][]int{all, {}},
		}}
		b.Root = 0
		return b, nil
	}

	b.Nodes = make([]BSPNode, len(tree.Nodes))
	for i, node := range tree.Nodes {
		b.Nodes[i] = BSPNode{
			SplitPlaneVal:  node.Plane.Val,
			SplitPlaneAxis: uint32(node.Plane.Axis),
			Parent:         BSP_NONE,
			Children:       node.Children,
			Faces:          node.Faces,
		}
	}
	for i := range b.Nodes {
		for _, child := range b.Nodes[i].Children {
			if child != BSP_NONE {
				b.Nodes[child].Parent = i
			}
		}
	}
	b.Root = tree.Root
	return b, nil
}

// Locate returns sorted indexes of faces from every leaf containing point p.
// Point lying exactly on split plane descends into both sides.
func (b *BSP) Locate(p mgl32.Vec3) []int {
	if b.Root < 0 || b.Root >= len(b.Nodes) {
		return nil
	}

	found := make(map[int]struct{})
	visited := make([]bool, len(b.Nodes))
	stack := []int{b.Root}
	for len(stack) != 0 {
		iNode := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[iNode] {
			continue
		}
		visited[iNode] = true

		node := &b.Nodes[iNode]
		c := p[node.SplitPlaneAxis%3]
		sides := make([]int, 0, 2)
		if c <= node.SplitPlaneVal {
			sides = append(sides, 0)
		}
		if c >= node.SplitPlaneVal {
			sides = append(sides, 1)
		}

		for _, side := range sides {
			if child := node.Children[side]; child != BSP_NONE {
				if child >= 0 && child < len(b.Nodes) {
					stack = append(stack, child)
				}
			} else {
				for _, iFace := range node.Faces[side] {
					found[iFace] = struct{}{}
				}
			}
		}
	}

	result := make([]int, 0, len(found))
	for iFace := range found {
		result = append(result, iFace)
	}
	sort.Ints(result)
	return result
}

type BSPStats struct {
	Nodes    int `json:"nodes" yaml:"nodes"`
	Leaves   int `json:"leaves" yaml:"leaves"`
	FaceRefs int `json:"face_refs" yaml:"face_refs"`
	MaxDepth int `json:"max_depth" yaml:"max_depth"`
}

func (b *BSP) Stats() BSPStats {
	var s BSPStats
	if b.Root < 0 || b.Root >= len(b.Nodes) {
		return s
	}

	type entry struct{ node, depth int }
	visited := make([]bool, len(b.Nodes))
	stack := []entry{{b.Root, 1}}
	for len(stack) != 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[e.node] {
			continue
		}
		visited[e.node] = true

		s.Nodes++
		if e.depth > s.MaxDepth {
			s.MaxDepth = e.depth
		}
		node := &b.Nodes[e.node]
		for side := 0; side < 2; side++ {
			if child := node.Children[side]; child != BSP_NONE {
				if child >= 0 && child < len(b.Nodes) {
					stack = append(stack, entry{child, e.depth + 1})
				}
			} else {
				s.Leaves++
				s.FaceRefs += len(node.Faces[side])
			}
		}
	}
	return s
}

// Format prints tree, leaf faces shown as vertex triples when faces provided
func (b *BSP) Format(faces []Face) string {
	var sb strings.Builder
	if b.Root >= 0 && b.Root < len(b.Nodes) {
		b.format(&sb, faces, b.Root, 0, make([]bool, len(b.Nodes)))
	}
	return sb.String()
}

func (b *BSP) String() string {
	return b.Format(nil)
}

func (b *BSP) format(sb *strings.Builder, faces []Face, iNode int, level int, visited []bool) {
	if visited[iNode] {
		return
	}
	visited[iNode] = true

	prefix := strings.Repeat("   ", level)
	node := &b.Nodes[iNode]
	fmt.Fprintf(sb, "%s |* split_plane: %v|%d\n", prefix, node.SplitPlaneVal, node.SplitPlaneAxis)
	for side, child := range node.Children {
		p := " |F"
		if side == 1 {
			p = " |B"
		}
		if child == BSP_NONE {
			set := make([]string, len(node.Faces[side]))
			for i, iFace := range node.Faces[side] {
				if iFace >= 0 && iFace < len(faces) {
					v := faces[iFace].Verts
					set[i] = fmt.Sprintf("(%d, %d, %d)", v[0], v[1], v[2])
				} else {
					set[i] = fmt.Sprint(iFace)
				}
			}
			fmt.Fprintf(sb, "%s%s  {%s}\n", prefix, p, strings.Join(set, ", "))
		} else if child >= 0 && child < len(b.Nodes) {
			fmt.Fprintf(sb, "%s%s\\\n", prefix, p)
			b.format(sb, faces, child, level+1, visited)
		}
	}
}
