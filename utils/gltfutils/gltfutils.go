package gltfutils

import (
	"io"

	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
)

func NewDocument() *gltf.Document {
	return gltf.NewDocument()
}

// AddRootNode appends node to document and to its default scene
func AddRootNode(doc *gltf.Document, node *gltf.Node) uint32 {
	index := AddNode(doc, node)
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, index)
	return index
}

func AddNode(doc *gltf.Document, node *gltf.Node) uint32 {
	doc.Nodes = append(doc.Nodes, node)
	return uint32(len(doc.Nodes) - 1)
}

func ExportBinary(w io.Writer, doc *gltf.Document) error {
	encoder := gltf.NewEncoder(w)
	encoder.AsBinary = true
	if err := encoder.Encode(doc); err != nil {
		return errors.Wrapf(err, "Failed to encode glb")
	}
	return nil
}

// Decode reads both .gltf (with embedded buffers) and .glb
func Decode(r io.Reader) (*gltf.Document, error) {
	doc := new(gltf.Document)
	if err := gltf.NewDecoder(r).Decode(doc); err != nil {
		return nil, errors.Wrapf(err, "Failed to decode gltf")
	}
	return doc, nil
}

// WalkScene visits every node reachable from default scene, parents first
func WalkScene(doc *gltf.Document, cb func(iNode uint32, node *gltf.Node) error) error {
	if len(doc.Scenes) == 0 {
		return nil
	}
	scene := doc.Scenes[0]
	if doc.Scene != nil && int(*doc.Scene) < len(doc.Scenes) {
		scene = doc.Scenes[*doc.Scene]
	}

	visited := make(map[uint32]bool)
	stack := make([]uint32, 0, len(scene.Nodes))
	for i := len(scene.Nodes) - 1; i >= 0; i-- {
		stack = append(stack, scene.Nodes[i])
	}
	for len(stack) != 0 {
		iNode := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if int(iNode) >= len(doc.Nodes) {
			return errors.Errorf("Node %d out of range (%d nodes)", iNode, len(doc.Nodes))
		}
		if visited[iNode] {
			continue
		}
		visited[iNode] = true

		node := doc.Nodes[iNode]
		if err := cb(iNode, node); err != nil {
			return err
		}
		for i := len(node.Children) - 1; i >= 0; i-- {
			stack = append(stack, node.Children[i])
		}
	}
	return nil
}
