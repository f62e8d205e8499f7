// Package tileset parses 3D Tiles tileset descriptions into an immutable tree of nodes.
package tileset

import (
	"strings"

	"github.com/eak1mov/go-tiles3d/volume"
	"github.com/go-gl/mathgl/mgl64"
)

// Refine is the refinement policy of a tile.
type Refine uint8

const (
	// RefineReplace renders children instead of the parent.
	RefineReplace Refine = iota
	// RefineAdd renders children in addition to the parent.
	RefineAdd
)

func (r Refine) String() string {
	if r == RefineAdd {
		return "ADD"
	}
	return "REPLACE"
}

func parseRefine(s string) (Refine, bool) {
	switch strings.ToUpper(s) {
	case "ADD":
		return RefineAdd, true
	case "REPLACE":
		return RefineReplace, true
	}
	return 0, false
}

// Node is a tile of the static tree. Nodes are immutable once the tileset is parsed
// and outlive every runtime structure built on top of them.
type Node struct {
	parent   *Node
	children []*Node

	transform      mgl64.Mat4
	hasTransform   bool
	volume         volume.Volume
	viewerVolume   volume.Volume
	geometricError float64
	refine         Refine
	contentURI     string
	depth          int
}

// Parent returns the parent node, or nil for the root.
func (n *Node) Parent() *Node { return n.parent }

// Children returns the child nodes in tileset order. The slice must not be modified.
func (n *Node) Children() []*Node { return n.children }

func (n *Node) IsLeaf() bool { return len(n.children) == 0 }

// Transform returns the local-to-parent transform and whether one was specified.
// Without one the identity is returned.
func (n *Node) Transform() (mgl64.Mat4, bool) {
	if !n.hasTransform {
		return mgl64.Ident4(), false
	}
	return n.transform, true
}

// Volume returns the bounding volume in the node's local frame.
func (n *Node) Volume() volume.Volume { return n.volume }

// ViewerRequestVolume returns the optional volume the camera must be inside
// for the tile to be considered.
func (n *Node) ViewerRequestVolume() volume.Volume { return n.viewerVolume }

func (n *Node) GeometricError() float64 { return n.geometricError }

// Refine returns the effective refinement policy (inherited when unspecified).
func (n *Node) Refine() Refine { return n.refine }

// ContentURI returns the resolved content reference, or "" when the tile has no content.
func (n *Node) ContentURI() string { return n.contentURI }

func (n *Node) HasContent() bool { return n.contentURI != "" }

// Depth is 0 for the root.
func (n *Node) Depth() int { return n.depth }

// WorldTransform returns the concatenation of all ancestor transforms and this node's own.
func (n *Node) WorldTransform() mgl64.Mat4 {
	m := mgl64.Ident4()
	for node := n; node != nil; node = node.parent {
		if node.hasTransform {
			m = node.transform.Mul4(m)
		}
	}
	return m
}
