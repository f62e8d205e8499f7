package tileset

import (
	"errors"
	"iter"
)

var errWalkCancelled = errors.New("walk cancelled")

// Walk visits nodes depth-first, parents before children.
// Returning an error from the visitor stops the walk and returns that error.
func (t *Tileset) Walk(visitor func(*Node) error) error {
	var walk func(*Node) error
	walk = func(n *Node) error {
		if err := visitor(n); err != nil {
			return err
		}
		for _, c := range n.children {
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(t.Root)
}

// Nodes returns an iterator over all nodes in depth-first order.
func (t *Tileset) Nodes() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		t.Walk(func(n *Node) error {
			if !yield(n) {
				return errWalkCancelled
			}
			return nil
		})
	}
}

type Stats struct {
	Nodes    int
	Leaves   int
	Contents int
	MaxDepth int
}

func (t *Tileset) Stats() Stats {
	var s Stats
	for n := range t.Nodes() {
		s.Nodes++
		if n.IsLeaf() {
			s.Leaves++
		}
		if n.HasContent() {
			s.Contents++
		}
		s.MaxDepth = max(s.MaxDepth, n.depth)
	}
	return s
}
