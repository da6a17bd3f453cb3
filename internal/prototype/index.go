package prototype

import "github.com/mpataki/figwalk/internal/figma"

// Index maps node ids to raw document nodes. It is built once per document
// and only read afterwards.
type Index map[string]*figma.Node

// BuildIndex records every node reachable through children. Interaction
// destinations are not followed. A repeated id keeps the last node seen.
func BuildIndex(root *figma.Node) Index {
	idx := make(Index)
	idx.add(root)
	return idx
}

func (idx Index) add(n *figma.Node) {
	if n == nil {
		return
	}
	idx[n.ID] = n
	for _, child := range n.Children {
		idx.add(child)
	}
}

func (idx Index) Lookup(id string) (*figma.Node, bool) {
	n, ok := idx[id]
	return n, ok
}

// Box returns the absolute bounding box of id, or nil if the node is
// unknown or has no box.
func (idx Index) Box(id string) *figma.Rect {
	if n, ok := idx[id]; ok {
		return n.AbsoluteBoundingBox
	}
	return nil
}
