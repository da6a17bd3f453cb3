package prototype

import "github.com/mpataki/figwalk/internal/figma"

// CyclicReference is the trigger value of a leaf that closes a cycle on its
// own path.
const CyclicReference = "CYCLIC_REFERENCE"

// Node is one occurrence of a screen along a path of a flow. The same raw
// node reached by two different paths yields two Nodes, each with the
// trigger that led there.
type Node struct {
	ID       string
	Name     string
	Type     string
	Children []*Node

	// Trigger describes the interaction that leads to this node from its
	// parent, e.g. `ON_CLICK on "Save"`.
	Trigger string
	// Keywords are the lower-cased names and texts of the element that
	// triggers the interaction.
	Keywords []string
	// SourceBox is the absolute box of the triggering element.
	SourceBox *figma.Rect
}

func (n *Node) IsCycle() bool {
	return n.Trigger == CyclicReference
}

type Flow struct {
	Name string
	Root *Node
}

// Find returns the first node with id in a depth-first, pre-order search.
func Find(root *Node, id string) *Node {
	if root == nil {
		return nil
	}
	if root.ID == id {
		return root
	}
	for _, child := range root.Children {
		if found := Find(child, id); found != nil {
			return found
		}
	}
	return nil
}

// Walk calls fn for every node in pre-order with its depth (root is 0).
func Walk(root *Node, fn func(n *Node, depth int)) {
	walk(root, 0, fn)
}

func walk(n *Node, depth int, fn func(*Node, int)) {
	if n == nil {
		return
	}
	fn(n, depth)
	for _, child := range n.Children {
		walk(child, depth+1, fn)
	}
}

type Stats struct {
	Nodes   int
	Screens int // distinct node ids
	Depth   int
	Cycles  int
}

func (f *Flow) Stats() Stats {
	var s Stats
	seen := make(map[string]bool)
	Walk(f.Root, func(n *Node, depth int) {
		s.Nodes++
		if !seen[n.ID] {
			seen[n.ID] = true
			s.Screens++
		}
		if depth > s.Depth {
			s.Depth = depth
		}
		if n.IsCycle() {
			s.Cycles++
		}
	})
	return s
}
