package prototype

import (
	"fmt"
	"strings"

	"github.com/mpataki/figwalk/internal/figma"
)

const unnamedFlow = "Unnamed Flow"

// Result holds the flows of a document and the index they were built from.
type Result struct {
	Flows []*Flow
	Index Index
}

// Flow returns the flow called name.
func (r *Result) Flow(name string) (*Flow, bool) {
	for _, f := range r.Flows {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

func (r *Result) Lookup(id string) (*figma.Node, bool) {
	return r.Index.Lookup(id)
}

// Build extracts one flow per declared starting point. Modern starts on
// CANVAS pages are read first, then legacy prototypeStartingPoint markers
// anywhere in the document; a node that already produced a flow is skipped.
func Build(document *figma.Node) *Result {
	b := &builder{index: BuildIndex(document)}
	res := &Result{Index: b.index}
	processed := make(map[string]bool)

	if document != nil && document.Type == figma.TypeDocument {
		for _, page := range document.Children {
			if page.Type != figma.TypeCanvas {
				continue
			}
			for _, start := range page.FlowStartingPoints {
				if processed[start.NodeID] {
					continue
				}
				root := b.resolve(start.NodeID, nil)
				if root == nil {
					continue
				}
				res.Flows = append(res.Flows, &Flow{Name: start.Name, Root: root})
				processed[start.NodeID] = true
			}
		}
	}

	// Document order keeps the legacy flows stable between builds.
	for _, n := range preorder(document) {
		if n.PrototypeStartingPoint == nil || processed[n.ID] {
			continue
		}
		root := b.resolve(n.ID, nil)
		if root == nil {
			continue
		}
		name := n.PrototypeStartingPoint.Name
		if name == "" {
			name = unnamedFlow
		}
		res.Flows = append(res.Flows, &Flow{Name: name, Root: root})
		processed[n.ID] = true
	}

	return res
}

type builder struct {
	index Index
}

// edge is an interaction together with the node that declares it.
type edge struct {
	source      *figma.Node
	interaction figma.Interaction
}

// resolve builds the subtree reachable from id. visited holds the ids on
// the path from the flow root to the caller and is never modified.
func (b *builder) resolve(id string, visited map[string]bool) *Node {
	if visited[id] {
		n := &Node{ID: id, Name: "Unknown", Type: "Unknown", Trigger: CyclicReference}
		if raw, ok := b.index[id]; ok {
			n.Name = raw.Name
			n.Type = raw.Type
		}
		return n
	}

	raw, ok := b.index[id]
	if !ok {
		return nil
	}

	path := make(map[string]bool, len(visited)+1)
	for k := range visited {
		path[k] = true
	}
	path[id] = true

	node := &Node{ID: raw.ID, Name: raw.Name, Type: raw.Type}

	for _, e := range gather(raw, nil) {
		action := e.interaction.Action
		if action == nil || action.Type != figma.ActionNode || action.DestinationID == "" {
			continue
		}

		child := b.resolve(action.DestinationID, path)
		if child == nil {
			continue
		}

		// A cycle leaf keeps its marker but still gets the keywords and box
		// of the element leading back, so the walker can choose it.
		if !child.IsCycle() {
			source := `"` + e.source.Name + `"`
			if e.source.ID == raw.ID {
				source = "the frame itself"
			}
			child.Trigger = fmt.Sprintf("%s on %s", e.interaction.Trigger.Type, source)
		}
		child.Keywords = keywords(e.source)
		child.SourceBox = e.source.AbsoluteBoundingBox

		node.Children = append(node.Children, child)
	}

	return node
}

// gather collects the interactions of n and its descendants in document
// order: modern interactions, then legacy reactions, then a synthesized
// click for transitionNodeID unless one of the former already targets it.
func gather(n *figma.Node, out []edge) []edge {
	if n == nil {
		return out
	}

	declared := make([]figma.Interaction, 0, len(n.Interactions)+len(n.Reactions))
	declared = append(declared, n.Interactions...)
	declared = append(declared, n.Reactions...)
	for _, in := range declared {
		out = append(out, edge{source: n, interaction: in})
	}

	if n.TransitionNodeID != "" && !targets(declared, n.TransitionNodeID) {
		out = append(out, edge{
			source: n,
			interaction: figma.Interaction{
				Trigger: figma.Trigger{Type: figma.TriggerOnClick},
				Action: &figma.Action{
					Type:          figma.ActionNode,
					DestinationID: n.TransitionNodeID,
					Navigation:    figma.NavigationNavigate,
				},
			},
		})
	}

	for _, child := range n.Children {
		out = gather(child, out)
	}
	return out
}

func targets(interactions []figma.Interaction, id string) bool {
	for _, in := range interactions {
		if in.Action != nil && in.Action.DestinationID == id {
			return true
		}
	}
	return false
}

// keywords returns the lower-cased name of source followed by the text of
// every TEXT node beneath it, without duplicates or blank entries.
func keywords(source *figma.Node) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(s string) {
		k := strings.ToLower(s)
		if strings.TrimSpace(k) == "" || seen[k] {
			return
		}
		seen[k] = true
		out = append(out, k)
	}

	add(source.Name)

	var texts func(n *figma.Node)
	texts = func(n *figma.Node) {
		if n == nil {
			return
		}
		if n.Type == figma.TypeText && n.Characters != "" {
			add(n.Characters)
		}
		for _, child := range n.Children {
			texts(child)
		}
	}
	texts(source)

	return out
}

func preorder(root *figma.Node) []*figma.Node {
	var out []*figma.Node
	var visit func(n *figma.Node)
	visit = func(n *figma.Node) {
		if n == nil {
			return
		}
		out = append(out, n)
		for _, child := range n.Children {
			visit(child)
		}
	}
	visit(root)
	return out
}
