package navigate

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mpataki/figwalk/internal/figma"
	"github.com/mpataki/figwalk/internal/prototype"
)

// Decision explains how a target was chosen among the children of a node.
type Decision struct {
	Target          *prototype.Node
	TextMatches     []*prototype.Node
	LocationMatches []*prototype.Node
	Reason          string

	// Frame is the current node's absolute box, nil when unknown.
	Frame *figma.Rect
}

// Location is the target's source box as percentages of the current frame,
// or nil when either box is unknown.
func (d Decision) Location() *figma.Rect {
	if d.Target == nil || d.Target.SourceBox == nil || d.Frame == nil {
		return nil
	}
	if d.Frame.Width == 0 || d.Frame.Height == 0 {
		return nil
	}
	r := RelativeBox(*d.Target.SourceBox, *d.Frame)
	return &r
}

// Resolve picks the single child of current that the described action
// leads to, or nil when there is no unique answer.
func Resolve(current *prototype.Node, index prototype.Index, component, location string) *prototype.Node {
	return ResolveDetail(current, index, component, location).Target
}

// ResolveDetail applies the resolution policy: a unique member of the
// intersection of text and location matches, then a unique text match,
// then a unique location match when nothing matched by text.
func ResolveDetail(current *prototype.Node, index prototype.Index, component, location string) Decision {
	var d Decision
	if current == nil {
		d.Reason = "no current node"
		return d
	}

	d.Frame = index.Box(current.ID)
	d.TextMatches = textMatches(current.Children, normalize(component))

	location = normalize(location)
	if location != "" && d.Frame != nil {
		for _, child := range current.Children {
			if child.SourceBox != nil && GridCell(*child.SourceBox, *d.Frame) == location {
				d.LocationMatches = append(d.LocationMatches, child)
			}
		}
	}

	if len(d.TextMatches) > 0 && len(d.LocationMatches) > 0 {
		if both := intersect(d.TextMatches, d.LocationMatches); len(both) == 1 {
			d.Target = both[0]
			d.Reason = "text and location match"
			return d
		}
	}

	switch {
	case len(d.TextMatches) == 1:
		d.Target = d.TextMatches[0]
		d.Reason = "unique text match"
	case len(d.TextMatches) == 0 && len(d.LocationMatches) == 1:
		d.Target = d.LocationMatches[0]
		d.Reason = "unique location match"
	case len(d.TextMatches) == 0 && len(d.LocationMatches) == 0:
		d.Reason = "no match"
	default:
		d.Reason = fmt.Sprintf("ambiguous: %d text matches, %d location matches",
			len(d.TextMatches), len(d.LocationMatches))
	}
	return d
}

// Matches reports whether keyword k admits the normalized text. The rule
// is asymmetric: k inside text needs at least three characters (runes, not
// bytes), text inside k does not.
func Matches(k, text string) bool {
	if text == "" || k == "" {
		return false
	}
	return k == text ||
		(utf8.RuneCountInString(k) > 2 && strings.Contains(text, k)) ||
		strings.Contains(k, text)
}

func textMatches(children []*prototype.Node, text string) []*prototype.Node {
	if text == "" {
		return nil
	}
	var out []*prototype.Node
	seen := make(map[*prototype.Node]bool)
	for _, child := range children {
		if seen[child] {
			continue
		}
		for _, k := range child.Keywords {
			if Matches(k, text) {
				seen[child] = true
				out = append(out, child)
				break
			}
		}
	}
	return out
}

func intersect(a, b []*prototype.Node) []*prototype.Node {
	in := make(map[*prototype.Node]bool, len(b))
	for _, n := range b {
		in[n] = true
	}
	var out []*prototype.Node
	for _, n := range a {
		if in[n] {
			out = append(out, n)
		}
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
