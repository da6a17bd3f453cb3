package prototype

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpataki/figwalk/internal/figma"
)

func click(dest string) figma.Interaction {
	return figma.Interaction{
		Trigger: figma.Trigger{Type: figma.TriggerOnClick},
		Action:  &figma.Action{Type: figma.ActionNode, DestinationID: dest, Navigation: figma.NavigationNavigate},
	}
}

func frame(id, name string, children ...*figma.Node) *figma.Node {
	return &figma.Node{
		ID: id, Name: name, Type: figma.TypeFrame, Children: children,
		AbsoluteBoundingBox: &figma.Rect{Width: 300, Height: 600},
	}
}

func button(id, name, label, dest string) *figma.Node {
	return &figma.Node{
		ID: id, Name: name, Type: "INSTANCE",
		AbsoluteBoundingBox: &figma.Rect{X: 10, Y: 500, Width: 100, Height: 40},
		Interactions:        []figma.Interaction{click(dest)},
		Children: []*figma.Node{
			{ID: id + "t", Name: "Label", Type: figma.TypeText, Characters: label},
		},
	}
}

func document(starts []figma.FlowStart, frames ...*figma.Node) *figma.Node {
	return &figma.Node{
		ID: "0:0", Name: "Document", Type: figma.TypeDocument,
		Children: []*figma.Node{
			{ID: "0:1", Name: "Page 1", Type: figma.TypeCanvas, FlowStartingPoints: starts, Children: frames},
		},
	}
}

func TestBuildIndex(t *testing.T) {
	doc := document(nil,
		frame("1:1", "Home", button("1:2", "Edit", "Edit profile", "2:1")),
		frame("2:1", "Profile"),
	)

	idx := BuildIndex(doc)

	for _, id := range []string{"0:0", "0:1", "1:1", "1:2", "1:2t", "2:1"} {
		_, ok := idx.Lookup(id)
		assert.True(t, ok, id)
	}
	assert.Len(t, idx, 6)
	assert.Equal(t, 600.0, idx.Box("1:1").Height)
	assert.Nil(t, idx.Box("missing"))
	assert.Empty(t, BuildIndex(nil))
}

func TestBuildIndexDoesNotFollowInteractions(t *testing.T) {
	orphan := frame("9:9", "Orphan")
	root := frame("1:1", "Home", button("1:2", "Go", "Go", "9:9"))

	idx := BuildIndex(root)
	_, ok := idx.Lookup(orphan.ID)
	assert.False(t, ok)
}

func TestBuild_SimpleFlow(t *testing.T) {
	doc := document([]figma.FlowStart{{NodeID: "1:1", Name: "Main"}},
		frame("1:1", "Home", button("1:2", "Edit Button", "Edit profile", "2:1")),
		frame("2:1", "Profile"),
	)

	res := Build(doc)
	require.Len(t, res.Flows, 1)

	flow := res.Flows[0]
	assert.Equal(t, "Main", flow.Name)
	assert.Equal(t, "Home", flow.Root.Name)
	assert.Empty(t, flow.Root.Trigger)
	require.Len(t, flow.Root.Children, 1)

	profile := flow.Root.Children[0]
	assert.Equal(t, "2:1", profile.ID)
	assert.Equal(t, `ON_CLICK on "Edit Button"`, profile.Trigger)
	assert.Equal(t, []string{"edit button", "edit profile"}, profile.Keywords)
	require.NotNil(t, profile.SourceBox)
	assert.Equal(t, 500.0, profile.SourceBox.Y)
	assert.Empty(t, profile.Children)

	got, ok := res.Flow("Main")
	assert.True(t, ok)
	assert.Same(t, flow, got)
	_, ok = res.Flow("Other")
	assert.False(t, ok)
}

func TestBuild_FrameItselfTrigger(t *testing.T) {
	home := frame("1:1", "Splash")
	home.Interactions = []figma.Interaction{{
		Trigger: figma.Trigger{Type: "AFTER_DELAY", Delay: 800},
		Action:  &figma.Action{Type: figma.ActionNode, DestinationID: "2:1"},
	}}
	doc := document([]figma.FlowStart{{NodeID: "1:1", Name: "Boot"}}, home, frame("2:1", "Home"))

	res := Build(doc)
	require.Len(t, res.Flows, 1)
	require.Len(t, res.Flows[0].Root.Children, 1)

	child := res.Flows[0].Root.Children[0]
	assert.Equal(t, "AFTER_DELAY on the frame itself", child.Trigger)
	assert.Equal(t, []string{"splash"}, child.Keywords)
}

func TestBuild_CycleTerminatesWithSentinel(t *testing.T) {
	doc := document([]figma.FlowStart{{NodeID: "A", Name: "Loop"}},
		frame("A", "Screen A", button("a1", "Next", "Next", "B")),
		frame("B", "Screen B", button("b1", "Back", "Back", "A")),
	)

	res := Build(doc)
	require.Len(t, res.Flows, 1)

	a := res.Flows[0].Root
	require.Len(t, a.Children, 1)
	b := a.Children[0]
	assert.Equal(t, "B", b.ID)
	require.Len(t, b.Children, 1)

	again := b.Children[0]
	assert.Equal(t, "A", again.ID)
	assert.Equal(t, "Screen A", again.Name)
	assert.Equal(t, figma.TypeFrame, again.Type)
	assert.True(t, again.IsCycle())
	assert.Equal(t, CyclicReference, again.Trigger)
	assert.Empty(t, again.Children)
	assert.Equal(t, []string{"back"}, again.Keywords)

	stats := res.Flows[0].Stats()
	assert.Equal(t, Stats{Nodes: 3, Screens: 2, Depth: 2, Cycles: 1}, stats)
}

func TestBuild_SelfLoop(t *testing.T) {
	doc := document([]figma.FlowStart{{NodeID: "A", Name: "Self"}},
		frame("A", "Screen A", button("a1", "Refresh", "Refresh", "A")),
	)

	root := Build(doc).Flows[0].Root
	require.Len(t, root.Children, 1)
	assert.True(t, root.Children[0].IsCycle())
}

func TestBuild_DeepChainTerminates(t *testing.T) {
	const depth = 200
	var frames []*figma.Node
	for i := 0; i < depth; i++ {
		next := fmt.Sprintf("F%d", (i+1)%depth)
		frames = append(frames, frame(fmt.Sprintf("F%d", i), fmt.Sprintf("Screen %d", i),
			button(fmt.Sprintf("b%d", i), "Next", "Next", next)))
	}
	doc := document([]figma.FlowStart{{NodeID: "F0", Name: "Ring"}}, frames...)

	res := Build(doc)
	stats := res.Flows[0].Stats()
	assert.Equal(t, depth+1, stats.Nodes)
	assert.Equal(t, depth, stats.Depth)
	assert.Equal(t, 1, stats.Cycles)
}

func TestBuild_SiblingPathsDoNotShareVisits(t *testing.T) {
	// Home reaches Detail through two buttons; both occurrences must be
	// expanded, not just the first one.
	doc := document([]figma.FlowStart{{NodeID: "H", Name: "Main"}},
		frame("H", "Home",
			button("h1", "Open", "Open", "D"),
			button("h2", "More", "More", "D"),
		),
		frame("D", "Detail", button("d1", "Done", "Done", "E")),
		frame("E", "End"),
	)

	root := Build(doc).Flows[0].Root
	require.Len(t, root.Children, 2)
	for _, d := range root.Children {
		assert.Equal(t, "D", d.ID)
		assert.False(t, d.IsCycle())
		require.Len(t, d.Children, 1)
		assert.Equal(t, "E", d.Children[0].ID)
	}
	assert.Equal(t, []string{"open"}, root.Children[0].Keywords)
	assert.Equal(t, []string{"more"}, root.Children[1].Keywords)
}

func TestBuild_DanglingAndNonNavigationEdges(t *testing.T) {
	home := frame("H", "Home",
		button("h1", "Broken", "Broken", "does-not-exist"),
		button("h2", "Ok", "Ok", "P"),
	)
	home.Interactions = []figma.Interaction{
		{Trigger: figma.Trigger{Type: figma.TriggerOnClick}, Action: &figma.Action{Type: figma.ActionBack}},
		{Trigger: figma.Trigger{Type: figma.TriggerOnClick}, Action: &figma.Action{Type: figma.ActionURL, URL: "https://example.com"}},
		{Trigger: figma.Trigger{Type: figma.TriggerOnClick}},
	}
	doc := document([]figma.FlowStart{{NodeID: "H", Name: "Main"}}, home, frame("P", "Profile"))

	root := Build(doc).Flows[0].Root
	require.Len(t, root.Children, 1)
	assert.Equal(t, "P", root.Children[0].ID)
}

func TestBuild_GatherOrderAndLegacyTransition(t *testing.T) {
	home := frame("H", "Home")
	home.Interactions = []figma.Interaction{click("A")}
	home.Reactions = []figma.Interaction{click("B")}
	home.TransitionNodeID = "C"
	home.Children = []*figma.Node{button("h1", "Child", "Child", "D")}

	doc := document([]figma.FlowStart{{NodeID: "H", Name: "Main"}},
		home, frame("A", "A"), frame("B", "B"), frame("C", "C"), frame("D", "D"))

	root := Build(doc).Flows[0].Root
	var ids []string
	for _, c := range root.Children {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"A", "B", "C", "D"}, ids)
	assert.Equal(t, "ON_CLICK on the frame itself", root.Children[2].Trigger)
}

func TestBuild_LegacyTransitionNotDuplicated(t *testing.T) {
	home := frame("H", "Home")
	home.Reactions = []figma.Interaction{click("P")}
	home.TransitionNodeID = "P"

	doc := document([]figma.FlowStart{{NodeID: "H", Name: "Main"}}, home, frame("P", "Profile"))

	root := Build(doc).Flows[0].Root
	assert.Len(t, root.Children, 1)
}

func TestBuild_OneFlowPerStart(t *testing.T) {
	home := frame("H", "Home", button("h1", "Go", "Go", "P"))
	home.PrototypeStartingPoint = &figma.StartingPoint{Name: "Legacy Home"}
	profile := frame("P", "Profile")
	profile.PrototypeStartingPoint = &figma.StartingPoint{}
	settings := frame("S", "Settings")
	settings.PrototypeStartingPoint = &figma.StartingPoint{Name: "Settings"}

	doc := document([]figma.FlowStart{
		{NodeID: "H", Name: "Main"},
		{NodeID: "H", Name: "Main again"},
		{NodeID: "missing", Name: "Ghost"},
	}, home, profile, settings)

	res := Build(doc)

	var names []string
	for _, f := range res.Flows {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"Main", "Unnamed Flow", "Settings"}, names)

	seen := make(map[string]bool)
	for _, f := range res.Flows {
		assert.False(t, seen[f.Root.ID], "duplicate flow for %s", f.Root.ID)
		seen[f.Root.ID] = true
	}
}

func TestBuild_FlowStartsOnlyOnCanvasPages(t *testing.T) {
	doc := document(nil, frame("H", "Home"))
	doc.Children = append(doc.Children, &figma.Node{
		ID: "x", Name: "Not a page", Type: figma.TypeFrame,
		FlowStartingPoints: []figma.FlowStart{{NodeID: "H", Name: "Hidden"}},
	})

	assert.Empty(t, Build(doc).Flows)
}

func TestBuild_NonDocumentRootUsesLegacyOnly(t *testing.T) {
	root := frame("H", "Home")
	root.FlowStartingPoints = []figma.FlowStart{{NodeID: "H", Name: "Ignored"}}
	root.PrototypeStartingPoint = &figma.StartingPoint{Name: "Legacy"}

	res := Build(root)
	require.Len(t, res.Flows, 1)
	assert.Equal(t, "Legacy", res.Flows[0].Name)
}

func TestBuild_NilDocument(t *testing.T) {
	res := Build(nil)
	assert.Empty(t, res.Flows)
	assert.Empty(t, res.Index)
}

func TestKeywordsSkipBlankAndDuplicateText(t *testing.T) {
	src := &figma.Node{
		ID: "b", Name: "Save", Type: "INSTANCE",
		Children: []*figma.Node{
			{ID: "t1", Type: figma.TypeText, Characters: "SAVE"},
			{ID: "t2", Type: figma.TypeText, Characters: "   "},
			{ID: "g", Type: "GROUP", Children: []*figma.Node{
				{ID: "t3", Type: figma.TypeText, Characters: "Save changes"},
			}},
			{ID: "r", Type: "RECTANGLE", Characters: "ignored"},
		},
	}

	assert.Equal(t, []string{"save", "save changes"}, keywords(src))
}

func TestFind(t *testing.T) {
	doc := document([]figma.FlowStart{{NodeID: "A", Name: "Loop"}},
		frame("A", "Screen A", button("a1", "Next", "Next", "B")),
		frame("B", "Screen B", button("b1", "Back", "Back", "A")),
	)
	root := Build(doc).Flows[0].Root

	assert.Same(t, root, Find(root, "A"))
	assert.Same(t, root.Children[0], Find(root, "B"))
	assert.Nil(t, Find(root, "Z"))
	assert.Nil(t, Find(nil, "A"))
}
