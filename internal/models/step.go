package models

import "github.com/mpataki/figwalk/internal/figma"

// Step is one screen visited during a walkthrough. Steps are appended in
// order and not modified once the walk has moved past them.
type Step struct {
	Index    int // 1-based, contiguous within a run
	NodeID   string
	NodeName string
	ImageRef string
	Response string

	// ActionLocation is the chosen element's box in percent of the screen.
	ActionLocation *figma.Rect
}
