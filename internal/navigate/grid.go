package navigate

import "github.com/mpataki/figwalk/internal/figma"

// Grid cell labels, as the oracle is asked to report them.
const (
	TopLeft      = "top-left"
	TopCenter    = "top-center"
	TopRight     = "top-right"
	CenterLeft   = "center-left"
	Center       = "center"
	CenterRight  = "center-right"
	BottomLeft   = "bottom-left"
	BottomCenter = "bottom-center"
	BottomRight  = "bottom-right"
)

// Cells lists every grid label in reading order.
var Cells = []string{
	TopLeft, TopCenter, TopRight,
	CenterLeft, Center, CenterRight,
	BottomLeft, BottomCenter, BottomRight,
}

// GridCell places the center of child on a 3x3 grid laid over parent. Both
// boxes are in the same coordinate space. Each axis is bucketed with strict
// comparisons: v < size/3, then v < 2*size/3, otherwise the last third.
func GridCell(child, parent figma.Rect) string {
	cx := child.X - parent.X + child.Width/2
	cy := child.Y - parent.Y + child.Height/2

	vertical := third(cy, parent.Height, "top", "center", "bottom")
	horizontal := third(cx, parent.Width, "left", "center", "right")

	if vertical == "center" && horizontal == "center" {
		return Center
	}
	return vertical + "-" + horizontal
}

func third(v, size float64, low, mid, high string) string {
	switch {
	case v < size/3:
		return low
	case v < size*2/3:
		return mid
	default:
		return high
	}
}

// RelativeBox expresses child as percentages (0-100) of parent, measured
// from parent's top-left corner.
func RelativeBox(child, parent figma.Rect) figma.Rect {
	return figma.Rect{
		X:      (child.X - parent.X) / parent.Width * 100,
		Y:      (child.Y - parent.Y) / parent.Height * 100,
		Width:  child.Width / parent.Width * 100,
		Height: child.Height / parent.Height * 100,
	}
}
