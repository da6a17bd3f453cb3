package figma

// Node types used by the prototype builder. Figma defines more; these are
// the ones the walker inspects.
const (
	TypeDocument = "DOCUMENT"
	TypeCanvas   = "CANVAS"
	TypeFrame    = "FRAME"
	TypeText     = "TEXT"
)

// Action types.
const (
	ActionNode  = "NODE"
	ActionBack  = "BACK"
	ActionClose = "CLOSE"
	ActionURL   = "URL"
)

const (
	TriggerOnClick     = "ON_CLICK"
	NavigationNavigate = "NAVIGATE"
)

type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type File struct {
	Name         string `json:"name"`
	LastModified string `json:"lastModified"`
	Version      string `json:"version"`
	ThumbnailURL string `json:"thumbnailUrl"`
	Document     *Node  `json:"document"`
}

// Node is a node of the Figma file tree as returned by the REST API,
// trimmed to the fields prototype extraction needs.
type Node struct {
	ID                  string  `json:"id"`
	Name                string  `json:"name"`
	Type                string  `json:"type"`
	Children            []*Node `json:"children,omitempty"`
	Characters          string  `json:"characters,omitempty"`
	AbsoluteBoundingBox *Rect   `json:"absoluteBoundingBox,omitempty"`

	Interactions           []Interaction  `json:"prototypeInteractions,omitempty"`
	Reactions              []Interaction  `json:"reactions,omitempty"` // legacy
	TransitionNodeID       string         `json:"transitionNodeID,omitempty"`
	PrototypeStartingPoint *StartingPoint `json:"prototypeStartingPoint,omitempty"`
	FlowStartingPoints     []FlowStart    `json:"flowStartingPoints,omitempty"`
}

type Interaction struct {
	Trigger Trigger `json:"trigger"`
	Action  *Action `json:"action"`
}

type Trigger struct {
	Type  string  `json:"type"`
	Delay float64 `json:"delay,omitempty"`
}

type Action struct {
	Type          string `json:"type"`
	DestinationID string `json:"destinationId,omitempty"`
	Navigation    string `json:"navigation,omitempty"`
	URL           string `json:"url,omitempty"`
}

// FlowStart is the modern flow declaration found on CANVAS nodes.
type FlowStart struct {
	NodeID string `json:"nodeId"`
	Name   string `json:"name"`
}

// StartingPoint is the legacy single starting-point marker.
type StartingPoint struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Image is a rendered node: the URL Figma handed out plus the downloaded bytes.
type Image struct {
	URL      string
	Data     []byte
	MimeType string
}
