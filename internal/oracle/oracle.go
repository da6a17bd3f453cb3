package oracle

import "context"

// Oracle inspects rendered screens and writes usability narratives. Every
// call carries its full context; implementations keep no conversation state.
type Oracle interface {
	Describe(ctx context.Context, req DescribeRequest) (string, error)
	Summarize(ctx context.Context, req SummaryRequest) (string, error)
}

// DescribeRequest asks what the persona would do next on one screen.
type DescribeRequest struct {
	Image       []byte
	MimeType    string
	Instruction string

	// Screen and Step identify the screen for scripted oracles and logs.
	Screen string
	Step   int
}

// SummaryRequest asks for the usability narrative of a whole run.
type SummaryRequest struct {
	Persona    string
	Challenge  string
	Transcript string
}
