package models

import (
	"errors"
	"fmt"
)

// ErrInput marks a malformed request: unknown flow, bad file reference,
// invalid challenge definition. These are reported without retry.
var ErrInput = errors.New("invalid input")

func InputErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInput, fmt.Sprintf(format, args...))
}

// Collaborator operations.
const (
	OpFetchDocument = "figma.document"
	OpFetchImage    = "figma.image"
	OpDownload      = "figma.download"
	OpDescribe      = "oracle.describe"
	OpSummarize     = "oracle.summarize"
)

// CollaboratorError is a failure of an external service. It aborts the
// current step or run; steps recorded before it are kept.
type CollaboratorError struct {
	Op  string
	Err error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

func Collaborator(op string, err error) error {
	if err == nil {
		return nil
	}
	return &CollaboratorError{Op: op, Err: err}
}
