package models

import "sync/atomic"

// CancelToken is a cooperative stop flag. Setting it does not interrupt
// calls already in flight; walkers check it at run and step boundaries.
type CancelToken struct {
	flag atomic.Bool
}

func NewCancelToken() *CancelToken {
	return &CancelToken{}
}

func (t *CancelToken) Cancel() {
	if t != nil {
		t.flag.Store(true)
	}
}

// Cancelled reports whether Cancel was called. A nil token is never cancelled.
func (t *CancelToken) Cancelled() bool {
	return t != nil && t.flag.Load()
}
