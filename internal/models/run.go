package models

import (
	"fmt"
	"time"
)

type RunState string

// Terminal walk states. A run never persists in the walking state.
const (
	RunStateWalking          RunState = "walking"
	RunStateCompleted        RunState = "completed"
	RunStateHaltedNoAction   RunState = "halted_no_action"
	RunStateHaltedUnresolved RunState = "halted_unresolved"
	RunStateHaltedMissing    RunState = "halted_missing_node"
	RunStateHaltedStepLimit  RunState = "halted_step_limit"
	RunStateHaltedError      RunState = "halted_error"
	RunStateCancelled        RunState = "cancelled"
)

func (s RunState) Terminal() bool {
	return s != RunStateWalking && s != ""
}

type Run struct {
	ID          string
	SessionID   string
	Index       int // 1-based position within the session
	State       RunState
	Steps       []*Step
	Narrative   string
	SUSScore    *float64
	StartedAt   time.Time
	CompletedAt *time.Time
	Duration    time.Duration
	Cancelled   bool
	Error       string
}

// FormatDuration renders a run duration as "1m 5s" or "42s".
func FormatDuration(d time.Duration) string {
	sec := int(d/time.Second) % 60
	min := int(d / time.Minute)
	if min > 0 {
		return fmt.Sprintf("%dm %ds", min, sec)
	}
	return fmt.Sprintf("%ds", sec)
}
