package models

import "time"

type SessionStatus string

const (
	SessionStatusPending   SessionStatus = "pending"
	SessionStatusRunning   SessionStatus = "running"
	SessionStatusComplete  SessionStatus = "complete"
	SessionStatusCancelled SessionStatus = "cancelled"
	SessionStatusFailed    SessionStatus = "failed"
)

// Session groups the runs of one persona challenge against one flow.
type Session struct {
	ID          string
	CreatedAt   time.Time
	CompletedAt *time.Time
	FileKey     string
	FlowName    string
	Persona     string
	Challenge   string
	RunCount    int
	MaxSteps    int
	Status      SessionStatus
	Error       string
}
