package domain

import (
	"time"

	"github.com/google/uuid"
)

// ScanStatus is the lifecycle state of one server scan. Completed and failed
// are terminal.
type ScanStatus string

const (
	ScanPending   ScanStatus = "pending"
	ScanRunning   ScanStatus = "running"
	ScanCompleted ScanStatus = "completed"
	ScanFailed    ScanStatus = "failed"
)

// CanTransition reports whether a scan may move from its current status to
// next. The only legal moves are pending to running, and running to either
// terminal state.
func (s ScanStatus) CanTransition(next ScanStatus) bool {
	switch s {
	case ScanPending:
		return next == ScanRunning
	case ScanRunning:
		return next == ScanCompleted || next == ScanFailed
	default:
		return false
	}
}

// ScanRecord tracks one snapshot-ingestion scan against one server. Counts
// are populated on completion; Error on failure.
type ScanRecord struct {
	ScanID      uuid.UUID
	ServerID    uuid.UUID
	Status      ScanStatus
	StartedAt   time.Time
	FinishedAt  *time.Time
	UsersFound  int
	RolesFound  int
	TablesFound int
	Error       string
}
