package sync

import (
	"time"

	"github.com/google/uuid"
)

// Status describes where a sync run currently is.
type Status int

const (
	StatusIdle Status = iota
	StatusConnecting
	StatusListing
	StatusSyncing
	StatusComplete
	StatusError
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusConnecting:
		return "connecting"
	case StatusListing:
		return "listing folders"
	case StatusSyncing:
		return "syncing"
	case StatusComplete:
		return "complete"
	case StatusError:
		return "error"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Progress is an immutable snapshot of a sync run. A new snapshot is
// published after every state change; consumers that fall behind see
// fewer snapshots, never stale ones.
type Progress struct {
	// RunID ties every snapshot of one run together.
	RunID uuid.UUID

	Status  Status
	Account string

	// Folder is the folder currently being synced.
	Folder string

	TotalFolders  int
	SyncedFolders int

	// TotalMessages and SyncedMessages track the current folder's
	// fetch work, not the whole run.
	TotalMessages  int
	SyncedMessages int

	NewMessages     int
	UpdatedMessages int
	DeletedMessages int
	SpamMoved       int

	// Error holds the most recent error message, if any.
	Error string
}

// PercentComplete reports fetch progress within the current folder.
func (p Progress) PercentComplete() float64 {
	if p.TotalMessages == 0 {
		return 0
	}
	return float64(p.SyncedMessages) / float64(p.TotalMessages) * 100
}

// OverallPercent reports folder progress across the whole run.
func (p Progress) OverallPercent() float64 {
	if p.TotalFolders == 0 {
		return 0
	}
	return float64(p.SyncedFolders) / float64(p.TotalFolders) * 100
}

// Result summarizes a finished sync run. Success means the run itself
// completed; individual folder failures are collected in Errors without
// failing the run. A cancelled run reports Cancelled with no error
// recorded for the cancellation itself.
type Result struct {
	RunID     uuid.UUID
	Success   bool
	Cancelled bool

	NewMessages     int
	UpdatedMessages int
	DeletedMessages int
	SpamMoved       int

	Errors   []string
	Duration time.Duration
}
