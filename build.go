package docpilot

import (
	"context"
	"time"
)

// BuildSummary reports the outcome of a catalog build.
type BuildSummary struct {
	RunID      string    `json:"runId"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`

	Walked     int `json:"walked"`
	Updated    int `json:"updated"`
	Unchanged  int `json:"unchanged"`
	Touched    int `json:"touched"` // signature changed, content did not
	Tombstoned int `json:"tombstoned"`
	Purged     int `json:"purged"`

	Walk WalkStats `json:"walk"`

	Records  map[RecordKind]int `json:"records"`
	Warnings int                `json:"warnings"`

	// Failed lists files whose read or extraction failed. They keep their
	// previous catalog state.
	Failed []FileError `json:"failed"`

	// NotUpdated lists walked files that were pending or never reached
	// when a store failure or cancellation aborted the run.
	NotUpdated []string `json:"notUpdated"`
}

// FileError describes a per-file failure.
type FileError struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// BuildEventType indicates the type of build progress event.
type BuildEventType int

// BuildEventType constants.
const (
	BuildStarted BuildEventType = iota
	BuildFileUpdated
	BuildFileUnchanged
	BuildFileTouched
	BuildFileFailed
	BuildFinished
)

// BuildEvent reports progress during a build.
type BuildEvent struct {
	Type      BuildEventType
	Path      string
	Completed int
	Error     error
}

// BuildProgressFunc is a callback for reporting build progress.
type BuildProgressFunc func(event BuildEvent)

// CatalogBuilder walks the docs tree and brings the catalog up to date.
type CatalogBuilder interface {
	// Build performs an incremental scan. Returns ESTORE if the catalog
	// could not be written; the summary is still returned.
	Build(ctx context.Context, progress BuildProgressFunc) (*BuildSummary, error)
}
