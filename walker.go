package docpilot

import (
	"context"
	"iter"
)

// WalkStats counts entries the walker passed over without yielding.
type WalkStats struct {
	Yielded        int `json:"yielded"`
	Skipped        int `json:"skipped"`        // symlinked dirs, non-regular files, unreadable dirs
	Excluded       int `json:"excluded"`       // entries under an exclude scope
	MissingScopes  int `json:"missingScopes"`  // include scopes absent on disk
	OtherExtension int `json:"otherExtension"` // regular files with a non-Markdown extension
}

// FileWalker enumerates eligible documents under the docs root.
type FileWalker interface {
	// Walk validates the docs root and returns a lazy sequence of files.
	// Each call starts a fresh walk. Counters in stats are updated as the
	// sequence is consumed. Returns ECONFIG if the root is unusable.
	Walk(ctx context.Context, stats *WalkStats) (iter.Seq[*DocumentFile], error)
}
