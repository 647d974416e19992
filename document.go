package docpilot

import (
	"context"
	"path"
	"strings"
	"time"
)

// DocumentFile represents a Markdown file tracked by the catalog.
type DocumentFile struct {
	// Path is slash-separated and relative to the docs root. It is the
	// file's identity.
	Path string `json:"path"`

	// AbsPath is the location on disk. It is never persisted.
	AbsPath string `json:"-"`

	Size      int64      `json:"size"`
	ModTime   int64      `json:"modTime"` // unix nanoseconds
	Hash      string     `json:"hash"`
	LineCount int        `json:"lineCount"`
	RunID     string     `json:"runId"`
	ScannedAt time.Time  `json:"scannedAt"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`

	// Fingerprint identifies the extractor settings the stored records
	// were built with. Records built under other settings are stale even
	// when the content is not.
	Fingerprint string `json:"fingerprint,omitempty"`
}

// Validate returns an error if the file contains invalid fields.
func (f *DocumentFile) Validate() error {
	if f.Path == "" {
		return Errorf(EINVALID, "document path required")
	}
	if strings.HasPrefix(f.Path, "/") || path.Clean(f.Path) != f.Path || strings.HasPrefix(f.Path, "../") {
		return Errorf(EINVALID, "document path %q must be clean and relative to the docs root", f.Path)
	}
	if f.Size < 0 {
		return Errorf(EINVALID, "document size must not be negative")
	}
	return nil
}

// SameSignature reports whether the modification signatures of f and other
// match.
func (f *DocumentFile) SameSignature(other *DocumentFile) bool {
	return f.Size == other.Size && f.ModTime == other.ModTime
}

// Tombstoned reports whether the file was absent from a completed walk.
func (f *DocumentFile) Tombstoned() bool {
	return f.DeletedAt != nil
}

// FileReader loads document content from disk.
type FileReader interface {
	// Load reads the file content and fills in file.Hash.
	Load(ctx context.Context, file *DocumentFile) ([]byte, error)
}

// CatalogService represents the persistent structural index.
type CatalogService interface {
	// ScanNeeded reports whether the stored signature or fingerprint
	// differs from file's, or whether file is unknown or tombstoned.
	ScanNeeded(ctx context.Context, file *DocumentFile) (bool, error)

	// Upsert atomically replaces all records owned by file and stores its
	// signature. Concurrent readers see the old or the new record set,
	// never a mix. A nil record set for a live file with the same hash
	// and fingerprint only refreshes the signature.
	Upsert(ctx context.Context, file *DocumentFile, records []*Record) error

	// RemoveStale tombstones live files whose path is not in seen.
	// Returns the tombstoned paths.
	RemoveStale(ctx context.Context, seen []string) ([]string, error)

	// Purge permanently removes files tombstoned before the given time,
	// together with their records.
	Purge(ctx context.Context, before time.Time) (int, error)

	// QueryCandidates returns records of live files whose display text
	// contains the term, ignoring case. When the limit cuts the pool,
	// exact matches are kept first, then shorter texts.
	QueryCandidates(ctx context.Context, q CandidateQuery) ([]*Record, error)

	// FindFile retrieves a file by path.
	// Returns ENOTFOUND if the file does not exist.
	FindFile(ctx context.Context, path string) (*DocumentFile, error)

	// FindRecords retrieves records matching the filter ordered by line.
	FindRecords(ctx context.Context, filter RecordFilter) ([]*Record, error)

	// Generation returns a counter that changes on every catalog mutation.
	Generation(ctx context.Context) (int64, error)

	// Stats returns catalog-wide counts.
	Stats(ctx context.Context) (*CatalogStats, error)
}

// CandidateQuery represents a recall request for a single query term.
type CandidateQuery struct {
	Term  string `json:"term"`
	Limit int    `json:"limit"`
}

// RecordFilter represents a filter for FindRecords.
type RecordFilter struct {
	Path     *string     `json:"path"`
	Kind     *RecordKind `json:"kind"`
	FromLine int         `json:"fromLine"`
	ToLine   int         `json:"toLine"`
}

// CatalogStats holds catalog-wide counts.
type CatalogStats struct {
	Files      int                `json:"files"`
	Tombstoned int                `json:"tombstoned"`
	Records    map[RecordKind]int `json:"records"`
	Generation int64              `json:"generation"`
}
