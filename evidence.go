package docpilot

import "context"

// Evidence is a literal excerpt re-read from a source file at query time.
type Evidence struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	EndLine int    `json:"endLine"`
	Text    string `json:"text"`

	// Partial is set when the file no longer has all the recorded lines.
	Partial bool `json:"partial,omitempty"`

	// Unavailable is set when the file could not be read. Error holds
	// the reason.
	Unavailable bool   `json:"unavailable,omitempty"`
	Error       string `json:"error,omitempty"`
}

// EvidenceRequest identifies a line range in a document.
type EvidenceRequest struct {
	Path      string
	StartLine int
	EndLine   int
}

// Asset is an image referenced by a document.
type Asset struct {
	Path    string `json:"path"`
	AbsPath string `json:"absPath"`
	Exists  bool   `json:"exists"`
	Alt     string `json:"alt,omitempty"`
	File    string `json:"file"`
	Line    int    `json:"line"`
}

// EvidenceResolver reads literal excerpts from the source tree. It never
// consults the catalog.
type EvidenceResolver interface {
	// Resolve returns the literal text of the requested range.
	// Returns EEVIDENCE if the file is missing or unreadable.
	Resolve(ctx context.Context, req EvidenceRequest) (*Evidence, error)

	// ResolveAsset returns the absolute location of an asset path and
	// whether it currently exists.
	ResolveAsset(ctx context.Context, path string) (*Asset, error)
}
