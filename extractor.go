package docpilot

import "context"

// Extraction holds the structural records extracted from one document.
type Extraction struct {
	// Records are ordered by kind (sections, symbols, images) and then by
	// line. IDs are not assigned yet.
	Records []*Record

	// LineCount is the number of lines as counted by SplitLines.
	LineCount int

	// Warnings describe tolerated anomalies such as heading level jumps
	// or dangling image targets.
	Warnings []string
}

// Extractor parses document content into structural records.
type Extractor interface {
	// Extract parses content of file. Anomalies are reported as warnings
	// and never fail the extraction.
	Extract(ctx context.Context, file *DocumentFile, content []byte) (*Extraction, error)
}

// Span locates a symbol within a single line. Start and End are byte
// offsets.
type Span struct {
	Text  string
	Start int
	End   int
	Kind  SymbolKind
}

// Fingerprinter is implemented by extraction components whose output
// depends on their settings.
type Fingerprinter interface {
	// Fingerprint identifies the settings. Equal fingerprints produce
	// equal records from equal content.
	Fingerprint() string
}

// SymbolDetector finds API and component names in a line of text.
type SymbolDetector interface {
	// Detect returns non-overlapping spans ordered by position.
	Detect(line string) []Span
}
