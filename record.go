package docpilot

import (
	"strings"
)

// RecordKind identifies the kind of structural unit a Record describes.
type RecordKind string

// RecordKind constants.
const (
	KindSection RecordKind = "section"
	KindSymbol  RecordKind = "symbol"
	KindImage   RecordKind = "image"
)

// Weight returns the ranking weight of the kind. API and component names
// are the primary lookup target, so symbols outrank sections, which
// outrank images.
func (k RecordKind) Weight() int {
	switch k {
	case KindSymbol:
		return 3
	case KindSection:
		return 2
	case KindImage:
		return 1
	default:
		return 0
	}
}

// Valid reports whether k is a known kind.
func (k RecordKind) Valid() bool {
	return k.Weight() > 0
}

// Record represents one structural unit extracted from a document: a
// section, a symbol occurrence or an image reference.
type Record struct {
	ID        int64      `json:"id"`
	Path      string     `json:"path"`
	Kind      RecordKind `json:"kind"`
	Text      string     `json:"text"`

	// SymbolKind classifies a symbol occurrence. Empty for plain
	// mentions and for other record kinds.
	SymbolKind SymbolKind `json:"symbolKind,omitempty"`

	StartLine int `json:"startLine"`
	EndLine   int `json:"endLine"`

	// Level is the heading rank of a section; 0 for the implicit
	// whole-file section.
	Level int `json:"level,omitempty"`

	// Ancestry lists the titles of enclosing sections, outermost first.
	Ancestry []string `json:"ancestry,omitempty"`

	// Asset is the image target relative to the docs root.
	Asset       string `json:"asset,omitempty"`
	AssetExists bool   `json:"assetExists,omitempty"`
}

// Validate returns an error if the record contains invalid fields or its
// line range falls outside a file of lineCount lines.
func (r *Record) Validate(lineCount int) error {
	if r.Path == "" {
		return Errorf(EINVALID, "record path required")
	}
	if !r.Kind.Valid() {
		return Errorf(EINVALID, "record kind %q unknown", r.Kind)
	}
	if r.Text == "" {
		return Errorf(EINVALID, "record text required")
	}
	if r.StartLine < 1 || r.EndLine < r.StartLine || r.EndLine > lineCount {
		return Errorf(EINVALID, "record line range %d-%d outside file of %d lines", r.StartLine, r.EndLine, lineCount)
	}
	if !r.SymbolKind.Valid() {
		return Errorf(EINVALID, "symbol kind %q unknown", r.SymbolKind)
	}
	if r.SymbolKind != SymbolPlain && r.Kind != KindSymbol {
		return Errorf(EINVALID, "%s record cannot have symbol kind %q", r.Kind, r.SymbolKind)
	}
	if r.Kind == KindImage && r.Asset == "" {
		return Errorf(EINVALID, "image record asset required")
	}
	return nil
}

// Contains reports whether line falls inside the record's range.
func (r *Record) Contains(line int) bool {
	return line >= r.StartLine && line <= r.EndLine
}

// Tags returns the leading directories of the record's file path, at
// most three, for example zh-cn/application-dev/ui.
func (r *Record) Tags() []string {
	return PathTags(r.Path)
}

// PathTags returns up to three leading directory names of p.
func PathTags(p string) []string {
	parts := strings.Split(p, "/")
	parts = parts[:len(parts)-1]
	if len(parts) > maxPathTags {
		parts = parts[:maxPathTags]
	}
	if len(parts) == 0 {
		return nil
	}
	return parts
}

const maxPathTags = 3

// SplitLines splits content into lines the way the catalog counts them:
// one trailing newline is ignored and carriage returns are trimmed. Empty
// content is a single empty line.
func SplitLines(content string) []string {
	content = strings.TrimSuffix(content, "\n")
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}
