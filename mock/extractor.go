package mock

import (
	"context"

	"github.com/fwojciec/docpilot"
)

var (
	_ docpilot.Extractor      = (*Extractor)(nil)
	_ docpilot.SymbolDetector = (*SymbolDetector)(nil)
)

// Extractor is a mock implementation of docpilot.Extractor.
type Extractor struct {
	ExtractFn func(ctx context.Context, file *docpilot.DocumentFile, content []byte) (*docpilot.Extraction, error)
}

func (e *Extractor) Extract(ctx context.Context, file *docpilot.DocumentFile, content []byte) (*docpilot.Extraction, error) {
	return e.ExtractFn(ctx, file, content)
}

// SymbolDetector is a mock implementation of docpilot.SymbolDetector.
type SymbolDetector struct {
	DetectFn func(line string) []docpilot.Span
}

func (d *SymbolDetector) Detect(line string) []docpilot.Span {
	return d.DetectFn(line)
}
