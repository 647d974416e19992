package slog

import (
	"context"
	"log/slog"

	"github.com/fwojciec/docpilot"
)

// Ensure LoggingExtractor implements docpilot.Extractor.
var _ docpilot.Extractor = (*LoggingExtractor)(nil)

// LoggingExtractor wraps an Extractor and logs every extraction warning.
type LoggingExtractor struct {
	next   docpilot.Extractor
	logger *slog.Logger
}

// NewLoggingExtractor creates a new LoggingExtractor.
func NewLoggingExtractor(next docpilot.Extractor, logger *slog.Logger) *LoggingExtractor {
	return &LoggingExtractor{next: next, logger: logger}
}

// Extract delegates to the wrapped extractor.
func (e *LoggingExtractor) Extract(ctx context.Context, file *docpilot.DocumentFile, content []byte) (*docpilot.Extraction, error) {
	ext, err := e.next.Extract(ctx, file, content)
	if err != nil {
		e.logger.Warn("extract failed", "path", file.Path, "err", err)
		return nil, err
	}
	for _, w := range ext.Warnings {
		e.logger.Warn("extract warning", "path", file.Path, "warning", w)
	}
	return ext, nil
}
