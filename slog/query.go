package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/docpilot"
)

// Ensure LoggingQueryService implements docpilot.QueryService.
var _ docpilot.QueryService = (*LoggingQueryService)(nil)

// LoggingQueryService wraps a QueryService with logging.
type LoggingQueryService struct {
	next   docpilot.QueryService
	logger *slog.Logger
}

// NewLoggingQueryService creates a new LoggingQueryService.
func NewLoggingQueryService(next docpilot.QueryService, logger *slog.Logger) *LoggingQueryService {
	return &LoggingQueryService{next: next, logger: logger}
}

// Query delegates to the wrapped service and logs the outcome.
func (s *LoggingQueryService) Query(ctx context.Context, req docpilot.QueryRequest) (result *docpilot.Result, err error) {
	defer func(begin time.Time) {
		attrs := []any{"query", req.Text, "duration", time.Since(begin), "err", err}
		if result != nil {
			attrs = append(attrs,
				"terms", len(result.Terms),
				"considered", result.Stats.Considered,
				"returned", result.Stats.Returned,
				"cached", result.Stats.Cached,
			)
		}
		s.logger.Info("query", attrs...)
	}(time.Now())
	return s.next.Query(ctx, req)
}
