package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/docpilot"
)

// Ensure LoggingCatalogService implements docpilot.CatalogService.
var _ docpilot.CatalogService = (*LoggingCatalogService)(nil)

// LoggingCatalogService wraps a CatalogService with logging of writes and
// candidate recall.
type LoggingCatalogService struct {
	next   docpilot.CatalogService
	logger *slog.Logger
}

// NewLoggingCatalogService creates a new LoggingCatalogService.
func NewLoggingCatalogService(next docpilot.CatalogService, logger *slog.Logger) *LoggingCatalogService {
	return &LoggingCatalogService{next: next, logger: logger}
}

// ScanNeeded delegates to the wrapped service.
func (s *LoggingCatalogService) ScanNeeded(ctx context.Context, file *docpilot.DocumentFile) (bool, error) {
	return s.next.ScanNeeded(ctx, file)
}

// Upsert delegates to the wrapped service and logs the commit.
func (s *LoggingCatalogService) Upsert(ctx context.Context, file *docpilot.DocumentFile, records []*docpilot.Record) (err error) {
	defer func(begin time.Time) {
		s.logger.Debug("catalog upsert",
			"path", file.Path,
			"records", len(records),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.Upsert(ctx, file, records)
}

// RemoveStale delegates to the wrapped service and logs the tombstoned paths.
func (s *LoggingCatalogService) RemoveStale(ctx context.Context, seen []string) (stale []string, err error) {
	defer func(begin time.Time) {
		s.logger.Info("catalog remove stale",
			"seen", len(seen),
			"tombstoned", len(stale),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.RemoveStale(ctx, seen)
}

// Purge delegates to the wrapped service and logs the removed count.
func (s *LoggingCatalogService) Purge(ctx context.Context, before time.Time) (n int, err error) {
	defer func(begin time.Time) {
		s.logger.Info("catalog purge",
			"before", before.UTC().Format(time.RFC3339),
			"purged", n,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.Purge(ctx, before)
}

// QueryCandidates delegates to the wrapped service and logs the recall.
func (s *LoggingCatalogService) QueryCandidates(ctx context.Context, q docpilot.CandidateQuery) (records []*docpilot.Record, err error) {
	defer func(begin time.Time) {
		s.logger.Debug("catalog candidates",
			"term", q.Term,
			"count", len(records),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.QueryCandidates(ctx, q)
}

// FindFile delegates to the wrapped service.
func (s *LoggingCatalogService) FindFile(ctx context.Context, path string) (*docpilot.DocumentFile, error) {
	return s.next.FindFile(ctx, path)
}

// FindRecords delegates to the wrapped service.
func (s *LoggingCatalogService) FindRecords(ctx context.Context, filter docpilot.RecordFilter) ([]*docpilot.Record, error) {
	return s.next.FindRecords(ctx, filter)
}

// Generation delegates to the wrapped service.
func (s *LoggingCatalogService) Generation(ctx context.Context) (int64, error) {
	return s.next.Generation(ctx)
}

// Stats delegates to the wrapped service.
func (s *LoggingCatalogService) Stats(ctx context.Context) (*docpilot.CatalogStats, error) {
	return s.next.Stats(ctx)
}
