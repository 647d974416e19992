package mock

import (
	"context"
	"time"

	"github.com/fwojciec/docpilot"
)

var _ docpilot.CatalogService = (*CatalogService)(nil)

// CatalogService is a mock implementation of docpilot.CatalogService.
type CatalogService struct {
	ScanNeededFn      func(ctx context.Context, file *docpilot.DocumentFile) (bool, error)
	UpsertFn          func(ctx context.Context, file *docpilot.DocumentFile, records []*docpilot.Record) error
	RemoveStaleFn     func(ctx context.Context, seen []string) ([]string, error)
	PurgeFn           func(ctx context.Context, before time.Time) (int, error)
	QueryCandidatesFn func(ctx context.Context, q docpilot.CandidateQuery) ([]*docpilot.Record, error)
	FindFileFn        func(ctx context.Context, path string) (*docpilot.DocumentFile, error)
	FindRecordsFn     func(ctx context.Context, filter docpilot.RecordFilter) ([]*docpilot.Record, error)
	GenerationFn      func(ctx context.Context) (int64, error)
	StatsFn           func(ctx context.Context) (*docpilot.CatalogStats, error)
}

func (s *CatalogService) ScanNeeded(ctx context.Context, file *docpilot.DocumentFile) (bool, error) {
	return s.ScanNeededFn(ctx, file)
}

func (s *CatalogService) Upsert(ctx context.Context, file *docpilot.DocumentFile, records []*docpilot.Record) error {
	return s.UpsertFn(ctx, file, records)
}

func (s *CatalogService) RemoveStale(ctx context.Context, seen []string) ([]string, error) {
	return s.RemoveStaleFn(ctx, seen)
}

func (s *CatalogService) Purge(ctx context.Context, before time.Time) (int, error) {
	return s.PurgeFn(ctx, before)
}

func (s *CatalogService) QueryCandidates(ctx context.Context, q docpilot.CandidateQuery) ([]*docpilot.Record, error) {
	return s.QueryCandidatesFn(ctx, q)
}

func (s *CatalogService) FindFile(ctx context.Context, path string) (*docpilot.DocumentFile, error) {
	return s.FindFileFn(ctx, path)
}

func (s *CatalogService) FindRecords(ctx context.Context, filter docpilot.RecordFilter) ([]*docpilot.Record, error) {
	return s.FindRecordsFn(ctx, filter)
}

func (s *CatalogService) Generation(ctx context.Context) (int64, error) {
	return s.GenerationFn(ctx)
}

func (s *CatalogService) Stats(ctx context.Context) (*docpilot.CatalogStats, error) {
	return s.StatsFn(ctx)
}
