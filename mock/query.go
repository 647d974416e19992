package mock

import (
	"context"

	"github.com/fwojciec/docpilot"
)

var (
	_ docpilot.QueryService   = (*QueryService)(nil)
	_ docpilot.QueryCache     = (*QueryCache)(nil)
	_ docpilot.CatalogBuilder = (*CatalogBuilder)(nil)
)

// QueryService is a mock implementation of docpilot.QueryService.
type QueryService struct {
	QueryFn func(ctx context.Context, req docpilot.QueryRequest) (*docpilot.Result, error)
}

func (s *QueryService) Query(ctx context.Context, req docpilot.QueryRequest) (*docpilot.Result, error) {
	return s.QueryFn(ctx, req)
}

// QueryCache is a mock implementation of docpilot.QueryCache.
type QueryCache struct {
	GetFn func(ctx context.Context, generation int64, req docpilot.QueryRequest) (*docpilot.Ranking, error)
	PutFn func(ctx context.Context, generation int64, req docpilot.QueryRequest, ranking *docpilot.Ranking) error
}

func (c *QueryCache) Get(ctx context.Context, generation int64, req docpilot.QueryRequest) (*docpilot.Ranking, error) {
	return c.GetFn(ctx, generation, req)
}

func (c *QueryCache) Put(ctx context.Context, generation int64, req docpilot.QueryRequest, ranking *docpilot.Ranking) error {
	return c.PutFn(ctx, generation, req, ranking)
}

// CatalogBuilder is a mock implementation of docpilot.CatalogBuilder.
type CatalogBuilder struct {
	BuildFn func(ctx context.Context, progress docpilot.BuildProgressFunc) (*docpilot.BuildSummary, error)
}

func (b *CatalogBuilder) Build(ctx context.Context, progress docpilot.BuildProgressFunc) (*docpilot.BuildSummary, error) {
	return b.BuildFn(ctx, progress)
}
