package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/docpilot"
)

// Ensure LoggingQueryCache implements docpilot.QueryCache.
var _ docpilot.QueryCache = (*LoggingQueryCache)(nil)

// LoggingQueryCache wraps a QueryCache. Hits and misses are logged at debug
// level, failures as warnings.
type LoggingQueryCache struct {
	next   docpilot.QueryCache
	logger *slog.Logger
}

// NewLoggingQueryCache creates a new LoggingQueryCache.
func NewLoggingQueryCache(next docpilot.QueryCache, logger *slog.Logger) *LoggingQueryCache {
	return &LoggingQueryCache{next: next, logger: logger}
}

// Get delegates to the wrapped cache.
func (c *LoggingQueryCache) Get(ctx context.Context, generation int64, req docpilot.QueryRequest) (ranking *docpilot.Ranking, err error) {
	defer func(begin time.Time) {
		if err != nil {
			c.logger.Warn("query cache read failed", "generation", generation, "err", err)
			return
		}
		c.logger.Debug("query cache lookup",
			"generation", generation,
			"hit", ranking != nil,
			"duration", time.Since(begin),
		)
	}(time.Now())
	return c.next.Get(ctx, generation, req)
}

// Put delegates to the wrapped cache.
func (c *LoggingQueryCache) Put(ctx context.Context, generation int64, req docpilot.QueryRequest, ranking *docpilot.Ranking) error {
	err := c.next.Put(ctx, generation, req, ranking)
	if err != nil {
		c.logger.Warn("query cache write failed", "generation", generation, "err", err)
	}
	return err
}
