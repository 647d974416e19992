package slog_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/fwojciec/docpilot"
	"github.com/fwojciec/docpilot/mock"
	dpslog "github.com/fwojciec/docpilot/slog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggingQueryService_Query(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	inner := &mock.QueryService{
		QueryFn: func(_ context.Context, req docpilot.QueryRequest) (*docpilot.Result, error) {
			return &docpilot.Result{
				Query: req.Text,
				Terms: []string{"foreach"},
				Stats: docpilot.QueryStats{Considered: 9, Returned: 2, Cached: true},
			}, nil
		},
	}
	svc := dpslog.NewLoggingQueryService(inner, slog.New(slog.NewTextHandler(&buf, nil)))

	result, err := svc.Query(context.Background(), docpilot.QueryRequest{Text: "ForEach"})

	require.NoError(t, err)
	assert.Equal(t, "ForEach", result.Query)
	output := buf.String()
	assert.Contains(t, output, "query=ForEach")
	assert.Contains(t, output, "considered=9")
	assert.Contains(t, output, "returned=2")
	assert.Contains(t, output, "cached=true")
}

func TestLoggingQueryCache(t *testing.T) {
	t.Parallel()

	t.Run("logs hits at debug level", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		inner := &mock.QueryCache{
			GetFn: func(context.Context, int64, docpilot.QueryRequest) (*docpilot.Ranking, error) {
				return &docpilot.Ranking{}, nil
			},
		}
		c := dpslog.NewLoggingQueryCache(inner, debugLogger(&buf))

		ranking, err := c.Get(context.Background(), 3, docpilot.QueryRequest{Text: "ForEach"})

		require.NoError(t, err)
		assert.NotNil(t, ranking)
		assert.Contains(t, buf.String(), "hit=true")
		assert.Contains(t, buf.String(), "generation=3")
	})

	t.Run("warns on failures and passes them on", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		inner := &mock.QueryCache{
			GetFn: func(context.Context, int64, docpilot.QueryRequest) (*docpilot.Ranking, error) {
				return nil, errors.New("timeout")
			},
			PutFn: func(context.Context, int64, docpilot.QueryRequest, *docpilot.Ranking) error {
				return errors.New("timeout")
			},
		}
		c := dpslog.NewLoggingQueryCache(inner, slog.New(slog.NewTextHandler(&buf, nil)))

		_, getErr := c.Get(context.Background(), 1, docpilot.QueryRequest{})
		putErr := c.Put(context.Background(), 1, docpilot.QueryRequest{}, &docpilot.Ranking{})

		assert.Error(t, getErr)
		assert.Error(t, putErr)
		output := buf.String()
		assert.Contains(t, output, "query cache read failed")
		assert.Contains(t, output, "query cache write failed")
	})
}
