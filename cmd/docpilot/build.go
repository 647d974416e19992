package main

import (
	"log/slog"
	"time"

	"github.com/fwojciec/docpilot"
	"golang.org/x/time/rate"
)

// progressInterval throttles build progress logging.
const progressInterval = 2 * time.Second

// Run executes the build command.
func (c *BuildCmd) Run(deps *Dependencies) error {
	summary, err := deps.Builder.Build(deps.Ctx, progressLogger(deps.Logger))
	if err != nil {
		if summary == nil {
			return err
		}
		deps.Logger.Error("build aborted",
			"updated", summary.Updated,
			"notUpdated", len(summary.NotUpdated),
			"err", err,
		)
		writeJSON(deps.Stdout, errorOutput{Error: newErrorBody(err), Summary: summary})
		return reportedError{err}
	}

	deps.Logger.Info("build finished",
		"runId", summary.RunID,
		"walked", summary.Walked,
		"updated", summary.Updated,
		"unchanged", summary.Unchanged,
		"tombstoned", summary.Tombstoned,
		"failed", len(summary.Failed),
		"duration", summary.FinishedAt.Sub(summary.StartedAt),
	)
	writeJSON(deps.Stdout, summary)
	return nil
}

// progressLogger logs failures as they happen and everything else at
// most once per progressInterval.
func progressLogger(logger *slog.Logger) docpilot.BuildProgressFunc {
	sometimes := &rate.Sometimes{First: 1, Interval: progressInterval}
	return func(event docpilot.BuildEvent) {
		switch event.Type {
		case docpilot.BuildStarted:
			logger.Info("build started")
		case docpilot.BuildFileFailed:
			logger.Warn("file skipped", "path", event.Path, "err", event.Error)
		case docpilot.BuildFinished:
			logger.Debug("build complete", "completed", event.Completed)
		default:
			logger.Debug("file processed", "path", event.Path)
			sometimes.Do(func() {
				logger.Info("build progress", "completed", event.Completed)
			})
		}
	}
}
