// Package build brings the catalog up to date with the documentation tree.
// It coordinates walking, reading, structural extraction and storage of
// documents with a bounded worker pool.
package build

import (
	"context"
	"runtime"
	"sort"
	"time"

	"github.com/fwojciec/docpilot"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Ensure Builder implements docpilot.CatalogBuilder at compile time.
var _ docpilot.CatalogBuilder = (*Builder)(nil)

// Builder orchestrates incremental catalog builds.
type Builder struct {
	Walker    docpilot.FileWalker
	Reader    docpilot.FileReader
	Extractor docpilot.Extractor
	Catalog   docpilot.CatalogService

	// Concurrency bounds the number of files processed at once. Defaults
	// to the number of CPUs.
	Concurrency int

	// Force re-extracts every file regardless of its stored signature
	// and content hash.
	Force bool

	// Fingerprint identifies the extractor settings. Files stored under a
	// different fingerprint are re-extracted even if unchanged.
	Fingerprint string

	// TombstoneTTL is how long tombstoned files are kept before being
	// purged. Zero or negative disables purging.
	TombstoneTTL time.Duration

	Now      func() time.Time
	NewRunID func() string
}

// outcome is what happened to a single file.
type outcome int

const (
	outcomeUpdated outcome = iota
	outcomeUnchanged
	outcomeTouched
	outcomeFailed
	outcomeNotUpdated
)

// fileResult holds the outcome of processing a single file.
type fileResult struct {
	path     string
	outcome  outcome
	records  map[docpilot.RecordKind]int
	warnings int
	err      error
}

// walkResult reports how the producer finished. Files walked after the
// build started stopping are unreached: they were never processed.
type walkResult struct {
	seen      []string
	unreached []string
	complete  bool
	err       error
}

// Build walks the tree and updates every file whose signature changed.
// Files are committed one transaction each, so an aborted build leaves
// the catalog valid. Stale files are tombstoned only after a complete walk.
func (b *Builder) Build(ctx context.Context, progress docpilot.BuildProgressFunc) (*docpilot.BuildSummary, error) {
	now := b.Now
	if now == nil {
		now = time.Now
	}
	newRunID := b.NewRunID
	if newRunID == nil {
		newRunID = uuid.NewString
	}
	concurrency := b.Concurrency
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}

	summary := &docpilot.BuildSummary{
		RunID:     newRunID(),
		StartedAt: now().UTC(),
		Records:   make(map[docpilot.RecordKind]int),
	}

	files, err := b.Walker.Walk(ctx, &summary.Walk)
	if err != nil {
		return nil, err
	}

	emit(progress, docpilot.BuildEvent{Type: docpilot.BuildStarted})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	results := make(chan fileResult)
	done := make(chan walkResult, 1)

	go func() {
		var wr walkResult
		wr.complete = true
		for file := range files {
			if gctx.Err() != nil {
				wr.complete = false
				wr.unreached = append(wr.unreached, file.Path)
				continue
			}
			wr.seen = append(wr.seen, file.Path)
			g.Go(func() error {
				return b.process(gctx, summary.RunID, file, results)
			})
		}
		if ctx.Err() != nil {
			wr.complete = false
		}
		wr.err = g.Wait()
		close(results)
		done <- wr
	}()

	completed := 0
	for r := range results {
		completed++
		event := docpilot.BuildEvent{Path: r.path, Completed: completed, Error: r.err}

		switch r.outcome {
		case outcomeUpdated:
			summary.Updated++
			summary.Warnings += r.warnings
			for kind, n := range r.records {
				summary.Records[kind] += n
			}
			event.Type = docpilot.BuildFileUpdated
		case outcomeUnchanged:
			summary.Unchanged++
			event.Type = docpilot.BuildFileUnchanged
		case outcomeTouched:
			summary.Touched++
			event.Type = docpilot.BuildFileTouched
		case outcomeFailed:
			summary.Failed = append(summary.Failed, docpilot.FileError{Path: r.path, Error: r.err.Error()})
			event.Type = docpilot.BuildFileFailed
		case outcomeNotUpdated:
			summary.NotUpdated = append(summary.NotUpdated, r.path)
			continue
		}
		emit(progress, event)
	}

	wr := <-done
	summary.Walked = len(wr.seen) + len(wr.unreached)
	summary.NotUpdated = append(summary.NotUpdated, wr.unreached...)
	sort.Slice(summary.Failed, func(i, j int) bool { return summary.Failed[i].Path < summary.Failed[j].Path })
	sort.Strings(summary.NotUpdated)

	finish := func(err error) (*docpilot.BuildSummary, error) {
		summary.FinishedAt = now().UTC()
		emit(progress, docpilot.BuildEvent{Type: docpilot.BuildFinished, Completed: completed, Error: err})
		return summary, err
	}

	if wr.err != nil {
		return finish(wr.err)
	}
	if !wr.complete {
		if err := ctx.Err(); err != nil {
			return finish(err)
		}
		return finish(docpilot.Errorf(docpilot.EINTERNAL, "walk did not complete"))
	}

	removed, err := b.Catalog.RemoveStale(ctx, wr.seen)
	if err != nil {
		return finish(err)
	}
	summary.Tombstoned = len(removed)

	if b.TombstoneTTL > 0 {
		n, err := b.Catalog.Purge(ctx, now().Add(-b.TombstoneTTL))
		if err != nil {
			return finish(err)
		}
		summary.Purged = n
	}

	return finish(nil)
}

// process brings a single file up to date. It returns an error only for
// store failures, which abort the build.
func (b *Builder) process(ctx context.Context, runID string, file *docpilot.DocumentFile, results chan<- fileResult) error {
	r := fileResult{path: file.Path}
	send := func() { results <- r }

	if ctx.Err() != nil {
		r.outcome = outcomeNotUpdated
		send()
		return nil
	}

	file.RunID = runID
	file.Fingerprint = b.Fingerprint

	if !b.Force {
		needed, err := b.Catalog.ScanNeeded(ctx, file)
		if err != nil {
			return b.abort(ctx, &r, err, send)
		}
		if !needed {
			r.outcome = outcomeUnchanged
			send()
			return nil
		}
	}

	content, err := b.Reader.Load(ctx, file)
	if err != nil {
		return b.fail(ctx, &r, err, send)
	}

	if !b.Force {
		stored, err := b.Catalog.FindFile(ctx, file.Path)
		switch {
		case err == nil && !stored.Tombstoned() && stored.Hash == file.Hash && stored.Fingerprint == file.Fingerprint:
			if stored.SameSignature(file) {
				r.outcome = outcomeUnchanged
				send()
				return nil
			}
			file.LineCount = stored.LineCount
			if err := b.Catalog.Upsert(ctx, file, nil); err != nil {
				return b.abort(ctx, &r, err, send)
			}
			r.outcome = outcomeTouched
			send()
			return nil
		case err != nil && docpilot.ErrorCode(err) != docpilot.ENOTFOUND:
			return b.abort(ctx, &r, err, send)
		}
	}

	ext, err := b.Extractor.Extract(ctx, file, content)
	if err != nil {
		return b.fail(ctx, &r, err, send)
	}
	file.LineCount = ext.LineCount

	// A nil record set would only touch the stored file.
	records := ext.Records
	if records == nil {
		records = []*docpilot.Record{}
	}
	if err := b.Catalog.Upsert(ctx, file, records); err != nil {
		if docpilot.ErrorCode(err) == docpilot.EINVALID {
			return b.fail(ctx, &r, err, send)
		}
		return b.abort(ctx, &r, err, send)
	}

	r.outcome = outcomeUpdated
	r.warnings = len(ext.Warnings)
	r.records = make(map[docpilot.RecordKind]int)
	for _, rec := range ext.Records {
		r.records[rec.Kind]++
	}
	send()
	return nil
}

// fail records a per-file failure. The build continues.
func (b *Builder) fail(ctx context.Context, r *fileResult, err error, send func()) error {
	if ctx.Err() != nil {
		r.outcome = outcomeNotUpdated
	} else {
		r.outcome = outcomeFailed
		r.err = err
	}
	send()
	return nil
}

// abort records a store failure and stops the build. Once the build is
// already stopping, further failures only mark the file as not updated.
func (b *Builder) abort(ctx context.Context, r *fileResult, err error, send func()) error {
	r.outcome = outcomeNotUpdated
	send()
	if ctx.Err() != nil {
		return nil
	}
	if docpilot.ErrorCode(err) == docpilot.EINTERNAL {
		return docpilot.WrapError(docpilot.ESTORE, err, "catalog update of %s failed", r.path)
	}
	return err
}

func emit(progress docpilot.BuildProgressFunc, event docpilot.BuildEvent) {
	if progress != nil {
		progress(event)
	}
}
