package mock

import (
	"context"
	"iter"

	"github.com/fwojciec/docpilot"
)

var (
	_ docpilot.FileWalker       = (*FileWalker)(nil)
	_ docpilot.FileReader       = (*FileReader)(nil)
	_ docpilot.EvidenceResolver = (*EvidenceResolver)(nil)
)

// FileWalker is a mock implementation of docpilot.FileWalker.
type FileWalker struct {
	WalkFn func(ctx context.Context, stats *docpilot.WalkStats) (iter.Seq[*docpilot.DocumentFile], error)
}

func (w *FileWalker) Walk(ctx context.Context, stats *docpilot.WalkStats) (iter.Seq[*docpilot.DocumentFile], error) {
	return w.WalkFn(ctx, stats)
}

// Files returns a FileWalker yielding copies of files on every walk.
func Files(files ...*docpilot.DocumentFile) *FileWalker {
	return &FileWalker{
		WalkFn: func(ctx context.Context, stats *docpilot.WalkStats) (iter.Seq[*docpilot.DocumentFile], error) {
			return func(yield func(*docpilot.DocumentFile) bool) {
				for _, f := range files {
					if ctx.Err() != nil {
						return
					}
					cp := *f
					stats.Yielded++
					if !yield(&cp) {
						return
					}
				}
			}, nil
		},
	}
}

// FileReader is a mock implementation of docpilot.FileReader.
type FileReader struct {
	LoadFn func(ctx context.Context, file *docpilot.DocumentFile) ([]byte, error)
}

func (r *FileReader) Load(ctx context.Context, file *docpilot.DocumentFile) ([]byte, error) {
	return r.LoadFn(ctx, file)
}

// EvidenceResolver is a mock implementation of docpilot.EvidenceResolver.
type EvidenceResolver struct {
	ResolveFn      func(ctx context.Context, req docpilot.EvidenceRequest) (*docpilot.Evidence, error)
	ResolveAssetFn func(ctx context.Context, path string) (*docpilot.Asset, error)
}

func (r *EvidenceResolver) Resolve(ctx context.Context, req docpilot.EvidenceRequest) (*docpilot.Evidence, error) {
	return r.ResolveFn(ctx, req)
}

func (r *EvidenceResolver) ResolveAsset(ctx context.Context, path string) (*docpilot.Asset, error) {
	return r.ResolveAssetFn(ctx, path)
}
