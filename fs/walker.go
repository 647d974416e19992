// Package fs provides file system access to the documentation tree:
// walking eligible documents, loading their content, and re-reading
// evidence at query time. It never writes to the tree.
package fs

import (
	"context"
	"errors"
	"io"
	"iter"
	iofs "io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fwojciec/docpilot"
)

// Ensure Walker implements docpilot.FileWalker at compile time.
var _ docpilot.FileWalker = (*Walker)(nil)

// Walker enumerates Markdown files under include scopes, skipping exclude
// scopes, symlinked directories and non-regular files.
type Walker struct {
	root       string
	include    []string
	exclude    []string
	extensions map[string]bool
}

// NewWalker creates a new Walker. Scopes are slash-separated prefixes
// relative to root; an empty include list walks the whole root.
func NewWalker(root string, include, exclude, extensions []string) *Walker {
	exts := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		exts[strings.ToLower(ext)] = true
	}
	include = docpilot.NormalizeScopes(include)
	if len(include) == 0 {
		include = []string{"."}
	}
	return &Walker{
		root:       root,
		include:    include,
		exclude:    docpilot.NormalizeScopes(exclude),
		extensions: exts,
	}
}

// NewWalkerFromConfig creates a Walker from the configured scopes.
func NewWalkerFromConfig(cfg *docpilot.Config) *Walker {
	return NewWalker(cfg.DocsRoot, cfg.IncludeScopes, cfg.ExcludeScopes, cfg.TextExtensions)
}

// Walk validates the root and returns a lazy sequence of eligible files.
func (w *Walker) Walk(ctx context.Context, stats *docpilot.WalkStats) (iter.Seq[*docpilot.DocumentFile], error) {
	if stats == nil {
		stats = &docpilot.WalkStats{}
	}
	if err := checkRoot(w.root); err != nil {
		return nil, err
	}

	return func(yield func(*docpilot.DocumentFile) bool) {
		seen := make(map[string]struct{})
		for _, scope := range w.include {
			if scope != "." && docpilot.UnderScope(scope, w.exclude) {
				stats.Excluded++
				continue
			}
			start := filepath.Join(w.root, filepath.FromSlash(scope))
			if _, err := os.Lstat(start); err != nil {
				stats.MissingScopes++
				continue
			}

			stopped := false
			_ = filepath.WalkDir(start, func(p string, d iofs.DirEntry, err error) error {
				if ctx.Err() != nil {
					stopped = true
					return filepath.SkipAll
				}
				if err != nil {
					// Unreadable directory or vanished entry.
					stats.Skipped++
					return nil
				}

				rel, err := filepath.Rel(w.root, p)
				if err != nil {
					stats.Skipped++
					return nil
				}
				rel = filepath.ToSlash(rel)
				if rel != "." && docpilot.UnderScope(rel, w.exclude) {
					stats.Excluded++
					if d.IsDir() {
						return filepath.SkipDir
					}
					return nil
				}
				if d.IsDir() {
					return nil
				}

				info, ok := regularFile(p, d)
				if !ok {
					stats.Skipped++
					return nil
				}
				if !w.extensions[strings.ToLower(filepath.Ext(p))] {
					stats.OtherExtension++
					return nil
				}
				if _, dup := seen[rel]; dup {
					return nil
				}
				seen[rel] = struct{}{}

				stats.Yielded++
				file := &docpilot.DocumentFile{
					Path:    rel,
					AbsPath: p,
					Size:    info.Size(),
					ModTime: info.ModTime().UnixNano(),
				}
				if !yield(file) {
					stopped = true
					return filepath.SkipAll
				}
				return nil
			})
			if stopped {
				return
			}
		}
	}, nil
}

// regularFile returns file info for regular files and symlinks to regular
// files. Symlinked directories are never followed, which rules out cycles.
func regularFile(p string, d iofs.DirEntry) (iofs.FileInfo, bool) {
	if d.Type()&iofs.ModeSymlink != 0 {
		info, err := os.Stat(p)
		if err != nil || !info.Mode().IsRegular() {
			return nil, false
		}
		return info, true
	}
	if !d.Type().IsRegular() {
		return nil, false
	}
	info, err := d.Info()
	if err != nil {
		return nil, false
	}
	return info, true
}

func checkRoot(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return docpilot.WrapError(docpilot.ECONFIG, err, "docs root %q does not exist", root)
	}
	if !info.IsDir() {
		return docpilot.Errorf(docpilot.ECONFIG, "docs root %q is not a directory", root)
	}
	f, err := os.Open(root)
	if err != nil {
		return docpilot.WrapError(docpilot.ECONFIG, err, "docs root %q is not readable", root)
	}
	defer f.Close()
	if _, err := f.ReadDir(1); err != nil && !errors.Is(err, io.EOF) {
		return docpilot.WrapError(docpilot.ECONFIG, err, "docs root %q is not readable", root)
	}
	return nil
}
