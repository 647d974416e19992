package fs

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fwojciec/docpilot"
)

// Ensure EvidenceResolver implements docpilot.EvidenceResolver at compile time.
var _ docpilot.EvidenceResolver = (*EvidenceResolver)(nil)

// EvidenceResolver re-reads literal excerpts from files under root.
type EvidenceResolver struct {
	root     string
	maxLines int
}

// NewEvidenceResolver creates a new EvidenceResolver. Excerpts are capped
// at maxLines lines; zero means no cap.
func NewEvidenceResolver(root string, maxLines int) *EvidenceResolver {
	return &EvidenceResolver{root: root, maxLines: maxLines}
}

// Resolve returns the literal lines of the requested range. If the file
// has shrunk below the range the excerpt is truncated and marked partial.
func (r *EvidenceResolver) Resolve(ctx context.Context, req docpilot.EvidenceRequest) (*docpilot.Evidence, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.StartLine < 1 {
		return nil, docpilot.Errorf(docpilot.EINVALID, "evidence start line must be positive")
	}

	start, end := req.StartLine, req.EndLine
	if end < start {
		end = start
	}
	if r.maxLines > 0 && end-start+1 > r.maxLines {
		end = start + r.maxLines - 1
	}

	f, err := os.Open(r.abs(req.Path))
	if err != nil {
		return nil, docpilot.WrapError(docpilot.EEVIDENCE, err, "evidence for %s unavailable", req.Path)
	}
	defer f.Close()

	lines, err := readLines(bufio.NewReader(f), start, end)
	if err != nil {
		return nil, docpilot.WrapError(docpilot.EEVIDENCE, err, "evidence for %s unreadable", req.Path)
	}

	ev := &docpilot.Evidence{
		File:    req.Path,
		Line:    start,
		EndLine: start + len(lines) - 1,
		Text:    strings.Join(lines, "\n"),
		Partial: len(lines) < end-start+1,
	}
	if ev.EndLine < start {
		ev.EndLine = start
	}
	return ev, nil
}

// ResolveAsset reports where an asset lives and whether it exists now.
func (r *EvidenceResolver) ResolveAsset(ctx context.Context, path string) (*docpilot.Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	abs := r.abs(path)
	info, err := os.Stat(abs)
	return &docpilot.Asset{
		Path:    path,
		AbsPath: abs,
		Exists:  err == nil && info.Mode().IsRegular(),
	}, nil
}

func (r *EvidenceResolver) abs(path string) string {
	return filepath.Join(r.root, filepath.FromSlash(path))
}

// readLines returns lines start through end (1-based, inclusive) without
// line terminators, stopping early at end of file. Lines are counted the
// way docpilot.SplitLines counts them.
func readLines(br *bufio.Reader, start, end int) ([]string, error) {
	var lines []string
	n := 0
	for n < end {
		line, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		if line == "" && err != nil {
			// An empty file is one empty line.
			if n == 0 && start == 1 {
				lines = append(lines, "")
			}
			break
		}
		n++
		if n >= start {
			line = strings.TrimSuffix(line, "\n")
			lines = append(lines, strings.TrimSuffix(line, "\r"))
		}
		if err != nil {
			break
		}
	}
	return lines, nil
}
