// Package goldmark extracts the structure of Markdown documents using the
// goldmark parser: sections from headings, image references from image
// nodes, and symbols from every line via a pluggable detector.
package goldmark

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/fwojciec/docpilot"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Ensure Extractor implements docpilot.Extractor at compile time.
var (
	_ docpilot.Extractor     = (*Extractor)(nil)
	_ docpilot.Fingerprinter = (*Extractor)(nil)
)

// formatVersion changes whenever extraction rules change in a way that
// makes stored records stale.
const formatVersion = "goldmark/2"

// Extractor implements docpilot.Extractor with a goldmark AST walk.
type Extractor struct {
	root     string
	detector docpilot.SymbolDetector
	md       goldmark.Markdown
}

// NewExtractor creates a new Extractor. Image targets are resolved and
// existence-checked against root.
func NewExtractor(root string, detector docpilot.SymbolDetector) *Extractor {
	return &Extractor{
		root:     root,
		detector: detector,
		md:       goldmark.New(),
	}
}

// Fingerprint identifies the extraction rules and detector settings.
func (e *Extractor) Fingerprint() string {
	h := xxhash.New()
	_, _ = h.WriteString(formatVersion)
	if fp, ok := e.detector.(docpilot.Fingerprinter); ok {
		_, _ = h.WriteString("\x00")
		_, _ = h.WriteString(fp.Fingerprint())
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

// heading is a section boundary found in the AST.
type heading struct {
	line  int
	level int
	title string
}

// image is an image reference found in the AST.
type image struct {
	line int
	alt  string
	dest string
}

// Extract parses content into section, symbol and image records.
func (e *Extractor) Extract(ctx context.Context, file *docpilot.DocumentFile, content []byte) (*docpilot.Extraction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lines := docpilot.SplitLines(string(content))
	starts := lineStarts(content)
	doc := e.md.Parser().Parse(text.NewReader(content))

	var headings []heading
	var images []image
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			if h, ok := headingOf(node, content, starts); ok {
				headings = append(headings, h)
			}
		case *ast.Image:
			images = append(images, imageOf(node, content, starts))
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", file.Path, err)
	}

	ext := &docpilot.Extraction{LineCount: len(lines)}
	sections := e.sections(file, headings, len(lines), ext)
	ext.Records = append(ext.Records, sections...)
	ext.Records = append(ext.Records, e.symbols(file, lines, sections)...)
	ext.Records = append(ext.Records, e.images(file, images, sections, ext)...)
	return ext, nil
}

// sections turns headings into section records. A section spans from its
// heading to the line before the next heading of equal or higher rank.
// Heading levels are taken at face value; skipped levels only warn.
func (e *Extractor) sections(file *docpilot.DocumentFile, headings []heading, lineCount int, ext *docpilot.Extraction) []*docpilot.Record {
	if len(headings) == 0 {
		return []*docpilot.Record{{
			Path:      file.Path,
			Kind:      docpilot.KindSection,
			Text:      implicitTitle(file.Path),
			StartLine: 1,
			EndLine:   lineCount,
		}}
	}

	records := make([]*docpilot.Record, 0, len(headings))
	var stack []heading
	for i, h := range headings {
		if i > 0 && h.level > headings[i-1].level+1 {
			ext.Warnings = append(ext.Warnings, fmt.Sprintf("%s:%d: heading level jumps from %d to %d",
				file.Path, h.line, headings[i-1].level, h.level))
		}

		end := lineCount
		for _, next := range headings[i+1:] {
			if next.level <= h.level {
				end = next.line - 1
				break
			}
		}
		if end < h.line {
			end = h.line
		}

		for len(stack) > 0 && stack[len(stack)-1].level >= h.level {
			stack = stack[:len(stack)-1]
		}
		var ancestry []string
		for _, a := range stack {
			ancestry = append(ancestry, a.title)
		}
		stack = append(stack, h)

		records = append(records, &docpilot.Record{
			Path:      file.Path,
			Kind:      docpilot.KindSection,
			Text:      h.title,
			StartLine: h.line,
			EndLine:   end,
			Level:     h.level,
			Ancestry:  ancestry,
		})
	}
	return records
}

// implicitTitle names the whole-file section of a document without
// headings after its file name.
func implicitTitle(p string) string {
	base := path.Base(p)
	if title := strings.TrimSuffix(base, path.Ext(base)); title != "" {
		return title
	}
	return base
}

// symbols runs the detector over every line. Repeated text within one
// section keeps only its first mention; declarations are kept apart from
// mentions. A struct declared after @Component is a component.
func (e *Extractor) symbols(file *docpilot.DocumentFile, lines []string, sections []*docpilot.Record) []*docpilot.Record {
	if e.detector == nil {
		return nil
	}

	type key struct {
		section  int
		text     string
		declared bool
	}
	seen := make(map[key]bool)

	var records []*docpilot.Record
	pendingComponent := false
	for i, line := range lines {
		lineNo := i + 1
		if docpilot.IsComponentDecorator(line) {
			pendingComponent = true
		}
		spans := e.detector.Detect(line)
		if len(spans) == 0 {
			continue
		}
		owner := innermost(sections, lineNo)
		for _, span := range spans {
			kind := span.Kind
			if kind.Declaration() {
				if kind == docpilot.SymbolStruct && pendingComponent {
					kind = docpilot.SymbolComponent
				}
				pendingComponent = false
			}
			k := key{section: owner, text: span.Text, declared: kind.Declaration()}
			if seen[k] {
				continue
			}
			seen[k] = true
			records = append(records, &docpilot.Record{
				Path:       file.Path,
				Kind:       docpilot.KindSymbol,
				SymbolKind: kind,
				Text:       span.Text,
				StartLine:  lineNo,
				EndLine:    lineNo,
				Ancestry:   scopeOf(sections, owner),
			})
		}
	}
	return records
}

// images resolves image targets relative to the document. Missing targets
// are kept and flagged; remote targets are not assets and are skipped.
func (e *Extractor) images(file *docpilot.DocumentFile, images []image, sections []*docpilot.Record, ext *docpilot.Extraction) []*docpilot.Record {
	type key struct {
		line  int
		asset string
	}
	seen := make(map[key]bool)

	var records []*docpilot.Record
	for _, img := range images {
		rel, ok := resolveAsset(file.Path, img.dest)
		if !ok {
			continue
		}
		k := key{line: img.line, asset: rel}
		if seen[k] {
			continue
		}
		seen[k] = true

		exists := e.assetExists(rel)
		if !exists {
			ext.Warnings = append(ext.Warnings, fmt.Sprintf("%s:%d: image target %s not found", file.Path, img.line, rel))
		}

		display := img.alt
		if display == "" {
			display = path.Base(rel)
		}
		records = append(records, &docpilot.Record{
			Path:        file.Path,
			Kind:        docpilot.KindImage,
			Text:        display,
			StartLine:   img.line,
			EndLine:     img.line,
			Ancestry:    scopeOf(sections, innermost(sections, img.line)),
			Asset:       rel,
			AssetExists: exists,
		})
	}
	return records
}

func (e *Extractor) assetExists(rel string) bool {
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return false
	}
	info, err := os.Stat(filepath.Join(e.root, filepath.FromSlash(rel)))
	return err == nil && info.Mode().IsRegular()
}

// resolveAsset maps an image destination to a path relative to the docs
// root. Absolute destinations are rooted at the docs root.
func resolveAsset(docPath, dest string) (string, bool) {
	dest = strings.TrimSpace(dest)
	lower := strings.ToLower(dest)
	if dest == "" || strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "data:") {
		return "", false
	}
	if i := strings.IndexAny(dest, "?#"); i >= 0 {
		dest = dest[:i]
	}
	if dest == "" {
		return "", false
	}
	if strings.HasPrefix(dest, "/") {
		return path.Clean(strings.TrimPrefix(dest, "/")), true
	}
	return path.Clean(path.Join(path.Dir(docPath), dest)), true
}

// innermost returns the index of the deepest section containing line, or
// -1 for lines before the first heading. Sections are ordered by line and
// nest, so the last containing one starting at or before line is deepest.
func innermost(sections []*docpilot.Record, line int) int {
	i := sort.Search(len(sections), func(i int) bool { return sections[i].StartLine > line }) - 1
	for ; i >= 0; i-- {
		if sections[i].Contains(line) {
			return i
		}
	}
	return -1
}

// scopeOf returns the ancestry of records owned by section i.
func scopeOf(sections []*docpilot.Record, i int) []string {
	if i < 0 {
		return nil
	}
	s := sections[i]
	out := make([]string, 0, len(s.Ancestry)+1)
	out = append(out, s.Ancestry...)
	return append(out, s.Text)
}

func headingOf(node *ast.Heading, src []byte, starts []int) (heading, bool) {
	lines := node.Lines()
	if lines.Len() == 0 {
		return heading{}, false
	}
	parts := make([]string, 0, lines.Len())
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		parts = append(parts, strings.TrimSpace(string(seg.Value(src))))
	}
	title := strings.TrimSpace(strings.Join(parts, " "))
	if title == "" {
		return heading{}, false
	}
	return heading{
		line:  lineOf(starts, lines.At(0).Start),
		level: node.Level,
		title: title,
	}, true
}

func imageOf(node *ast.Image, src []byte, starts []int) image {
	img := image{
		alt:  strings.TrimSpace(inlineText(node, src)),
		dest: string(node.Destination),
	}
	if off, ok := firstTextOffset(node); ok {
		img.line = lineOf(starts, off)
		return img
	}
	img.line = lineInBlock(node, src, starts)
	return img
}

// inlineText concatenates the text segments below n.
func inlineText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Segment.Value(src))
			continue
		}
		buf.WriteString(inlineText(c, src))
	}
	return buf.String()
}

func firstTextOffset(n ast.Node) (int, bool) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			return t.Segment.Start, true
		}
		if off, ok := firstTextOffset(c); ok {
			return off, true
		}
	}
	return 0, false
}

// lineInBlock locates an image without alt text by searching the lines of
// its enclosing block for the destination.
func lineInBlock(node *ast.Image, src []byte, starts []int) int {
	p := node.Parent()
	for p != nil && (p.Type() != ast.TypeBlock || p.Lines().Len() == 0) {
		p = p.Parent()
	}
	if p == nil {
		return 1
	}
	lines := p.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		if bytes.Contains(seg.Value(src), node.Destination) {
			return lineOf(starts, seg.Start)
		}
	}
	return lineOf(starts, lines.At(0).Start)
}

// lineStarts returns the byte offset at which each line begins.
func lineStarts(src []byte) []int {
	starts := []int{0}
	for i, b := range src {
		if b == '\n' && i+1 < len(src) {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// lineOf converts a byte offset into a 1-based line number.
func lineOf(starts []int, offset int) int {
	return sort.Search(len(starts), func(i int) bool { return starts[i] > offset })
}
