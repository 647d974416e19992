package goldmark_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fwojciec/docpilot"
	"github.com/fwojciec/docpilot/goldmark"
	"github.com/fwojciec/docpilot/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wordDetector reports every occurrence of word.
func wordDetector(word string) *mock.SymbolDetector {
	return &mock.SymbolDetector{
		DetectFn: func(line string) []docpilot.Span {
			var spans []docpilot.Span
			offset := 0
			for {
				i := strings.Index(line[offset:], word)
				if i < 0 {
					return spans
				}
				start := offset + i
				spans = append(spans, docpilot.Span{Text: word, Start: start, End: start + len(word)})
				offset = start + len(word)
			}
		},
	}
}

func extract(t *testing.T, e *goldmark.Extractor, path, content string) *docpilot.Extraction {
	t.Helper()

	ext, err := e.Extract(context.Background(), &docpilot.DocumentFile{Path: path}, []byte(content))
	require.NoError(t, err)
	for _, r := range ext.Records {
		require.NoError(t, r.Validate(ext.LineCount), "record %+v", r)
	}
	return ext
}

func byKind(ext *docpilot.Extraction, kind docpilot.RecordKind) []*docpilot.Record {
	var out []*docpilot.Record
	for _, r := range ext.Records {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

const guide = `# Guide

Intro text.

## Setup

Use ForEach here.
ForEach again.

![flow chart](figures/flow.png)

#### Deep

## Usage

![](missing.png)
![remote](https://example.com/a.png)
`

// Story: Structural Extractor
// Headings become sections that run until the next heading of equal or
// higher rank

func TestExtractor_Sections(t *testing.T) {
	t.Parallel()

	// Given a guide with nested headings and a skipped level
	e := goldmark.NewExtractor(t.TempDir(), nil)

	// When I extract it
	ext := extract(t, e, "docs/guide.md", guide)

	// Then every heading is a section with its range and ancestry
	assert.Equal(t, 17, ext.LineCount)
	sections := byKind(ext, docpilot.KindSection)
	require.Len(t, sections, 4)

	assert.Equal(t, "Guide", sections[0].Text)
	assert.Equal(t, 1, sections[0].Level)
	assert.Equal(t, 1, sections[0].StartLine)
	assert.Equal(t, 17, sections[0].EndLine)
	assert.Empty(t, sections[0].Ancestry)

	assert.Equal(t, "Setup", sections[1].Text)
	assert.Equal(t, 5, sections[1].StartLine)
	assert.Equal(t, 13, sections[1].EndLine)
	assert.Equal(t, []string{"Guide"}, sections[1].Ancestry)

	assert.Equal(t, "Deep", sections[2].Text)
	assert.Equal(t, 4, sections[2].Level)
	assert.Equal(t, 12, sections[2].StartLine)
	assert.Equal(t, 13, sections[2].EndLine)
	assert.Equal(t, []string{"Guide", "Setup"}, sections[2].Ancestry)

	assert.Equal(t, "Usage", sections[3].Text)
	assert.Equal(t, 14, sections[3].StartLine)
	assert.Equal(t, 17, sections[3].EndLine)
	assert.Equal(t, []string{"Guide"}, sections[3].Ancestry)

	// And the skipped level is reported
	require.NotEmpty(t, ext.Warnings)
	assert.Contains(t, ext.Warnings[0], "docs/guide.md:12")
}

func TestExtractor_ImplicitSectionWithoutHeadings(t *testing.T) {
	t.Parallel()

	e := goldmark.NewExtractor(t.TempDir(), nil)

	ext := extract(t, e, "docs/intro.md", "plain text\nmore text\n")

	sections := byKind(ext, docpilot.KindSection)
	require.Len(t, sections, 1)
	assert.Equal(t, "intro", sections[0].Text)
	assert.Equal(t, 0, sections[0].Level)
	assert.Equal(t, 1, sections[0].StartLine)
	assert.Equal(t, 2, sections[0].EndLine)
}

func TestExtractor_ImplicitSectionOfExtensionOnlyName(t *testing.T) {
	t.Parallel()

	e := goldmark.NewExtractor(t.TempDir(), nil)

	ext := extract(t, e, "docs/.md", "plain text\n")

	sections := byKind(ext, docpilot.KindSection)
	require.Len(t, sections, 1)
	assert.Equal(t, ".md", sections[0].Text)
}

func TestExtractor_HeadingSyntax(t *testing.T) {
	t.Parallel()

	e := goldmark.NewExtractor(t.TempDir(), nil)

	t.Run("hash lines inside fenced code are not headings", func(t *testing.T) {
		t.Parallel()

		ext := extract(t, e, "docs/code.md", "```md\n# NotAHeading\n```\n")

		sections := byKind(ext, docpilot.KindSection)
		require.Len(t, sections, 1)
		assert.Equal(t, "code", sections[0].Text)
		assert.Equal(t, 0, sections[0].Level)
	})

	t.Run("fenced hash lines do not split the enclosing section", func(t *testing.T) {
		t.Parallel()

		ext := extract(t, e, "docs/a.md", "# Real\n\n```md\n# NotAHeading\n```\n")

		sections := byKind(ext, docpilot.KindSection)
		require.Len(t, sections, 1)
		assert.Equal(t, "Real", sections[0].Text)
		assert.Equal(t, 1, sections[0].StartLine)
		assert.Equal(t, 5, sections[0].EndLine)
	})

	t.Run("setext headings are sections", func(t *testing.T) {
		t.Parallel()

		ext := extract(t, e, "docs/a.md", "Title\n=====\n\nBody\n\nSub\n---\n\nMore\n")

		sections := byKind(ext, docpilot.KindSection)
		require.Len(t, sections, 2)
		assert.Equal(t, "Title", sections[0].Text)
		assert.Equal(t, 1, sections[0].Level)
		assert.Equal(t, 1, sections[0].StartLine)
		assert.Equal(t, 9, sections[0].EndLine)
		assert.Equal(t, "Sub", sections[1].Text)
		assert.Equal(t, 2, sections[1].Level)
		assert.Equal(t, 6, sections[1].StartLine)
		assert.Equal(t, []string{"Title"}, sections[1].Ancestry)
	})
}

func TestExtractor_CRLFLineNumbers(t *testing.T) {
	t.Parallel()

	e := goldmark.NewExtractor(t.TempDir(), nil)

	ext := extract(t, e, "a.md", "# A\r\n\r\n## B\r\ntext\r\n")

	sections := byKind(ext, docpilot.KindSection)
	require.Len(t, sections, 2)
	assert.Equal(t, "B", sections[1].Text)
	assert.Equal(t, 3, sections[1].StartLine)
	assert.Equal(t, 4, sections[1].EndLine)
}

// Story: Structural Extractor
// Symbols are found on every line and deduplicated per section

func TestExtractor_SymbolsFirstOccurrencePerSection(t *testing.T) {
	t.Parallel()

	// Given a document repeating a name within and across sections
	e := goldmark.NewExtractor(t.TempDir(), wordDetector("ForEach"))
	content := "ForEach in preamble\n# A\nForEach ForEach\nForEach\n# B\nuse ForEach\n"

	// When I extract it
	ext := extract(t, e, "a.md", content)

	// Then each section keeps only its first occurrence
	symbols := byKind(ext, docpilot.KindSymbol)
	require.Len(t, symbols, 3)

	assert.Equal(t, 1, symbols[0].StartLine)
	assert.Empty(t, symbols[0].Ancestry)

	assert.Equal(t, 3, symbols[1].StartLine)
	assert.Equal(t, []string{"A"}, symbols[1].Ancestry)

	assert.Equal(t, 6, symbols[2].StartLine)
	assert.Equal(t, []string{"B"}, symbols[2].Ancestry)
}

func TestExtractor_SymbolAncestryAfterDeeperSibling(t *testing.T) {
	t.Parallel()

	e := goldmark.NewExtractor(t.TempDir(), wordDetector("ForEach"))
	ext := extract(t, e, "docs/a.md", "# A\n\n### C\n\n## B\n\nForEach\n")

	symbols := byKind(ext, docpilot.KindSymbol)
	require.Len(t, symbols, 1)
	assert.Equal(t, []string{"A", "B"}, symbols[0].Ancestry)
}

func TestExtractor_SymbolsInsideCodeBlocks(t *testing.T) {
	t.Parallel()

	d, err := docpilot.NewPatternDetector(nil, 3)
	require.NoError(t, err)
	e := goldmark.NewExtractor(t.TempDir(), d)

	ext := extract(t, e, "a.md", "# List\n\n```ts\nLazyForEach(this.data)\n```\n")

	var texts []string
	for _, r := range byKind(ext, docpilot.KindSymbol) {
		texts = append(texts, r.Text)
		assert.Equal(t, 4, r.StartLine)
	}
	assert.Contains(t, texts, "LazyForEach")
}

// Story: Structural Extractor
// Local images are cataloged with their resolved target

const component = "# Index\n" +
	"\n" +
	"```ts\n" +
	"@Entry\n" +
	"@Component\n" +
	"struct Index {\n" +
	"  build() {\n" +
	"    Column() {\n" +
	"      Text(this.message)\n" +
	"    }\n" +
	"  }\n" +
	"}\n" +
	"class Helper {}\n" +
	"struct Plain {}\n" +
	"```\n"

func TestExtractor_SymbolKinds(t *testing.T) {
	t.Parallel()

	detector, err := docpilot.NewPatternDetector(nil, 3)
	require.NoError(t, err)
	e := goldmark.NewExtractor(t.TempDir(), detector)

	ext := extract(t, e, "docs/index.md", component)

	kinds := make(map[string]docpilot.SymbolKind)
	lines := make(map[string]int)
	for _, r := range byKind(ext, docpilot.KindSymbol) {
		kinds[r.Text] = r.SymbolKind
		lines[r.Text] = r.StartLine
	}
	assert.Equal(t, docpilot.SymbolDecorator, kinds["Entry"])
	assert.Equal(t, docpilot.SymbolDecorator, kinds["Component"])
	assert.Equal(t, docpilot.SymbolComponent, kinds["Index"])
	assert.Equal(t, 6, lines["Index"])
	assert.Equal(t, docpilot.SymbolCall, kinds["build"])
	assert.Equal(t, docpilot.SymbolCall, kinds["Column"])
	assert.Equal(t, docpilot.SymbolCall, kinds["Text"])
	assert.Equal(t, docpilot.SymbolPlain, kinds["this.message"])
	assert.Equal(t, docpilot.SymbolClass, kinds["Helper"])
	assert.Equal(t, docpilot.SymbolStruct, kinds["Plain"])
}

func TestExtractor_DeclarationKeptBesideEarlierMention(t *testing.T) {
	t.Parallel()

	detector, err := docpilot.NewPatternDetector(nil, 3)
	require.NoError(t, err)
	e := goldmark.NewExtractor(t.TempDir(), detector)

	ext := extract(t, e, "docs/a.md", "# A\n\nUse ItemView below.\n\n    class ItemView {}\n")

	var got []docpilot.SymbolKind
	for _, r := range byKind(ext, docpilot.KindSymbol) {
		if r.Text == "ItemView" {
			got = append(got, r.SymbolKind)
		}
	}
	assert.Equal(t, []docpilot.SymbolKind{docpilot.SymbolPlain, docpilot.SymbolClass}, got)
}

func TestExtractor_Fingerprint(t *testing.T) {
	t.Parallel()

	defaults, err := docpilot.NewPatternDetector(nil, 3)
	require.NoError(t, err)
	custom, err := docpilot.NewPatternDetector([]string{`zzz_\w+`}, 3)
	require.NoError(t, err)
	longer, err := docpilot.NewPatternDetector(nil, 4)
	require.NoError(t, err)

	root := t.TempDir()
	fp := goldmark.NewExtractor(root, defaults).Fingerprint()

	assert.Equal(t, fp, goldmark.NewExtractor(root, defaults).Fingerprint())
	assert.NotEqual(t, fp, goldmark.NewExtractor(root, custom).Fingerprint())
	assert.NotEqual(t, fp, goldmark.NewExtractor(root, longer).Fingerprint())
	assert.Len(t, fp, 16)
}

func TestExtractor_Images(t *testing.T) {
	t.Parallel()

	// Given a docs root where only one of two local images exists
	root := t.TempDir()
	target := filepath.Join(root, "docs", "figures", "flow.png")
	require.NoError(t, os.MkdirAll(filepath.Dir(target), 0755))
	require.NoError(t, os.WriteFile(target, []byte("png"), 0644))
	e := goldmark.NewExtractor(root, nil)

	// When I extract the guide
	ext := extract(t, e, "docs/guide.md", guide)

	// Then local images are records and the remote one is skipped
	images := byKind(ext, docpilot.KindImage)
	require.Len(t, images, 2)

	assert.Equal(t, "flow chart", images[0].Text)
	assert.Equal(t, 10, images[0].StartLine)
	assert.Equal(t, "docs/figures/flow.png", images[0].Asset)
	assert.True(t, images[0].AssetExists)
	assert.Equal(t, []string{"Guide", "Setup"}, images[0].Ancestry)

	assert.Equal(t, "missing.png", images[1].Text)
	assert.Equal(t, 16, images[1].StartLine)
	assert.Equal(t, "docs/missing.png", images[1].Asset)
	assert.False(t, images[1].AssetExists)
	assert.Equal(t, []string{"Guide", "Usage"}, images[1].Ancestry)

	// And the missing target is reported
	var found bool
	for _, w := range ext.Warnings {
		if strings.Contains(w, "docs/missing.png") {
			found = true
		}
	}
	assert.True(t, found, "warnings: %v", ext.Warnings)
}

func TestExtractor_ImageTargets(t *testing.T) {
	t.Parallel()

	e := goldmark.NewExtractor(t.TempDir(), nil)
	content := "# A\n\n![root](/images/x.png)\n\n![up](../../escape.png)\n\n![q](pic.png?raw=true)\n\n![data](data:image/png;base64,AAAA)\n"

	ext := extract(t, e, "docs/a.md", content)

	images := byKind(ext, docpilot.KindImage)
	require.Len(t, images, 3)
	assert.Equal(t, "images/x.png", images[0].Asset)
	assert.Equal(t, "../escape.png", images[1].Asset)
	assert.False(t, images[1].AssetExists)
	assert.Equal(t, "docs/pic.png", images[2].Asset)
}

func TestExtractor_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := goldmark.NewExtractor(t.TempDir(), nil).Extract(ctx, &docpilot.DocumentFile{Path: "a.md"}, []byte("# A"))

	assert.ErrorIs(t, err, context.Canceled)
}
