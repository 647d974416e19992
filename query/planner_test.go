package query_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fwojciec/docpilot"
	"github.com/fwojciec/docpilot/build"
	"github.com/fwojciec/docpilot/fs"
	"github.com/fwojciec/docpilot/goldmark"
	"github.com/fwojciec/docpilot/mock"
	"github.com/fwojciec/docpilot/query"
	"github.com/fwojciec/docpilot/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// corpus is a built catalog over a temporary docs tree.
type corpus struct {
	root    string
	catalog *sqlite.CatalogService
}

func newCorpus(t *testing.T, files map[string]string) *corpus {
	t.Helper()

	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}

	db := sqlite.NewDB(":memory:")
	require.NoError(t, db.Open())
	t.Cleanup(func() { db.Close() })
	catalog := sqlite.NewCatalogService(db)

	detector, err := docpilot.NewPatternDetector(nil, 3)
	require.NoError(t, err)
	b := &build.Builder{
		Walker:    fs.NewWalker(root, nil, nil, []string{".md"}),
		Reader:    fs.NewReader(),
		Extractor: goldmark.NewExtractor(root, detector),
		Catalog:   catalog,
	}
	_, err = b.Build(context.Background(), nil)
	require.NoError(t, err)

	return &corpus{root: root, catalog: catalog}
}

func (c *corpus) planner() *query.Planner {
	return &query.Planner{
		Catalog:  c.catalog,
		Evidence: fs.NewEvidenceResolver(c.root, 20),
	}
}

const fooBar = "# Foo\n\nIntro.\n\n## Bar\n\nUse ForEach here.\n"

// Story: Query
// A symbol under a section is found with evidence at its source line

func TestPlanner_Query_FindsSymbolWithEvidence(t *testing.T) {
	t.Parallel()

	// Given a file with a ForEach symbol under ## Bar
	c := newCorpus(t, map[string]string{"docs/a.md": fooBar})

	// When I query for it with a final size of one
	result, err := c.planner().Query(context.Background(), docpilot.QueryRequest{Text: "ForEach", Final: 1})

	// Then exactly that symbol is returned
	require.NoError(t, err)
	require.Len(t, result.Candidates, 1)
	got := result.Candidates[0]
	assert.Equal(t, "ForEach", got.Record.Text)
	assert.Equal(t, docpilot.KindSymbol, got.Record.Kind)
	assert.Equal(t, []string{"Foo", "Bar"}, got.Record.Ancestry)

	// And the evidence quotes its source line
	require.Len(t, result.Evidence, 1)
	assert.Equal(t, "docs/a.md", result.Evidence[0].File)
	assert.Equal(t, 7, result.Evidence[0].Line)
	assert.Equal(t, got.Record.StartLine, result.Evidence[0].Line)
	assert.Equal(t, "Use ForEach here.", result.Evidence[0].Text)
	assert.Equal(t, []string{"foreach"}, result.Terms)
}

func TestPlanner_Query_NoMatchIsEmpty(t *testing.T) {
	t.Parallel()

	c := newCorpus(t, map[string]string{"docs/a.md": fooBar})

	result, err := c.planner().Query(context.Background(), docpilot.QueryRequest{Text: "Nonexistent"})

	require.NoError(t, err)
	assert.NotNil(t, result.Candidates)
	assert.Empty(t, result.Candidates)
	assert.NotNil(t, result.Evidence)
	assert.Empty(t, result.Evidence)
	assert.Nil(t, result.Assets)
}

func TestPlanner_Query_StopwordsOnlyIsEmpty(t *testing.T) {
	t.Parallel()

	c := newCorpus(t, map[string]string{"docs/a.md": fooBar})

	result, err := c.planner().Query(context.Background(), docpilot.QueryRequest{Text: "how the", WithImages: true})

	require.NoError(t, err)
	assert.Empty(t, result.Terms)
	assert.Empty(t, result.Candidates)
	assert.NotNil(t, result.Assets)
}

// Story: Query
// A file deleted after the build yields flagged evidence, not a failure

func TestPlanner_Query_DeletedFileFlagsEvidence(t *testing.T) {
	t.Parallel()

	// Given a built catalog whose source file is then deleted
	c := newCorpus(t, map[string]string{"docs/a.md": fooBar})
	require.NoError(t, os.Remove(filepath.Join(c.root, "docs", "a.md")))

	// When I query
	result, err := c.planner().Query(context.Background(), docpilot.QueryRequest{Text: "ForEach"})

	// Then the candidate is kept and flagged
	require.NoError(t, err)
	require.NotEmpty(t, result.Candidates)
	assert.True(t, result.Candidates[0].EvidenceUnavailable)
	require.Len(t, result.Evidence, len(result.Candidates))
	assert.True(t, result.Evidence[0].Unavailable)
	assert.NotEmpty(t, result.Evidence[0].Error)
	assert.Empty(t, result.Evidence[0].Text)
}

func TestPlanner_Query_Deterministic(t *testing.T) {
	t.Parallel()

	c := newCorpus(t, map[string]string{
		"docs/b.md": fooBar,
		"docs/a.md": fooBar,
		"docs/c.md": "# ForEach\n\nForEach and LazyForEach render lists.\n",
	})
	p := c.planner()
	req := docpilot.QueryRequest{Text: "ForEach", TopK: 25, Final: 6}

	first, err := p.Query(context.Background(), req)
	require.NoError(t, err)
	second, err := p.Query(context.Background(), req)
	require.NoError(t, err)

	require.NotEmpty(t, first.Candidates)
	assert.Equal(t, first.Candidates, second.Candidates)

	// Equal scores fall back to path order
	var symbolPaths []string
	for _, cand := range first.Candidates {
		if cand.Record.Text == "ForEach" && cand.Record.Kind == docpilot.KindSymbol {
			symbolPaths = append(symbolPaths, cand.Record.Path)
		}
	}
	assert.Equal(t, []string{"docs/a.md", "docs/b.md", "docs/c.md"}, symbolPaths)
}

func TestPlanner_Query_RespectsFinalAndTopK(t *testing.T) {
	t.Parallel()

	c := newCorpus(t, map[string]string{
		"docs/a.md": "# A\n\nForEach LazyForEach ForEachItem ForEachRow\n",
	})

	result, err := c.planner().Query(context.Background(), docpilot.QueryRequest{Text: "ForEach", TopK: 3, Final: 2})

	require.NoError(t, err)
	assert.Len(t, result.Candidates, 2)
	assert.Equal(t, 4, result.Stats.Considered)
	assert.Equal(t, 3, result.Stats.Shortlisted)
	assert.Equal(t, 2, result.Stats.Returned)
	assert.Equal(t, "ForEach", result.Candidates[0].Record.Text)
}

// Story: Query
// The final pass keeps candidates covering the most query tokens

func TestPlanner_Query_FinalPassPrefersCoverage(t *testing.T) {
	t.Parallel()

	// Given ForEach under a Grid section and under an unrelated section
	c := newCorpus(t, map[string]string{
		"docs/grid.md":  "# Grid\n\nUse ForEach here.\n",
		"docs/other.md": "# Other\n\nUse ForEach there.\n",
	})

	// When I query for both words
	result, err := c.planner().Query(context.Background(), docpilot.QueryRequest{Text: "Grid ForEach"})

	// Then only the candidate covering both survives
	require.NoError(t, err)
	require.Len(t, result.Candidates, 1)
	assert.Equal(t, "docs/grid.md", result.Candidates[0].Record.Path)
	assert.Equal(t, "ForEach", result.Candidates[0].Record.Text)
	assert.InDelta(t, 1.0, result.Candidates[0].Coverage, 1e-9)
}

func TestPlanner_Query_SectionEvidenceSpansSection(t *testing.T) {
	t.Parallel()

	c := newCorpus(t, map[string]string{"docs/a.md": "# 渲染控制\n\n第一行\n第二行\n"})

	result, err := c.planner().Query(context.Background(), docpilot.QueryRequest{Text: "渲染控制"})

	require.NoError(t, err)
	require.Len(t, result.Candidates, 1)
	assert.Equal(t, docpilot.KindSection, result.Candidates[0].Record.Kind)
	assert.Equal(t, "# 渲染控制\n\n第一行\n第二行", result.Evidence[0].Text)
	assert.Equal(t, 4, result.Evidence[0].EndLine)
}

// Story: Query
// Images in the candidate's section are returned when requested

func TestPlanner_Query_WithImages(t *testing.T) {
	t.Parallel()

	// Given a section with a symbol and two images, one missing
	c := newCorpus(t, map[string]string{
		"docs/a.md":             "# Foo\n\n## Bar\n\nUse ForEach here.\n\n![flow](figures/flow.png)\n\n![gone](figures/gone.png)\n\n## Baz\n\n![other](figures/other.png)\n",
		"docs/figures/flow.png": "png",
	})

	// When I query with images
	result, err := c.planner().Query(context.Background(), docpilot.QueryRequest{Text: "ForEach", Final: 1, WithImages: true})

	// Then the section's images are listed with fresh existence checks
	require.NoError(t, err)
	require.Len(t, result.Assets, 2)
	assert.Equal(t, "docs/figures/flow.png", result.Assets[0].Path)
	assert.True(t, result.Assets[0].Exists)
	assert.Equal(t, "flow", result.Assets[0].Alt)
	assert.Equal(t, "docs/a.md", result.Assets[0].File)
	assert.Equal(t, 7, result.Assets[0].Line)
	assert.Equal(t, filepath.Join(c.root, "docs", "figures", "flow.png"), result.Assets[0].AbsPath)
	assert.Equal(t, "docs/figures/gone.png", result.Assets[1].Path)
	assert.False(t, result.Assets[1].Exists)
}

// Story: Query
// A tight recall limit still recalls the record named exactly like the query

func TestPlanner_Query_ExactMatchSurvivesRecallLimit(t *testing.T) {
	t.Parallel()

	// Given forty loose matches listed before the exact one
	var doc strings.Builder
	doc.WriteString("# Guide\n\n")
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&doc, "TextInputStyle%02d\n", i)
	}
	doc.WriteString("\nText(value)\n")
	c := newCorpus(t, map[string]string{"docs/a.md": doc.String()})
	p := c.planner()
	p.RecallLimit = 5

	// When I query for the exact name
	result, err := p.Query(context.Background(), docpilot.QueryRequest{Text: "Text", Final: 1})

	// Then the exact match ranks first
	require.NoError(t, err)
	require.Len(t, result.Candidates, 1)
	assert.Equal(t, "Text", result.Candidates[0].Record.Text)
	assert.Equal(t, docpilot.SymbolCall, result.Candidates[0].Record.SymbolKind)
}

func TestPlanner_Query_PrefersDeclarations(t *testing.T) {
	t.Parallel()

	// Given a section that mentions a class before declaring it
	c := newCorpus(t, map[string]string{"docs/a.md": "# A\n\nUse ItemView below.\n\n    class ItemView {}\n"})

	// When I query for the class
	result, err := c.planner().Query(context.Background(), docpilot.QueryRequest{Text: "ItemView", Final: 1})

	// Then the declaration wins
	require.NoError(t, err)
	require.Len(t, result.Candidates, 1)
	assert.Equal(t, docpilot.SymbolClass, result.Candidates[0].Record.SymbolKind)
	assert.Equal(t, 5, result.Candidates[0].Record.StartLine)
}

func TestPlanner_Query_CacheKeyCarriesRecallLimit(t *testing.T) {
	t.Parallel()

	c := newCorpus(t, map[string]string{"docs/a.md": fooBar})
	var keys []docpilot.QueryRequest
	p := c.planner()
	p.RecallLimit = 50
	p.Cache = &mock.QueryCache{
		GetFn: func(_ context.Context, _ int64, req docpilot.QueryRequest) (*docpilot.Ranking, error) {
			keys = append(keys, req)
			return nil, nil
		},
		PutFn: func(_ context.Context, _ int64, req docpilot.QueryRequest, _ *docpilot.Ranking) error {
			keys = append(keys, req)
			return nil
		},
	}

	_, err := p.Query(context.Background(), docpilot.QueryRequest{Text: "ForEach"})
	require.NoError(t, err)
	_, err = p.Query(context.Background(), docpilot.QueryRequest{Text: "ForEach", RecallLimit: 7})
	require.NoError(t, err)

	require.Len(t, keys, 4)
	assert.Equal(t, 50, keys[0].RecallLimit)
	assert.Equal(t, 50, keys[1].RecallLimit)
	assert.Equal(t, 7, keys[2].RecallLimit)
}

func TestPlanner_Query_InvalidRequest(t *testing.T) {
	t.Parallel()

	c := newCorpus(t, map[string]string{"docs/a.md": fooBar})

	_, err := c.planner().Query(context.Background(), docpilot.QueryRequest{Text: "ForEach", Final: -1})

	assert.Equal(t, docpilot.EINVALID, docpilot.ErrorCode(err))
}
