// Package query answers free-text lookups against the catalog with a
// two-stage ranker: broad recall and scoring into a shortlist, then a
// stricter final pass. Evidence is re-read from the source files.
package query

import (
	"context"
	"sort"
	"time"

	"github.com/fwojciec/docpilot"
	"golang.org/x/sync/errgroup"
)

// Ensure Planner implements docpilot.QueryService at compile time.
var _ docpilot.QueryService = (*Planner)(nil)

// DefaultRecallLimit bounds the pool recalled per term.
const DefaultRecallLimit = 2000

// Planner implements docpilot.QueryService.
type Planner struct {
	Catalog  docpilot.CatalogService
	Evidence docpilot.EvidenceResolver

	// Cache is optional. Cache failures never fail a query.
	Cache docpilot.QueryCache

	// RecallLimit bounds the pool recalled per term when the request does
	// not set one. Defaults to DefaultRecallLimit.
	RecallLimit int

	// Concurrency bounds parallel evidence reads. Defaults to 8.
	Concurrency int

	Now func() time.Time
}

// Query ranks catalog records against req and attaches fresh evidence.
func (p *Planner) Query(ctx context.Context, req docpilot.QueryRequest) (*docpilot.Result, error) {
	now := p.Now
	if now == nil {
		now = time.Now
	}
	begin := now()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.TopK == 0 {
		req.TopK = docpilot.DefaultTopK
	}
	if req.Final == 0 {
		req.Final = docpilot.DefaultFinal
	}
	if req.RecallLimit == 0 {
		req.RecallLimit = p.RecallLimit
	}
	if req.RecallLimit <= 0 {
		req.RecallLimit = DefaultRecallLimit
	}

	groups := Tokenize(req.Text)
	result := &docpilot.Result{
		Query:      req.Text,
		Terms:      Terms(groups),
		Candidates: []*docpilot.Candidate{},
		Evidence:   []*docpilot.Evidence{},
	}
	if req.WithImages {
		result.Assets = []*docpilot.Asset{}
	}
	if result.Terms == nil {
		result.Terms = []string{}
	}
	if len(groups) == 0 {
		result.Stats.ElapsedMS = now().Sub(begin).Milliseconds()
		return result, nil
	}

	ranking, err := p.ranking(ctx, req, groups, &result.Stats)
	if err != nil {
		return nil, err
	}
	result.Candidates = ranking.Candidates
	result.Stats.Considered = ranking.Considered
	result.Stats.Shortlisted = ranking.Shortlisted
	result.Stats.Returned = len(ranking.Candidates)

	if result.Evidence, err = p.resolveEvidence(ctx, ranking.Candidates); err != nil {
		return nil, err
	}

	if req.WithImages {
		if result.Assets, err = p.resolveAssets(ctx, ranking.Candidates); err != nil {
			return nil, err
		}
	}

	result.Stats.ElapsedMS = now().Sub(begin).Milliseconds()
	return result, nil
}

// ranking returns the ranked candidates, from the cache when possible.
func (p *Planner) ranking(ctx context.Context, req docpilot.QueryRequest, groups []TermGroup, stats *docpilot.QueryStats) (*docpilot.Ranking, error) {
	useCache := p.Cache != nil && !req.NoCache

	var generation int64
	if useCache {
		var err error
		if generation, err = p.Catalog.Generation(ctx); err != nil {
			return nil, err
		}
		cached, err := p.Cache.Get(ctx, generation, req)
		if err != nil {
			stats.Warnings++
		} else if cached != nil {
			stats.Cached = true
			return cached, nil
		}
	}

	ranking, err := p.rank(ctx, req, groups)
	if err != nil {
		return nil, err
	}

	if useCache {
		if err := p.Cache.Put(ctx, generation, req, ranking); err != nil {
			stats.Warnings++
		}
	}
	return ranking, nil
}

// rank runs recall, stage one scoring and the final pass.
func (p *Planner) rank(ctx context.Context, req docpilot.QueryRequest, groups []TermGroup) (*docpilot.Ranking, error) {
	limit := req.RecallLimit
	pool := make(map[int64]*docpilot.Record)
	for _, term := range Terms(groups) {
		records, err := p.Catalog.QueryCandidates(ctx, docpilot.CandidateQuery{Term: term, Limit: limit})
		if err != nil {
			return nil, err
		}
		for _, r := range records {
			pool[r.ID] = r
		}
	}

	phrase := normalize(req.Text)
	candidates := make([]*docpilot.Candidate, 0, len(pool))
	for _, r := range pool {
		candidates = append(candidates, score(r, groups, phrase))
	}
	rank(candidates)

	considered := len(candidates)
	if len(candidates) > req.TopK {
		candidates = candidates[:req.TopK]
	}
	shortlisted := len(candidates)

	final := finalPass(candidates, groups, phrase)
	if len(final) > req.Final {
		final = final[:req.Final]
	}
	if final == nil {
		final = []*docpilot.Candidate{}
	}

	return &docpilot.Ranking{
		Terms:       Terms(groups),
		Candidates:  final,
		Considered:  considered,
		Shortlisted: shortlisted,
	}, nil
}

// evidenceRange returns the lines to quote for a record.
func evidenceRange(r *docpilot.Record) docpilot.EvidenceRequest {
	req := docpilot.EvidenceRequest{Path: r.Path, StartLine: r.StartLine, EndLine: r.StartLine}
	if r.Kind == docpilot.KindSection {
		req.EndLine = r.EndLine
	}
	return req
}

// resolveEvidence reads one excerpt per candidate in parallel. Candidates
// whose file can no longer be read are flagged, never dropped.
func (p *Planner) resolveEvidence(ctx context.Context, candidates []*docpilot.Candidate) ([]*docpilot.Evidence, error) {
	evidence := make([]*docpilot.Evidence, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency())
	for i, c := range candidates {
		g.Go(func() error {
			req := evidenceRange(c.Record)
			ev, err := p.Evidence.Resolve(gctx, req)
			if err != nil {
				if docpilot.ErrorCode(err) != docpilot.EEVIDENCE {
					return err
				}
				c.EvidenceUnavailable = true
				ev = &docpilot.Evidence{
					File:        req.Path,
					Line:        req.StartLine,
					EndLine:     req.StartLine,
					Unavailable: true,
					Error:       docpilot.ErrorMessage(err),
				}
			}
			evidence[i] = ev
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return evidence, nil
}

// resolveAssets collects the images relevant to the candidates: an image
// candidate's own target, the images inside a section candidate, and the
// images inside the section that holds a symbol candidate.
func (p *Planner) resolveAssets(ctx context.Context, candidates []*docpilot.Candidate) ([]*docpilot.Asset, error) {
	var images []*docpilot.Record
	for _, c := range candidates {
		r := c.Record
		switch r.Kind {
		case docpilot.KindImage:
			images = append(images, r)
		case docpilot.KindSection:
			found, err := p.imagesIn(ctx, r.Path, r.StartLine, r.EndLine)
			if err != nil {
				return nil, err
			}
			images = append(images, found...)
		case docpilot.KindSymbol:
			section, err := p.sectionOf(ctx, r)
			if err != nil {
				return nil, err
			}
			if section == nil {
				continue
			}
			found, err := p.imagesIn(ctx, r.Path, section.StartLine, section.EndLine)
			if err != nil {
				return nil, err
			}
			images = append(images, found...)
		}
	}

	assets := []*docpilot.Asset{}
	seen := make(map[string]bool)
	for _, img := range images {
		if seen[img.Asset] {
			continue
		}
		seen[img.Asset] = true

		asset, err := p.Evidence.ResolveAsset(ctx, img.Asset)
		if err != nil {
			return nil, err
		}
		asset.Alt = img.Text
		asset.File = img.Path
		asset.Line = img.StartLine
		assets = append(assets, asset)
	}
	return assets, nil
}

func (p *Planner) imagesIn(ctx context.Context, path string, from, to int) ([]*docpilot.Record, error) {
	kind := docpilot.KindImage
	return p.Catalog.FindRecords(ctx, docpilot.RecordFilter{Path: &path, Kind: &kind, FromLine: from, ToLine: to})
}

// sectionOf returns the innermost section containing a record's line.
func (p *Planner) sectionOf(ctx context.Context, r *docpilot.Record) (*docpilot.Record, error) {
	kind := docpilot.KindSection
	sections, err := p.Catalog.FindRecords(ctx, docpilot.RecordFilter{Path: &r.Path, Kind: &kind, FromLine: r.StartLine, ToLine: r.StartLine})
	if err != nil {
		return nil, err
	}
	if len(sections) == 0 {
		return nil, nil
	}
	sort.SliceStable(sections, func(i, j int) bool { return sections[i].StartLine > sections[j].StartLine })
	return sections[0], nil
}

func (p *Planner) concurrency() int {
	if p.Concurrency > 0 {
		return p.Concurrency
	}
	return 8
}
