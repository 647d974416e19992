package main

import (
	"strings"

	"github.com/fwojciec/docpilot"
)

type queryOutput struct {
	Query      string              `json:"query"`
	Terms      []string            `json:"terms"`
	Candidates []candidateOutput   `json:"candidates"`
	Evidence   []evidenceOutput    `json:"evidence"`
	Assets     *[]*docpilot.Asset  `json:"assets,omitempty"`
	Stats      docpilot.QueryStats `json:"stats"`
}

type candidateOutput struct {
	Name                string   `json:"name"`
	Kind                string   `json:"kind"`
	SymbolKind          string   `json:"symbol_kind,omitempty"`
	File                string   `json:"file"`
	Line                int      `json:"line"`
	EndLine             int      `json:"end_line"`
	Section             string   `json:"section"`
	Tags                []string `json:"tags,omitempty"`
	Score               float64  `json:"score"`
	EvidenceUnavailable bool     `json:"evidence_unavailable"`
}

type evidenceOutput struct {
	File        string `json:"file"`
	Line        int    `json:"line"`
	EndLine     int    `json:"end_line"`
	Text        string `json:"text"`
	Partial     bool   `json:"partial"`
	Unavailable bool   `json:"unavailable"`
	Error       string `json:"error,omitempty"`
}

// Run executes the query command.
func (c *QueryCmd) Run(deps *Dependencies) error {
	req := docpilot.QueryRequest{
		Text:       c.Text,
		TopK:       c.TopK,
		Final:      c.Final,
		WithImages: c.WithImages,
		NoCache:    c.NoCache,
	}
	if deps.Config != nil {
		if req.TopK == 0 {
			req.TopK = deps.Config.Query.TopK
		}
		if req.Final == 0 {
			req.Final = deps.Config.Query.Final
		}
	}

	result, err := deps.Queries.Query(deps.Ctx, req)
	if err != nil {
		return err
	}

	writeJSON(deps.Stdout, newQueryOutput(result))
	return nil
}

func newQueryOutput(result *docpilot.Result) *queryOutput {
	out := &queryOutput{
		Query:      result.Query,
		Terms:      result.Terms,
		Candidates: make([]candidateOutput, 0, len(result.Candidates)),
		Evidence:   make([]evidenceOutput, 0, len(result.Evidence)),
		Stats:      result.Stats,
	}
	for _, c := range result.Candidates {
		r := c.Record
		out.Candidates = append(out.Candidates, candidateOutput{
			Name:                r.Text,
			Kind:                string(r.Kind),
			SymbolKind:          string(r.SymbolKind),
			File:                r.Path,
			Line:                r.StartLine,
			EndLine:             r.EndLine,
			Section:             strings.Join(r.Ancestry, " > "),
			Tags:                r.Tags(),
			Score:               c.Score,
			EvidenceUnavailable: c.EvidenceUnavailable,
		})
	}
	for _, e := range result.Evidence {
		out.Evidence = append(out.Evidence, evidenceOutput{
			File:        e.File,
			Line:        e.Line,
			EndLine:     e.EndLine,
			Text:        e.Text,
			Partial:     e.Partial,
			Unavailable: e.Unavailable,
			Error:       e.Error,
		})
	}
	if result.Assets != nil {
		out.Assets = &result.Assets
	}
	return out
}
