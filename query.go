package docpilot

import "context"

// Query defaults.
const (
	DefaultTopK  = 25
	DefaultFinal = 6
)

// QueryRequest represents a free-text lookup.
type QueryRequest struct {
	Text       string `json:"text"`
	TopK       int    `json:"topk"`
	Final      int    `json:"final"`
	WithImages bool   `json:"withImages"`
	NoCache    bool   `json:"-"`

	// RecallLimit bounds the records recalled per term. Zero selects the
	// service default. Rankings recalled under different limits differ.
	RecallLimit int `json:"recallLimit,omitempty"`
}

// Validate returns an error if the request contains invalid fields.
func (r *QueryRequest) Validate() error {
	if r.TopK < 0 {
		return Errorf(EINVALID, "topk must not be negative")
	}
	if r.Final < 0 {
		return Errorf(EINVALID, "final must not be negative")
	}
	if r.RecallLimit < 0 {
		return Errorf(EINVALID, "recall limit must not be negative")
	}
	return nil
}

// Candidate is a ranked record proposed as relevant to a query.
type Candidate struct {
	Record   *Record `json:"record"`
	Score    float64 `json:"score"`
	Matched  int     `json:"matched"`
	Coverage float64 `json:"coverage"`

	// EvidenceUnavailable is set when the source file could not be read
	// at query time.
	EvidenceUnavailable bool `json:"evidenceUnavailable,omitempty"`
}

// Result holds the outcome of a query.
type Result struct {
	Query      string       `json:"query"`
	Terms      []string     `json:"terms"`
	Candidates []*Candidate `json:"candidates"`
	Evidence   []*Evidence  `json:"evidence"`
	Assets     []*Asset     `json:"assets"`
	Stats      QueryStats   `json:"stats"`
}

// QueryStats reports what a query examined.
type QueryStats struct {
	Considered  int   `json:"considered"`
	Shortlisted int   `json:"shortlisted"`
	Returned    int   `json:"returned"`
	ElapsedMS   int64 `json:"elapsedMs"`
	Cached      bool  `json:"cached"`
	Warnings    int   `json:"warnings"`
}

// QueryService answers free-text queries against the catalog.
type QueryService interface {
	// Query returns at most req.Final candidates with evidence. An empty
	// result is not an error. Returns ESTORE if the catalog is unusable.
	Query(ctx context.Context, req QueryRequest) (*Result, error)
}

// Ranking is the cacheable part of a query result.
type Ranking struct {
	Terms       []string     `json:"terms"`
	Candidates  []*Candidate `json:"candidates"`
	Considered  int          `json:"considered"`
	Shortlisted int          `json:"shortlisted"`
}

// QueryCache stores rankings per catalog generation.
type QueryCache interface {
	// Get returns the cached ranking, or nil on a miss.
	Get(ctx context.Context, generation int64, req QueryRequest) (*Ranking, error)

	// Put stores a ranking and drops rankings of older generations.
	Put(ctx context.Context, generation int64, req QueryRequest, ranking *Ranking) error
}
