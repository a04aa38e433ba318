package result

// Match is one nearest neighbour returned by the vector index, in index order.
type Match struct {
	ID       string
	Score    float64
	Metadata map[string]any
}

// Result is a single ranked search hit. It carries no product text: callers
// resolve the narrative from the catalog by ID.
type Result struct {
	id       string
	rank     int
	score    float64
	metadata map[string]any
}

// New creates a search result.
func New(id string, rank int, score float64, metadata map[string]any) Result {
	return Result{id: id, rank: rank, score: score, metadata: metadata}
}

// FromMatches shapes index matches into results, keeping their order.
// Ranks start at 1.
func FromMatches(matches []Match) []Result {
	out := make([]Result, len(matches))
	for i, m := range matches {
		out[i] = New(m.ID, i+1, m.Score, m.Metadata)
	}
	return out
}

// ID returns the external product identifier.
func (r *Result) ID() string { return r.id }

// Rank returns the 1-based similarity rank.
func (r *Result) Rank() int { return r.rank }

// Score returns the similarity score reported by the index.
func (r *Result) Score() float64 { return r.score }

// Metadata returns the stored metadata fields.
func (r *Result) Metadata() map[string]any { return r.metadata }
