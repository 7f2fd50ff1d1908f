package vectorstore

import (
	"math"
	"sort"
	"strings"
)

// Weights for fusing vector similarity with lexical term density.
const (
	vectorWeight = 0.7
	textWeight   = 0.3
)

// hybridOverfetch widens the vector candidate set before lexical fusion so
// reranking has material to work with.
const hybridOverfetch = 4

// Rank fuses vector-similarity scores with a lexical term-density score and
// returns a ranked, truncated result list.
//
// For each result the combined score is
//
//	0.7*vectorScore + 0.3*(termMatches / max(len(content)/100, 1))
//
// where termMatches is the total count of non-overlapping, case-insensitive
// literal occurrences of each whitespace-separated query term in the
// document content. Results with a combined score <= 0 are discarded. The
// sort is stable: results with equal combined scores keep their input
// order. A negative limit means no truncation.
//
// An empty (or all-whitespace) query degenerates to pure vector-score
// ordering, with the 0.7 scaling still applied.
//
// Rank never mutates its input; returned records are fresh copies.
func Rank(results []SearchResult, query string, limit int) []SearchResult {
	terms := strings.Fields(strings.ToLower(query))

	ranked := make([]SearchResult, 0, len(results))
	for _, r := range results {
		combined := vectorWeight*float64(r.Score) + textWeight*textScore(r.Document.Content, terms)
		if combined <= 0 {
			continue
		}
		r.Score = float32(combined)
		ranked = append(ranked, r)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	if limit >= 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// textScore is a length-normalized term-density score: total literal term
// occurrences divided by the content length in hundreds of characters,
// floored at one so short documents are not inflated.
//
// Terms are matched as literal substrings, so regex metacharacters in a
// query ("a.b", "f(x)") count plain occurrences instead of being
// interpreted as patterns.
func textScore(content string, terms []string) float64 {
	if len(terms) == 0 {
		return 0
	}
	lower := strings.ToLower(content)
	matches := 0
	for _, term := range terms {
		matches += strings.Count(lower, term)
	}
	return float64(matches) / math.Max(float64(len(content))/100.0, 1.0)
}
