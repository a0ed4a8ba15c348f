package embedding

import (
	"fmt"
	"math"
	"sort"

	"selfheal/internal/logging"
)

// =============================================================================
// SIMILARITY
// =============================================================================

// CosineSimilarity calculates the cosine similarity between two vectors.
// Returns a value between -1 and 1, where 1 means identical, 0 means orthogonal.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vectors must have the same length: %d != %d", len(a), len(b))
	}

	var dotProduct, aMagnitude, bMagnitude float64
	for i := 0; i < len(a); i++ {
		dotProduct += float64(a[i]) * float64(b[i])
		aMagnitude += float64(a[i]) * float64(a[i])
		bMagnitude += float64(b[i]) * float64(b[i])
	}

	if aMagnitude == 0 || bMagnitude == 0 {
		return 0, nil
	}

	return dotProduct / (math.Sqrt(aMagnitude) * math.Sqrt(bMagnitude)), nil
}

// EditSimilarity compares two codec vectors as symbol sequences: each slot
// is rounded to a symbol and the sequence ends at the first empty slot.
// Returns 1 - levenshtein(a, b) / max(len(a), len(b)), in [0, 1]. Unlike the
// cosine of raw code points, same-length selectors that differ in their
// identifying part score low.
func EditSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vectors must have the same length: %d != %d", len(a), len(b))
	}
	sa, sb := symbols(a), symbols(b)
	longest := max(len(sa), len(sb))
	if longest == 0 {
		return 0, nil
	}
	return 1 - float64(levenshtein(sa, sb))/float64(longest), nil
}

func symbols(v []float32) []int64 {
	out := make([]int64, 0, len(v))
	for _, x := range v {
		s := int64(math.Round(float64(x)))
		if s <= 0 {
			break
		}
		out = append(out, s)
	}
	return out
}

func levenshtein(a, b []int64) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// SimilarityFunc scores two equal-length vectors; higher is more similar.
type SimilarityFunc func(a, b []float32) (float64, error)

// SimilarityResult represents a similarity search result.
type SimilarityResult struct {
	Index      int
	Similarity float64
}

// FindTopK returns the K corpus vectors most similar to the query by cosine,
// best first. Vectors with a mismatched dimension are skipped.
func FindTopK(query []float32, corpus [][]float32, k int) []SimilarityResult {
	return FindTopKBy(query, corpus, k, CosineSimilarity)
}

// FindTopKBy is FindTopK with a caller-chosen similarity.
func FindTopKBy(query []float32, corpus [][]float32, k int, similar SimilarityFunc) []SimilarityResult {
	if k <= 0 {
		k = 10
	}

	results := make([]SimilarityResult, 0, len(corpus))
	skipped := 0
	for i, vec := range corpus {
		similarity, err := similar(query, vec)
		if err != nil {
			skipped++
			continue
		}
		results = append(results, SimilarityResult{Index: i, Similarity: similarity})
	}
	if skipped > 0 {
		logging.Get(logging.CategoryPredictor).Warn("FindTopK: skipped %d vectors due to dimension mismatch", skipped)
	}

	// Stable so that equal scores keep corpus order.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	if len(results) > k {
		results = results[:k]
	}
	return results
}

// Nearest returns the single most similar corpus vector by cosine.
// ok is false when the corpus has no comparable vector.
func Nearest(query []float32, corpus [][]float32) (SimilarityResult, bool) {
	return NearestBy(query, corpus, CosineSimilarity)
}

// NearestBy is Nearest with a caller-chosen similarity.
func NearestBy(query []float32, corpus [][]float32, similar SimilarityFunc) (SimilarityResult, bool) {
	top := FindTopKBy(query, corpus, 1, similar)
	if len(top) == 0 {
		return SimilarityResult{}, false
	}
	return top[0], true
}
