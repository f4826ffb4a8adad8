package retrieval

import (
	"math"

	"github.com/fyrsmithlabs/ragify/internal/vectorstore"
)

// maximalMarginalRelevance greedily picks k candidates maximizing
// lambda*sim(query, doc) - (1-lambda)*max sim(doc, already picked).
// lambda 1 is pure relevance, lambda 0 pure diversity. Candidates must carry
// their embeddings.
func maximalMarginalRelevance(query []float32, candidates []vectorstore.Result, k int, lambda float64) []vectorstore.Result {
	if k >= len(candidates) {
		return candidates
	}

	selected := make([]vectorstore.Result, 0, k)
	remaining := make([]vectorstore.Result, len(candidates))
	copy(remaining, candidates)

	for len(selected) < k && len(remaining) > 0 {
		bestIdx := 0
		bestScore := math.Inf(-1)
		for i, cand := range remaining {
			relevance := cosineSimilarity(query, cand.Embedding)
			redundancy := 0.0
			for _, s := range selected {
				if sim := cosineSimilarity(cand.Embedding, s.Embedding); sim > redundancy {
					redundancy = sim
				}
			}
			score := lambda*relevance - (1-lambda)*redundancy
			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}
		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return selected
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
