package knowledge

import "math"

// Vector is an embedding in the knowledge store's vector space
type Vector []float32

// CosineSimilarity computes cosine similarity between two vectors.
// Returns 0 for zero-length, mismatched or zero-norm vectors, so a
// malformed embedding ranks last instead of failing retrieval.
func CosineSimilarity(a, b Vector) float64 {
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
