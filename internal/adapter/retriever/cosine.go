package retriever

import (
	"fmt"
	"math"
	"sort"

	"gallery/internal/domain"
)

// DefaultTopK is the number of matches returned by a search.
const DefaultTopK = 6

// CosineRanker scores every stored vector against the query (brute force)
// and keeps the best topK.
type CosineRanker struct {
	topK      int
	urlPrefix string
}

func NewCosineRanker(topK int) *CosineRanker {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &CosineRanker{topK: topK, urlPrefix: "/images/"}
}

// Rank orders the entries of store by similarity to query, highest first.
// Equal scores keep store order.
func (r *CosineRanker) Rank(query domain.FeatureVector, store *domain.Partition) ([]domain.Match, error) {
	if store.Empty() {
		return nil, domain.ErrNoFeaturesAvailable
	}
	if dim := store.Dimension(); len(query) != dim {
		return nil, fmt.Errorf("%w: query dimension mismatch: expected %d, got %d", domain.ErrInvalidInput, dim, len(query))
	}

	type scored struct {
		index int
		score float64
	}

	scores := make([]scored, store.Len())
	for i, v := range store.Vectors {
		scores[i] = scored{index: i, score: CosineSimilarity(query, v)}
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].score > scores[j].score
	})

	k := r.topK
	if k > len(scores) {
		k = len(scores)
	}

	results := make([]domain.Match, k)
	for i := 0; i < k; i++ {
		name := store.Filenames[scores[i].index]
		results[i] = domain.Match{
			Filename:   name,
			Similarity: scores[i].score,
			ImageURL:   r.urlPrefix + name,
		}
	}
	return results, nil
}

// CosineSimilarity calculates the cosine similarity between two vectors.
// It is 0 when the lengths differ or either norm is 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
