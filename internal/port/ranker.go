package port

import "gallery/internal/domain"

// Ranker orders stored images by similarity to a query vector.
type Ranker interface {
	// Rank returns the best matches for query among the entries of store.
	Rank(query domain.FeatureVector, store *domain.Partition) ([]domain.Match, error)
}
