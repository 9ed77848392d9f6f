package port

import (
	"context"
	"image"

	"gallery/internal/domain"
)

// Extractor maps a decoded image to a fixed-length feature vector.
type Extractor interface {
	// Extract computes the embedding of img.
	Extract(ctx context.Context, img image.Image) (domain.FeatureVector, error)

	// Dimension returns the length of every vector Extract produces.
	Dimension() int

	// ModelName returns the name of the underlying model.
	ModelName() string
}
