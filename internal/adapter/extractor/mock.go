package extractor

import (
	"context"
	"image"

	"gallery/internal/domain"
)

// MockExtractor derives a vector from an image's mean colour. Images with
// the same colour balance point the same way.
type MockExtractor struct {
	dimension int
}

func NewMockExtractor(dimension int) *MockExtractor {
	return &MockExtractor{dimension: dimension}
}

func (e *MockExtractor) Extract(ctx context.Context, img image.Image) (domain.FeatureVector, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b := img.Bounds()
	var sum [3]float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			sum[0] += float64(r)
			sum[1] += float64(g)
			sum[2] += float64(bl)
		}
	}
	n := float64(b.Dx()*b.Dy()) * 0xffff
	if n == 0 {
		n = 1
	}

	vec := make(domain.FeatureVector, e.dimension)
	for i := range vec {
		vec[i] = float32(sum[i%3]/n) * float32(1+i%5)
	}
	return vec, nil
}

func (e *MockExtractor) Dimension() int {
	return e.dimension
}

func (e *MockExtractor) ModelName() string {
	return "mock"
}
