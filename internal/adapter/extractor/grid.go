package extractor

import (
	"context"
	"image"
	"math"

	"gallery/internal/domain"
)

const (
	gridCells     = 16
	cellSize      = InputSize / gridCells
	statsPerCell  = 8
	GridDimension = gridCells * gridCells * statsPerCell
)

// GridExtractor is an in-process descriptor computed on the same
// preprocessed tensor the network would see. Each of the 16x16 cells
// contributes per-channel mean and standard deviation plus mean horizontal
// and vertical gradient magnitude, 2048 values in total.
type GridExtractor struct{}

func NewGridExtractor() *GridExtractor {
	return &GridExtractor{}
}

func (e *GridExtractor) Extract(ctx context.Context, img image.Image) (domain.FeatureVector, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t, err := Preprocess(img)
	if err != nil {
		return nil, err
	}

	gray := make([]float32, t.Height*t.Width)
	for i := range gray {
		gray[i] = (t.Data[i*3] + t.Data[i*3+1] + t.Data[i*3+2]) / 3
	}

	out := make(domain.FeatureVector, 0, GridDimension)
	for cy := 0; cy < gridCells; cy++ {
		for cx := 0; cx < gridCells; cx++ {
			out = append(out, cellStats(t, gray, cy*cellSize, cx*cellSize)...)
		}
	}
	return out, nil
}

func cellStats(t *Tensor, gray []float32, y0, x0 int) []float32 {
	var sum, sumSq [3]float64
	var gx, gy float64
	n := float64(cellSize * cellSize)

	for y := y0; y < y0+cellSize; y++ {
		for x := x0; x < x0+cellSize; x++ {
			for c := 0; c < 3; c++ {
				v := float64(t.At(y, x, c))
				sum[c] += v
				sumSq[c] += v * v
			}
			g := gray[y*t.Width+x]
			if x+1 < t.Width {
				gx += math.Abs(float64(gray[y*t.Width+x+1] - g))
			}
			if y+1 < t.Height {
				gy += math.Abs(float64(gray[(y+1)*t.Width+x] - g))
			}
		}
	}

	stats := make([]float32, 0, statsPerCell)
	for c := 0; c < 3; c++ {
		stats = append(stats, float32(sum[c]/n))
	}
	for c := 0; c < 3; c++ {
		mean := sum[c] / n
		variance := sumSq[c]/n - mean*mean
		if variance < 0 {
			variance = 0
		}
		stats = append(stats, float32(math.Sqrt(variance)))
	}
	return append(stats, float32(gx/n), float32(gy/n))
}

func (e *GridExtractor) Dimension() int {
	return GridDimension
}

func (e *GridExtractor) ModelName() string {
	return "grid-16x16"
}
