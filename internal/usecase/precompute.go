package usecase

import (
	"context"
	"fmt"

	"gallery/internal/domain"
)

// PrecomputeResult summarizes an offline Original partition build.
type PrecomputeResult struct {
	Total   int
	Written int
	Failed  []string
}

// Precompute extracts features for the first N catalog images and writes
// them as the Original partition. Only successful extractions are stored.
// An existing Original partition is kept unless force is set. progress, if
// non-nil, is called after each image.
func (g *GalleryService) Precompute(ctx context.Context, force bool, progress func(name string, done, total int)) (*PrecomputeResult, error) {
	existing, err := g.features.store.Load(ctx, domain.PartitionOriginal)
	if err != nil {
		return nil, fmt.Errorf("failed to load original features: %w", err)
	}
	if !existing.Empty() && !force {
		return nil, fmt.Errorf("%w: original features already exist (%d images), use --force to overwrite",
			domain.ErrInvalidInput, existing.Len())
	}

	names, err := g.catalog.SeedImages()
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no images found in %s", domain.ErrInvalidInput, g.catalog.Dir())
	}

	result := &PrecomputeResult{Total: len(names)}
	originals := domain.NewPartition()
	for i, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vec, err := g.features.ExtractFile(ctx, name)
		g.log.LogExtraction(ctx, name, err)
		if err != nil {
			result.Failed = append(result.Failed, name)
		} else {
			originals.Append(name, vec)
		}
		if progress != nil {
			progress(name, i+1, len(names))
		}
	}

	if originals.Empty() {
		return result, fmt.Errorf("%w: failed to extract features from any images", domain.ErrExtractionFailure)
	}
	if err := g.features.store.Save(ctx, domain.PartitionOriginal, originals); err != nil {
		return result, fmt.Errorf("failed to save original features: %w", err)
	}
	result.Written = originals.Len()

	g.log.InfoContext(ctx, "original features written",
		"written", result.Written,
		"failed", len(result.Failed),
	)
	return result, nil
}
