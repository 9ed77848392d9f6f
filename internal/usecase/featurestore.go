package usecase

import (
	"context"
	"fmt"
	"iter"
	"path/filepath"
	"sync/atomic"

	"gallery/internal/adapter/extractor"
	"gallery/internal/domain"
	"gallery/internal/logging"
	"gallery/internal/port"
)

// errNothingExtracted is the terminal message when a run produced no vectors
// and there are no originals to fall back on.
const errNothingExtracted = "Failed to extract features from any images"

// FeatureStore manages the Original and User partitions. Every operation
// reloads from storage; nothing is cached between calls.
type FeatureStore struct {
	store     port.PartitionStore
	extractor port.Extractor
	imageDir  string
	log       *logging.Logger
}

// NewFeatureStore creates a feature store reading images from imageDir.
func NewFeatureStore(
	store port.PartitionStore,
	extractor port.Extractor,
	imageDir string,
	log *logging.Logger,
) *FeatureStore {
	if log == nil {
		log = logging.Discard()
	}
	return &FeatureStore{
		store:     store,
		extractor: extractor,
		imageDir:  imageDir,
		log:       log,
	}
}

// Load returns both partitions. Missing partitions are empty.
func (s *FeatureStore) Load(ctx context.Context) (original, user *domain.Partition, err error) {
	original, err = s.store.Load(ctx, domain.PartitionOriginal)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load original features: %w", err)
	}
	user, err = s.store.Load(ctx, domain.PartitionUser)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load user features: %w", err)
	}
	return original, user, nil
}

// Merge concatenates Original then User.
func (s *FeatureStore) Merge(ctx context.Context) (*domain.Partition, error) {
	original, user, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	if original.Empty() && user.Empty() {
		return nil, domain.ErrNoFeaturesAvailable
	}
	if !original.Empty() && !user.Empty() && original.Dimension() != user.Dimension() {
		return nil, fmt.Errorf("%w: original features are %d-d, user features are %d-d",
			domain.ErrStorageIO, original.Dimension(), user.Dimension())
	}
	return original.Concat(user), nil
}

// Exists reports whether either partition has entries.
func (s *FeatureStore) Exists(ctx context.Context) (bool, error) {
	original, user, err := s.Load(ctx)
	if err != nil {
		return false, err
	}
	return !original.Empty() || !user.Empty(), nil
}

// Remove drops filename from the User partition. The partition is deleted
// once it becomes empty. An absent name is a no-op.
func (s *FeatureStore) Remove(ctx context.Context, filename string) error {
	user, err := s.store.Load(ctx, domain.PartitionUser)
	if err != nil {
		return fmt.Errorf("failed to load user features: %w", err)
	}
	i := user.IndexOf(filename)
	if i < 0 {
		return nil
	}
	user.RemoveAt(i)
	return s.replaceUser(ctx, user)
}

func (s *FeatureStore) replaceUser(ctx context.Context, user *domain.Partition) error {
	if user.Empty() {
		if err := s.store.Delete(ctx, domain.PartitionUser); err != nil {
			return fmt.Errorf("failed to delete user features: %w", err)
		}
		return nil
	}
	if err := s.store.Save(ctx, domain.PartitionUser, user); err != nil {
		return fmt.Errorf("failed to save user features: %w", err)
	}
	return nil
}

// ExtractFile decodes the named image from the image directory and
// computes its features.
func (s *FeatureStore) ExtractFile(ctx context.Context, name string) (domain.FeatureVector, error) {
	img, err := extractor.DecodeFile(filepath.Join(s.imageDir, name))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrExtractionFailure, name, err)
	}
	vec, err := s.extractor.Extract(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrExtractionFailure, name, err)
	}
	return vec, nil
}

// Regenerate rebuilds the User partition from names. The returned sequence
// does the work as it is ranged: one progress event per name, then one
// terminal event. It can be ranged once; stopping early abandons the run
// without persisting anything.
func (s *FeatureStore) Regenerate(ctx context.Context, names []string, originalCount int) iter.Seq[domain.ProgressEvent] {
	var used atomic.Bool
	return func(yield func(domain.ProgressEvent) bool) {
		if !used.CompareAndSwap(false, true) {
			yield(domain.ProgressEvent{Error: "feature regeneration already consumed"})
			return
		}

		total := len(names)
		fresh := domain.NewPartition()
		for i, name := range names {
			if err := ctx.Err(); err != nil {
				s.log.LogRegenerate(ctx, total, 0, err)
				yield(domain.ProgressEvent{Error: err.Error()})
				return
			}

			vec, err := s.ExtractFile(ctx, name)
			s.log.LogExtraction(ctx, name, err)
			if err == nil && !fresh.Contains(name) {
				fresh.Append(name, vec)
			}

			if !yield(domain.ProgressEvent{
				Progress: Percent(i+1, total),
				Current:  i + 1,
				Total:    total,
			}) {
				return
			}
		}

		if err := s.replaceUser(ctx, fresh); err != nil {
			s.log.LogRegenerate(ctx, total, 0, err)
			yield(domain.ProgressEvent{Error: err.Error()})
			return
		}

		if fresh.Empty() && originalCount == 0 {
			s.log.LogRegenerate(ctx, total, 0, fmt.Errorf("%w: no image produced features", domain.ErrExtractionFailure))
			yield(domain.ProgressEvent{Error: errNothingExtracted})
			return
		}

		s.log.LogRegenerate(ctx, total, fresh.Len(), nil)
		yield(domain.ProgressEvent{
			Complete:      true,
			Count:         fresh.Len(),
			OriginalCount: originalCount,
		})
	}
}

// Percent is done/total as a whole percentage, 100 for an empty run.
func Percent(done, total int) int {
	if total <= 0 {
		return 100
	}
	return done * 100 / total
}
