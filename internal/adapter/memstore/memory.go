package memstore

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"gallery/internal/domain"
)

// MemoryStore keeps partitions in memory. Saved partitions are copied, so
// callers may keep mutating what they passed in.
type MemoryStore struct {
	mu         sync.RWMutex
	partitions map[domain.PartitionKind]*domain.Partition
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		partitions: make(map[domain.PartitionKind]*domain.Partition),
	}
}

func (s *MemoryStore) Load(ctx context.Context, kind domain.PartitionKind) (*domain.Partition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.partitions[kind]
	if !ok {
		return domain.NewPartition(), nil
	}
	return clonePartition(p), nil
}

func (s *MemoryStore) Save(ctx context.Context, kind domain.PartitionKind, p *domain.Partition) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("refusing to save %s partition: %w", kind, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.partitions[kind] = clonePartition(p)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, kind domain.PartitionKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.partitions, kind)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func clonePartition(p *domain.Partition) *domain.Partition {
	out := &domain.Partition{
		Filenames: slices.Clone(p.Filenames),
		Vectors:   make([]domain.FeatureVector, len(p.Vectors)),
	}
	for i, v := range p.Vectors {
		out.Vectors[i] = slices.Clone(v)
	}
	return out
}
